// Package config loads the bot's TOML configuration.
package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"github.com/Travis-Britz/playbot/bot"
)

// Config is the complete bot configuration.
type Config struct {
	IRC     IRCConfig     `toml:"irc"`
	Bot     BotConfig     `toml:"bot"`
	CodeDB  CodeDBConfig  `toml:"codedb"`
	HTTP    HTTPConfig    `toml:"http"`
	Flood   FloodConfig   `toml:"flood"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
}

// IRCConfig describes the network connection.
type IRCConfig struct {
	Addr     string   `toml:"addr"`
	TLS      bool     `toml:"tls"`
	Nickname string   `toml:"nickname"`
	User     string   `toml:"user"`
	Realname string   `toml:"realname"`
	Password string   `toml:"password"`
	Channels []string `toml:"channels"`

	// PingInterval is how long the connection may be idle before the client checks it.
	PingInterval time.Duration `toml:"ping_interval"`

	// ReconnectDelay is the pause between connection attempts.
	ReconnectDelay time.Duration `toml:"reconnect_delay"`
}

// BotConfig controls command parsing and replies.
type BotConfig struct {
	CommandPrefix string `toml:"command_prefix"`
	MaxLineLength int    `toml:"max_line_length"`
	MaxContexts   int    `toml:"max_contexts"`
	HelpURL       string `toml:"help_url"`
	CTCPVersion   string `toml:"ctcp_version"`
}

// CodeDBConfig locates the snippet store.
type CodeDBConfig struct {
	Path string `toml:"path"`
}

// HTTPConfig configures the crates.io and playground clients.
type HTTPConfig struct {
	Timeout       time.Duration `toml:"timeout"`
	CratesAPIURL  string        `toml:"crates_api_url"`
	PlaygroundURL string        `toml:"playground_url"`
	UserAgent     string        `toml:"user_agent"`
}

// FloodConfig limits how fast replies are sent.
type FloodConfig struct {
	LinesPerSecond float64 `toml:"lines_per_second"`
	Burst          int     `toml:"burst"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the configuration used for settings missing from the file.
// The nickname and channels have no default.
func Default() *Config {
	botDefaults := bot.DefaultConfig()
	return &Config{
		IRC: IRCConfig{
			Addr:           "irc.libera.chat:6697",
			TLS:            true,
			User:           "playbot",
			Realname:       "Rust playground bot",
			PingInterval:   2 * time.Minute,
			ReconnectDelay: 10 * time.Second,
		},
		Bot: BotConfig{
			CommandPrefix: botDefaults.CommandPrefix,
			MaxLineLength: botDefaults.MaxLineLength,
			MaxContexts:   botDefaults.MaxContexts,
			HelpURL:       "https://github.com/Travis-Britz/playbot/blob/master/README.md",
			CTCPVersion:   "playbot",
		},
		CodeDB: CodeDBConfig{
			Path: "code_db.json",
		},
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			CratesAPIURL:  "https://crates.io/api/v1",
			PlaygroundURL: "https://play.rust-lang.org",
			UserAgent:     "playbot (https://github.com/Travis-Britz/playbot)",
		},
		Flood: FloodConfig{
			LinesPerSecond: 2,
			Burst:          4,
		},
		Log: LogConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1:9464",
		},
	}
}

// Load reads the TOML file at path over Default and validates the result.
// Keys the configuration does not know are reported as errors.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is every problem found by Validate.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns ValidateErrors if anything is wrong.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if _, _, err := net.SplitHostPort(c.IRC.Addr); err != nil {
		add("irc.addr", "must be host:port: %v", err)
	}
	if c.IRC.Nickname == "" {
		add("irc.nickname", "is required")
	} else if strings.ContainsAny(c.IRC.Nickname, " ,*?!@:") || strings.HasPrefix(c.IRC.Nickname, "#") {
		add("irc.nickname", "%q is not a valid nickname", c.IRC.Nickname)
	}
	if c.IRC.User == "" {
		add("irc.user", "is required")
	}
	for _, ch := range c.IRC.Channels {
		if !strings.ContainsAny(ch[:min(1, len(ch))], "#&+!") {
			add("irc.channels", "%q is not a channel name", ch)
		}
	}
	if c.IRC.PingInterval <= 0 {
		add("irc.ping_interval", "must be positive")
	}
	if c.IRC.ReconnectDelay < 0 {
		add("irc.reconnect_delay", "cannot be negative")
	}

	if c.Bot.CommandPrefix == "" || strings.ContainsAny(c.Bot.CommandPrefix, " \t") {
		add("bot.command_prefix", "must be non-empty and contain no white space")
	}
	if c.Bot.MaxLineLength < 1 || c.Bot.MaxLineLength > 510 {
		add("bot.max_line_length", "must be between 1 and 510, got %d", c.Bot.MaxLineLength)
	}
	if c.Bot.MaxContexts < 1 {
		add("bot.max_contexts", "must be at least 1, got %d", c.Bot.MaxContexts)
	}

	if c.CodeDB.Path == "" {
		add("codedb.path", "is required")
	}
	if c.HTTP.Timeout <= 0 {
		add("http.timeout", "must be positive")
	}
	if c.Flood.LinesPerSecond <= 0 {
		add("flood.lines_per_second", "must be positive")
	}
	if c.Flood.Burst < 1 {
		add("flood.burst", "must be at least 1")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		add("log.level", "unknown level %q", c.Log.Level)
	}
	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			add("metrics.addr", "must be host:port: %v", err)
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// DispatchConfig returns the settings for bot.NewRegistry.
func (c *Config) DispatchConfig() *bot.Config {
	cfg := bot.DefaultConfig()
	cfg.CommandPrefix = c.Bot.CommandPrefix
	cfg.MaxLineLength = c.Bot.MaxLineLength
	cfg.MaxContexts = c.Bot.MaxContexts
	return cfg
}
