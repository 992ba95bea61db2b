package bot

import "regexp"

// Config controls how messages are turned into contexts and dispatched.
// It is created once at startup and shared read-only by every dispatch.
type Config struct {
	// CommandPrefix marks the first word of a message as a command, e.g. "?" in "?crate serde".
	CommandPrefix string

	// MaxContexts caps how many contexts (the message itself plus inline commands)
	// are tried for named handlers.
	MaxContexts int

	// MaxLineLength is the longest reply line, in bytes, that will be sent.
	MaxLineLength int

	// TooLongPlaceholder replaces any reply line longer than MaxLineLength.
	TooLongPlaceholder string

	// InlinePattern finds inline commands in a message body.
	// When the pattern has a capture group, the first group is the inline body.
	InlinePattern *regexp.Regexp
}

// DefaultConfig returns the configuration the bot runs with on IRC.
func DefaultConfig() *Config {
	return &Config{
		CommandPrefix:      "?",
		MaxContexts:        3,
		MaxLineLength:      400,
		TooLongPlaceholder: "<<<message too long for irc>>>",
		InlinePattern:      regexp.MustCompile(`\{(.*?)}`),
	}
}
