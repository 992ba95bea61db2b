package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Travis-Britz/playbot/bot"
	"github.com/Travis-Britz/playbot/codedb"
	"github.com/Travis-Britz/playbot/config"
	"github.com/Travis-Britz/playbot/cratesio"
	"github.com/Travis-Britz/playbot/irc"
	"github.com/Travis-Britz/playbot/irc/ircdebug"
	"github.com/Travis-Britz/playbot/logging"
	"github.com/Travis-Britz/playbot/metrics"
	"github.com/Travis-Britz/playbot/modules"
	"github.com/Travis-Britz/playbot/playground"
)

const (
	dialTimeout     = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

type options struct {
	configPath string
	logLevel   string
	debugWire  bool
}

// services are the long-lived dependencies shared by every connection.
type services struct {
	logger  zerolog.Logger
	metrics *metrics.Metrics
	store   modules.SnippetStore
	crates  modules.CrateInfoer
	runner  modules.CodeRunner
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	logger := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	})

	m := metrics.New(prometheus.DefaultRegisterer)

	store, err := codedb.Open(cfg.CodeDB.Path,
		codedb.WithLogger(logger.With().Str("component", "codedb").Logger()),
		codedb.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("open code db: %w", err)
	}
	defer store.Close()

	svc := services{
		logger:  logger,
		metrics: m,
		store:   store,
		crates: cratesio.NewClient(&cratesio.Config{
			BaseURL:   cfg.HTTP.CratesAPIURL,
			Timeout:   cfg.HTTP.Timeout,
			UserAgent: cfg.HTTP.UserAgent,
		}, cratesio.WithMetrics(m)),
		runner: playground.NewClient(&playground.Config{
			BaseURL: cfg.HTTP.PlaygroundURL,
			Timeout: cfg.HTTP.Timeout,
		}, playground.WithMetrics(m)),
	}

	nick := &currentNick{fallback: irc.Nickname(cfg.IRC.Nickname)}
	registry := newRegistry(cfg, nick, svc)
	router := newRouter(ctx, cfg, registry, svc)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return connectLoop(ctx, cfg, opts, nick, router, svc)
	})
	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return serveMetrics(ctx, cfg.Metrics.Addr, logger)
		})
	}
	return g.Wait()
}

// newRegistry registers the bot modules. Fallbacks run in registration order,
// so the code db sees "#!" lines before the playground evaluates them.
func newRegistry(cfg *config.Config, nick irc.NickTracker, svc services) *bot.Registry {
	r := bot.NewRegistry(cfg.DispatchConfig(), nick,
		bot.WithLogger(svc.logger.With().Str("component", "bot").Logger()),
		bot.WithMetrics(svc.metrics),
	)
	help := &modules.Help{URL: cfg.Bot.HelpURL}
	modules.Register(r,
		&modules.Crate{Client: svc.crates, Logger: svc.logger},
		help,
		&modules.CodeDB{Store: svc.store, Client: svc.runner, Logger: svc.logger},
		modules.NewEgg(),
		&modules.Playground{Client: svc.runner, Help: help, Logger: svc.logger},
	)
	return r
}

func newRouter(ctx context.Context, cfg *config.Config, registry *bot.Registry, svc services) *irc.Router {
	router := &irc.Router{}
	router.Use(
		irc.Recover(svc.logger),
		irc.FloodLimit(ctx, rate.Limit(cfg.Flood.LinesPerSecond), cfg.Flood.Burst),
		irc.CTCPVersion(cfg.Bot.CTCPVersion),
	)
	router.OnConnect(func(w irc.MessageWriter, m *irc.Message) {
		svc.metrics.RecordConnection("connected")
		svc.logger.Info().Strs("channels", cfg.IRC.Channels).Msg("connected")
		for _, ch := range cfg.IRC.Channels {
			w.WriteMessage(irc.Join(ch))
		}
	})
	router.Handle(irc.CmdPrivmsg, registry)
	return router
}

// connectLoop keeps the bot connected until ctx is canceled.
func connectLoop(ctx context.Context, cfg *config.Config, opts options, nick *currentNick, h irc.Handler, svc services) error {
	logger := svc.logger.With().Str("component", "irc").Logger()
	for {
		c := &irc.Client{
			Addr:         cfg.IRC.Addr,
			Nickname:     cfg.IRC.Nickname,
			User:         cfg.IRC.User,
			Realname:     cfg.IRC.Realname,
			Pass:         cfg.IRC.Password,
			DialFn:       dialer(cfg.IRC.Addr, cfg.IRC.TLS, opts.debugWire, logger),
			Logger:       &logger,
			PingInterval: cfg.IRC.PingInterval,
		}
		nick.client.Store(c)

		logger.Info().Str("addr", cfg.IRC.Addr).Bool("tls", cfg.IRC.TLS).Msg("connecting")
		err := c.ConnectAndRun(ctx, h)
		if ctx.Err() != nil {
			svc.metrics.RecordConnection("closed")
			return nil
		}
		svc.metrics.RecordConnection("lost")
		logger.Warn().Err(err).Dur("retry_in", cfg.IRC.ReconnectDelay).Msg("disconnected")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(cfg.IRC.ReconnectDelay):
		}
	}
}

func dialer(addr string, useTLS, debugWire bool, logger zerolog.Logger) func() (io.ReadWriteCloser, error) {
	return func() (io.ReadWriteCloser, error) {
		d := &net.Dialer{Timeout: dialTimeout}
		var (
			conn io.ReadWriteCloser
			err  error
		)
		if useTLS {
			conn, err = tls.DialWithDialer(d, "tcp", addr, nil)
		} else {
			conn, err = d.Dial("tcp", addr)
		}
		if err != nil {
			return nil, err
		}
		if debugWire {
			conn = ircdebug.Log(logger, conn)
		}
		return conn, nil
	}
}

func serveMetrics(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown")
		}
	}()

	logger.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// currentNick reports the nickname of the active connection,
// or the configured one between connections.
type currentNick struct {
	fallback irc.Nickname
	client   atomic.Pointer[irc.Client]
}

func (n *currentNick) Nick() irc.Nickname {
	if c := n.client.Load(); c != nil {
		if nick := c.Nick(); nick != "" {
			return nick
		}
	}
	return n.fallback
}
