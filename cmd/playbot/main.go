// Command playbot runs the Rust playground IRC bot.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

// Version is set via -ldflags at build time.
var Version = "dev"

func newApp() *cli.App {
	app := &cli.App{
		Name:    "playbot",
		Usage:   "Evaluate Rust snippets on IRC",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "playbot.toml",
				EnvVars: []string{"PLAYBOT_CONFIG"},
				Usage:   "Path to the TOML configuration file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override log.level from the configuration file",
			},
			&cli.BoolFlag{
				Name:  "debug-wire",
				Usage: "Log every IRC line sent and received at debug level",
			},
		},
		Action: func(c *cli.Context) error {
			return run(c.Context, options{
				configPath: c.String("config"),
				logLevel:   c.String("log-level"),
				debugWire:  c.Bool("debug-wire"),
			})
		},
	}
	// errors are printed by main
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "playbot:", err)
		stop()
		os.Exit(1)
	}
}
