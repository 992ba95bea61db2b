package modules

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Travis-Britz/playbot/bot"
	"github.com/Travis-Britz/playbot/cratesio"
	"github.com/Travis-Britz/playbot/sharedstr"
)

// Crate answers "?crate <name>" with a summary of the crate and links to its pages.
type Crate struct {
	Client CrateInfoer
	Logger zerolog.Logger
}

// Register implements Module.
func (m *Crate) Register(r *bot.Registry) {
	r.Handle("crate", m)
}

// HandleCommand implements bot.CommandHandler.
func (m *Crate) HandleCommand(ctx *bot.Context, args []sharedstr.Str) bot.Flow {
	if len(args) == 0 {
		return bot.Continue
	}
	name := args[0].String()

	krate, err := m.Client.CrateInfo(context.Background(), name)
	switch {
	case errors.Is(err, cratesio.ErrNotFound):
		reply(ctx, fmt.Sprintf("Crate '%s' does not exist.", name))
		return bot.Break
	case err != nil:
		m.Logger.Error().Err(err).Str("crate", name).Msg("failed to get crate info")
		reply(ctx, fmt.Sprintf("Failed to get crate info for %s", name))
		return bot.Break
	}

	reply(ctx, formatCrate(krate))
	return bot.Break
}

func formatCrate(c *cratesio.Crate) string {
	escaped := url.PathEscape(c.Name)
	return fmt.Sprintf("%s (%s) - %s -> https://crates.io/crates/%s [https://docs.rs/crate/%s]",
		c.Name,
		c.MaxVersion,
		strings.Join(strings.Fields(c.Description), " "),
		escaped,
		escaped,
	)
}
