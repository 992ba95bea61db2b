package modules

import (
	"github.com/Travis-Britz/playbot/bot"
	"github.com/Travis-Britz/playbot/sharedstr"
)

// DefaultHelpURL is where the usage documentation lives.
const DefaultHelpURL = "https://github.com/Travis-Britz/playbot/blob/master/README.md"

// Help answers "?help" with a link to the usage documentation.
type Help struct {
	URL string
}

// Register implements Module.
func (m *Help) Register(r *bot.Registry) {
	r.Handle("help", m)
}

// HandleCommand implements bot.CommandHandler.
func (m *Help) HandleCommand(ctx *bot.Context, _ []sharedstr.Str) bot.Flow {
	m.Display(ctx)
	return bot.Break
}

// Display replies with the help text.
func (m *Help) Display(ctx *bot.Context) {
	u := m.URL
	if u == "" {
		u = DefaultHelpURL
	}
	reply(ctx, "Usage help can be found here: "+u)
}
