// Package modules contains the bot's command and fallback handlers.
//
// Each module installs itself into a bot.Registry with Register.
// Named commands are registered with Handle and fallbacks with Fallback,
// so the order in which fallback modules are registered is the order they run in.
package modules

import (
	"context"

	"github.com/Travis-Britz/playbot/bot"
	"github.com/Travis-Britz/playbot/cratesio"
	"github.com/Travis-Britz/playbot/playground"
)

// A Module installs its handlers into a registry.
type Module interface {
	Register(r *bot.Registry)
}

// Register installs every module into r, in order.
func Register(r *bot.Registry, mods ...Module) {
	for _, m := range mods {
		m.Register(r)
	}
}

// CrateInfoer looks up crate metadata. *cratesio.Client implements it.
type CrateInfoer interface {
	CrateInfo(ctx context.Context, name string) (*cratesio.Crate, error)
}

// CodeRunner runs and shares code. *playground.Client implements it.
type CodeRunner interface {
	Execute(ctx context.Context, req *playground.ExecuteRequest) (*playground.ExecuteResponse, error)
	Version(ctx context.Context, channel playground.Channel) (*playground.Version, error)
	Paste(ctx context.Context, code string, channel playground.Channel, mode playground.Mode) (string, error)
}

// SnippetStore holds named functions. *codedb.DB implements it.
type SnippetStore interface {
	Lookup(key string) (string, bool)
	Insert(key, body, modifiedBy string) error
}

// reply sends text and ignores the error, which the context has already logged.
func reply(ctx *bot.Context, text string) {
	_ = ctx.Reply(text)
}
