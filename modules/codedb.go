package modules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Travis-Britz/playbot/bot"
	"github.com/Travis-Britz/playbot/codedb"
	"github.com/Travis-Britz/playbot/playground"
)

var (
	fnDefinition = regexp.MustCompile(`^fn\s+([A-Za-z_][A-Za-z0-9_]*)`)
	fnCall       = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)(?:::[A-Za-z_][A-Za-z0-9_]*)*\s*\((?s:.*)\)\s*;?$`)
)

// CodeDB lets users store functions and call them later:
//
//	#! fn double(x: i32) -> i32 { x * 2 }
//	#! double(21)
//
// "#!!" overwrites an existing definition.
type CodeDB struct {
	Store  SnippetStore
	Client CodeRunner
	Logger zerolog.Logger
}

// Register implements Module.
func (m *CodeDB) Register(r *bot.Registry) {
	r.Fallback(m)
}

// HandleFallback implements bot.FallbackHandler.
func (m *CodeDB) HandleFallback(ctx *bot.Context) bot.Flow {
	body, ok := strings.CutPrefix(ctx.Body().String(), "#!")
	if !ok {
		return bot.Continue
	}
	body, overwrite := strings.CutPrefix(body, "!")
	body = strings.TrimSpace(body)

	if fnDefinition.MatchString(body) {
		m.define(ctx, body, overwrite)
	} else {
		m.run(ctx, body)
	}
	return bot.Break
}

func (m *CodeDB) define(ctx *bot.Context, body string, overwrite bool) {
	name := fnDefinition.FindStringSubmatch(body)[1]

	if _, exists := m.Store.Lookup(name); exists && !overwrite {
		reply(ctx, fmt.Sprintf("'%s' already exists. Use #!! to overwrite.", name))
		return
	}

	err := m.Store.Insert(name, body, ctx.Source())
	switch {
	case errors.Is(err, codedb.ErrLocked):
		reply(ctx, fmt.Sprintf("'%s' is locked.", name))
	case err != nil:
		m.Logger.Error().
			Err(err).
			Str("key", name).
			Str("source", ctx.Source()).
			Str("definition", body).
			Msg("failed to define function")
		reply(ctx, fmt.Sprintf("Failed to define '%s'", name))
	default:
		reply(ctx, fmt.Sprintf("Defined '%s'", name))
	}
}

func (m *CodeDB) run(ctx *bot.Context, call string) {
	match := fnCall.FindStringSubmatch(call)
	if match == nil {
		reply(ctx, "Invalid fn call")
		return
	}
	name := match[1]

	fun, ok := m.Store.Lookup(name)
	if !ok {
		reply(ctx, fmt.Sprintf("'%s' does not exist.", name))
		return
	}

	reply(ctx, "Running: "+fun)
	code := fmt.Sprintf(`#![allow(dead_code, unused_variables, unused_imports)]
%s

fn main() {
    println!("{:?}", {
        %s
    });
}
`, fun, strings.TrimSuffix(call, ";"))
	execute(ctx, m.Client, playground.NewExecuteRequest(code), m.Logger)
}
