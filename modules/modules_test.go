package modules_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Travis-Britz/playbot/bot"
	"github.com/Travis-Britz/playbot/codedb"
	"github.com/Travis-Britz/playbot/cratesio"
	"github.com/Travis-Britz/playbot/irc"
	"github.com/Travis-Britz/playbot/modules"
	"github.com/Travis-Britz/playbot/playground"
	"github.com/Travis-Britz/playbot/sharedstr"
)

const botNick = "playbot"

type sink struct {
	lines []string
}

func (s *sink) Privmsg(target, line string) error {
	s.lines = append(s.lines, line)
	return nil
}

func (s *sink) Notice(target, line string) error {
	s.lines = append(s.lines, line)
	return nil
}

func newCtx(t *testing.T, target, text string) (*bot.Context, *sink) {
	t.Helper()
	m, err := irc.ParseMessage(":alice!al@example.com PRIVMSG " + target + " :" + text)
	require.NoError(t, err)
	s := &sink{}
	ctx, ok := bot.NewContext(m, botNick, s, bot.DefaultConfig())
	require.True(t, ok)
	return ctx, s
}

func args(words ...string) []sharedstr.Str {
	out := make([]sharedstr.Str, len(words))
	for i, w := range words {
		out[i] = sharedstr.New(w)
	}
	return out
}

type fakeCrates struct {
	crate *cratesio.Crate
	err   error
	asked []string
}

func (f *fakeCrates) CrateInfo(_ context.Context, name string) (*cratesio.Crate, error) {
	f.asked = append(f.asked, name)
	return f.crate, f.err
}

type fakeRunner struct {
	resp     *playground.ExecuteResponse
	execErr  error
	version  *playground.Version
	pasteURL string
	pasteErr error

	requests []*playground.ExecuteRequest
	pasted   []string
}

func (f *fakeRunner) Execute(_ context.Context, req *playground.ExecuteRequest) (*playground.ExecuteResponse, error) {
	f.requests = append(f.requests, req)
	return f.resp, f.execErr
}

func (f *fakeRunner) Version(_ context.Context, channel playground.Channel) (*playground.Version, error) {
	if f.version == nil {
		return nil, errors.New("unavailable")
	}
	return f.version, nil
}

func (f *fakeRunner) Paste(_ context.Context, code string, channel playground.Channel, mode playground.Mode) (string, error) {
	f.pasted = append(f.pasted, code)
	return f.pasteURL, f.pasteErr
}

func TestCrate(t *testing.T) {
	crates := &fakeCrates{crate: &cratesio.Crate{
		Name:        "serde",
		MaxVersion:  "1.0.197",
		Description: "A generic\n  serialization framework ",
	}}
	m := &modules.Crate{Client: crates}

	ctx, out := newCtx(t, "#rust", "?crate serde")
	assert.Equal(t, bot.Break, m.HandleCommand(ctx, args("serde", "extra")))
	assert.Equal(t, []string{"serde"}, crates.asked)
	assert.Equal(t, []string{
		"serde (1.0.197) - A generic serialization framework -> https://crates.io/crates/serde [https://docs.rs/crate/serde]",
	}, out.lines)
}

func TestCrate_noArgs(t *testing.T) {
	crates := &fakeCrates{}
	m := &modules.Crate{Client: crates}
	ctx, out := newCtx(t, "#rust", "?crate")
	assert.Equal(t, bot.Continue, m.HandleCommand(ctx, nil))
	assert.Empty(t, crates.asked)
	assert.Empty(t, out.lines)
}

func TestCrate_errors(t *testing.T) {
	tt := []struct {
		name string
		err  error
		want string
	}{
		{"not found", fmt.Errorf("%w: nope", cratesio.ErrNotFound), "Crate 'nope' does not exist."},
		{"failure", errors.New("connection refused"), "Failed to get crate info for nope"},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			m := &modules.Crate{Client: &fakeCrates{err: tc.err}}
			ctx, out := newCtx(t, "#rust", "?crate nope")
			assert.Equal(t, bot.Break, m.HandleCommand(ctx, args("nope")))
			assert.Equal(t, []string{tc.want}, out.lines)
		})
	}
}

func TestHelp(t *testing.T) {
	m := &modules.Help{URL: "https://example.com/help"}
	ctx, out := newCtx(t, "#rust", "?help")
	assert.Equal(t, bot.Break, m.HandleCommand(ctx, nil))
	assert.Equal(t, []string{"Usage help can be found here: https://example.com/help"}, out.lines)

	ctx, out = newCtx(t, "#rust", "?help")
	(&modules.Help{}).Display(ctx)
	assert.Equal(t, []string{"Usage help can be found here: " + modules.DefaultHelpURL}, out.lines)
}

func TestPlayground_notAddressed(t *testing.T) {
	runner := &fakeRunner{}
	m := &modules.Playground{Client: runner, Help: &modules.Help{}}
	ctx, _ := newCtx(t, "#rust", "1 + 1")
	assert.Equal(t, bot.Continue, m.HandleFallback(ctx))
	assert.Empty(t, runner.requests)
}

func TestPlayground_execute(t *testing.T) {
	runner := &fakeRunner{resp: &playground.ExecuteResponse{Success: true, Stdout: "2\n"}}
	m := &modules.Playground{Client: runner, Help: &modules.Help{}}

	ctx, out := newCtx(t, "#rust", "playbot: --nightly --release 1 + 1")
	assert.Equal(t, bot.Break, m.HandleFallback(ctx))

	require.Len(t, runner.requests, 1)
	req := runner.requests[0]
	assert.Equal(t, playground.Nightly, req.Channel)
	assert.Equal(t, playground.Release, req.Mode)
	assert.Contains(t, req.Code, "fn main()")
	assert.Contains(t, req.Code, "1 + 1")
	assert.Equal(t, []string{"2"}, out.lines)
	assert.Empty(t, runner.pasted)
}

func TestPlayground_bare(t *testing.T) {
	runner := &fakeRunner{resp: &playground.ExecuteResponse{Success: true}}
	m := &modules.Playground{Client: runner, Help: &modules.Help{}}

	ctx, _ := newCtx(t, botNick, `--bare fn main() { println!("hi"); }`)
	m.HandleFallback(ctx)

	require.Len(t, runner.requests, 1)
	assert.Equal(t, `fn main() { println!("hi"); }`, runner.requests[0].Code)
	assert.Equal(t, playground.Stable, runner.requests[0].Channel)
	assert.Equal(t, playground.Debug, runner.requests[0].Mode)
}

func TestPlayground_crateAttributes(t *testing.T) {
	runner := &fakeRunner{resp: &playground.ExecuteResponse{Success: true}}
	m := &modules.Playground{Client: runner, Help: &modules.Help{}}

	ctx, _ := newCtx(t, botNick, `#![feature(never_type)] let x: ! = panic!();`)
	m.HandleFallback(ctx)

	require.Len(t, runner.requests, 1)
	code := runner.requests[0].Code
	attr := strings.Index(code, "#![feature(never_type)]")
	main := strings.Index(code, "fn main()")
	require.GreaterOrEqual(t, attr, 0)
	assert.Less(t, attr, main, "crate attributes must precede main")
	assert.Equal(t, 1, strings.Count(code, "#![feature(never_type)]"))
}

func TestPlayground_failureSkipsBanner(t *testing.T) {
	runner := &fakeRunner{resp: &playground.ExecuteResponse{
		Success: false,
		Stderr:  "   Compiling playground v0.0.1\nerror[E0425]: cannot find value `y`\n",
	}}
	m := &modules.Playground{Client: runner, Help: &modules.Help{}}

	ctx, out := newCtx(t, botNick, "y")
	m.HandleFallback(ctx)
	assert.Equal(t, []string{"error[E0425]: cannot find value `y`"}, out.lines)
}

func TestPlayground_truncated(t *testing.T) {
	runner := &fakeRunner{
		resp:     &playground.ExecuteResponse{Success: true, Stdout: "1\n2\n3\n4\n"},
		pasteURL: "https://play.example.com/?gist=abc",
	}
	m := &modules.Playground{Client: runner, Help: &modules.Help{}}

	ctx, out := newCtx(t, botNick, "for i in 1..5 { println!(\"{}\", i) }")
	m.HandleFallback(ctx)

	assert.Equal(t, []string{"1", "2", "~~~ Output truncated; full output at https://play.example.com/?gist=abc"}, out.lines)
	require.Len(t, runner.pasted, 1)
	assert.Contains(t, runner.pasted[0], "1\n2\n3\n4")
}

func TestPlayground_pasteFails(t *testing.T) {
	runner := &fakeRunner{
		resp:     &playground.ExecuteResponse{Success: true, Stdout: "1\n2\n3\n"},
		pasteErr: errors.New("gist service down"),
	}
	m := &modules.Playground{Client: runner, Help: &modules.Help{}}

	ctx, out := newCtx(t, botNick, "x")
	assert.Equal(t, bot.Break, m.HandleFallback(ctx))
	assert.Equal(t, []string{"1", "2"}, out.lines)
}

func TestPlayground_executeFails(t *testing.T) {
	runner := &fakeRunner{execErr: errors.New("timeout")}
	m := &modules.Playground{Client: runner, Help: &modules.Help{}}

	ctx, out := newCtx(t, botNick, "1")
	assert.Equal(t, bot.Break, m.HandleFallback(ctx))
	assert.Empty(t, out.lines)
}

func TestPlayground_version(t *testing.T) {
	runner := &fakeRunner{version: &playground.Version{Version: "1.77.0", Hash: "aedd173a2c086e558c2b66d3743b344f977621a7", Date: "2024-03-17"}}
	m := &modules.Playground{Client: runner, Help: &modules.Help{}}

	ctx, out := newCtx(t, "#rust", "playbot: --beta VERSION")
	assert.Equal(t, bot.Break, m.HandleFallback(ctx))
	assert.Equal(t, []string{"1.77.0 (aedd173a2 2024-03-17)"}, out.lines)
	assert.Empty(t, runner.requests)
}

func TestPlayground_help(t *testing.T) {
	for _, flag := range []string{"help", "h", "-h", "--help", "--h"} {
		t.Run(flag, func(t *testing.T) {
			runner := &fakeRunner{}
			m := &modules.Playground{Client: runner, Help: &modules.Help{URL: "https://example.com"}}
			ctx, out := newCtx(t, botNick, "--nightly "+flag)
			assert.Equal(t, bot.Break, m.HandleFallback(ctx))
			assert.Equal(t, []string{"Usage help can be found here: https://example.com"}, out.lines)
			assert.Empty(t, runner.requests)
		})
	}
}

func openStore(t *testing.T) *codedb.DB {
	t.Helper()
	db, err := codedb.Open(filepath.Join(t.TempDir(), "code_db.json"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCodeDB_ignoresOtherMessages(t *testing.T) {
	m := &modules.CodeDB{Store: openStore(t), Client: &fakeRunner{}}
	ctx, out := newCtx(t, "#rust", "fn main() {}")
	assert.Equal(t, bot.Continue, m.HandleFallback(ctx))
	assert.Empty(t, out.lines)
}

func TestCodeDB_define(t *testing.T) {
	store := openStore(t)
	m := &modules.CodeDB{Store: store, Client: &fakeRunner{}}

	ctx, out := newCtx(t, "#rust", "#! fn double(x: i32) -> i32 { x * 2 }")
	assert.Equal(t, bot.Break, m.HandleFallback(ctx))
	assert.Equal(t, []string{"Defined 'double'"}, out.lines)

	body, ok := store.Lookup("double")
	require.True(t, ok)
	assert.Equal(t, "fn double(x: i32) -> i32 { x * 2 }", body)

	ctx, out = newCtx(t, "#rust", "#! fn double(x: i32) -> i32 { x + x }")
	m.HandleFallback(ctx)
	assert.Equal(t, []string{"'double' already exists. Use #!! to overwrite."}, out.lines)

	ctx, out = newCtx(t, "#rust", "#!! fn double(x: i32) -> i32 { x + x }")
	m.HandleFallback(ctx)
	assert.Equal(t, []string{"Defined 'double'"}, out.lines)
	body, _ = store.Lookup("double")
	assert.Equal(t, "fn double(x: i32) -> i32 { x + x }", body)
}

func TestCodeDB_locked(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Insert("double", "fn double() {}", "admin"))
	require.NoError(t, store.Lock("double", "admin"))
	m := &modules.CodeDB{Store: store, Client: &fakeRunner{}}

	ctx, out := newCtx(t, "#rust", "#!! fn double() { evil() }")
	assert.Equal(t, bot.Break, m.HandleFallback(ctx))
	assert.Equal(t, []string{"'double' is locked."}, out.lines)
}

func TestCodeDB_run(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Insert("double", "fn double(x: i32) -> i32 { x * 2 }", "alice"))
	runner := &fakeRunner{resp: &playground.ExecuteResponse{Success: true, Stdout: "42\n"}}
	m := &modules.CodeDB{Store: store, Client: runner}

	ctx, out := newCtx(t, "#rust", "#! double(21)")
	assert.Equal(t, bot.Break, m.HandleFallback(ctx))
	assert.Equal(t, []string{"Running: fn double(x: i32) -> i32 { x * 2 }", "42"}, out.lines)

	require.Len(t, runner.requests, 1)
	code := runner.requests[0].Code
	assert.Contains(t, code, "fn double(x: i32) -> i32 { x * 2 }")
	assert.Contains(t, code, "double(21)")
}

func TestCodeDB_runErrors(t *testing.T) {
	store := openStore(t)
	m := &modules.CodeDB{Store: store, Client: &fakeRunner{}}

	ctx, out := newCtx(t, "#rust", "#! missing(1)")
	m.HandleFallback(ctx)
	assert.Equal(t, []string{"'missing' does not exist."}, out.lines)

	ctx, out = newCtx(t, "#rust", "#! 1 + 1")
	m.HandleFallback(ctx)
	assert.Equal(t, []string{"Invalid fn call"}, out.lines)
}

func TestEgg(t *testing.T) {
	tt := []struct {
		name string
		text string
		flow bot.Flow
		want []string
	}{
		{"pod bay doors", "Open the pod bay doors, playbot.", bot.Break, []string{"I'm sorry alice, I'm afraid I can't do that."}},
		{"pod bay doors loosely", "open the pod bay door PlayBot!", bot.Break, []string{"I'm sorry alice, I'm afraid I can't do that."}},
		{"pod bay doors for someone else", "open the pod bay doors, hal", bot.Break, nil},
		{"the problem", "What's the problem?", bot.Break, []string{"I think you know what the problem is just as well as I do."}},
		{"talking about", "what are you talking about playbot?", bot.Break, []string{"This mission is too important for me to allow you to jeopardize it."}},
		{"disconnect", "I dont know what you are talking about, playbot", bot.Break, []string{"I know that you and Graydon were planning to disconnect me and I'm afraid that's something I cannot allow to happen"}},
		{"ordinary chat", "hello world", bot.Continue, nil},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			ctx, out := newCtx(t, "#rust", tc.text)
			assert.Equal(t, tc.flow, modules.NewEgg().HandleFallback(ctx))
			assert.Equal(t, tc.want, out.lines)
		})
	}
}

// TestRegistry wires every module together the way the bot does.
func TestRegistry(t *testing.T) {
	crates := &fakeCrates{crate: &cratesio.Crate{Name: "rand", MaxVersion: "0.8.5", Description: "Random numbers"}}
	runner := &fakeRunner{resp: &playground.ExecuteResponse{Success: true, Stdout: "2\n"}}
	help := &modules.Help{URL: "https://example.com"}

	r := bot.NewRegistry(nil, nickTracker(botNick))
	modules.Register(r,
		&modules.Crate{Client: crates},
		help,
		&modules.CodeDB{Store: openStore(t), Client: runner},
		modules.NewEgg(),
		&modules.Playground{Client: runner, Help: help},
	)

	tt := []struct {
		target string
		text   string
		want   []string
	}{
		{"#rust", "?crate rand", []string{"rand (0.8.5) - Random numbers -> https://crates.io/crates/rand [https://docs.rs/crate/rand]"}},
		{"#rust", "have you seen {?crate rand}?", []string{"rand (0.8.5) - Random numbers -> https://crates.io/crates/rand [https://docs.rs/crate/rand]"}},
		{"#rust", "?help", []string{"Usage help can be found here: https://example.com"}},
		{"#rust", "playbot: 1 + 1", []string{"2"}},
		{"#rust", "1 + 1", nil},
		{"#rust", "#! fn one() -> i32 { 1 }", []string{"Defined 'one'"}},
		{"#rust", "what's the problem", []string{"I think you know what the problem is just as well as I do."}},
		{botNick, "1 + 1", []string{"2"}},
	}
	for _, tc := range tt {
		t.Run(tc.text, func(t *testing.T) {
			m, err := irc.ParseMessage(":alice!al@example.com PRIVMSG " + tc.target + " :" + tc.text)
			require.NoError(t, err)
			s := &sink{}
			r.HandleMessage(m, s)
			assert.Equal(t, tc.want, s.lines)
		})
	}
}

type nickTracker string

func (n nickTracker) Nick() irc.Nickname { return irc.Nickname(n) }
