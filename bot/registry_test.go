package bot_test

import (
	"encoding"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Travis-Britz/playbot/bot"
	"github.com/Travis-Britz/playbot/irc"
	"github.com/Travis-Britz/playbot/metrics"
	"github.com/Travis-Britz/playbot/sharedstr"
)

type fixedNick string

func (n fixedNick) Nick() irc.Nickname { return irc.Nickname(n) }

// calls records handler invocations in order.
type calls struct {
	log []string
}

func (c *calls) named(label string, flow bot.Flow) bot.CommandHandlerFunc {
	return func(ctx *bot.Context, args []sharedstr.Str) bot.Flow {
		entry := label
		for _, a := range args {
			entry += " " + a.String()
		}
		c.log = append(c.log, entry)
		return flow
	}
}

func (c *calls) fallback(label string, flow bot.Flow) bot.FallbackHandlerFunc {
	return func(ctx *bot.Context) bot.Flow {
		c.log = append(c.log, label)
		return flow
	}
}

func dispatch(t *testing.T, r *bot.Registry, target, text string) *recordingSink {
	t.Helper()
	sink := &recordingSink{}
	r.HandleMessage(privmsg(t, "alice", target, text), sink)
	return sink
}

func TestRegistry_namedBreakSkipsFallback(t *testing.T) {
	c := &calls{}
	r := bot.NewRegistry(nil, fixedNick("eval"))
	r.Handle("crate", c.named("crate", bot.Break))
	r.Fallback(c.fallback("fallback", bot.Break))

	dispatch(t, r, "#rust", "?crate foo")
	assert.Equal(t, []string{"crate foo"}, c.log)
}

func TestRegistry_inlineLimit(t *testing.T) {
	c := &calls{}
	r := bot.NewRegistry(nil, fixedNick("eval"))
	r.Handle("x", c.named("x", bot.Continue))
	r.Fallback(c.fallback("fallback", bot.Continue))

	dispatch(t, r, "#rust", "try {?x 1} {?x 2} {?x 3} {?x 4}")

	// the message itself plus the first two inline commands
	assert.Equal(t, []string{"x 1", "x 2", "fallback"}, c.log)
}

func TestRegistry_topLevelRetried(t *testing.T) {
	c := &calls{}
	r := bot.NewRegistry(nil, fixedNick("eval"))
	r.Handle("x", c.named("x", bot.Continue))
	r.Fallback(c.fallback("fallback", bot.Continue))

	dispatch(t, r, "#rust", "?x top {?x inline}")

	assert.Equal(t, []string{"x top {?x inline}", "x top {?x inline}", "x inline", "fallback"}, c.log)
}

func TestRegistry_inlineBreakSkipsFallback(t *testing.T) {
	c := &calls{}
	r := bot.NewRegistry(nil, fixedNick("eval"))
	r.Handle("a", c.named("a", bot.Break))
	r.Handle("b", c.named("b", bot.Continue))
	r.Fallback(c.fallback("fallback", bot.Break))

	dispatch(t, r, "#rust", "look {?a} then {?b}")

	// every capped context is tried even after a break
	assert.Equal(t, []string{"a", "b"}, c.log)
}

func TestRegistry_fallbackOrder(t *testing.T) {
	c := &calls{}
	r := bot.NewRegistry(nil, fixedNick("eval"))
	r.Fallback(c.fallback("first", bot.Continue))
	r.Fallback(c.fallback("second", bot.Break))
	r.Fallback(c.fallback("third", bot.Break))

	dispatch(t, r, "#rust", "hello")
	assert.Equal(t, []string{"first", "second"}, c.log)
}

func TestRegistry_unknownCommandFallsBack(t *testing.T) {
	c := &calls{}
	r := bot.NewRegistry(nil, fixedNick("eval"))
	r.Handle("crate", c.named("crate", bot.Break))
	r.Fallback(c.fallback("fallback", bot.Break))

	dispatch(t, r, "#rust", "?nope")
	assert.Equal(t, []string{"fallback"}, c.log)
}

func TestRegistry_lastRegistrationWins(t *testing.T) {
	c := &calls{}
	r := bot.NewRegistry(nil, fixedNick("eval"))
	r.Handle("crate", c.named("old", bot.Break))
	r.Handle("crate", c.named("new", bot.Break))

	dispatch(t, r, "#rust", "?crate")
	assert.Equal(t, []string{"new"}, c.log)
}

func TestRegistry_metaMessage(t *testing.T) {
	c := &calls{}
	r := bot.NewRegistry(nil, fixedNick("eval"))
	r.Handle("crate", c.named("crate", bot.Break))
	r.Fallback(c.fallback("fallback", bot.Break))

	dispatch(t, r, "#rust", "\x01ACTION ?crate serde\x01")
	dispatch(t, r, "eval", "\x01VERSION\x01")
	assert.Empty(t, c.log)
}

func TestRegistry_fallbackSeesTopLevel(t *testing.T) {
	var got []string
	var addressed []bool
	r := bot.NewRegistry(nil, fixedNick("eval"))
	r.FallbackFunc(func(ctx *bot.Context) bot.Flow {
		got = append(got, ctx.Body().String())
		addressed = append(addressed, ctx.IsDirectlyAddressed())
		return bot.Break
	})

	dispatch(t, r, "#rust", "eval: fn main() {}")
	dispatch(t, r, "#rust", "Eval , 1 + 1")
	dispatch(t, r, "#rust", "just chatting {here}")

	assert.Equal(t, []string{"fn main() {}", "1 + 1", "just chatting {here}"}, got)
	assert.Equal(t, []bool{true, true, false}, addressed)
}

func TestRegistry_nilNickTracker(t *testing.T) {
	c := &calls{}
	r := bot.NewRegistry(nil, nil)
	r.Fallback(c.fallback("fallback", bot.Break))

	dispatch(t, r, "#rust", "eval: hi")
	assert.Equal(t, []string{"fallback"}, c.log)
}

func TestRegistry_customPrefix(t *testing.T) {
	c := &calls{}
	cfg := bot.DefaultConfig()
	cfg.CommandPrefix = "!"
	r := bot.NewRegistry(cfg, fixedNick("eval"))
	r.Handle("crate", c.named("crate", bot.Break))

	dispatch(t, r, "#rust", "?crate serde")
	dispatch(t, r, "#rust", "!crate serde")
	assert.Equal(t, []string{"crate serde"}, c.log)
}

// writer is an irc.MessageWriter that keeps every message written to it.
type writer struct {
	mu   sync.Mutex
	msgs []string
}

func (w *writer) WriteMessage(m encoding.TextMarshaler) {
	b, _ := m.MarshalText()
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, string(b))
}

func TestRegistry_SpeakIRC(t *testing.T) {
	r := bot.NewRegistry(nil, fixedNick("eval"))
	r.HandleFunc("help", func(ctx *bot.Context, args []sharedstr.Str) bot.Flow {
		_ = ctx.Reply("usage: ?crate <name>")
		return bot.Break
	})

	w := &writer{}
	r.SpeakIRC(w, privmsg(t, "alice", "#rust", "?help"))
	r.SpeakIRC(w, privmsg(t, "alice", "eval", "?help"))
	r.SpeakIRC(w, irc.Ping("irc.example.com"))

	assert.Equal(t, []string{
		"NOTICE #rust :usage: ?crate <name>\r\n",
		"PRIVMSG alice :usage: ?crate <name>\r\n",
	}, w.msgs)
}

func TestRegistry_metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	r := bot.NewRegistry(nil, fixedNick("eval"), bot.WithMetrics(m))
	r.HandleFunc("crate", func(ctx *bot.Context, args []sharedstr.Str) bot.Flow {
		return bot.Break
	})
	r.FallbackFunc(func(ctx *bot.Context) bot.Flow {
		return bot.Continue
	})

	dispatch(t, r, "#rust", "?crate serde")
	dispatch(t, r, "#rust", "hello")
	dispatch(t, r, "#rust", "\x01ACTION waves\x01")
	r.HandleMessage(irc.Ping("x"), &recordingSink{})

	assert.Equal(t, 2.0, counter(t, m.MessagesTotal.WithLabelValues("dispatched")))
	assert.Equal(t, 1.0, counter(t, m.MessagesTotal.WithLabelValues("meta")))
	assert.Equal(t, 1.0, counter(t, m.MessagesTotal.WithLabelValues("dropped")))
	assert.Equal(t, 1.0, counter(t, m.HandlerCallsTotal.WithLabelValues("named", "break")))
	assert.Equal(t, 1.0, counter(t, m.HandlerCallsTotal.WithLabelValues("fallback", "continue")))
}

func counter(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, c.Write(&out))
	return out.GetCounter().GetValue()
}

func TestFlow_String(t *testing.T) {
	assert.Equal(t, "break", bot.Break.String())
	assert.Equal(t, "continue", bot.Continue.String())
}
