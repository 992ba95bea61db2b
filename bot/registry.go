package bot

import (
	"iter"
	"time"

	"github.com/Travis-Britz/playbot/irc"
	"github.com/Travis-Britz/playbot/metrics"
	"github.com/Travis-Britz/playbot/sharedstr"
	"github.com/rs/zerolog"
)

// Flow is returned by handlers to say whether dispatch should go on.
type Flow int

const (
	// Continue means the handler declined the context.
	Continue Flow = iota
	// Break means the handler dealt with the context and no further handlers
	// of the same tier should run.
	Break
)

func (f Flow) String() string {
	switch f {
	case Continue:
		return "continue"
	case Break:
		return "break"
	default:
		return "unknown"
	}
}

// A CommandHandler responds to a named command such as "?crate".
//
// Handlers report their own failures to the user through ctx.Reply.
type CommandHandler interface {
	HandleCommand(ctx *Context, args []sharedstr.Str) Flow
}

// CommandHandlerFunc is an adapter to allow the use of ordinary functions as command handlers.
type CommandHandlerFunc func(ctx *Context, args []sharedstr.Str) Flow

// HandleCommand calls f(ctx, args).
func (f CommandHandlerFunc) HandleCommand(ctx *Context, args []sharedstr.Str) Flow {
	return f(ctx, args)
}

// A FallbackHandler is tried for messages that no named command handled.
type FallbackHandler interface {
	HandleFallback(ctx *Context) Flow
}

// FallbackHandlerFunc is an adapter to allow the use of ordinary functions as fallback handlers.
type FallbackHandlerFunc func(ctx *Context) Flow

// HandleFallback calls f(ctx).
func (f FallbackHandlerFunc) HandleFallback(ctx *Context) Flow {
	return f(ctx)
}

// Registry routes PRIVMSG contexts to named command handlers and,
// failing those, to an ordered list of fallback handlers.
//
// Handlers must be registered before the registry starts receiving messages.
// After that the registry is read-only and safe for concurrent dispatch.
type Registry struct {
	cfg       *Config
	nick      irc.NickTracker
	named     map[string]CommandHandler
	fallbacks []FallbackHandler

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithMetrics records dispatch metrics to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry returns an empty registry.
// nick reports the bot's current nickname and may be nil when the bot has no name to be addressed by.
func NewRegistry(cfg *Config, nick irc.NickTracker, opts ...Option) *Registry {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	r := &Registry{
		cfg:    cfg,
		nick:   nick,
		named:  make(map[string]CommandHandler),
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle registers h for the command name. A later registration for the same name replaces h.
func (r *Registry) Handle(name string, h CommandHandler) {
	r.named[name] = h
}

// HandleFunc registers f for the command name.
func (r *Registry) HandleFunc(name string, f func(*Context, []sharedstr.Str) Flow) {
	r.Handle(name, CommandHandlerFunc(f))
}

// Fallback appends h to the fallback handlers. Fallbacks run in the order they were added.
func (r *Registry) Fallback(h FallbackHandler) {
	r.fallbacks = append(r.fallbacks, h)
}

// FallbackFunc appends f to the fallback handlers.
func (r *Registry) FallbackFunc(f func(*Context) Flow) {
	r.Fallback(FallbackHandlerFunc(f))
}

// SpeakIRC implements irc.Handler. Replies are written to w.
func (r *Registry) SpeakIRC(w irc.MessageWriter, m *irc.Message) {
	r.HandleMessage(m, WriterSink{W: w})
}

// HandleMessage builds the context for m and dispatches it.
// Messages that do not produce a context are dropped.
func (r *Registry) HandleMessage(m *irc.Message, sink Sink) {
	var nick string
	if r.nick != nil {
		nick = r.nick.Nick().String()
	}
	ctx, ok := NewContext(m, nick, sink, r.cfg)
	if !ok {
		r.logger.Debug().
			Str("command", m.Command.String()).
			Str("source", m.Source.String()).
			Msg("dropping message without context")
		r.metrics.RecordMessage("dropped")
		return
	}
	ctx.logger = r.logger
	ctx.metrics = r.metrics
	r.Dispatch(ctx)
}

// Dispatch runs the handlers for ctx.
//
// A named command in the message body is tried first; if it breaks, dispatch ends.
// Otherwise the message and its inline commands, up to MaxContexts in total,
// are each tried for named commands. If none of them broke, the fallback
// handlers run in order until one breaks.
func (r *Registry) Dispatch(ctx *Context) {
	if ctx.IsMetaMessage() {
		r.metrics.RecordMessage("meta")
		return
	}
	r.metrics.RecordMessage("dispatched")
	start := time.Now()
	defer func() { r.metrics.RecordDispatch(time.Since(start)) }()

	if r.runNamed(ctx) == Break {
		return
	}

	var handled bool
	for c := range r.candidates(ctx) {
		if r.runNamed(c) == Break {
			handled = true
		}
	}
	if handled {
		return
	}

	for _, h := range r.fallbacks {
		flow := h.HandleFallback(ctx)
		r.metrics.RecordHandler("fallback", flow.String())
		if flow == Break {
			r.logger.Debug().Str("source", ctx.Source()).Str("flow", flow.String()).Msg("fallback handled message")
			return
		}
	}
}

// candidates yields ctx followed by its inline contexts, at most MaxContexts in all.
func (r *Registry) candidates(ctx *Context) iter.Seq[*Context] {
	return func(yield func(*Context) bool) {
		limit := r.cfg.MaxContexts
		if limit <= 0 || !yield(ctx) {
			return
		}
		n := 1
		if n >= limit {
			return
		}
		for child := range ctx.InlineContexts() {
			if !yield(child) {
				return
			}
			if n++; n >= limit {
				return
			}
		}
	}
}

// runNamed calls the named handler for the command in ctx's body, if there is one.
func (r *Registry) runNamed(ctx *Context) Flow {
	cmd, ok := ParseCommand(r.cfg.CommandPrefix, ctx.Body())
	if !ok {
		return Continue
	}
	h, ok := r.named[cmd.Name().String()]
	if !ok {
		return Continue
	}
	flow := h.HandleCommand(ctx, cmd.Args())
	r.metrics.RecordHandler("named", flow.String())
	r.logger.Debug().
		Str("command", cmd.Name().String()).
		Str("source", ctx.Source()).
		Str("target", ctx.Target()).
		Str("flow", flow.String()).
		Msg("named handler")
	return flow
}
