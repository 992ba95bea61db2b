package irc

import (
	"context"
	"encoding"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// A Handler responds to an IRC message.
//
// An IRC message may be any type, including PRIVMSG, NOTICE, JOIN, Numerics,
// etc. It is up to the calling function to map incoming messages/commands
// to the appropriate handler.
//
// Handlers should avoid modifying the provided Message.
type Handler interface {
	SpeakIRC(MessageWriter, *Message)
}

// The HandlerFunc type is an adapter to allow the usage of ordinary functions
// as handlers, following the same pattern as http.HandlerFunc.
type HandlerFunc func(MessageWriter, *Message)

// SpeakIRC calls f(w, m).
func (f HandlerFunc) SpeakIRC(w MessageWriter, m *Message) {
	f(w, m)
}

// Middleware accepts a handler and returns a handler that wraps it.
type Middleware func(Handler) Handler

func wrap(h Handler, mw ...Middleware) Handler {
	if len(mw) < 1 {
		return h
	}

	wrapped := h
	// loop in reverse to preserve middleware order
	for i := len(mw) - 1; i >= 0; i-- {
		wrapped = mw[i](wrapped)
	}

	return wrapped
}

var ctcpRegex = regexp.MustCompile("^\\x01([^ \\x01]+) ?(.*?)\\x01?$")

// ParseCTCP splits a CTCP-encoded message body into its subcommand and text.
// ok is false when body is not CTCP-encoded.
func ParseCTCP(body string) (subcommand, text string, ok bool) {
	if !strings.HasPrefix(body, CTCPDelim) {
		return "", "", false
	}
	parts := ctcpRegex.FindStringSubmatch(body)
	if parts == nil {
		return "", "", false
	}
	return strings.ToUpper(parts[1]), parts[2], true
}

// CTCPVersion answers CTCP VERSION queries with version.
// Every other message is passed to the next handler.
func CTCPVersion(version string) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(w MessageWriter, m *Message) {
			if !m.Command.Is(CmdPrivmsg) {
				next.SpeakIRC(w, m)
				return
			}
			sub, _, ok := ParseCTCP(m.Params.Get(2))
			if !ok || sub != "VERSION" || m.Source.Nick == "" {
				next.SpeakIRC(w, m)
				return
			}
			w.WriteMessage(CTCPReply(m.Source.Nick.String(), "VERSION", version))
		})
	}
}

// FloodLimit decorates the MessageWriter so that messages written by the next handler
// are delayed to stay within limit. The limiter is shared by every message
// passing through the middleware, so all replies draw from the same budget.
//
// Servers typically disconnect clients that send more than a few lines per second,
// which is easy to hit when a command replies with several lines.
//
// Once ctx is canceled, waiting lines and every later line are dropped,
// so a long backlog cannot hold up shutdown.
func FloodLimit(ctx context.Context, limit rate.Limit, burst int) Middleware {
	lim := rate.NewLimiter(limit, burst)
	return func(next Handler) Handler {
		return HandlerFunc(func(w MessageWriter, m *Message) {
			next.SpeakIRC(&throttledWriter{ctx: ctx, w: w, lim: lim}, m)
		})
	}
}

type throttledWriter struct {
	ctx context.Context
	w   MessageWriter
	lim *rate.Limiter
}

func (tw *throttledWriter) WriteMessage(m encoding.TextMarshaler) {
	// Wait only fails for a canceled context or a burst of zero,
	// and dropping the line is the only sensible outcome for either.
	if err := tw.lim.Wait(tw.ctx); err != nil {
		return
	}
	tw.w.WriteMessage(m)
}

// Recover stops a panicking handler from taking down the connection.
// The panic is logged and the message is dropped.
func Recover(logger zerolog.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(w MessageWriter, m *Message) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Interface("panic", r).
						Str("command", m.Command.String()).
						Str("source", m.Source.String()).
						Msg("handler panicked")
				}
			}()
			next.SpeakIRC(w, m)
		})
	}
}

// pingMiddleware intercepts server PING messages and replies with the appropriate PONG.
func pingMiddleware(next Handler) Handler {
	return HandlerFunc(func(mw MessageWriter, m *Message) {
		if !m.Command.Is(CmdPing) {
			next.SpeakIRC(mw, m)
			return
		}
		mw.WriteMessage(Pong(m.Params.Get(1)))
	})
}

// pingHandler tracks the PINGs we send to detect a dead connection.
type pingHandler struct {
	sync.Mutex
	expecting map[string]chan bool
	wait      time.Duration
	timeout   func()
}

func (ph *pingHandler) ping(ctx context.Context, mw MessageWriter, m string) {
	ph.Lock()
	defer ph.Unlock()

	if ph.expecting == nil {
		ph.expecting = make(map[string]chan bool)
	}

	// having duplicate in-flight pings would not be of any benefit
	if _, exists := ph.expecting[m]; exists {
		return
	}

	wait := ph.wait
	if wait == 0 {
		wait = 10 * time.Second
	}

	ret := make(chan bool, 1)
	ph.expecting[m] = ret
	go func() {
		// this is the only goroutine waiting for a reply to m
		defer func() {
			ph.Lock()
			defer ph.Unlock()
			delete(ph.expecting, m)
		}()

		select {
		case <-ret:
		case <-ctx.Done():
		case <-time.After(wait):
			ph.timeout()
		}
	}()
	mw.WriteMessage(Ping(m))
}

func (ph *pingHandler) pongHandler(next Handler) Handler {
	return HandlerFunc(func(mw MessageWriter, m *Message) {
		if !m.Command.Is(CmdPong) {
			next.SpeakIRC(mw, m)
			return
		}

		ph.Lock()
		defer ph.Unlock()

		reply := m.Params.Get(2)

		ret, expected := ph.expecting[reply]
		if !expected {
			next.SpeakIRC(mw, m)
			return
		}

		select {
		case ret <- true:
		default:
		}
	})
}

// capLSHandler listens for replies to CAP LS and completes capability negotiation.
//
// "CAP * LS * :extended-join chghost cap-notify userhost-in-names multi-prefix"
// "CAP * LS :extended-join chghost cap-notify userhost-in-names multi-prefix"
// https://ircv3.net/specs/core/capability-negotiation.html
func capLSHandler(next Handler) Handler {
	return HandlerFunc(func(mw MessageWriter, m *Message) {
		// the next handler is always called first so that other middleware which request capabilities
		// will write their message before we complete negotiation.
		next.SpeakIRC(mw, m)

		if !m.Command.Is(CmdCap) || len(m.Params) < 3 {
			return
		}

		switch strings.ToUpper(m.Params.Get(2)) {
		case "LS", "NEW":
			// An asterisk in the 3rd param indicates there will be more lines coming for the CAP LS response.
			// Servers without CAP 302 send multiple lines without the asterisk, which makes each line
			// send CAP LIST and CAP END. Additional capabilities can be requested at any time, so that is harmless.
			if m.Params.Get(3) != "*" {
				mw.WriteMessage(CapList())
				mw.WriteMessage(CapEnd())
			}
		}
	})
}
