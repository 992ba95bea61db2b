package irc

import (
	"regexp"
	"strings"
)

// Router provides a Handler which can match incoming messages against a slice of route handlers.
// Matching is based on message attributes such as the command (verb), source, message contents, and more.
//
// Routes are tested in the order they were added, and only the first matching route's handler
// will be called. Care should be taken to avoid adding multiple routes which may trigger
// on the same input message.
type Router struct {

	// routes to be matched, in order.
	routes []*Route

	// Slice of middleware to be called, regardless of whether a match was found.
	middlewares []Middleware
}

// Handle appends h to the list of handlers for cmd.
func (r *Router) Handle(cmd Command, h Handler) *Route {
	rt := &Route{
		h:        h,
		matchers: []matcher{commandMatch{cmd}},
	}
	r.routes = append(r.routes, rt)
	return rt
}

// HandleFunc appends f to the list of handlers for cmd.
func (r *Router) HandleFunc(cmd Command, f HandlerFunc) *Route {
	return r.Handle(cmd, f)
}

// noop performs no operation
var noop HandlerFunc = func(mw MessageWriter, m *Message) {}

// SpeakIRC implements Handler
func (r *Router) SpeakIRC(mw MessageWriter, m *Message) {
	for _, rt := range r.routes {
		if rt.matches(m) {
			wrap(rt.h, r.middlewares...).SpeakIRC(mw, m)
			return
		}
	}
	// global middlewares need to run even if there was no matching route
	wrap(noop, r.middlewares...).SpeakIRC(mw, m)
}

// Use appends global middleware to the router.
//
// Global middleware are run against every incoming line,
// even if there were no matching routes for the message.
// Middleware will execute in the order they were attached.
func (r *Router) Use(middlewares ...Middleware) {
	r.middlewares = append(r.middlewares, middlewares...)
}

// OnConnect attaches a handler which is called upon successful connection to an IRC server, after
// capability negotiation is complete (on servers which support capability negotiation).
// More specifically, it is triggered by numeric 001 (RPL_WELCOME).
func (r *Router) OnConnect(h HandlerFunc) *Route {
	return r.Handle(RplWelcome, h)
}

// OnText attaches a handler for PRIVMSG events that match text. text is a wildcard string:
//
//	* matches any text
//	& matches any word
//	? matches a single character
//	text matches if exact match
//	text* matches if text starts with word
//	*text matches if text ends with word
//	*text* matches if text is anywhere
func (r *Router) OnText(wildtext string, h HandlerFunc) *Route {
	return r.HandleFunc(CmdPrivmsg, h).wildtext(wildtext)
}

// OnTextRE attaches the handler h for PRIVMSG events that match the Go regular expression expr.
func (r *Router) OnTextRE(expr string, h HandlerFunc) *Route {
	return r.HandleFunc(CmdPrivmsg, h).textRE(expr)
}

// OnJoin attaches a handler for JOIN events.
func (r *Router) OnJoin(h HandlerFunc) *Route {
	return r.Handle(CmdJoin, h)
}

// OnError is triggered when the server sends an ERROR message, usually on disconnect.
func (r *Router) OnError(h HandlerFunc) *Route {
	return r.Handle(CmdError, h)
}

// OnNick attaches a handler when a user's nickname changes.
func (r *Router) OnNick(h func(nick Nickname, newnick Nickname)) *Route {
	adapter := func(mw MessageWriter, m *Message) {
		h(m.Source.Nick, Nickname(m.Params.Get(1)))
	}
	return r.HandleFunc(CmdNick, adapter)
}

// Route is a handler registered on a Router along with the conditions a message must satisfy.
type Route struct {
	h        Handler
	matchers []matcher
}

// Use wraps the route handler with middlewares.
// The given middlewares will execute in the order listed,
// and only when the route matched.
//
// Use panics if the route handler is nil.
func (r *Route) Use(middlewares ...Middleware) *Route {
	if r.h == nil {
		panic("nil handler: the route handler must be defined before wrapping the handler with middleware")
	}
	r.h = wrap(r.h, middlewares...)
	return r
}

func (r *Route) matches(m *Message) bool {
	for _, rm := range r.matchers {
		if !rm.matches(m) {
			return false
		}
	}
	return true
}

// A matcher is attached to a route and determines whether a given Message satisfies some condition.
type matcher interface {
	matches(*Message) bool
}

var wildtextTokens = regexp.MustCompile("\\*|\\?|[^*?]+")

// wildtext converts a wildcard match string to a regex match string.
func (r *Route) wildtext(s string) *Route {
	expr := wildtextTokens.ReplaceAllStringFunc(s, func(s string) string {
		switch s {
		case "*":
			return ".*"
		case "?":
			return "."
		}
		return regexp.QuoteMeta(s)
	})

	fields := strings.Split(expr, " ")
	for i, f := range fields {
		if f == "&" {
			fields[i] = "\\S+"
		}
	}

	return r.textRE("^" + strings.Join(fields, " ") + "$")
}

// textRE appends the regular expression expr to the route's matchers.
func (r *Route) textRE(expr string) *Route {
	r.matchers = append(r.matchers, regexMatch{regexp.MustCompile(expr)})
	return r
}

// MatchFunc restricts the route to messages for which f returns true.
func (r *Route) MatchFunc(f func(*Message) bool) *Route {
	r.matchers = append(r.matchers, matcherFunc(f))
	return r
}

// MatchServer restricts the route to messages sent by a server.
func (r *Route) MatchServer() *Route {
	return r.MatchFunc(func(m *Message) bool {
		return m.Source.IsServer()
	})
}

// MatchChan restricts the route to messages for channel ch.
func (r *Route) MatchChan(ch string) *Route {
	r.matchers = append(r.matchers, channelMatch{ch})
	return r
}

// NickTracker reports the client's current nickname.
type NickTracker interface {
	Nick() Nickname
}

// MatchClient matches the source of a message against the client's current nickname.
// For KICK messages the kicked nickname is compared instead.
func (r *Route) MatchClient(client NickTracker) *Route {
	return r.MatchFunc(func(m *Message) bool {
		switch m.Command {
		case CmdKick:
			return client.Nick().Is(m.Params.Get(2))
		default:
			return m.Source.Nick.Is(client.Nick().String())
		}
	})
}

type commandMatch struct {
	cmd Command
}

func (cm commandMatch) matches(m *Message) bool {
	return m.Command.Is(cm.cmd)
}

type matcherFunc func(m *Message) bool

func (f matcherFunc) matches(m *Message) bool {
	return f(m)
}

type regexMatch struct {
	re *regexp.Regexp
}

func (rm regexMatch) matches(m *Message) bool {
	text, err := m.Text()
	if err != nil {
		return false
	}
	return rm.re.MatchString(text)
}

type channelMatch struct {
	channel string
}

func (cm channelMatch) matches(m *Message) bool {
	ch, err := m.Chan()
	if err != nil {
		return false
	}
	return strings.EqualFold(cm.channel, ch)
}
