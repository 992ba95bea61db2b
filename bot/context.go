package bot

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/Travis-Britz/playbot/irc"
	"github.com/Travis-Britz/playbot/metrics"
	"github.com/Travis-Britz/playbot/sharedstr"
	"github.com/rs/zerolog"
)

// Context is a read-only view of one dispatchable piece of chat:
// either a whole PRIVMSG or an inline command found inside one.
//
// A Context is cheap to copy. Inline children share the parent's
// body buffer and reply sink.
type Context struct {
	body              sharedstr.Str
	directlyAddressed bool
	meta              bool

	source      string
	sourceNick  string
	target      string
	currentNick string

	send    sendFunc
	cfg     *Config
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

// NewContext builds the context for m as seen by a client currently named nick.
// Replies go through sink.
//
// ok is false when m is not a PRIVMSG or when its sender or reply target
// cannot be determined.
func NewContext(m *irc.Message, nick string, sink Sink, cfg *Config) (ctx *Context, ok bool) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if !m.Command.Is(irc.CmdPrivmsg) || m.Source.Nick == "" {
		return nil, false
	}
	target, ok := m.ResponseTarget()
	if !ok {
		return nil, false
	}

	ctx = &Context{
		body:        sharedstr.New(m.Params.Get(2)).Trim(),
		source:      m.Source.String(),
		sourceNick:  m.Source.Nick.String(),
		target:      target,
		currentNick: nick,
		cfg:         cfg,
		logger:      zerolog.Nop(),
	}

	if s := ctx.body.String(); len(s) >= 2 && strings.HasPrefix(s, irc.CTCPDelim) && strings.HasSuffix(s, irc.CTCPDelim) {
		ctx.body = ctx.body.Slice(1, len(s)-1)
		ctx.meta = true
	}

	if !ctx.meta {
		ctx.directlyAddressed = ctx.stripAddress() || !irc.IsChannelName(target)
	}

	if irc.IsChannelName(target) {
		ctx.send = sink.Notice
	} else {
		ctx.send = sink.Privmsg
	}
	return ctx, true
}

// stripAddress removes a leading "nick:" or "nick," from the body.
func (c *Context) stripAddress() bool {
	nick := c.currentNick
	s := c.body.String()
	if nick == "" || len(s) < len(nick) || !strings.EqualFold(s[:len(nick)], nick) {
		return false
	}
	rest := c.body.SliceFrom(len(nick)).TrimLeft()
	if !rest.HasPrefix(":") && !rest.HasPrefix(",") {
		return false
	}
	c.body = rest.SliceFrom(1).Trim()
	return true
}

// Body is the trimmed message text, without CTCP markers or the bot's name.
func (c *Context) Body() sharedstr.Str { return c.body }

// IsDirectlyAddressed reports whether the message was meant for the bot:
// either it started with the bot's name or it was sent privately.
func (c *Context) IsDirectlyAddressed() bool { return c.directlyAddressed }

// IsMetaMessage reports whether the message was a CTCP request.
func (c *Context) IsMetaMessage() bool { return c.meta }

// Source is the full nick!user@host of the sender.
func (c *Context) Source() string { return c.source }

// SourceNickname is the sender's nickname.
func (c *Context) SourceNickname() string { return c.sourceNick }

// Target is where replies are sent: a channel or the sender's nickname.
func (c *Context) Target() string { return c.target }

// CurrentNickname is the bot's own nickname when the message arrived.
func (c *Context) CurrentNickname() string { return c.currentNick }

// Reply sends text to the context's target, one message per line.
// A line longer than the configured maximum is replaced by the placeholder,
// and an empty line is sent as a single space.
//
// Every line is attempted; the returned error joins the failures.
func (c *Context) Reply(text string) error {
	var errs []error
	for _, line := range SplitLines(text) {
		outcome := "sent"
		if line == "" {
			// servers refuse a PRIVMSG or NOTICE without text
			line = " "
		}
		if len(line) > c.cfg.MaxLineLength {
			c.logger.Warn().
				Str("target", c.target).
				Int("length", len(line)).
				Msg("reply line too long")
			line = c.cfg.TooLongPlaceholder
			outcome = "too_long"
		}
		if err := c.send(c.target, line); err != nil {
			c.logger.Error().Err(err).Str("target", c.target).Msg("failed to send reply")
			c.metrics.RecordReplyLine("failed")
			errs = append(errs, fmt.Errorf("reply to %s: %w", c.target, err))
			continue
		}
		c.metrics.RecordReplyLine(outcome)
	}
	return errors.Join(errs...)
}

// SplitLines splits text on "\n", dropping a trailing "\r" from each line
// and the empty piece after a final newline.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	out := strings.Split(text, "\n")
	for i, l := range out {
		out[i] = strings.TrimSuffix(l, "\r")
	}
	return out
}

// InlineContexts yields a child context for every inline command in the body,
// in the order they appear. Inline commands are only looked for in messages
// that were not addressed to the bot. Meta-messages have none.
//
// The sequence is computed lazily and may be ranged over more than once.
func (c *Context) InlineContexts() iter.Seq[*Context] {
	return func(yield func(*Context) bool) {
		if c.meta || c.directlyAddressed || c.cfg.InlinePattern == nil {
			return
		}
		s := c.body.String()
		for pos := 0; pos <= len(s); {
			loc := c.cfg.InlinePattern.FindStringSubmatchIndex(s[pos:])
			if loc == nil {
				return
			}
			start, end := pos+loc[0], pos+loc[1]
			inner := c.body.Slice(start, end)
			if len(loc) >= 4 && loc[2] >= 0 {
				inner = c.body.Slice(pos+loc[2], pos+loc[3])
			}

			child := *c
			child.body = inner
			if !yield(&child) {
				return
			}

			if end == start {
				end++
			}
			pos = end
		}
	}
}

func (c *Context) String() string {
	return fmt.Sprintf("%s -> %s: %q", c.source, c.target, c.body.String())
}
