package bot

import "github.com/Travis-Britz/playbot/irc"

// Sink delivers reply lines to a chat target.
type Sink interface {
	Privmsg(target, line string) error
	Notice(target, line string) error
}

// sendFunc is one of the two Sink methods, chosen once per context.
type sendFunc func(target, line string) error

// WriterSink sends replies through an irc.MessageWriter.
//
// A MessageWriter reports write failures to the connection rather than the caller,
// so WriterSink never returns an error itself.
type WriterSink struct {
	W irc.MessageWriter
}

// Privmsg implements Sink.
func (s WriterSink) Privmsg(target, line string) error {
	s.W.WriteMessage(irc.Msg(target, line))
	return nil
}

// Notice implements Sink.
func (s WriterSink) Notice(target, line string) error {
	s.W.WriteMessage(irc.Notice(target, line))
	return nil
}
