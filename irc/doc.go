/*
Package irc provides the IRC client transport the bot runs on.

API

These are the main interfaces and structs that you will interact with while using this package:

	// A Handler responds to an IRC message.
	type Handler interface {
		SpeakIRC(MessageWriter, *Message)
	}

	// A MessageWriter can write an IRC message.
	type MessageWriter interface {
		WriteMessage(encoding.TextMarshaler)
	}

	// A Client manages a connection to an IRC server.
	func (c *Client) ConnectAndRun(ctx context.Context, h Handler) error

Client

The Client reads CRLF-delimited lines from its connection, parses each into a Message,
and calls the handler synchronously so that handlers observe messages in order.
It answers server PINGs, checks idle connections with its own PING,
completes CAP negotiation and tracks its own nickname, which handlers can read with Nick.

Handler

Because the Handler interface mimics the signature of http.Handler,
most patterns for http middleware also apply to irc handlers.
Middleware are handlers which accept a handler and return a handler:

	r := &irc.Router{}
	r.Use(irc.Recover(logger), irc.FloodLimit(ctx, rate.Limit(2), 4))
	r.Handle(irc.CmdPrivmsg, registry)

Middleware can intercept outgoing messages by decorating the MessageWriter,
which is how FloodLimit delays replies, as well as call the next handler with a modified *Message.

Because the ordering of received messages is important for calculating client state,
it is generally not safe for middleware handlers to operate concurrently unless they can maintain message ordering.

MessageWriter

The MessageWriter accepts any type that knows how to marshal itself into a line of IRC-encoded text.
The named Message constructors (irc.Msg, irc.Notice, etc.) should generally be preferred
over NewMessage or raw lines because they list the parameters for each command.

Lines longer than the protocol limit are still sent, because most servers truncate rather than reject them.
MarshalText reports them with ErrLineTooLong and the Client logs a warning.
*/
package irc
