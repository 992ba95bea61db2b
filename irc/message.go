package irc

import (
	"bytes"
	"encoding"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrLineTooLong is returned alongside the encoded line by MarshalText when a message
// exceeds the protocol limit. The line is still usable: most servers truncate
// rather than reject it, so callers may log the error and send anyway.
//
// Most IRC servers limit messages to 512 bytes in length, including the trailing CR-LF characters.
// The limit is enforced when the server relays the line to *other* clients,
// which includes our full address prefix, so the real budget is a little smaller.
// https://modern.ircdocs.horse/#messages
var ErrLineTooLong = errors.New("message length exceeds IRC limit and may be truncated")

const (
	// maxLineLength is the protocol limit for everything after the tags, including CR-LF.
	maxLineLength = 512

	// maxTagsLength is the limit for the tags section defined by the message-tags capability.
	// https://ircv3.net/specs/extensions/message-tags.html
	maxTagsLength = 8191

	// parameterLimit is the maximum number of parameters a message may contain as defined by the protocol.
	// Clients should never send more than this limit but should accept any number.
	parameterLimit = 15
)

// NewMessage constructs a new Message to be sent on the connection
// with cmd as the verb and args as the message parameters.
//
// Only the last argument may contain SPACE (ascii 32, %x20).
// This is a limitation defined in the IRC protocol.
// Including SPACE in any other argument will
// result in undefined behavior.
func NewMessage(cmd Command, args ...string) *Message {
	p := make(Params, len(args), parameterLimit)
	copy(p, args)
	cmd.normalize()
	return &Message{
		Command: cmd,
		Params:  p,
	}
}

// Message represents any incoming or outgoing IRC line.
//
// A message consists of four parts: tags, prefix, verb, and params.
type Message struct {

	// Tags contains IRCv3 message tags.
	// Tags are included by the server if the message-tags capability has been negotiated.
	Tags Tags

	// Source is where the message originated from.
	// It's set by the prefix portion of an IRC message.
	//
	// Source should be left empty for messages that will be written to an IRC connection.
	Source Prefix

	// Command is the IRC verb or numeric such as PRIVMSG, NOTICE, 001, etc.
	Command Command

	// Params contains all the message parameters.
	// If a message included a trailing component,
	// it will be included without special treatment.
	Params Params

	// includePrefix controls whether MarshalText will write the prefix.
	includePrefix bool
}

// MarshalText implements encoding.TextMarshaler, mainly for use with irc.MessageWriter.
//
// The returned error may wrap ErrLineTooLong, in which case the returned bytes are still valid.
func (m *Message) MarshalText() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 512))
	var err error

	if len(m.Tags) > 0 {
		buf.WriteByte(startTags)
		keys := make([]string, 0, len(m.Tags))
		for k := range m.Tags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(delimTag)
			}
			buf.WriteString(k)
			if v := m.Tags[k]; v != "" {
				buf.WriteByte(delimTagValue)
				buf.WriteString(escaper.Replace(v))
			}
		}
		buf.WriteByte(delimParam)
		if buf.Len() > maxTagsLength {
			err = fmt.Errorf("%w: message tags were %d bytes", ErrLineTooLong, buf.Len())
		}
	}
	tagsLen := buf.Len()

	if m.includePrefix && m.Source != (Prefix{}) {
		buf.WriteByte(startPrefix)
		buf.WriteString(m.Source.String())
		buf.WriteByte(delimParam)
	}

	buf.WriteString(m.Command.String())

	for i, p := range m.Params {
		buf.WriteByte(delimParam)
		// the last param always goes in the trailing component so it may contain spaces
		if i == len(m.Params)-1 {
			buf.WriteByte(startTrailing)
		}
		buf.WriteString(p)
	}
	buf.WriteString("\r\n")

	if l := buf.Len() - tagsLen; l > maxLineLength && err == nil {
		err = fmt.Errorf("%w: message length is %d bytes", ErrLineTooLong, l)
	}

	return buf.Bytes(), err
}

// UnmarshalText implements encoding.TextUnmarshaler,
// accepting a line read from an IRC stream.
// text should not include the trailing CR-LF pair.
//
// This will unmarshal an arbitrarily long sequence of bytes.
// Length limitations should be implemented at the scanner.
func (m *Message) UnmarshalText(text []byte) error {
	// re-using a message to unmarshal a new line should clear old fields
	m.Source = Prefix{}
	m.Command = ""
	m.Params = nil
	m.Tags = nil

	items := lex(string(text))
	for i := 0; i < len(items); i++ {
		it := items[i]
		switch it.typ {
		case itemEOF:
			return nil
		case itemError:
			return errors.New(it.val)
		case itemTagKey:
			i++ // the lexer always emits a value after a key
			if it.val == "" {
				continue
			}
			m.Tags.Set(it.val, unescaper.Replace(items[i].val))
		case itemNickname:
			m.Source.Nick = Nickname(it.val)
		case itemUser:
			m.Source.User = it.val
		case itemHost:
			m.Source.Host = it.val
		case itemCommand:
			m.Command = Command(it.val)
		case itemParam:
			m.Params = append(m.Params, it.val)
		}
	}
	return nil
}

// ParseMessage decodes one line of IRC text, without line endings, into a Message.
// The parsed message will include its Source when marshaled again.
func ParseMessage(line string) (*Message, error) {
	m := new(Message)
	m.IncludePrefix()
	err := m.UnmarshalText([]byte(line))
	return m, err
}

// IncludePrefix controls whether the Source field will be marshaled by MarshalText.
//
// The Source field should be left empty for messages which are written to an IRC connection,
// because RFC 1459 states that for messages originating from a client it is invalid
// to include any prefix other than the client's nickname.
// Received messages enable this so that they survive a marshal round trip,
// e.g. when the mock server in package irctest relays them.
func (m *Message) IncludePrefix() {
	m.includePrefix = true
}

// unescaper is a string replacer that unescapes message tag values.
var unescaper = strings.NewReplacer(
	"\\:", ";",
	"\\r", "\r",
	"\\n", "\n",
	"\\s", " ",
	"\\\\", "\\",
	"\\", "",
)

// escaper is a string replacer that escapes message tag values for transmission.
var escaper = strings.NewReplacer(
	";", "\\:",
	"\r", "\\r",
	"\n", "\\n",
	" ", "\\s",
	"\\", "\\\\",
)

// Tags represents the IRCv3 message tags for an incoming or outgoing IRC line.
type Tags map[string]string

// Set will set the tag key k with value v.
func (t *Tags) Set(k string, v string) {
	if *t == nil {
		*t = make(Tags)
	}
	(*t)[k] = v
}

// Get will get the message tag value for key. Missing and empty values both return "".
func (t Tags) Get(key string) string {
	return t[key]
}

// Has returns true when the given key was listed in the IRCv3 message tags.
func (t Tags) Has(key string) bool {
	_, ok := t[key]
	return ok
}

// Command is an IRC command such as PRIVMSG, NOTICE, 001, etc.
type Command string

// String implements fmt.Stringer
func (c Command) String() string {
	return string(c)
}

// normalize will modify the command to use consistent casing.
func (c *Command) normalize() {
	*c = Command(strings.ToUpper(c.String()))
}

// Is does a case-insensitive compare between two commands, which is
// useful if a command was received in lower case.
func (c Command) Is(oc Command) bool {
	return strings.EqualFold(string(c), string(oc))
}

// Prefix is the optional message (line) prefix,
// which indicates the source (user or server) of the message.
//
// Example nickname-only prefix:
//
//	:Travis MODE Travis :+ixz
//
// Example "fulladdress" prefix:
//
//	:NickServ!services@services.host NOTICE Travis :This nickname is registered...
//
// Example server prefix:
//
//	:fiery.ca.us.SwiftIRC.net MODE #foo +nt
type Prefix struct {
	Nick Nickname
	User string
	Host string
}

// IsServer returns true when the message originated from a server (as opposed to a user/client).
// When true, the server name will be contained in the Host field.
func (p Prefix) IsServer() bool {
	return p.Host != "" && p.Nick == ""
}

// String implements fmt.Stringer
func (p Prefix) String() string {
	switch {
	case p.Nick == "" && p.User == "" && p.Host == "":
		return ""
	case p.Nick == "" && p.User == "":
		return p.Host
	case p.User == "" && p.Host == "":
		return p.Nick.String()
	default:
		return p.Nick.String() + "!" + p.User + "@" + p.Host
	}
}

// Params contains the slice of arguments for a message.
//
// Prefer the Get method for reading params rather than accessing the slice directly.
type Params []string

// Get returns the nth parameter (starting at 1) from the parameters list,
// or "" (empty string) if it did not exist.
//
// Parameters are positional, so Get does not differentiate between missing and empty parameters.
func (p Params) Get(n int) string {
	if n > len(p) || n < 1 {
		return ""
	}
	return p[n-1]
}

// Nickname is the name of a user on the network.
type Nickname string

func (n Nickname) String() string {
	return string(n)
}

// Is determines whether a nickname matches a string by using Unicode case folding.
func (n Nickname) Is(other string) bool {
	return strings.EqualFold(n.String(), other)
}

// MessageWriter contains methods for sending IRC messages to a server.
type MessageWriter interface {

	// WriteMessage writes the message to the client's outgoing message queue.
	// The given encoding.TextMarshaler MUST return a byte slice which conforms to the IRC protocol.
	// If the slice does not end in "\r\n", then the sequence will be appended.
	WriteMessage(encoding.TextMarshaler)
}
