// This lexer follows the method described in the video:
// Lexical Scanning in Go - Rob Pike
// https://www.youtube.com/watch?v=HxaD_trXwRE
//
// Unlike the talk, items are collected into a slice instead of a channel.
// A line is short and always consumed in full by the parser,
// so running the state machine on its own goroutine only cost a goroutine per line.

package irc

import (
	"fmt"
	"strings"
)

const (
	delimParam    = ' ' // the delimiter token for parameters
	delimTag      = ';' // the delimiter token for message tags
	delimTagValue = '=' // the delimiter token for message tag values
	startTags     = '@' // the delimiter for beginning tags
	startPrefix   = ':' // the delimiter for the prefix
	startTrailing = ':' // the delimiter for the trailing param
)

// item represents a token returned from the scanner.
type item struct {
	typ itemType
	val string
}

func (i item) String() string {
	switch i.typ {
	case itemEOF:
		return "EOF"
	case itemError:
		return i.val
	}
	return fmt.Sprintf("%s: %q", i.typ, i.val)
}

// itemType identifies the type of lex items.
type itemType int

const (
	itemError    itemType = iota // value is the text of the error
	itemTagKey                   // IRCv3 message tag key
	itemTagValue                 // message tag value, always emitted after itemTagKey
	itemNickname
	itemUser
	itemHost
	itemCommand // the command or numeric, e.g. "PRIVMSG" or "001"
	itemParam   // a command parameter, e.g. the target and text of a PRIVMSG
	itemEOF     // end of message
)

func (it itemType) String() string {
	switch it {
	case itemCommand:
		return "Command"
	case itemNickname:
		return "Nickname"
	case itemUser:
		return "User"
	case itemHost:
		return "Host"
	case itemTagKey:
		return "TagKey"
	case itemTagValue:
		return "TagValue"
	case itemParam:
		return "Param"
	case itemError:
		return "Error"
	default:
		return ""
	}
}

// stateFn represents the state of the scanner as a function that returns the next state.
type stateFn func(*lexer) stateFn

// lexer holds the state of the scanner.
type lexer struct {
	input string
	start int // start position of this item
	pos   int // current position in the input
	items []item
}

// lex scans input into items. The last item is always itemEOF or itemError.
func lex(input string) []item {
	l := &lexer{input: input, items: make([]item, 0, 8)}
	for state := lexStart; state != nil; {
		state = state(l)
	}
	return l.items
}

func (l *lexer) emit(t itemType) {
	l.items = append(l.items, item{t, l.input[l.start:l.pos]})
	l.start = l.pos
}

// skip drops the single byte at pos; only used for ascii delimiters.
func (l *lexer) skip() {
	l.pos++
	l.start = l.pos
}

func (l *lexer) skipSpaces() {
	for l.pos < len(l.input) && l.input[l.pos] == delimParam {
		l.pos++
	}
	l.start = l.pos
}

func (l *lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// peek returns the byte at pos, or 0 at the end of input.
// Every delimiter in the protocol is ascii, so bytes are enough.
func (l *lexer) peek() byte {
	if l.atEOF() {
		return 0
	}
	return l.input[l.pos]
}

// scanTo advances pos to the first occurrence of any byte in stop, or the end of input.
func (l *lexer) scanTo(stop string) {
	if i := strings.IndexAny(l.input[l.pos:], stop); i >= 0 {
		l.pos += i
		return
	}
	l.pos = len(l.input)
}

// errorf appends an error item and terminates the scan.
func (l *lexer) errorf(format string, args ...interface{}) stateFn {
	l.items = append(l.items, item{itemError, fmt.Sprintf(format, args...)})
	return nil
}

func lexStart(l *lexer) stateFn {
	switch l.peek() {
	case startTags:
		l.skip()
		return lexTagKey
	case startPrefix:
		l.skip()
		return lexNickname
	}
	return lexCommand
}

// lexTagKey lexes an IRCv3 message tag name.
// The parser is responsible for dropping empty keys.
func lexTagKey(l *lexer) stateFn {
	l.scanTo("=; ")
	if l.atEOF() {
		return l.errorf("unexpected end of input while reading tag name")
	}
	for _, r := range l.input[l.start:l.pos] {
		if invalidTagNameChar(r) {
			return l.errorf("invalid character %q found while reading tag name", r)
		}
	}
	l.emit(itemTagKey)
	if l.peek() == delimTagValue {
		l.skip()
	}
	return lexTagValue
}

func invalidTagNameChar(r rune) bool {
	// <key_name> ::= <non-empty sequence of ascii letters, digits, hyphens ('-')>
	// https://ircv3.net/specs/extensions/message-tags.html
	// The client prefix, vendor, and '/' are kept as part of the name.
	switch r {
	case '+', '/', '.':
		return false
	default:
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-')
	}
}

// lexTagValue lexes a (still escaped) tag value, which may be empty.
func lexTagValue(l *lexer) stateFn {
	l.scanTo("; ")
	if l.atEOF() {
		return l.errorf("unexpected end of input while reading tag value")
	}
	l.emit(itemTagValue)
	if l.peek() == delimTag {
		l.skip()
		if l.peek() != delimParam {
			return lexTagKey
		}
	}
	l.skipSpaces()
	switch {
	case l.atEOF():
		return l.errorf("unexpected end of input after message tags")
	case l.peek() == startPrefix:
		l.skip()
		return lexNickname
	}
	return lexCommand
}

// lexNickname scans the nickname portion of a message prefix.
// A '.' before the end of the nickname means the prefix was a server host.
func lexNickname(l *lexer) stateFn {
	l.scanTo(" .!")
	switch l.peek() {
	case delimParam:
		l.emit(itemNickname)
		l.skipSpaces()
		if l.atEOF() {
			return l.errorf("unexpected end of input; expected command")
		}
		return lexCommand
	case '.':
		return lexHost
	case '!':
		l.emit(itemNickname)
		l.skip()
		return lexUser
	}
	return l.errorf("unexpected end of input")
}

// lexUser scans the user portion of a fulladdress prefix.
func lexUser(l *lexer) stateFn {
	l.scanTo("@ ")
	switch l.peek() {
	case '@':
		l.emit(itemUser)
		l.skip()
		return lexHost
	case delimParam:
		return l.errorf("expected host, found end of prefix")
	}
	return l.errorf("unexpected end of input")
}

// lexHost scans the host of a message prefix.
func lexHost(l *lexer) stateFn {
	l.scanTo(" ")
	if l.atEOF() {
		return l.errorf("expected command, found end of input")
	}
	l.emit(itemHost)
	l.skipSpaces()
	return lexCommand
}

func lexCommand(l *lexer) stateFn {
	l.scanTo(" ")
	if l.pos == l.start {
		return l.errorf("unexpected end of command; command is empty")
	}
	l.emit(itemCommand)
	if l.atEOF() {
		l.emit(itemEOF)
		return nil
	}
	l.skipSpaces()
	return lexParam
}

// lexParam scans a middle parameter, or the trailing parameter when it starts with ':'.
//
// A trailing delimiter followed by eof emits an empty parameter.
// Parameters are positional, so readers treat an explicit empty parameter
// the same as an omitted one.
func lexParam(l *lexer) stateFn {
	if l.peek() == startTrailing {
		l.skip()
		l.pos = len(l.input)
		l.emit(itemParam)
		l.emit(itemEOF)
		return nil
	}
	l.scanTo(" ")
	l.emit(itemParam)
	if l.atEOF() {
		l.emit(itemEOF)
		return nil
	}
	l.skipSpaces()
	return lexParam
}
