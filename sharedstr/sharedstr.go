/*
Package sharedstr provides Str, an immutable view into a shared text buffer.

Deriving a Str from text that already lies inside the view (by trimming,
splitting, or slicing) reuses the backing buffer instead of copying it.
Text that does not belong to the view is copied into a new buffer.
Comparison always uses the viewed text, never the buffer identity:

	a := sharedstr.New("eval: foo bar")
	b := a.SliceFrom(5).Trim() // "foo bar", same buffer as a
	c := sharedstr.New("foo bar")
	b.Equal(c)        // true
	b.SharesBuffer(c) // false
*/
package sharedstr

import (
	"strings"
	"unicode"
	"unicode/utf8"
	"unsafe"
)

// buffer is the owned backing text. Its identity is the pointer.
type buffer struct {
	text string
}

// Str is a view of the range [start, end) of a shared buffer.
// The zero value is the empty string with no buffer.
//
// A Str is safe for concurrent use by multiple goroutines.
type Str struct {
	buf        *buffer
	start, end int
}

// New returns a Str that owns a freshly allocated copy of s.
func New(s string) Str {
	return Str{
		buf: &buffer{text: strings.Clone(s)},
		end: len(s),
	}
}

// String returns the viewed text. It does not allocate.
func (s Str) String() string {
	if s.buf == nil {
		return ""
	}
	return s.buf.text[s.start:s.end]
}

// MarshalText implements encoding.TextMarshaler.
func (s Str) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Len returns the length of the view in bytes.
func (s Str) Len() int {
	return s.end - s.start
}

// IsEmpty reports whether the view is empty.
func (s Str) IsEmpty() bool {
	return s.start == s.end
}

// Derive returns a Str for sub.
// When sub is located inside the memory of the current view, the result shares s's buffer.
// Otherwise sub is copied into a new buffer.
// An empty sub keeps the buffer identity of s.
func (s Str) Derive(sub string) Str {
	if len(sub) == 0 {
		return Str{buf: s.buf, start: s.start, end: s.start}
	}
	if off, ok := s.offsetOf(sub); ok {
		return Str{buf: s.buf, start: s.start + off, end: s.start + off + len(sub)}
	}
	return New(sub)
}

// offsetOf reports where sub starts relative to the view,
// if sub lies entirely within the view's memory.
func (s Str) offsetOf(sub string) (int, bool) {
	view := s.String()
	if len(view) == 0 {
		return 0, false
	}
	lo := uintptr(unsafe.Pointer(unsafe.StringData(view)))
	hi := lo + uintptr(len(view))
	p := uintptr(unsafe.Pointer(unsafe.StringData(sub)))
	if p < lo || p >= hi || p+uintptr(len(sub)) > hi {
		return 0, false
	}
	return int(p - lo), true
}

// Slice returns the view s[i:j]. It panics if the indexes are out of range,
// like slicing a string.
func (s Str) Slice(i, j int) Str {
	return s.Derive(s.String()[i:j])
}

// SliceFrom returns the view s[i:].
func (s Str) SliceFrom(i int) Str {
	return s.Derive(s.String()[i:])
}

// SplitAt splits the view at byte offset mid.
func (s Str) SplitAt(mid int) (Str, Str) {
	v := s.String()
	return s.Derive(v[:mid]), s.Derive(v[mid:])
}

// Trim returns the view with leading and trailing white space removed.
func (s Str) Trim() Str {
	return s.Derive(strings.TrimSpace(s.String()))
}

// TrimLeft returns the view with leading white space removed.
func (s Str) TrimLeft() Str {
	return s.Derive(strings.TrimLeftFunc(s.String(), unicode.IsSpace))
}

// Fields splits the view around runs of white space.
// Every field shares the buffer of s.
func (s Str) Fields() []Str {
	fields := strings.Fields(s.String())
	out := make([]Str, len(fields))
	for i, f := range fields {
		out[i] = s.Derive(f)
	}
	return out
}

// HasPrefix reports whether the view begins with prefix.
func (s Str) HasPrefix(prefix string) bool {
	return strings.HasPrefix(s.String(), prefix)
}

// FirstRune returns the first rune of the view, or utf8.RuneError if it is empty.
func (s Str) FirstRune() rune {
	r, _ := utf8.DecodeRuneInString(s.String())
	return r
}

// LastRune returns the last rune of the view, or utf8.RuneError if it is empty.
func (s Str) LastRune() rune {
	r, _ := utf8.DecodeLastRuneInString(s.String())
	return r
}

// Equal reports whether s and o view the same text.
func (s Str) Equal(o Str) bool {
	return s.String() == o.String()
}

// Compare compares the viewed text of s and o lexicographically.
func (s Str) Compare(o Str) int {
	return strings.Compare(s.String(), o.String())
}

// SharesBuffer reports whether s and o are views into the same buffer.
func (s Str) SharesBuffer(o Str) bool {
	return s.buf != nil && s.buf == o.buf
}
