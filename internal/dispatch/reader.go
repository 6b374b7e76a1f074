// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"errors"
	"strings"
)

// Separator splits nodes in command input.
const Separator = ' '

var errUnterminatedQuote = errors.New("unterminated quoted string")

// Reader is a cursor over command input used by argument types.
type Reader struct {
	input  string
	cursor int
}

// NewReader returns a reader positioned at cursor.
func NewReader(input string, cursor int) *Reader {
	return &Reader{input: input, cursor: cursor}
}

// Input returns the whole input.
func (r *Reader) Input() string { return r.input }

// Cursor returns the current position.
func (r *Reader) Cursor() int { return r.cursor }

// SetCursor moves the reader.
func (r *Reader) SetCursor(c int) { r.cursor = c }

// CanRead reports whether any input is left.
func (r *Reader) CanRead() bool { return r.cursor < len(r.input) }

// Peek returns the next byte without consuming it. It must not be called
// when CanRead is false.
func (r *Reader) Peek() byte { return r.input[r.cursor] }

// Remaining returns the unread input.
func (r *Reader) Remaining() string { return r.input[r.cursor:] }

// ReadUnquoted reads up to the next separator.
func (r *Reader) ReadUnquoted() string {
	start := r.cursor
	for r.cursor < len(r.input) && r.input[r.cursor] != Separator {
		r.cursor++
	}
	return r.input[start:r.cursor]
}

// ReadQuoted reads a string enclosed in double or single quotes. A
// backslash escapes the quote character and itself.
func (r *Reader) ReadQuoted() (string, error) {
	if !r.CanRead() || !isQuote(r.Peek()) {
		return "", errors.New("expected quote to start a string")
	}
	quote := r.Peek()
	start := r.cursor
	r.cursor++

	var b strings.Builder
	escaped := false
	for r.cursor < len(r.input) {
		c := r.input[r.cursor]
		r.cursor++
		switch {
		case escaped:
			if c != quote && c != '\\' {
				r.cursor = start
				return "", errors.New("invalid escape sequence in quoted string")
			}
			b.WriteByte(c)
			escaped = false
		case c == '\\':
			escaped = true
		case c == quote:
			return b.String(), nil
		default:
			b.WriteByte(c)
		}
	}
	r.cursor = start
	return "", errUnterminatedQuote
}

// ReadString reads a quoted string when the next byte is a quote, and an
// unquoted word otherwise.
func (r *Reader) ReadString() (string, error) {
	if r.CanRead() && isQuote(r.Peek()) {
		return r.ReadQuoted()
	}
	return r.ReadUnquoted(), nil
}

// ReadRest consumes and returns all remaining input.
func (r *Reader) ReadRest() string {
	rest := r.input[r.cursor:]
	r.cursor = len(r.input)
	return rest
}

func isQuote(c byte) bool { return c == '"' || c == '\'' }
