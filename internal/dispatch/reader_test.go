// SPDX-License-Identifier: MPL-2.0

package dispatch

import (
	"errors"
	"testing"
)

func TestReader_ReadUnquoted(t *testing.T) {
	t.Parallel()

	r := NewReader("give @p diamond", 0)
	if got := r.ReadUnquoted(); got != "give" || r.Cursor() != 4 {
		t.Fatalf("ReadUnquoted() = %q at %d", got, r.Cursor())
	}
	if r.Peek() != Separator {
		t.Fatalf("Peek() = %q, want separator", r.Peek())
	}
	r.SetCursor(5)
	if got := r.ReadUnquoted(); got != "@p" {
		t.Errorf("ReadUnquoted() = %q, want @p", got)
	}
	if got := r.Remaining(); got != " diamond" {
		t.Errorf("Remaining() = %q", got)
	}
	r.SetCursor(len(r.Input()))
	if r.CanRead() || r.ReadUnquoted() != "" {
		t.Error("reader at end should yield nothing")
	}
}

func TestReader_ReadQuoted(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		cursor  int
		wantErr bool
	}{
		{name: "double", input: `"hello world" rest`, want: "hello world", cursor: 13},
		{name: "single", input: `'it is' x`, want: "it is", cursor: 7},
		{name: "escaped quote", input: `"say \"hi\""`, want: `say "hi"`, cursor: 12},
		{name: "escaped backslash", input: `"a\\b"`, want: `a\b`, cursor: 6},
		{name: "other quote inside", input: `"it's"`, want: "it's", cursor: 6},
		{name: "empty", input: `""`, want: "", cursor: 2},
		{name: "unterminated", input: `"open`, wantErr: true},
		{name: "bad escape", input: `"a\nb"`, wantErr: true},
		{name: "no quote", input: `plain`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewReader(tt.input, 0)
			got, err := r.ReadQuoted()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ReadQuoted(%q) = %q, want error", tt.input, got)
				}
				if r.Cursor() != 0 {
					t.Errorf("cursor moved to %d on error", r.Cursor())
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadQuoted(%q) error = %v", tt.input, err)
			}
			if got != tt.want || r.Cursor() != tt.cursor {
				t.Errorf("ReadQuoted(%q) = %q at %d, want %q at %d", tt.input, got, r.Cursor(), tt.want, tt.cursor)
			}
		})
	}
}

func TestReader_ReadString(t *testing.T) {
	t.Parallel()

	r := NewReader(`word "two words"`, 0)
	first, err := r.ReadString()
	if err != nil || first != "word" {
		t.Fatalf("ReadString() = %q, %v", first, err)
	}
	r.SetCursor(r.Cursor() + 1)
	second, err := r.ReadString()
	if err != nil || second != "two words" {
		t.Fatalf("ReadString() = %q, %v", second, err)
	}

	if _, err := NewReader(`"open`, 0).ReadString(); !errors.Is(err, errUnterminatedQuote) {
		t.Errorf("error = %v, want unterminated quote", err)
	}
}

func TestReader_ReadRest(t *testing.T) {
	t.Parallel()

	r := NewReader("say hello there", 4)
	if got := r.ReadRest(); got != "hello there" || r.CanRead() {
		t.Errorf("ReadRest() = %q, CanRead() = %v", got, r.CanRead())
	}
}
