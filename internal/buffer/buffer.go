// Package buffer provides the rune buffer edited by smartchr sessions.
package buffer

import (
	"fmt"

	"github.com/verte-zerg/smartchr/internal/model"
)

// Buffer is a text buffer with a single cursor. Offsets count runes.
type Buffer struct {
	runes  []rune
	cursor int
}

// New returns a buffer holding text with the cursor at the end.
func New(text string) *Buffer {
	b := &Buffer{}
	b.SetText(text)
	return b
}

// SetText replaces the content and moves the cursor to the end.
func (b *Buffer) SetText(text string) {
	b.runes = []rune(text)
	b.cursor = len(b.runes)
}

// String returns the buffer content.
func (b *Buffer) String() string {
	return string(b.runes)
}

// Runes returns a copy of the content.
func (b *Buffer) Runes() []rune {
	return append([]rune(nil), b.runes...)
}

// RuneLen returns the content length in runes.
func (b *Buffer) RuneLen() int {
	return len(b.runes)
}

// Slice returns the runes in [start, end).
func (b *Buffer) Slice(start, end int) (string, bool) {
	if start < 0 || end < start || end > len(b.runes) {
		return "", false
	}
	return string(b.runes[start:end]), true
}

// Cursor returns the cursor offset.
func (b *Buffer) Cursor() int {
	return b.cursor
}

// SetCursor moves the cursor, clamping to the buffer bounds.
func (b *Buffer) SetCursor(offset int) {
	switch {
	case offset < 0:
		b.cursor = 0
	case offset > len(b.runes):
		b.cursor = len(b.runes)
	default:
		b.cursor = offset
	}
}

// Move shifts the cursor by delta runes.
func (b *Buffer) Move(delta int) {
	b.SetCursor(b.cursor + delta)
}

// Insert writes s at the cursor and advances past it.
func (b *Buffer) Insert(s string) {
	ins := []rune(s)
	b.runes = splice(b.runes, b.cursor, 0, ins)
	b.cursor += len(ins)
}

// InsertRune writes r at the cursor.
func (b *Buffer) InsertRune(r rune) {
	b.runes = splice(b.runes, b.cursor, 0, []rune{r})
	b.cursor++
}

// Backspace removes the rune before the cursor.
func (b *Buffer) Backspace() bool {
	if b.cursor == 0 {
		return false
	}
	b.runes = splice(b.runes, b.cursor-1, 1, nil)
	b.cursor--
	return true
}

// Apply performs an edit action as one change: either both the deletion and
// the insertion happen or neither does. The cursor ends after the inserted text.
func (b *Buffer) Apply(a model.EditAction) error {
	length := len(b.runes)
	if a.Delete != nil {
		d := *a.Delete
		if d.Start < 0 || d.Length < 0 || d.Start+d.Length > length {
			return fmt.Errorf("delete range [%d,%d) outside buffer of %d runes", d.Start, d.Start+d.Length, length)
		}
		length -= d.Length
	}
	if a.InsertOffset < 0 || a.InsertOffset > length {
		return fmt.Errorf("insert offset %d outside buffer of %d runes", a.InsertOffset, length)
	}
	if a.Delete != nil {
		b.runes = splice(b.runes, a.Delete.Start, a.Delete.Length, nil)
	}
	ins := []rune(a.InsertText)
	b.runes = splice(b.runes, a.InsertOffset, 0, ins)
	b.cursor = a.InsertOffset + len(ins)
	return nil
}

func splice(runes []rune, at, remove int, insert []rune) []rune {
	out := make([]rune, 0, len(runes)-remove+len(insert))
	out = append(out, runes[:at]...)
	out = append(out, insert...)
	return append(out, runes[at+remove:]...)
}
