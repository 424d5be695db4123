package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/smartchr/internal/model"
)

func TestInsertAndBackspace(t *testing.T) {
	b := New("ab")
	b.SetCursor(1)
	b.Insert("xy")
	assert.Equal(t, "axyb", b.String())
	assert.Equal(t, 3, b.Cursor())

	require.True(t, b.Backspace())
	assert.Equal(t, "axb", b.String())
	b.SetCursor(0)
	assert.False(t, b.Backspace())

	b.InsertRune('é')
	assert.Equal(t, "éaxb", b.String())
	assert.Equal(t, 4, b.RuneLen())
}

func TestCursorClamps(t *testing.T) {
	b := New("abc")
	b.Move(5)
	assert.Equal(t, 3, b.Cursor())
	b.Move(-10)
	assert.Equal(t, 0, b.Cursor())
}

func TestSlice(t *testing.T) {
	b := New("a → b")
	s, ok := b.Slice(1, 4)
	require.True(t, ok)
	assert.Equal(t, " → ", s)
	_, ok = b.Slice(-1, 2)
	assert.False(t, ok)
	_, ok = b.Slice(3, 9)
	assert.False(t, ok)
}

func TestApplyReplace(t *testing.T) {
	b := New("x = ")
	err := b.Apply(model.EditAction{
		Delete:       &model.DeleteRange{Start: 1, Length: 3},
		InsertText:   " == ",
		InsertOffset: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "x == ", b.String())
	assert.Equal(t, 5, b.Cursor())
}

func TestApplyRejectsBadRangesWithoutMutating(t *testing.T) {
	b := New("abc")
	err := b.Apply(model.EditAction{Delete: &model.DeleteRange{Start: 2, Length: 5}, InsertText: "z"})
	require.Error(t, err)
	assert.Equal(t, "abc", b.String())

	err = b.Apply(model.EditAction{Delete: &model.DeleteRange{Start: 0, Length: 2}, InsertText: "z", InsertOffset: 2})
	require.Error(t, err)
	assert.Equal(t, "abc", b.String())
	assert.Equal(t, 3, b.Cursor())
}
