package cycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/smartchr/internal/model"
)

func TestResolveByKeyAndContext(t *testing.T) {
	mappings := []model.Mapping{
		model.MustMapping('=', []string{"=", " = "}, model.Loop, []string{"*"}, true),
		model.MustMapping('.', []string{".", "->"}, model.Loop, []string{"JAVA"}, true),
		model.MustMapping('.', []string{".", " . "}, model.Loop, []string{"Python"}, true),
	}

	m, ok := Resolve('=', "JAVA", mappings)
	require.True(t, ok)
	assert.Equal(t, '=', m.Trigger())

	m, ok = Resolve('.', "JAVA", mappings)
	require.True(t, ok)
	assert.Equal(t, []string{".", "->"}, m.Candidates())

	m, ok = Resolve('.', "Python", mappings)
	require.True(t, ok)
	assert.Equal(t, []string{".", " . "}, m.Candidates())

	_, ok = Resolve('#', "JAVA", mappings)
	assert.False(t, ok)
	_, ok = Resolve('.', "Go", mappings)
	assert.False(t, ok)
}

func TestResolveFirstMatchWins(t *testing.T) {
	mappings := []model.Mapping{
		model.MustMapping('=', []string{"first"}, model.Loop, []string{"Go"}, true),
		model.MustMapping('=', []string{"second"}, model.Loop, []string{"*"}, true),
	}
	m, ok := Resolve('=', "Go", mappings)
	require.True(t, ok)
	assert.Equal(t, "first", m.Candidate(0))

	m, ok = Resolve('=', "Rust", mappings)
	require.True(t, ok)
	assert.Equal(t, "second", m.Candidate(0))
}

func TestResolveSkipsDisabled(t *testing.T) {
	mappings := []model.Mapping{
		model.MustMapping('=', []string{"=", " = "}, model.Loop, nil, false),
		model.MustMapping(',', []string{",", ", "}, model.Loop, nil, true),
	}
	_, ok := Resolve('=', "*", mappings)
	assert.False(t, ok)

	m, ok := Resolve(',', "*", mappings)
	require.True(t, ok)
	assert.True(t, m.Enabled())

	mappings = append(mappings, model.MustMapping('=', []string{"late"}, model.Loop, nil, true))
	m, ok = Resolve('=', "Go", mappings)
	require.True(t, ok)
	assert.Equal(t, "late", m.Candidate(0))
}

func TestResolveEmptySet(t *testing.T) {
	_, ok := Resolve('=', "Go", nil)
	assert.False(t, ok)
}
