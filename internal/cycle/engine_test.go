package cycle

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/smartchr/internal/model"
)

var epoch = time.Unix(1700000000, 0)

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

// doc is a minimal caller that applies edit actions the way a host editor would.
type doc struct {
	text   RuneText
	cursor int
}

func (d *doc) typeKey(t *testing.T, e *Engine, r rune, ctx string, ms int) (model.EditAction, bool) {
	t.Helper()
	action, ok := e.Activate(Keystroke{Char: r, Context: ctx, Cursor: d.cursor, At: at(ms)}, d.text)
	if !ok {
		d.text = append(d.text[:d.cursor:d.cursor], append([]rune{r}, d.text[d.cursor:]...)...)
		d.cursor++
		return action, false
	}
	if action.Delete != nil {
		start, end := action.Delete.Start, action.Delete.Start+action.Delete.Length
		d.text = append(d.text[:start:start], d.text[end:]...)
		d.cursor = start
	}
	ins := []rune(action.InsertText)
	off := action.InsertOffset
	d.text = append(d.text[:off:off], append(ins, d.text[off:]...)...)
	d.cursor = off + len(ins)
	return action, true
}

func indexSequence(t *testing.T, m model.Mapping, n int) []int {
	t.Helper()
	e := NewEngine(NewStaticProvider(m))
	d := &doc{}
	var out []int
	for i := 0; i < n; i++ {
		_, ok := d.typeKey(t, e, m.Trigger(), "Go", i*10)
		require.True(t, ok)
		st, found := e.State(m.Trigger())
		require.True(t, found)
		out = append(out, st.CurrentIndex)
	}
	return out
}

func TestLoopWraps(t *testing.T) {
	m := model.MustMapping('=', []string{"=", " = ", " == "}, model.Loop, nil, true)
	assert.Equal(t, []int{0, 1, 2, 0}, indexSequence(t, m, 4))
	assert.Equal(t, []int{0, 1, 2, 0, 1, 2, 0}, indexSequence(t, m, 7))
}

func TestOneOfClamps(t *testing.T) {
	m := model.MustMapping(',', []string{",", ", "}, model.OneOf, nil, true)
	assert.Equal(t, []int{0, 1, 1, 1}, indexSequence(t, m, 4))
}

func TestSingleCandidateAlwaysIndexZero(t *testing.T) {
	for _, mode := range []model.CycleMode{model.Loop, model.OneOf} {
		m := model.MustMapping(';', []string{";\n"}, mode, nil, true)
		assert.Equal(t, []int{0, 0, 0}, indexSequence(t, m, 3))
	}
}

func TestScenarioEquals(t *testing.T) {
	m := model.MustMapping('=', []string{"=", " = ", " == "}, model.Loop, []string{"*"}, true)
	e := NewEngine(NewStaticProvider(m))
	d := &doc{}

	action, ok := d.typeKey(t, e, '=', "Go", 0)
	require.True(t, ok)
	assert.Nil(t, action.Delete)
	assert.Equal(t, "=", action.InsertText)
	assert.Equal(t, "=", string(d.text))

	action, _ = d.typeKey(t, e, '=', "Go", 100)
	require.NotNil(t, action.Delete)
	assert.Equal(t, model.DeleteRange{Start: 0, Length: 1}, *action.Delete)
	assert.Equal(t, " = ", string(d.text))

	action, _ = d.typeKey(t, e, '=', "Go", 200)
	require.NotNil(t, action.Delete)
	assert.Equal(t, model.DeleteRange{Start: 0, Length: 3}, *action.Delete)
	assert.Equal(t, " == ", string(d.text))

	action, _ = d.typeKey(t, e, '=', "Go", 250)
	require.NotNil(t, action.Delete)
	assert.Equal(t, "=", action.InsertText)
	assert.Equal(t, "=", string(d.text))

	action, _ = d.typeKey(t, e, '=', "Go", 3000)
	assert.Nil(t, action.Delete)
	assert.Equal(t, "=", action.InsertText)
	assert.Equal(t, 1, action.InsertOffset)
	assert.Equal(t, "==", string(d.text))
}

func TestTimeoutRestartsCycle(t *testing.T) {
	m := model.MustMapping('=', []string{"=", " = ", " == "}, model.Loop, nil, true)
	e := NewEngine(NewStaticProvider(m))
	d := &doc{}
	d.typeKey(t, e, '=', "", 0)
	d.typeKey(t, e, '=', "", 500)
	st, _ := e.State('=')
	require.Equal(t, 1, st.CurrentIndex)

	action, _ := d.typeKey(t, e, '=', "", 500+2001)
	assert.Nil(t, action.Delete)
	assert.Equal(t, "=", action.InsertText)
	st, _ = e.State('=')
	assert.Equal(t, 0, st.CurrentIndex)
	assert.Equal(t, " = =", string(d.text))
}

func TestTimeoutBoundaryCountsAsTimedOut(t *testing.T) {
	m := model.MustMapping('=', []string{"=", " = "}, model.Loop, nil, true)
	e := NewEngine(NewStaticProvider(m))
	d := &doc{}
	d.typeKey(t, e, '=', "", 0)

	action, _ := d.typeKey(t, e, '=', "", 2000)
	assert.Nil(t, action.Delete)
	assert.Equal(t, "=", action.InsertText)

	action, _ = d.typeKey(t, e, '=', "", 3999)
	require.NotNil(t, action.Delete)
	assert.Equal(t, " = ", action.InsertText)
}

func TestContextFilter(t *testing.T) {
	java := model.MustMapping('.', []string{".", "->"}, model.Loop, []string{"JAVA"}, true)
	e := NewEngine(NewStaticProvider(java))
	d := &doc{}
	_, ok := d.typeKey(t, e, '.', "Python", 0)
	assert.False(t, ok)
	assert.Equal(t, 0, e.Len())
	assert.Equal(t, ".", string(d.text))

	_, ok = d.typeKey(t, e, '.', "JAVA", 10)
	assert.True(t, ok)
}

func TestDisabledMappingPassesThrough(t *testing.T) {
	m := model.MustMapping('=', []string{"=", " = "}, model.Loop, nil, false)
	e := NewEngine(NewStaticProvider(m))
	d := &doc{}
	for i := 0; i < 3; i++ {
		_, ok := d.typeKey(t, e, '=', "Go", i)
		assert.False(t, ok)
	}
	assert.Equal(t, 0, e.Len())
	assert.Equal(t, "===", string(d.text))
}

func TestEditedTextIsNotReplaced(t *testing.T) {
	m := model.MustMapping('=', []string{"=", " = ", " == "}, model.Loop, nil, true)
	e := NewEngine(NewStaticProvider(m))
	d := &doc{}
	d.typeKey(t, e, '=', "", 0)
	d.typeKey(t, e, '=', "", 100)
	require.Equal(t, " = ", string(d.text))

	// user types "x" after the insertion
	d.text = append(d.text, 'x')
	d.cursor++

	action, ok := d.typeKey(t, e, '=', "", 200)
	require.True(t, ok)
	assert.Nil(t, action.Delete)
	assert.Equal(t, " == ", action.InsertText)
	assert.Equal(t, 4, action.InsertOffset)
	assert.Equal(t, " = x == ", string(d.text))
}

func TestDeletedTextIsNotReplaced(t *testing.T) {
	m := model.MustMapping('=', []string{" = ", " == "}, model.Loop, nil, true)
	e := NewEngine(NewStaticProvider(m))
	d := &doc{}
	d.typeKey(t, e, '=', "", 0)
	d.text = nil
	d.cursor = 0

	action, ok := d.typeKey(t, e, '=', "", 100)
	require.True(t, ok)
	assert.Nil(t, action.Delete)
	assert.Equal(t, " == ", action.InsertText)
}

func TestCursorOutsideBufferSkipsDeletion(t *testing.T) {
	m := model.MustMapping('=', []string{"=", " = "}, model.Loop, nil, true)
	e := NewEngine(NewStaticProvider(m))
	_, ok := e.Activate(Keystroke{Char: '=', Cursor: 0, At: at(0)}, RuneText(""))
	require.True(t, ok)

	action, ok := e.Activate(Keystroke{Char: '=', Cursor: 5, At: at(10)}, RuneText("="))
	require.True(t, ok)
	assert.Nil(t, action.Delete)
	assert.Equal(t, 5, action.InsertOffset)
}

func TestMultiByteCandidates(t *testing.T) {
	m := model.MustMapping('-', []string{"-", "→", " ⟶ "}, model.Loop, nil, true)
	e := NewEngine(NewStaticProvider(m))
	d := &doc{text: RuneText("é"), cursor: 1}
	d.typeKey(t, e, '-', "", 0)
	action, _ := d.typeKey(t, e, '-', "", 10)
	require.NotNil(t, action.Delete)
	assert.Equal(t, model.DeleteRange{Start: 1, Length: 1}, *action.Delete)
	action, _ = d.typeKey(t, e, '-', "", 20)
	require.NotNil(t, action.Delete)
	assert.Equal(t, model.DeleteRange{Start: 1, Length: 1}, *action.Delete)
	assert.Equal(t, "é ⟶ ", string(d.text))
}

func TestKeysCycleIndependently(t *testing.T) {
	eq := model.MustMapping('=', []string{"=", " = "}, model.Loop, nil, true)
	comma := model.MustMapping(',', []string{",", ", "}, model.OneOf, nil, true)
	e := NewEngine(NewStaticProvider(eq, comma))
	d := &doc{}
	d.typeKey(t, e, '=', "", 0)
	d.typeKey(t, e, ',', "", 10)
	action, _ := d.typeKey(t, e, '=', "", 20)
	// "=" is no longer directly before the cursor
	assert.Nil(t, action.Delete)
	assert.Equal(t, " = ", action.InsertText)
	assert.Equal(t, 2, e.Len())
}

func TestShrunkMappingKeepsIndexInRange(t *testing.T) {
	p := NewStaticProvider(model.MustMapping('=', []string{"a", "b", "c"}, model.OneOf, nil, true))
	e := NewEngine(p)
	d := &doc{}
	for i := 0; i < 3; i++ {
		d.typeKey(t, e, '=', "", i*10)
	}
	p.Set([]model.Mapping{model.MustMapping('=', []string{"x", "y"}, model.OneOf, nil, true)})
	action, ok := d.typeKey(t, e, '=', "", 40)
	require.True(t, ok)
	assert.Equal(t, "y", action.InsertText)
}

func TestResetForgetsState(t *testing.T) {
	m := model.MustMapping('=', []string{"=", " = "}, model.Loop, nil, true)
	e := NewEngine(NewStaticProvider(m))
	d := &doc{}
	d.typeKey(t, e, '=', "", 0)
	require.Equal(t, 1, e.Len())
	e.Reset()
	e.Reset()
	assert.Equal(t, 0, e.Len())

	action, _ := d.typeKey(t, e, '=', "", 10)
	assert.Nil(t, action.Delete)
	assert.Equal(t, "=", action.InsertText)
}

func TestNilProviderPassesThrough(t *testing.T) {
	e := NewEngine(nil)
	_, ok := e.Activate(Keystroke{Char: '='}, RuneText(""))
	assert.False(t, ok)

	empty := ProviderFunc(func() []model.Mapping { return nil })
	e = NewEngine(empty)
	_, ok = e.Activate(Keystroke{Char: '='}, RuneText(""))
	assert.False(t, ok)
}

func TestWithTimeout(t *testing.T) {
	m := model.MustMapping('=', []string{"=", " = "}, model.Loop, nil, true)
	e := NewEngine(NewStaticProvider(m), WithTimeout(50*time.Millisecond))
	assert.Equal(t, 50*time.Millisecond, e.Timeout())
	d := &doc{}
	d.typeKey(t, e, '=', "", 0)
	action, _ := d.typeKey(t, e, '=', "", 60)
	assert.Nil(t, action.Delete)
}

func TestConcurrentActivateResetAndSwap(t *testing.T) {
	eq := model.MustMapping('=', []string{"=", " = ", " == "}, model.Loop, nil, true)
	comma := model.MustMapping(',', []string{",", ", "}, model.OneOf, nil, true)
	p := NewStaticProvider(eq, comma)
	e := NewEngine(p)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			text := RuneText("==, ")
			for i := 0; i < 200; i++ {
				char := '='
				if (g+i)%2 == 0 {
					char = ','
				}
				action, ok := e.Activate(Keystroke{Char: char, Cursor: len(text), At: at(g*1000 + i)}, text)
				if ok && action.InsertText == "" {
					t.Errorf("empty insertion for %q", char)
				}
				switch {
				case i%50 == 0:
					e.Reset()
				case i%25 == 0:
					if g%2 == 0 {
						p.Set([]model.Mapping{eq})
					} else {
						p.Set([]model.Mapping{eq, comma})
					}
				}
				e.State(char)
			}
		}(g)
	}
	wg.Wait()

	e.Reset()
	assert.Equal(t, 0, e.Len())
}
