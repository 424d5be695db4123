package cycle

import (
	"log/slog"
	"sync"
	"time"

	"github.com/verte-zerg/smartchr/internal/model"
)

// DefaultTimeout is the inactivity gap after which a key starts a new cycle.
// A gap equal to the timeout already counts as timed out.
const DefaultTimeout = 2000 * time.Millisecond

// Text is the read-only view of a buffer the engine needs to verify a prior
// insertion. Offsets count characters.
type Text interface {
	RuneLen() int
	// Slice returns the characters in [start, end). ok is false when the
	// range is outside the buffer.
	Slice(start, end int) (s string, ok bool)
}

// RuneText is a Text over an in-memory rune slice.
type RuneText []rune

// RuneLen implements Text.
func (t RuneText) RuneLen() int { return len(t) }

// Slice implements Text.
func (t RuneText) Slice(start, end int) (string, bool) {
	if start < 0 || end < start || end > len(t) {
		return "", false
	}
	return string(t[start:end]), true
}

// Keystroke is one typed character with the context it was typed in.
type Keystroke struct {
	Char    rune
	Context string
	Cursor  int
	At      time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger used for decision tracing.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// Engine turns keystrokes into edit actions. One Engine serves one document;
// its state is not meaningful across unrelated buffers.
type Engine struct {
	provider MappingProvider
	timeout  time.Duration
	log      *slog.Logger

	mu     sync.Mutex
	states map[rune]model.KeyCycleState
}

// NewEngine returns an Engine reading mappings from provider on each activation.
func NewEngine(provider MappingProvider, opts ...Option) *Engine {
	e := &Engine{
		provider: provider,
		timeout:  DefaultTimeout,
		log:      slog.New(slog.DiscardHandler),
		states:   map[rune]model.KeyCycleState{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Activate decides what to do with a typed character. ok is false when no
// mapping applies and the character must be inserted unchanged; no state is
// touched in that case.
func (e *Engine) Activate(k Keystroke, text Text) (action model.EditAction, ok bool) {
	var mappings []model.Mapping
	if e.provider != nil {
		mappings = e.provider.Mappings()
	}
	mapping, found := Resolve(k.Char, k.Context, mappings)
	if !found {
		return model.EditAction{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state, seen := e.states[k.Char]
	timedOut := !seen || k.At.Sub(state.LastActivity) >= e.timeout

	next := 0
	if !timedOut && state.HasInserted {
		current := state.CurrentIndex
		if current >= mapping.Len() {
			current = mapping.Len() - 1
		}
		next = mapping.Mode().Advance(current, mapping.Len())
	}
	toInsert := mapping.Candidate(next)

	action = model.EditAction{InsertText: toInsert, InsertOffset: k.Cursor}
	if !timedOut && state.HasInserted {
		if start, replace := previousInsertion(text, k.Cursor, state.LastInserted); replace {
			length := k.Cursor - start
			action.Delete = &model.DeleteRange{Start: start, Length: length}
			action.InsertOffset = start
		} else {
			e.log.Debug("previous insertion changed, not replacing",
				"trigger", string(k.Char), "last", state.LastInserted, "cursor", k.Cursor)
		}
	}

	e.states[k.Char] = model.KeyCycleState{
		CurrentIndex: next,
		LastInserted: toInsert,
		HasInserted:  true,
		LastActivity: k.At,
	}
	e.log.Debug("activation",
		"trigger", string(k.Char),
		"context", k.Context,
		"index", next,
		"timed_out", timedOut,
		"replace", action.Delete != nil,
	)
	return action, true
}

// previousInsertion reports where last starts if it still sits directly
// before cursor.
func previousInsertion(text Text, cursor int, last string) (int, bool) {
	if text == nil || last == "" {
		return 0, false
	}
	n := len([]rune(last))
	start := cursor - n
	if start < 0 || cursor > text.RuneLen() {
		return 0, false
	}
	got, ok := text.Slice(start, cursor)
	if !ok || got != last {
		return 0, false
	}
	return start, true
}

// Reset forgets the cycle state of every key.
func (e *Engine) Reset() {
	e.mu.Lock()
	e.states = map[rune]model.KeyCycleState{}
	e.mu.Unlock()
}

// State returns the cycle state of char, if any.
func (e *Engine) State(char rune) (model.KeyCycleState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.states[char]
	return st, ok
}

// Len returns the number of keys with cycle state.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.states)
}

// Timeout returns the configured inactivity timeout.
func (e *Engine) Timeout() time.Duration {
	return e.timeout
}

// Mappings returns the provider's current mapping set.
func (e *Engine) Mappings() []model.Mapping {
	if e.provider == nil {
		return nil
	}
	return e.provider.Mappings()
}
