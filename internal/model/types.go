// Package model defines shared data structures.
package model

import (
	"errors"
	"fmt"
	"time"
)

// WildcardContext matches every buffer context.
const WildcardContext = "*"

// ErrEmptyCandidates is matched by validation errors for mappings without candidates.
var ErrEmptyCandidates = errors.New("candidates list must not be empty")

// ValidationError reports an invalid mapping definition.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid mapping: %s", e.Reason)
	}
	return fmt.Sprintf("invalid mapping %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// CycleMode controls what happens after the last candidate.
type CycleMode int

const (
	// Loop wraps back to the first candidate.
	Loop CycleMode = iota
	// OneOf stays on the last candidate.
	OneOf
)

// String returns the persisted name of the mode.
func (m CycleMode) String() string {
	switch m {
	case OneOf:
		return "ONE_OF"
	default:
		return "LOOP"
	}
}

// ParseCycleMode maps a persisted mode name to a CycleMode. Unknown names yield Loop.
func ParseCycleMode(s string) CycleMode {
	if s == "ONE_OF" {
		return OneOf
	}
	return Loop
}

// Advance returns the index following current for a list of n candidates.
func (m CycleMode) Advance(current, n int) int {
	if n <= 0 {
		return 0
	}
	next := current + 1
	if m == OneOf {
		if next > n-1 {
			return n - 1
		}
		return next
	}
	return next % n
}

// Mapping binds a trigger character to an ordered list of replacement candidates.
// A Mapping is immutable once built; use NewMapping.
type Mapping struct {
	trigger    rune
	candidates []string
	mode       CycleMode
	contexts   []string
	enabled    bool
}

// NewMapping validates and builds a Mapping. Empty contexts default to the wildcard.
func NewMapping(trigger rune, candidates []string, mode CycleMode, contexts []string, enabled bool) (Mapping, error) {
	if len(candidates) == 0 {
		return Mapping{}, &ValidationError{Field: "candidates", Reason: ErrEmptyCandidates.Error(), Err: ErrEmptyCandidates}
	}
	if len(contexts) == 0 {
		contexts = []string{WildcardContext}
	}
	return Mapping{
		trigger:    trigger,
		candidates: append([]string(nil), candidates...),
		mode:       mode,
		contexts:   append([]string(nil), contexts...),
		enabled:    enabled,
	}, nil
}

// MustMapping is NewMapping for static tables; it panics on invalid input.
func MustMapping(trigger rune, candidates []string, mode CycleMode, contexts []string, enabled bool) Mapping {
	m, err := NewMapping(trigger, candidates, mode, contexts, enabled)
	if err != nil {
		panic(err)
	}
	return m
}

// Trigger returns the trigger character.
func (m Mapping) Trigger() rune { return m.trigger }

// Mode returns the cycle mode.
func (m Mapping) Mode() CycleMode { return m.mode }

// Enabled reports whether the mapping participates in resolution.
func (m Mapping) Enabled() bool { return m.enabled }

// Len returns the number of candidates.
func (m Mapping) Len() int { return len(m.candidates) }

// Candidate returns the candidate at index i.
func (m Mapping) Candidate(i int) string { return m.candidates[i] }

// Candidates returns a copy of the candidate list.
func (m Mapping) Candidates() []string {
	return append([]string(nil), m.candidates...)
}

// Contexts returns a copy of the context tokens.
func (m Mapping) Contexts() []string {
	return append([]string(nil), m.contexts...)
}

// MatchesContext reports whether the mapping applies to the given context token.
func (m Mapping) MatchesContext(ctx string) bool {
	for _, c := range m.contexts {
		if c == WildcardContext || c == ctx {
			return true
		}
	}
	return false
}

// KeyCycleState tracks the cycle position of one trigger character.
type KeyCycleState struct {
	CurrentIndex int
	LastInserted string
	HasInserted  bool
	LastActivity time.Time
}

// DeleteRange is a span of characters to remove before inserting.
type DeleteRange struct {
	Start  int
	Length int
}

// EditAction describes the buffer change produced by one activation.
// Offsets count characters, not bytes.
type EditAction struct {
	Delete       *DeleteRange
	InsertText   string
	InsertOffset int
}

// Activation is a recorded engine decision.
type Activation struct {
	SessionID string
	Trigger   string
	Context   string
	Index     int
	Inserted  string
	Replaced  bool
	At        time.Time
}

// UsageConfig defines filters for usage reporting.
type UsageConfig struct {
	Context string
	Since   *time.Time
	Top     int
}

// KeyUsage aggregates activations for one trigger.
type KeyUsage struct {
	Trigger     string
	Activations int
	Replaced    int
	Sessions    int
	LastUsed    time.Time
	TopInserted string
}

// DayActivity counts activations on one local calendar day.
type DayActivity struct {
	Day         time.Time
	Activations int
	Replaced    int
}
