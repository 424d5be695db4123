// Package session wires a cycle engine to one buffer, the way an editor
// routes typed characters through smartchr before its default insert path.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/smartchr/internal/buffer"
	"github.com/verte-zerg/smartchr/internal/cycle"
	"github.com/verte-zerg/smartchr/internal/model"
)

// Recorder persists activations.
type Recorder interface {
	RecordActivation(ctx context.Context, a model.Activation) error
}

// Outcome describes what happened to one typed character.
type Outcome struct {
	Cycled  bool
	Action  model.EditAction
	Replace bool
}

// Session is one document edited through one engine.
type Session struct {
	id       string
	context  string
	engine   *cycle.Engine
	buf      *buffer.Buffer
	recorder Recorder
	log      *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithRecorder records every cycling activation.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// New starts a session over text in the given context.
func New(engine *cycle.Engine, text, ctx string, opts ...Option) *Session {
	s := &Session{
		id:      uuid.NewString(),
		context: ctx,
		engine:  engine,
		buf:     buffer.New(text),
		log:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier used in activation history.
func (s *Session) ID() string { return s.id }

// Context returns the buffer context token.
func (s *Session) Context() string { return s.context }

// Buffer exposes the edited buffer.
func (s *Session) Buffer() *buffer.Buffer { return s.buf }

// Engine exposes the session engine.
func (s *Session) Engine() *cycle.Engine { return s.engine }

// Open replaces the document and forgets all cycle state.
func (s *Session) Open(text, ctx string) {
	s.buf.SetText(text)
	s.context = ctx
	s.engine.Reset()
}

// Type handles one typed character at the given time.
func (s *Session) Type(r rune, at time.Time) (Outcome, error) {
	action, ok := s.engine.Activate(cycle.Keystroke{
		Char:    r,
		Context: s.context,
		Cursor:  s.buf.Cursor(),
		At:      at,
	}, s.buf)
	if !ok {
		s.buf.InsertRune(r)
		return Outcome{}, nil
	}
	if err := s.buf.Apply(action); err != nil {
		return Outcome{}, fmt.Errorf("failed to apply edit: %w", err)
	}
	out := Outcome{Cycled: true, Action: action, Replace: action.Delete != nil}
	s.record(r, action, at)
	return out, nil
}

func (s *Session) record(r rune, action model.EditAction, at time.Time) {
	if s.recorder == nil {
		return
	}
	index := 0
	if st, ok := s.engine.State(r); ok {
		index = st.CurrentIndex
	}
	a := model.Activation{
		SessionID: s.id,
		Trigger:   string(r),
		Context:   s.context,
		Index:     index,
		Inserted:  action.InsertText,
		Replaced:  action.Delete != nil,
		At:        at,
	}
	if err := s.recorder.RecordActivation(context.Background(), a); err != nil {
		s.log.Warn("failed to record activation", "trigger", a.Trigger, "err", err)
	}
}
