// Package tui provides the Bubble Tea editing interface.
package tui

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/smartchr/internal/session"
)

// MappingsReloadedMsg reports that the mapping source changed.
type MappingsReloadedMsg struct {
	Count int
}

// ReloadErrorMsg reports a failed mapping reload.
type ReloadErrorMsg struct {
	Err error
}

// Model implements the Bubble Tea editor UI.
type Model struct {
	sess     *session.Session
	filePath string
	log      *slog.Logger
	now      func() time.Time

	keys keyMap
	help help.Model

	width  int
	height int

	last   *lastActivation
	status string
}

type lastActivation struct {
	trigger  rune
	inserted string
	replaced bool
	start    int
}

var (
	textStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	candidateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	cursorStyle    = textStyle.Reverse(true)
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

// Option configures a Model.
type Option func(*Model)

// WithFile sets the path ctrl+s writes the buffer to.
func WithFile(path string) Option {
	return func(m *Model) { m.filePath = path }
}

// WithLogger sets the model logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock overrides the keystroke timestamp source.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

// NewModel constructs an editor model over sess.
func NewModel(sess *session.Session, opts ...Option) *Model {
	m := &Model{
		sess: sess,
		log:  slog.New(slog.DiscardHandler),
		now:  time.Now,
		keys: defaultKeyMap(),
		help: help.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case MappingsReloadedMsg:
		m.status = fmt.Sprintf("mappings reloaded (%d)", msg.Count)
		return m, nil
	case ReloadErrorMsg:
		m.status = errorStyle.Render(fmt.Sprintf("reload failed: %v", msg.Err))
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	buf := m.sess.Buffer()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Save):
		m.save()
	case key.Matches(msg, m.keys.Reset):
		m.sess.Engine().Reset()
		m.last = nil
		m.status = "cycle state cleared"
	case key.Matches(msg, m.keys.Left):
		buf.Move(-1)
	case key.Matches(msg, m.keys.Right):
		buf.Move(1)
	case key.Matches(msg, m.keys.Home):
		buf.SetCursor(lineStart(buf.Runes(), buf.Cursor()))
	case key.Matches(msg, m.keys.End):
		buf.SetCursor(lineEnd(buf.Runes(), buf.Cursor()))
	case key.Matches(msg, m.keys.Backspace):
		buf.Backspace()
	case key.Matches(msg, m.keys.Enter):
		m.typeRunes([]rune{'\n'})
	case key.Matches(msg, m.keys.Tab):
		m.typeRunes([]rune{'\t'})
	case msg.Type == tea.KeySpace:
		m.typeRunes([]rune{' '})
	case msg.Type == tea.KeyRunes:
		if msg.Paste {
			buf.Insert(string(msg.Runes))
			return m, nil
		}
		m.typeRunes(msg.Runes)
	}
	return m, nil
}

func (m *Model) typeRunes(runes []rune) {
	for _, r := range runes {
		out, err := m.sess.Type(r, m.now())
		if err != nil {
			m.log.Error("failed to type character", "char", string(r), "err", err)
			m.status = errorStyle.Render(err.Error())
			continue
		}
		if !out.Cycled {
			continue
		}
		start := out.Action.InsertOffset
		m.last = &lastActivation{
			trigger:  r,
			inserted: out.Action.InsertText,
			replaced: out.Replace,
			start:    start,
		}
		m.status = ""
	}
}

func (m *Model) save() {
	if m.filePath == "" {
		m.status = errorStyle.Render("no file to save to")
		return
	}
	if err := os.WriteFile(m.filePath, []byte(m.sess.Buffer().String()), 0o644); err != nil {
		m.log.Error("failed to save buffer", "path", m.filePath, "err", err)
		m.status = errorStyle.Render(fmt.Sprintf("save failed: %v", err))
		return
	}
	m.status = fmt.Sprintf("saved %s", m.filePath)
}

// View implements tea.Model.
func (m *Model) View() string {
	buf := m.sess.Buffer()
	styled := buildStyledRunes(buf.Runes(), buf.Cursor(), m.highlight())
	if m.width == 0 || m.height == 0 {
		return renderStyledRunes(styled)
	}
	contentWidth := max(1, int(float64(m.width)*0.80))
	content := lipgloss.NewStyle().Width(contentWidth).Render(wrapStyledRunes(styled, contentWidth))
	footer := m.renderFooter()
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	bodyHeight := m.height - 2
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Top, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	helpLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, m.help.View(m.keys))
	return body + "\n" + footerLine + "\n" + helpLine
}

// highlight returns the range of the last candidate while it is still intact.
func (m *Model) highlight() highlight {
	if m.last == nil {
		return highlight{}
	}
	end := m.last.start + len([]rune(m.last.inserted))
	got, ok := m.sess.Buffer().Slice(m.last.start, end)
	if !ok || got != m.last.inserted {
		return highlight{}
	}
	return highlight{start: m.last.start, end: end}
}

func (m *Model) renderFooter() string {
	ctx := m.sess.Context()
	active := 0
	for _, mp := range m.sess.Engine().Mappings() {
		if mp.Enabled() && mp.MatchesContext(ctx) {
			active++
		}
	}
	if ctx == "" {
		ctx = "(none)"
	}
	segments := []string{
		fmt.Sprintf("Context %s", ctx),
		fmt.Sprintf("%d mappings", active),
	}
	if m.last != nil {
		verb := "inserted"
		if m.last.replaced {
			verb = "cycled"
		}
		segments = append(segments, fmt.Sprintf("%s %q %s", string(m.last.trigger), m.last.inserted, verb))
	}
	footer := footerStyle.Render(strings.Join(segments, " · "))
	if m.status != "" {
		footer += "  " + m.status
	}
	return footer
}

func lineStart(text []rune, cursor int) int {
	for i := min(cursor, len(text)) - 1; i >= 0; i-- {
		if text[i] == '\n' {
			return i + 1
		}
	}
	return 0
}

func lineEnd(text []rune, cursor int) int {
	for i := max(cursor, 0); i < len(text); i++ {
		if text[i] == '\n' {
			return i
		}
	}
	return len(text)
}
