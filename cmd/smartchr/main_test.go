package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/smartchr/internal/cycle"
	"github.com/verte-zerg/smartchr/internal/model"
	"github.com/verte-zerg/smartchr/internal/session"
)

func newTrySession(ctx string) *session.Session {
	provider := cycle.NewStaticProvider(
		model.MustMapping('=', []string{"=", " = ", " == "}, model.Loop, nil, true),
		model.MustMapping('.', []string{".", "->"}, model.OneOf, []string{"C"}, true),
	)
	return session.New(cycle.NewEngine(provider), "", ctx)
}

func TestReplayKeysFastCycles(t *testing.T) {
	var buf bytes.Buffer
	sess := newTrySession("Go")
	if err := replayKeys(&buf, sess, "a==", time.Unix(0, 0), 100*time.Millisecond, false); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if got := buf.String(); got != "a = \n" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestReplayKeysSlowInsertsFresh(t *testing.T) {
	var buf bytes.Buffer
	sess := newTrySession("Go")
	if err := replayKeys(&buf, sess, "==", time.Unix(0, 0), 3*time.Second, false); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if got := buf.String(); got != "==\n" {
		t.Fatalf("unexpected output: %q", got)
	}
}

func TestReplayKeysVerbose(t *testing.T) {
	var buf bytes.Buffer
	sess := newTrySession("C")
	if err := replayKeys(&buf, sess, "p..", time.Unix(0, 0), 100*time.Millisecond, true); err != nil {
		t.Fatalf("replay: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "insert") {
		t.Fatalf("expected pass-through step: %q", lines[0])
	}
	if !strings.Contains(lines[1], "start") {
		t.Fatalf("expected first activation step: %q", lines[1])
	}
	if !strings.Contains(lines[2], `cycle  -> "->"`) {
		t.Fatalf("expected cycle step: %q", lines[2])
	}
	if lines[3] != "p->" {
		t.Fatalf("unexpected final text: %q", lines[3])
	}
}

func TestFileRepo(t *testing.T) {
	ctx := context.Background()
	repo := fileRepo{path: filepath.Join(t.TempDir(), "mappings.yaml")}

	got, err := repo.List(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty list for missing file, got %v (%v)", got, err)
	}
	for _, m := range []model.Mapping{
		model.MustMapping('=', []string{"=", " = "}, model.Loop, nil, true),
		model.MustMapping('#', []string{"#", "## "}, model.OneOf, []string{"Markdown"}, true),
	} {
		if err := repo.Add(ctx, m); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if removed, err := repo.Remove(ctx, 5); err != nil || removed {
		t.Fatalf("expected out-of-range remove to be ignored, got %v (%v)", removed, err)
	}
	if removed, err := repo.Remove(ctx, 0); err != nil || !removed {
		t.Fatalf("expected remove, got %v (%v)", removed, err)
	}
	got, err = repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Trigger() != '#' {
		t.Fatalf("unexpected mappings: %v", got)
	}
	if err := repo.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	got, err = repo.List(ctx)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty list after reset, got %v (%v)", got, err)
	}
}

func TestFormatMapping(t *testing.T) {
	m := model.MustMapping('=', []string{"=", " == "}, model.OneOf, []string{"Go", "C"}, false)
	want := `0: "=" ONE_OF ["=", " == "] in Go,C (disabled)`
	if got := formatMapping(0, m); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestDefaultConfigTemplateDecodes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
		t.Fatalf("write template: %v", err)
	}
	cmd := newRootCmd()
	configPath = path
	t.Cleanup(func() { configPath = "" })
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if err := loadSettings(cmd); err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if editSource != defaultSource || editTimeout != cycle.DefaultTimeout {
		t.Fatalf("unexpected defaults: source=%q timeout=%v", editSource, editTimeout)
	}
}
