package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Editor.Context != nil || cfg.Log.Level != nil {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestLoadConfigValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[editor]
context = "Go"
source = "store"
history = false
timeout = "1500ms"

[log]
level = "debug"
format = "json"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Editor.Context == nil || *cfg.Editor.Context != "Go" {
		t.Fatalf("unexpected context: %v", cfg.Editor.Context)
	}
	if cfg.Editor.Source == nil || *cfg.Editor.Source != "store" {
		t.Fatalf("unexpected source: %v", cfg.Editor.Source)
	}
	if cfg.Editor.History == nil || *cfg.Editor.History {
		t.Fatalf("expected history=false")
	}
	if cfg.Editor.Timeout == nil || *cfg.Editor.Timeout != "1500ms" {
		t.Fatalf("unexpected timeout: %v", cfg.Editor.Timeout)
	}
	if cfg.Editor.Mappings != nil {
		t.Fatalf("expected unset mappings path")
	}
	if cfg.Log.Level == nil || *cfg.Log.Level != "debug" || cfg.Log.Format == nil || *cfg.Log.Format != "json" {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[editor]\ncontxt = \"Go\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestDefaultPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")
	t.Setenv("XDG_STATE_HOME", "/state")

	cases := map[string]string{
		DefaultConfigPath():   filepath.Join("/cfg", "smartchr", "config.toml"),
		DefaultMappingsPath(): filepath.Join("/cfg", "smartchr", "mappings.json"),
		DefaultDBPath():       filepath.Join("/data", "smartchr", "smartchr.db"),
		DefaultLogPath():      filepath.Join("/state", "smartchr", "smartchr.log"),
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}

func TestContextForPath(t *testing.T) {
	cases := map[string]string{
		"main.go":          "Go",
		"src/App.JAVA":     "JAVA",
		"README.md":        "Markdown",
		"build.gradle.kts": "Kotlin",
		"Makefile":         "",
		"notes.unknown":    "",
	}
	for path, want := range cases {
		if got := ContextForPath(path); got != want {
			t.Fatalf("%s: expected %q, got %q", path, want, got)
		}
	}
}
