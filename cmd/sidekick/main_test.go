package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dellis86/sidekick/internal/infrastructure/config"
	"github.com/dellis86/sidekick/internal/journal"
)

// TestResolveConfigPath_Default verifies the built-in config path.
func TestResolveConfigPath_Default(t *testing.T) {
	t.Setenv("SIDEKICK_CONFIG", "")
	os.Unsetenv("SIDEKICK_CONFIG") //nolint:errcheck

	if got := resolveConfigPath(""); got != defaultConfigPath {
		t.Errorf("resolveConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}

// TestResolveConfigPath_EnvOverride verifies SIDEKICK_CONFIG wins over
// the default but not the flag.
func TestResolveConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("SIDEKICK_CONFIG", "/env/sidekick.yaml")

	if got := resolveConfigPath(""); got != "/env/sidekick.yaml" {
		t.Errorf("resolveConfigPath() = %q, want env value", got)
	}
	if got := resolveConfigPath("/flag/sidekick.yaml"); got != "/flag/sidekick.yaml" {
		t.Errorf("resolveConfigPath() = %q, want flag value", got)
	}
}

// TestLoadConfig_MissingFileUsesDefaults verifies zero-config startup.
func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("SIDEKICK_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig() error = %v, want defaults", err)
	}
	if cfg.Backend.URL != config.DefaultBackendURL {
		t.Errorf("backend url = %q, want %q", cfg.Backend.URL, config.DefaultBackendURL)
	}
}

// TestLoadConfig_ExplicitMissingFileFails verifies an explicit flag path
// must exist.
func TestLoadConfig_ExplicitMissingFileFails(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("loadConfig() should fail for an explicit missing path")
	}
}

// TestLoadConfig_ReadsFile verifies a present file is parsed.
func TestLoadConfig_ReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sidekick.yaml")
	content := "backend:\n  url: http://127.0.0.1:9999\n  module: forge_server\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Backend.URL != "http://127.0.0.1:9999" {
		t.Errorf("backend url = %q, want file value", cfg.Backend.URL)
	}
}

// TestVersionCommand verifies the version line includes the build info.
func TestVersionCommand(t *testing.T) {
	cmd := newVersionCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command error = %v", err)
	}
	if !strings.Contains(buf.String(), version) {
		t.Errorf("version output %q missing version %q", buf.String(), version)
	}
}

func TestShortSession(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2f1c9a3e-0000-0000-0000-000000000000", "2f1c9a3e"},
		{"plain", "plain"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := shortSession(tt.in); got != tt.want {
			t.Errorf("shortSession(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// TestPrintStatusText verifies the human-readable status rendering.
func TestPrintStatusText(t *testing.T) {
	body := []byte(`{
		"session_id": "abc-123",
		"version": "1.2.3",
		"base_url": "http://127.0.0.1:8765",
		"uptime_seconds": 61,
		"backend": {"running": true, "started_by_us": true, "pid": 4242},
		"stream": {"state": "open", "url": "ws://127.0.0.1:8765/ws", "reconnect_attempts": 0}
	}`)

	var buf bytes.Buffer
	printStatusText(&buf, body)
	out := buf.String()

	for _, want := range []string{"abc-123", "1.2.3", "pid 4242", "spawned by us", "open", "ws://127.0.0.1:8765/ws"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
}

// TestPrintStatusText_MalformedFallsBack verifies unparseable bodies are
// printed verbatim.
func TestPrintStatusText_MalformedFallsBack(t *testing.T) {
	var buf bytes.Buffer
	printStatusText(&buf, []byte("not json"))
	if !strings.Contains(buf.String(), "not json") {
		t.Errorf("raw body not passed through: %q", buf.String())
	}
}

// TestPrintHistoryText verifies journal entries render one per line.
func TestPrintHistoryText(t *testing.T) {
	cmd := newHistoryCommand(new(string))
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	printHistoryText(cmd, []journal.Entry{
		{
			SessionID: "2f1c9a3e-0000-0000-0000-000000000000",
			Kind:      journal.KindTaskFailed,
			TaskID:    "t-7",
			Detail:    "boom",
			CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		},
	})
	out := buf.String()

	for _, want := range []string{"task_failed", "session=2f1c9a3e", "task=t-7", "boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("history output missing %q:\n%s", want, out)
		}
	}
}

// TestPrintHistoryText_Empty verifies the empty-journal message.
func TestPrintHistoryText_Empty(t *testing.T) {
	cmd := newHistoryCommand(new(string))
	var buf bytes.Buffer
	cmd.SetOut(&buf)

	printHistoryText(cmd, nil)
	if !strings.Contains(buf.String(), "no events recorded") {
		t.Errorf("empty journal message missing: %q", buf.String())
	}
}
