package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_RejectsUnknownSettings(t *testing.T) {
	if _, err := New(Config{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}

	if _, err := New(Config{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestNew_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkout.log")

	l, err := New(Config{Level: "debug", Format: "json", File: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	l.With("session", "s-1").LogInfo("quote fetched for %s", "u1")
	_ = l.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}

	if !strings.Contains(string(raw), "quote fetched for u1") || !strings.Contains(string(raw), `"session":"s-1"`) {
		t.Errorf("unexpected log output %s", raw)
	}
}
