package slogutil

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("Indexing run complete", "files", 12, "changed", 3)

	line := buf.String()
	if !strings.Contains(line, "[info] Indexing run complete") {
		t.Errorf("missing level/message: %q", line)
	}
	if !strings.Contains(line, "| files=12 changed=3") {
		t.Errorf("missing attrs: %q", line)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Errorf("missing trailing newline: %q", line)
	}
}

func TestHandlerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Info("hidden")
	logger.Debug("also hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("below-level records written: %q", out)
	}
	if !strings.Contains(out, "[warn] shown") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("msg", "error", "file not found")

	if !strings.Contains(buf.String(), `error="file not found"`) {
		t.Errorf("value not quoted: %q", buf.String())
	}
}

func TestHandlerWithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo).With("run", "r1").WithGroup("scan")

	logger.Info("msg", "files", 4)

	line := buf.String()
	if !strings.Contains(line, "run=r1") {
		t.Errorf("With attr missing: %q", line)
	}
	if !strings.Contains(line, "scan.files=4") {
		t.Errorf("group prefix missing: %q", line)
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := LevelFromString(tt.in); got != tt.want {
			t.Errorf("LevelFromString(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDiscardLogger(t *testing.T) {
	logger := NewDiscardLogger()
	logger.Error("never seen")
}
