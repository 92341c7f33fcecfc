package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"error":    slog.LevelError,
		" WARN ":   slog.LevelWarn,
		"warning":  slog.LevelWarn,
		"info":     slog.LevelInfo,
		"debug":    slog.LevelDebug,
		"verbose?": slog.LevelDebug,
	}
	for in, want := range cases {
		if got := levelFromString(in); got != want {
			t.Errorf("levelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewWriterFormats(t *testing.T) {
	t.Parallel()

	var text bytes.Buffer
	NewWriter(&text, "info", "text").Debug("hidden")
	NewWriter(&text, "info", "").Info("cycle complete", "matched", 3)
	if strings.Contains(text.String(), "hidden") || !strings.Contains(text.String(), "matched=3") {
		t.Fatalf("unexpected text output: %q", text.String())
	}

	var js bytes.Buffer
	NewWriter(&js, "debug", "JSON").Info("cycle complete", "matched", 3)
	var entry map[string]any
	if err := json.Unmarshal(js.Bytes(), &entry); err != nil {
		t.Fatalf("json output not decodable: %v", err)
	}
	if entry["msg"] != "cycle complete" || entry["matched"] != float64(3) {
		t.Fatalf("unexpected json entry: %v", entry)
	}
}
