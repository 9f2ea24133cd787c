package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	l, err := newWithWriter(Config{Level: "warn", Format: "json"}, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	l.Info().Msg("dropped")
	c := Component(l, "aggregator")
	c.Warn().Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line above the level, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["component"] != "aggregator" || entry["service"] != "weather-dataset-aggregator" || entry["message"] != "kept" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewWithWriterConsole(t *testing.T) {
	var buf bytes.Buffer
	l, err := newWithWriter(Config{Format: "console"}, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l.Info().Msg("hello")
	if !strings.Contains(buf.String(), "hello") || strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("unexpected console output %q", buf.String())
	}
}

func TestNewWithWriterRejectsBadConfig(t *testing.T) {
	if _, err := newWithWriter(Config{Level: "loud"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := newWithWriter(Config{Format: "xml"}, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
