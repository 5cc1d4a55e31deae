package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNew_JSONFieldsAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "warn", "json")

	l.Info().Msg("hidden")
	l.Warn().Fields([]any{"stage", "generating_topics", "attempt", 2}).Msg("retrying")

	out := strings.TrimSpace(buf.String())
	if strings.Contains(out, "hidden") {
		t.Fatalf("info message should be filtered at warn level: %s", out)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(out), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, out)
	}
	if entry["message"] != "retrying" {
		t.Errorf("expected message 'retrying', got %v", entry["message"])
	}
	if entry["stage"] != "generating_topics" {
		t.Errorf("expected stage field, got %v", entry["stage"])
	}
	if entry["attempt"] != float64(2) {
		t.Errorf("expected attempt 2, got %v", entry["attempt"])
	}
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, "chatty", "json")

	l.Debug().Msg("debug line")
	l.Info().Msg("info line")

	if strings.Contains(buf.String(), "debug line") {
		t.Error("debug should be filtered when level falls back to info")
	}
	if !strings.Contains(buf.String(), "info line") {
		t.Error("info line should be written")
	}
}

func TestConfigure_ReplacesDefault(t *testing.T) {
	var buf bytes.Buffer
	Configure("debug", "json", &buf)

	Error("store write failed", errors.New("disk full"), "key", "ledger.topics")

	out := buf.String()
	if !strings.Contains(out, "disk full") || !strings.Contains(out, "ledger.topics") {
		t.Errorf("expected error and key fields in output, got %s", out)
	}
}
