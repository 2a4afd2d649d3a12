package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

type captureWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.Write(p)
}

func (c *captureWriter) Sync() error { return nil }

func (c *captureWriter) lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw := strings.TrimSpace(c.buf.String())
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "\n")
}

func newCapturedLogger(level Level) (*Logger, *captureWriter) {
	//1.- Build a logger with an in-memory sink so tests can inspect emitted JSON.
	writer := &captureWriter{}
	logger := &Logger{
		level:  level,
		writer: writer,
		fields: map[string]any{"service": "sculptor"},
	}
	return logger, writer
}

func TestLoggerEmitsStructuredJSON(t *testing.T) {
	logger, writer := newCapturedLogger(InfoLevel)
	//1.- Emit a message with mixed field types and decode the resulting line.
	logger.Info("frame published", Int("points", 4000), String("shape", "galaxy"))
	lines := writer.lines()
	if len(lines) != 1 {
		t.Fatalf("expected one log line, got %d", len(lines))
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &payload); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	//2.- Confirm the baseline fields and attached attributes survive marshalling.
	if payload["message"] != "frame published" {
		t.Fatalf("unexpected message %v", payload["message"])
	}
	if payload["service"] != "sculptor" {
		t.Fatalf("expected service field, got %v", payload["service"])
	}
	if payload["level"] != "info" {
		t.Fatalf("expected info level, got %v", payload["level"])
	}
	if payload["points"] != float64(4000) {
		t.Fatalf("expected points field, got %v", payload["points"])
	}
}

func TestLoggerFiltersBelowConfiguredLevel(t *testing.T) {
	logger, writer := newCapturedLogger(WarnLevel)
	//1.- Messages below the configured threshold must be suppressed.
	logger.Debug("ignored")
	logger.Info("ignored too")
	logger.Warn("kept")
	lines := writer.lines()
	if len(lines) != 1 {
		t.Fatalf("expected one line after filtering, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "kept") {
		t.Fatalf("surviving line should be the warning, got %q", lines[0])
	}
}

func TestWithDerivesIndependentLogger(t *testing.T) {
	logger, writer := newCapturedLogger(InfoLevel)
	//1.- Derive a child logger and confirm the parent's field set is untouched.
	child := logger.With(String("client_id", "abc"))
	child.Info("child message")
	logger.Info("parent message")
	lines := writer.lines()
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "client_id") {
		t.Fatalf("child line should carry client_id: %q", lines[0])
	}
	if strings.Contains(lines[1], "client_id") {
		t.Fatalf("parent line should not carry client_id: %q", lines[1])
	}
}

func TestParseLevelAcceptsAliases(t *testing.T) {
	cases := map[string]Level{
		"":        InfoLevel,
		"debug":   DebugLevel,
		"warning": WarnLevel,
		"ERROR":   ErrorLevel,
	}
	for raw, want := range cases {
		got, err := parseLevel(raw)
		if err != nil {
			t.Fatalf("parseLevel(%q) returned error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
	if _, err := parseLevel("verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
