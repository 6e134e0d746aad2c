package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type logEntry struct {
	Level    string `json:"level"`
	Msg      string `json:"msg"`
	Identity string `json:"identity"`
	Error    string `json:"error"`
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) logEntry {
	t.Helper()
	var entry logEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to unmarshal log entry: %v", err)
	}
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	t.Run("debug not logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		if buf.Len() > 0 {
			t.Error("Debug message should not be logged at Info level")
		}
	})

	t.Run("info logged as JSON", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")

		entry := decodeEntry(t, &buf)
		if entry.Level != "info" {
			t.Errorf("Expected level info, got %s", entry.Level)
		}
		if entry.Msg != "info message" {
			t.Errorf("Expected message 'info message', got %s", entry.Msg)
		}
	})

	t.Run("error logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Error("error message")
		if buf.Len() == 0 {
			t.Error("Error message should be logged at Info level")
		}
	})
}

func TestLogger_WithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.WithField("identity", "eos_1").WithError(errors.New("boom")).Warn("failed")

	entry := decodeEntry(t, &buf)
	if entry.Identity != "eos_1" {
		t.Errorf("Expected identity eos_1, got %s", entry.Identity)
	}
	if entry.Error != "boom" {
		t.Errorf("Expected error boom, got %s", entry.Error)
	}
	if entry.Level != "warning" {
		t.Errorf("Expected level warning, got %s", entry.Level)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"debug":   DebugLevel,
		"DEBUG":   DebugLevel,
		"info":    InfoLevel,
		"warn":    WarnLevel,
		"warning": WarnLevel,
		" error ": ErrorLevel,
		"":        InfoLevel,
		"verbose": InfoLevel,
	}

	for input, want := range tests {
		if got := ParseLogLevel(input); got != want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Expected %s, got %s", tt.expected, got)
		}
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()

	if GetRequestID(ctx) != "" {
		t.Error("Expected empty request ID")
	}
	if GetIdentity(ctx) != "" {
		t.Error("Expected empty identity")
	}

	var buf bytes.Buffer
	ctx = WithLogger(ctx, NewLogger(InfoLevel, &buf))
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithIdentity(ctx, "eos_2")

	if GetRequestID(ctx) != "req-1" {
		t.Errorf("Expected request ID req-1, got %s", GetRequestID(ctx))
	}

	FromContext(ctx).Info("command executed")

	entry := decodeEntry(t, &buf)
	if entry.Identity != "eos_2" {
		t.Errorf("Expected identity eos_2, got %s", entry.Identity)
	}
}
