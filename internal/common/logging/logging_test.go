package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, level LogLevel) (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: level, Output: &buf, Name: "test"})
	require.NoError(t, err)
	return logger, &buf
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"WARNING", WarnLevel},
		{"error", ErrorLevel},
		{"bogus", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestZapLogger_Levels(t *testing.T) {
	logger, buf := newBufferLogger(t, WarnLevel)

	logger.Debug("debug message")
	logger.Info("info message")
	assert.Empty(t, buf.String())

	logger.Warn("warn message", String("component", "cache"))
	assert.Contains(t, buf.String(), "warn message")
	assert.Contains(t, buf.String(), "cache")
}

func TestZapLogger_ErrorField(t *testing.T) {
	logger, buf := newBufferLogger(t, InfoLevel)

	logger.Error("operation failed", errors.New("boom"), String("key", "user:1"))

	out := buf.String()
	assert.Contains(t, out, "operation failed")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "user:1")
}

func TestZapLogger_WithFields(t *testing.T) {
	logger, buf := newBufferLogger(t, InfoLevel)

	child := logger.WithFields(String("tier", "l1"), Int("max_size", 100))
	child.Info("ready")

	out := buf.String()
	assert.Contains(t, out, "l1")
	assert.Contains(t, out, "ready")
}

func TestGlobalLogger(t *testing.T) {
	logger, buf := newBufferLogger(t, InfoLevel)
	SetGlobalLogger(logger)

	Info("global message", Bool("enabled", true))
	assert.Contains(t, buf.String(), "global message")
}
