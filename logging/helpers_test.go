package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPanic_WithStack(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: "json", Output: &buf})

	Panic(l, errors.New("boom"), "engine.run.panic", "run_id", "run-1")

	out := buf.String()
	assert.Contains(t, out, `"msg":"engine.run.panic"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, "stack_trace")
	assert.Contains(t, out, `"run_id":"run-1"`)
}

func TestPanic_PlainLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, nil)))

	Panic(l, errors.New("boom"), "tool.call.panic")

	out := buf.String()
	assert.Contains(t, out, "msg=tool.call.panic")
	assert.Contains(t, out, "error=boom")
	assert.NotContains(t, out, "stack_trace")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("debug"))
	assert.Equal(t, LogLevelError, ParseLevel("ERROR"))
	assert.Equal(t, LogLevelInfo, ParseLevel("bogus"))
}
