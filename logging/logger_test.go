package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ Logger = (*StructuredLogger)(nil)
	_ Logger = NoOpLogger{}
	_ Logger = (*SlogAdapter)(nil)
)

func newBufferLogger(level LogLevel) (*StructuredLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	cfg.Output = buf
	return NewLogger(cfg), buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal(line, &m))
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LogLevelDebug, false},
		{"INFO", LogLevelInfo, false},
		{"", LogLevelInfo, false},
		{"warning", LogLevelWarn, false},
		{"error", LogLevelError, false},
		{"loud", LogLevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStructuredLogger_KeyValues(t *testing.T) {
	l, buf := newBufferLogger(LogLevelDebug)
	l.WithComponent("guardian").WithSession("s-1").Debug("guardian.response", "turn", 3)

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "guardian.response", lines[0]["msg"])
	assert.Equal(t, "guardian", lines[0]["component"])
	assert.Equal(t, "s-1", lines[0]["session_id"])
	assert.EqualValues(t, 3, lines[0]["turn"])
}

func TestStructuredLogger_LevelFilter(t *testing.T) {
	l, buf := newBufferLogger(LogLevelWarn)
	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
}

func TestStructuredLogger_WithContextDoesNotLeak(t *testing.T) {
	base, buf := newBufferLogger(LogLevelInfo)
	child := base.WithContext("k", "v")
	base.Info("base")
	child.Info("child")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "k")
	assert.Equal(t, "v", lines[1]["k"])
}

func TestStructuredLogger_ErrorWithStack(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)
	l.ErrorWithStack(errors.New("boom"), "session_state.failed", "operation", "save_state")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "boom", lines[0]["error"])
	assert.Equal(t, "save_state", lines[0]["operation"])
	assert.Contains(t, lines[0]["stack_trace"], "goroutine")
}

func TestStructuredLogger_LogToolCall(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)
	l.LogToolCall("session_state", time.Millisecond, true, nil)
	l.LogToolCall("session_state", time.Millisecond, false, errors.New("bad"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "Tool execution completed", lines[0]["msg"])
	assert.Equal(t, "Tool execution failed", lines[1]["msg"])
	assert.Equal(t, "bad", lines[1]["error"])
}

func TestOrNoOp(t *testing.T) {
	assert.Equal(t, NoOpLogger{}, OrNoOp(nil))
	l, _ := newBufferLogger(LogLevelInfo)
	assert.Same(t, l, OrNoOp(l))
}
