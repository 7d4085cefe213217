package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertions)
var (
	_ Logger = (*SlogAdapter)(nil)
	_ Logger = NoOpLogger{}
	_ Logger = (*RuntimeLogger)(nil)
)

func TestOrNoOp(t *testing.T) {
	assert.IsType(t, NoOpLogger{}, OrNoOp(nil))
	l := NewDefaultSlogLogger()
	assert.Same(t, l, OrNoOp(l))
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestRuntimeLogger_ContextualFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewRuntimeLogger(&RuntimeConfig{Format: "json", Output: &buf, Component: "router"})

	l.WithRequest("req-1", "pred-1").Info("route decision", "action", "predict_outcome")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "router", lines[0]["component"])
	assert.Equal(t, "req-1", lines[0]["request_id"])
	assert.Equal(t, "pred-1", lines[0]["agent_id"])
	assert.Equal(t, "predict_outcome", lines[0]["action"])
}

func TestRuntimeLogger_WithComponentClones(t *testing.T) {
	var buf bytes.Buffer
	base := NewRuntimeLogger(&RuntimeConfig{Format: "json", Output: &buf})
	scoped := base.WithComponent("memory")

	base.Info("one")
	scoped.Info("two")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.NotContains(t, lines[0], "component")
	assert.Equal(t, "memory", lines[1]["component"])
}

func TestRuntimeLogger_LogAgentCall(t *testing.T) {
	var buf bytes.Buffer
	l := NewRuntimeLogger(&RuntimeConfig{Format: "json", Output: &buf})

	l.LogAgentCall("pred-1", "predict_outcome", 20*time.Millisecond, nil)
	l.LogAgentCall("pred-1", "predict_outcome", 20*time.Millisecond, errors.New("boom"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, true, lines[0]["success"])
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, false, lines[1]["success"])
	assert.Equal(t, "ERROR", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error"])
}
