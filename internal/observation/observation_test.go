package observation

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecordsSuccess(t *testing.T) {
	start := time.Now()
	obs := New("echo", map[string]any{"text": "hi"}, "hi", start)

	assert.Equal(t, "echo", obs.ToolName)
	assert.True(t, obs.Success)
	assert.Empty(t, obs.Err)
	assert.GreaterOrEqual(t, obs.ExecutionTimeMS, 0.0)
}

func TestNewFailedRecordsError(t *testing.T) {
	start := time.Now()
	obs := NewFailed("echo", map[string]any{"text": "hi"}, errors.New("boom"), start)

	assert.False(t, obs.Success)
	assert.Equal(t, "boom", obs.Err)
	assert.Nil(t, obs.Result)
}

func TestToMapRoundTripsFields(t *testing.T) {
	obs := New("echo", map[string]any{"text": "hi"}, "hi", time.Now())
	m := obs.ToMap()

	require.Equal(t, "echo", m["tool_name"])
	require.Equal(t, "hi", m["result"])
	require.Equal(t, true, m["success"])
	_, err := time.Parse(time.RFC3339Nano, m["timestamp"].(string))
	require.NoError(t, err)
}

func TestToTextReflectsFailure(t *testing.T) {
	obs := NewFailed("echo", nil, errors.New("boom"), time.Now())
	text := obs.ToText()

	assert.Contains(t, text, "Status: FAILURE")
	assert.Contains(t, text, "Result: boom")
	assert.Contains(t, text, "Tool: echo")
}

func TestToTextReflectsSuccess(t *testing.T) {
	obs := New("echo", nil, "ok", time.Now())
	text := obs.ToText()

	assert.Contains(t, text, "Status: SUCCESS")
	assert.Contains(t, text, "Result: ok")
}
