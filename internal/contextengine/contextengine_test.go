package contextengine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentcore/internal/contextengine"
)

func TestInMemory_PutGetRoundTripsPerSession(t *testing.T) {
	e := contextengine.New()
	require.NoError(t, e.Initialize(context.Background()))

	require.NoError(t, e.Put(context.Background(), "session-1", "last_tool", "echo"))
	require.NoError(t, e.Put(context.Background(), "session-2", "last_tool", "search"))

	value, ok, err := e.Get(context.Background(), "session-1", "last_tool")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "echo", value)

	value, ok, err = e.Get(context.Background(), "session-2", "last_tool")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "search", value)
}

func TestInMemory_GetMissingKeyReportsNotFound(t *testing.T) {
	e := contextengine.New()
	require.NoError(t, e.Initialize(context.Background()))

	_, ok, err := e.Get(context.Background(), "session-1", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInMemory_RejectsUseBeforeInitialize(t *testing.T) {
	e := contextengine.New()
	err := e.Put(context.Background(), "session-1", "key", "value")
	assert.Error(t, err)
}

func TestInMemory_CloseRejectsFurtherUse(t *testing.T) {
	e := contextengine.New()
	require.NoError(t, e.Initialize(context.Background()))
	require.NoError(t, e.Close(context.Background()))

	err := e.Put(context.Background(), "session-1", "key", "value")
	assert.Error(t, err)
}
