package checkpoint_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentcore/internal/checkpoint"
)

func TestInMemory_SaveAndLoadByID(t *testing.T) {
	c := checkpoint.New()

	id, err := c.SaveCheckpoint(context.Background(), "agent-1", "session-1", map[string]any{"step": 1})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	data, err := c.LoadCheckpoint(context.Background(), "agent-1", "session-1", id)
	require.NoError(t, err)
	assert.Equal(t, 1, data["step"])
}

func TestInMemory_LoadWithEmptyIDReturnsMostRecent(t *testing.T) {
	c := checkpoint.New()

	_, err := c.SaveCheckpoint(context.Background(), "agent-1", "session-1", map[string]any{"step": 1})
	require.NoError(t, err)
	_, err = c.SaveCheckpoint(context.Background(), "agent-1", "session-1", map[string]any{"step": 2})
	require.NoError(t, err)

	data, err := c.LoadCheckpoint(context.Background(), "agent-1", "session-1", "")
	require.NoError(t, err)
	assert.Equal(t, 2, data["step"])
}

func TestInMemory_ListCheckpointsReturnsInsertionOrder(t *testing.T) {
	c := checkpoint.New()

	id1, _ := c.SaveCheckpoint(context.Background(), "agent-1", "session-1", map[string]any{"step": 1})
	id2, _ := c.SaveCheckpoint(context.Background(), "agent-1", "session-1", map[string]any{"step": 2})

	ids, err := c.ListCheckpoints(context.Background(), "agent-1", "session-1")
	require.NoError(t, err)
	assert.Equal(t, []string{id1, id2}, ids)
}

func TestInMemory_LoadUnknownIDFails(t *testing.T) {
	c := checkpoint.New()
	_, err := c.SaveCheckpoint(context.Background(), "agent-1", "session-1", map[string]any{"step": 1})
	require.NoError(t, err)

	_, err = c.LoadCheckpoint(context.Background(), "agent-1", "session-1", "does-not-exist")
	assert.Error(t, err)
}

func TestInMemory_ScopesBySessionAndAgent(t *testing.T) {
	c := checkpoint.New()
	_, err := c.SaveCheckpoint(context.Background(), "agent-1", "session-1", map[string]any{"step": 1})
	require.NoError(t, err)

	_, err = c.LoadCheckpoint(context.Background(), "agent-2", "session-1", "")
	assert.Error(t, err)
}
