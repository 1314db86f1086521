package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusTimedOut.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusPaused.Terminal())
}

func TestTaskWithParametersPreservesOriginal(t *testing.T) {
	original := Task{TaskID: "t1", Parameters: map[string]any{"a": 1}}
	updated := original.WithParameters(map[string]any{"b": 2})

	assert.Equal(t, map[string]any{"a": 1}, original.Parameters)
	assert.Equal(t, map[string]any{"b": 2}, updated.Parameters)
	assert.Equal(t, "t1", updated.TaskID)
}

func TestNewExecutionContextInitializesMaps(t *testing.T) {
	ctx := NewExecutionContext("exec-1")

	require.NotNil(t, ctx.InputData)
	require.NotNil(t, ctx.SharedData)
	require.NotNil(t, ctx.Variables)
	assert.Equal(t, "exec-1", ctx.ExecutionID)
}

func TestExecutionPlanValidateAcceptsValidDAG(t *testing.T) {
	plan := &ExecutionPlan{
		Steps: []string{"a", "b", "c"},
		Dependencies: map[string][]string{
			"b": {"a"},
			"c": {"b"},
		},
	}
	assert.NoError(t, plan.Validate())
}

func TestExecutionPlanValidateRejectsUnknownStep(t *testing.T) {
	plan := &ExecutionPlan{
		Steps:        []string{"a"},
		Dependencies: map[string][]string{"missing": {"a"}},
	}
	err := plan.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown step")
}

func TestExecutionPlanValidateRejectsUnknownDependency(t *testing.T) {
	plan := &ExecutionPlan{
		Steps:        []string{"a"},
		Dependencies: map[string][]string{"a": {"missing"}},
	}
	err := plan.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dependency")
}

func TestExecutionPlanValidateRejectsCycle(t *testing.T) {
	plan := &ExecutionPlan{
		Steps: []string{"a", "b"},
		Dependencies: map[string][]string{
			"a": {"b"},
			"b": {"a"},
		},
	}
	err := plan.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}
