package agent_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentcore/internal/agent"
	"goa.design/agentcore/internal/model"
)

func TestBaseAgent_InitializeReachesActive(t *testing.T) {
	a := agent.New()
	require.NoError(t, a.Initialize(context.Background()))
	assert.Equal(t, agent.StateActive, a.State())
}

func TestBaseAgent_IllegalTransitionRejected(t *testing.T) {
	a := agent.New()
	err := a.Transition(agent.StateBusy)
	var te *agent.TransitionError
	require.ErrorAs(t, err, &te)
}

func TestBaseAgent_ExecuteRunsHooksAndRecordsResult(t *testing.T) {
	var pre, post bool
	var hookErr error
	a := agent.New(agent.WithHooks(agent.Hooks{
		PreExecution:  []agent.Hook{func(ctx context.Context, execCtx *model.ExecutionContext) error { pre = true; return nil }},
		PostExecution: []agent.Hook{func(ctx context.Context, execCtx *model.ExecutionContext) error { post = true; return nil }},
		OnError:       []agent.ErrorHook{func(ctx context.Context, execCtx *model.ExecutionContext, cause error) { hookErr = cause }},
	}))
	require.NoError(t, a.Initialize(context.Background()))

	execCtx := model.NewExecutionContext("")
	result := a.Execute(context.Background(), execCtx, func(ctx context.Context) (any, error) {
		return "value", nil
	})

	assert.True(t, pre)
	assert.True(t, post)
	assert.Nil(t, hookErr)
	assert.True(t, result.Success)
	assert.Equal(t, model.StatusCompleted, result.Status)
	assert.Equal(t, "value", result.Result)
	assert.NotEmpty(t, execCtx.ExecutionID)
}

func TestBaseAgent_ExecuteRunsOnErrorHookWithoutAbortingResult(t *testing.T) {
	var hookErr error
	a := agent.New(agent.WithHooks(agent.Hooks{
		OnError: []agent.ErrorHook{func(ctx context.Context, execCtx *model.ExecutionContext, cause error) { hookErr = cause }},
	}))
	require.NoError(t, a.Initialize(context.Background()))

	result := a.Execute(context.Background(), model.NewExecutionContext(""), func(ctx context.Context) (any, error) {
		return nil, fmt.Errorf("boom")
	})

	require.Error(t, hookErr)
	assert.False(t, result.Success)
	assert.Equal(t, model.StatusFailed, result.Status)
}

func TestBaseAgent_HookPanicDoesNotAbortExecution(t *testing.T) {
	a := agent.New(agent.WithHooks(agent.Hooks{
		PreExecution: []agent.Hook{func(ctx context.Context, execCtx *model.ExecutionContext) error {
			panic("hook exploded")
		}},
	}))
	require.NoError(t, a.Initialize(context.Background()))

	result := a.Execute(context.Background(), model.NewExecutionContext(""), func(ctx context.Context) (any, error) {
		return "survived", nil
	})

	assert.True(t, result.Success)
	assert.Equal(t, "survived", result.Result)
}

func TestBaseAgent_ShutdownCancelsRunningExecutions(t *testing.T) {
	a := agent.New()
	require.NoError(t, a.Initialize(context.Background()))

	started := make(chan struct{})
	cancelled := make(chan struct{})
	go a.Execute(context.Background(), model.NewExecutionContext(""), func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	})

	<-started
	require.NoError(t, a.Shutdown(context.Background()))
	<-cancelled
	assert.Equal(t, agent.StateTerminated, a.State())
	assert.True(t, a.Cancelled())
}
