package parallel_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentcore/internal/model"
	"goa.design/agentcore/internal/parallel"
)

func TestEngine_ExecutesInDependencyOrder(t *testing.T) {
	var order []string
	record := func(id string) parallel.TaskRunnerFunc {
		return func(ctx context.Context) (any, error) {
			order = append(order, id)
			return id, nil
		}
	}
	nodes := []parallel.TaskNode{
		{TaskID: "a", Run: record("a")},
		{TaskID: "b", Dependencies: []string{"a"}, Run: record("b")},
		{TaskID: "c", Dependencies: []string{"b"}, Run: record("c")},
	}

	engine := parallel.New()
	defer engine.Close(context.Background())
	results, err := engine.Execute(context.Background(), "exec-1", nodes)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.True(t, results["c"].Success)
}

func TestEngine_RunsIndependentTasksConcurrently(t *testing.T) {
	var running atomic.Int32
	var maxRunning atomic.Int32
	runner := parallel.TaskRunnerFunc(func(ctx context.Context) (any, error) {
		n := running.Add(1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		running.Add(-1)
		return nil, nil
	})
	nodes := []parallel.TaskNode{
		{TaskID: "a", Run: runner},
		{TaskID: "b", Run: runner},
		{TaskID: "c", Run: runner},
	}

	engine := parallel.New(parallel.WithMaxConcurrentTasks(3))
	defer engine.Close(context.Background())
	_, err := engine.Execute(context.Background(), "exec-2", nodes)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, maxRunning.Load(), int32(1))
}

func TestEngine_FailedTaskStillReportsResult(t *testing.T) {
	nodes := []parallel.TaskNode{
		{TaskID: "a", Run: parallel.TaskRunnerFunc(func(ctx context.Context) (any, error) {
			return nil, fmt.Errorf("boom")
		})},
	}

	engine := parallel.New()
	defer engine.Close(context.Background())
	results, err := engine.Execute(context.Background(), "exec-3", nodes)

	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, results["a"].Status)
	assert.Contains(t, results["a"].ErrorMessage, "boom")
}

func TestEngine_DeadlockOnMissingDependency(t *testing.T) {
	nodes := []parallel.TaskNode{
		{TaskID: "a", Dependencies: []string{"ghost"}, Run: parallel.TaskRunnerFunc(func(ctx context.Context) (any, error) {
			return nil, nil
		})},
	}

	engine := parallel.New()
	defer engine.Close(context.Background())
	_, err := engine.Execute(context.Background(), "exec-4", nodes)

	require.Error(t, err)
	var deadlock *parallel.DeadlockError
	require.ErrorAs(t, err, &deadlock)
}

func TestValidateExecutionPlan_DetectsCycle(t *testing.T) {
	nodes := []parallel.TaskNode{
		{TaskID: "a", Dependencies: []string{"b"}},
		{TaskID: "b", Dependencies: []string{"a"}},
	}

	issues := parallel.ValidateExecutionPlan(nodes)

	require.NotEmpty(t, issues)
}

func TestEngine_BlockingRunnerUsesWorkerPool(t *testing.T) {
	var ran bool
	nodes := []parallel.TaskNode{
		{TaskID: "a", Run: parallel.BlockingTaskRunnerFunc(func(ctx context.Context) (any, error) {
			ran = true
			return nil, nil
		})},
	}

	engine := parallel.New(parallel.WithWorkerPoolSize(1))
	defer engine.Close(context.Background())
	results, err := engine.Execute(context.Background(), "exec-5", nodes)

	require.NoError(t, err)
	assert.True(t, ran)
	assert.True(t, results["a"].Success)
}
