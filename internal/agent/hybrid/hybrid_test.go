package hybrid_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentcore/internal/agent"
	"goa.design/agentcore/internal/agent/hybrid"
	"goa.design/agentcore/internal/llm"
	"goa.design/agentcore/internal/registry"
)

type echoTool struct{}

func (echoTool) Name() string                { return "echo" }
func (echoTool) DescribeOperations() []string { return []string{"say"} }
func (echoTool) ValidateParams(string, map[string]any) (bool, string) { return true, "" }
func (echoTool) Run(_ context.Context, _ string, params map[string]any) (any, error) {
	return params["text"], nil
}

func newRegistry() *registry.Registry {
	reg := registry.New()
	reg.Register("echo", echoTool{})
	return reg
}

func TestAgent_ExecuteDirectPath(t *testing.T) {
	a := hybrid.New(newRegistry())
	require.NoError(t, a.Initialize(context.Background()))

	result := a.Execute(context.Background(), hybrid.Task{
		Tool: "echo", Operation: "say", Parameters: map[string]any{"text": "hi"},
	})

	require.True(t, result.Success)
	out := result.Result.(*hybrid.Result)
	assert.Equal(t, "hi", out.Output)
	assert.Equal(t, 1, out.ToolCallsCount)
}

func TestAgent_ExecuteLLMLoopWithNoToolCallsReturnsContent(t *testing.T) {
	fixture := &llm.Fixture{Responses: []llm.Response{{Content: "the answer"}}}
	a := hybrid.New(newRegistry(), hybrid.WithLLMClient(fixture))
	require.NoError(t, a.Initialize(context.Background()))

	result := a.Execute(context.Background(), hybrid.Task{Description: "what is the answer"})

	require.True(t, result.Success)
	out := result.Result.(*hybrid.Result)
	assert.Equal(t, "the answer", out.Output)
}

func TestAgent_ExecuteLLMLoopRunsToolCallsAndFeedsBack(t *testing.T) {
	fixture := &llm.Fixture{Responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "echo.say", Arguments: map[string]any{"text": "first"}}}},
		{Content: "done"},
	}}
	a := hybrid.New(newRegistry(), hybrid.WithLLMClient(fixture), hybrid.WithToolNames("echo"))
	require.NoError(t, a.Initialize(context.Background()))

	result := a.Execute(context.Background(), hybrid.Task{Description: "say first then stop"})

	require.True(t, result.Success)
	out := result.Result.(*hybrid.Result)
	assert.Equal(t, "done", out.Output)
	assert.Equal(t, 1, out.ToolCallsCount)
	require.Len(t, out.Observations, 1)
	assert.True(t, out.Observations[0].Success)
}

func TestAgent_ExecuteLLMLoopStopsAtMaxIterations(t *testing.T) {
	call := llm.ToolCall{ID: "c1", Name: "echo.say", Arguments: map[string]any{"text": "again"}}
	fixture := &llm.Fixture{Responses: []llm.Response{
		{ToolCalls: []llm.ToolCall{call}},
		{ToolCalls: []llm.ToolCall{call}},
	}}
	a := hybrid.New(newRegistry(), hybrid.WithLLMClient(fixture), hybrid.WithToolNames("echo"), hybrid.WithMaxIterations(2))
	require.NoError(t, a.Initialize(context.Background()))

	result := a.Execute(context.Background(), hybrid.Task{Description: "loop forever"})

	require.True(t, result.Success)
	out := result.Result.(*hybrid.Result)
	assert.Equal(t, "max iterations reached", out.Output)
}

func TestAgent_DelegateTaskRoutesThroughRegistry(t *testing.T) {
	peers := agent.NewRegistry()
	worker := hybrid.New(newRegistry(), hybrid.WithPeerRegistry(peers))
	require.NoError(t, worker.Initialize(context.Background()))

	caller := hybrid.New(newRegistry(), hybrid.WithPeerRegistry(peers))
	require.NoError(t, caller.Initialize(context.Background()))

	result, err := caller.DelegateTask(context.Background(), hybrid.Task{
		Tool: "echo", Operation: "say", Parameters: map[string]any{"text": "delegated"},
	}, worker.ID())

	require.NoError(t, err)
	assert.Equal(t, "delegated", result.Output)
}

func TestAgent_CollaborateOnTaskConsensusPicksMajority(t *testing.T) {
	peers := agent.NewRegistry()
	reg := newRegistry()
	var workerIDs []string
	for i := 0; i < 3; i++ {
		w := hybrid.New(reg, hybrid.WithPeerRegistry(peers))
		require.NoError(t, w.Initialize(context.Background()))
		workerIDs = append(workerIDs, w.ID())
	}

	caller := hybrid.New(reg, hybrid.WithPeerRegistry(peers))
	require.NoError(t, caller.Initialize(context.Background()))

	results, err := caller.CollaborateOnTask(context.Background(), hybrid.Task{
		Tool: "echo", Operation: "say", Parameters: map[string]any{"text": "same"},
	}, workerIDs, hybrid.StrategyConsensus)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "same", results[0].Output)
}

func TestAgent_ExecuteWithRecoveryFallsBackToConfiguredTool(t *testing.T) {
	reg := registry.New()
	reg.Register("broken", brokenTool{})
	reg.Register("echo", echoTool{})
	a := hybrid.New(reg)
	require.NoError(t, a.Initialize(context.Background()))

	result, err := a.ExecuteWithRecovery(context.Background(), hybrid.Task{
		Tool: "broken", Operation: "say", Parameters: map[string]any{"text": "hi"},
	}, hybrid.RecoveryOptions{Strategies: []hybrid.RecoveryStrategy{hybrid.RecoveryFallback}, FallbackTool: "echo"})

	require.NoError(t, err)
	assert.Equal(t, "hi", result.Output)
}

type brokenTool struct{}

func (brokenTool) Name() string                { return "broken" }
func (brokenTool) DescribeOperations() []string { return []string{"say"} }
func (brokenTool) ValidateParams(string, map[string]any) (bool, string) { return true, "" }
func (brokenTool) Run(context.Context, string, map[string]any) (any, error) {
	return nil, fmt.Errorf("always fails")
}
