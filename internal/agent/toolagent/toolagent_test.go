package toolagent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentcore/internal/agent/toolagent"
	"goa.design/agentcore/internal/llm"
	"goa.design/agentcore/internal/registry"
)

type echoTool struct{}

func (echoTool) Name() string                     { return "echo" }
func (echoTool) DescribeOperations() []string      { return []string{"say"} }
func (echoTool) ValidateParams(string, map[string]any) (bool, string) { return true, "" }
func (echoTool) Run(_ context.Context, _ string, params map[string]any) (any, error) {
	return params["text"], nil
}

func newRegistry() *registry.Registry {
	reg := registry.New()
	reg.Register("echo", echoTool{})
	return reg
}

func TestAgent_InvokeDirect(t *testing.T) {
	a := toolagent.New(newRegistry())
	require.NoError(t, a.Initialize(context.Background()))

	result := a.InvokeDirect(context.Background(), "echo", "say", map[string]any{"text": "hi"}, registry.InvokeOptions{})

	assert.True(t, result.Success)
	assert.Equal(t, "hi", result.Result)
}

func TestAgent_RunWithoutLLMClientReturnsError(t *testing.T) {
	a := toolagent.New(newRegistry())
	require.NoError(t, a.Initialize(context.Background()))

	events := a.Run(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, registry.InvokeOptions{})

	var last toolagent.StreamEvent
	for e := range events {
		last = e
	}
	assert.Equal(t, toolagent.EventResult, last.Kind)
	require.Error(t, last.Err)
}

func TestAgent_RunExecutesRequestedToolCalls(t *testing.T) {
	fixture := &llm.Fixture{Responses: []llm.Response{{
		ToolCalls: []llm.ToolCall{{ID: "call-1", Name: "echo.say", Arguments: map[string]any{"text": "from llm"}}},
	}}}
	a := toolagent.New(newRegistry(), toolagent.WithLLMClient(fixture), toolagent.WithToolNames("echo"))
	require.NoError(t, a.Initialize(context.Background()))

	var kinds []toolagent.EventKind
	var toolResult any
	for e := range a.Run(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "say hi"}}, registry.InvokeOptions{}) {
		kinds = append(kinds, e.Kind)
		if e.Kind == toolagent.EventToolResult {
			toolResult = e.Result
		}
	}

	assert.Contains(t, kinds, toolagent.EventToolCalls)
	assert.Contains(t, kinds, toolagent.EventToolResult)
	assert.Equal(t, toolagent.EventResult, kinds[len(kinds)-1])
	assert.Equal(t, "from llm", toolResult)
}

func TestAgent_RunStreamsPlainTextWithNoToolCalls(t *testing.T) {
	fixture := &llm.Fixture{Responses: []llm.Response{{Content: "hi"}}}
	a := toolagent.New(newRegistry(), toolagent.WithLLMClient(fixture))
	require.NoError(t, a.Initialize(context.Background()))

	var tokens string
	var result any
	for e := range a.Run(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "say hi"}}, registry.InvokeOptions{}) {
		if e.Kind == toolagent.EventToken {
			tokens += e.Token
		}
		if e.Kind == toolagent.EventResult {
			result = e.Result
		}
	}

	assert.Equal(t, "hi", tokens)
	assert.Equal(t, "hi", result)
}
