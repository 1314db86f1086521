package llmagent_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goa.design/agentcore/internal/agent/llmagent"
	"goa.design/agentcore/internal/llm"
)

func TestAgent_SayAppendsReplyToConversation(t *testing.T) {
	fixture := &llm.Fixture{Responses: []llm.Response{{Content: "hello there", InputTokens: 3, OutputTokens: 2}}}
	a := llmagent.New(fixture, llmagent.WithSystemPrompt("be terse"))
	require.NoError(t, a.Initialize(context.Background()))

	result := a.Say(context.Background(), "hi")

	require.True(t, result.Success)
	assert.Equal(t, "hello there", result.Result)

	msgs := a.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, llm.RoleUser, msgs[1].Role)
	assert.Equal(t, llm.RoleAssistant, msgs[2].Role)
	assert.Equal(t, "hello there", msgs[2].Content)
}

func TestAgent_SayFailsFastOverTokenBudget(t *testing.T) {
	fixture := &llm.Fixture{Responses: []llm.Response{{Content: "ignored"}}}
	a := llmagent.New(fixture, llmagent.WithTokenBudget(time.Minute, 10), llmagent.WithMaxTokens(20))
	require.NoError(t, a.Initialize(context.Background()))

	result := a.Say(context.Background(), "hi")

	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "token budget")
}

func TestAgent_SayObservesCancelledContext(t *testing.T) {
	fixture := &llm.Fixture{Responses: []llm.Response{{Content: "a long reply that streams token by token"}}}
	a := llmagent.New(fixture)
	require.NoError(t, a.Initialize(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := a.Say(ctx, "hi")

	assert.False(t, result.Success)
	assert.Equal(t, "CANCELLED", string(result.Status))
}
