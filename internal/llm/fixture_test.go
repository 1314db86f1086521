package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixtureCompleteReplaysResponsesInOrder(t *testing.T) {
	f := &Fixture{Responses: []Response{
		{Content: "first"},
		{Content: "second"},
	}}

	r1, err := f.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "first", r1.Content)

	r2, err := f.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "second", r2.Content)

	r3, err := f.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "stop", r3.FinishReason)

	assert.Len(t, f.Requests, 3)
}

func TestFixtureCompleteReturnsScriptedError(t *testing.T) {
	f := &Fixture{Err: errors.New("provider down")}
	_, err := f.Complete(context.Background(), Request{})
	assert.EqualError(t, err, "provider down")
}

func TestFixtureStreamTextEmitsTokensThenDone(t *testing.T) {
	f := &Fixture{Responses: []Response{{Content: "hi", FinishReason: "stop"}}}

	ch, err := f.StreamText(context.Background(), Request{})
	require.NoError(t, err)

	var tokens []string
	var done bool
	for chunk := range ch {
		if chunk.Done {
			done = true
			assert.Equal(t, "stop", chunk.FinishReason)
			continue
		}
		tokens = append(tokens, chunk.TokenDelta)
	}

	assert.True(t, done)
	assert.Equal(t, []string{"h", "i"}, tokens)
}

func TestFixtureStreamTextRespectsCancellation(t *testing.T) {
	f := &Fixture{Responses: []Response{{Content: "a very long response to stream"}}}
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := f.StreamText(ctx, Request{})
	require.NoError(t, err)

	<-ch
	cancel()

	for range ch {
	}
}

func TestFixtureStreamTextEmitsToolCalls(t *testing.T) {
	f := &Fixture{Responses: []Response{{
		ToolCalls: []ToolCall{{ID: "1", Name: "echo"}},
	}}}

	ch, err := f.StreamText(context.Background(), Request{})
	require.NoError(t, err)

	var sawCall bool
	for chunk := range ch {
		if chunk.ToolCall != nil {
			sawCall = true
			assert.Equal(t, "echo", chunk.ToolCall.Name)
		}
	}
	assert.True(t, sawCall)
}
