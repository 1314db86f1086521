// Package llmagent implements LLMAgent (spec §4.I): a thin agent.BaseAgent
// wrapper around an llm.Client that owns the conversation list and feeds
// consumed tokens into a sliding-window token accountant.
package llmagent

import (
	"context"
	"time"

	"goa.design/agentcore/internal/agent"
	"goa.design/agentcore/internal/capabilities"
	"goa.design/agentcore/internal/llm"
	"goa.design/agentcore/internal/model"
	"goa.design/agentcore/internal/telemetry"
	"goa.design/agentcore/internal/toolerrors"
)

// Agent is an LLMAgent: BaseAgent lifecycle around an llm.Client-backed
// conversation.
type Agent struct {
	*agent.BaseAgent
	client      llm.Client
	messages    []llm.Message
	maxTokens   int
	temperature float64
	tokens      *capabilities.ResourceMixin
	logger      telemetry.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithSystemPrompt seeds the conversation with a system message.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) { a.messages = append(a.messages, llm.Message{Role: llm.RoleSystem, Content: prompt}) }
}

// WithMaxTokens sets the max_tokens passed to every request.
func WithMaxTokens(n int) Option { return func(a *Agent) { a.maxTokens = n } }

// WithTemperature sets the temperature passed to every request.
func WithTemperature(t float64) Option { return func(a *Agent) { a.temperature = t } }

// WithTokenBudget bounds token spend to budget tokens per window; a
// StreamText that would exceed the budget fails fast with CodeResourceExhausted.
func WithTokenBudget(window time.Duration, budget int) Option {
	return func(a *Agent) { a.tokens = capabilities.NewResourceMixin(window, budget) }
}

// WithLogger sets the agent's logger.
func WithLogger(l telemetry.Logger) Option { return func(a *Agent) { a.logger = l } }

// New constructs an LLMAgent bound to client.
func New(client llm.Client, opts ...Option) *Agent {
	a := &Agent{client: client, logger: telemetry.NewNoopLogger()}
	for _, opt := range opts {
		opt(a)
	}
	a.BaseAgent = agent.New(agent.WithLogger(a.logger), agent.WithCapabilities("text_generation"))
	return a
}

// Messages returns a copy of the conversation so far.
func (a *Agent) Messages() []llm.Message {
	out := make([]llm.Message, len(a.messages))
	copy(out, a.messages)
	return out
}

// Say appends a user message, streams the assistant's reply, appends it to
// the conversation, and returns the full reply text once the stream
// completes or ctx is cancelled.
func (a *Agent) Say(ctx context.Context, content string) *model.ExecutionResult {
	a.messages = append(a.messages, llm.Message{Role: llm.RoleUser, Content: content})
	execCtx := model.NewExecutionContext("")
	execCtx.InputData = map[string]any{"content": content}

	return a.Execute(ctx, execCtx, func(ctx context.Context) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if a.tokens != nil && a.tokens.WouldExceed(time.Now(), a.maxTokens) {
			return nil, toolerrors.New(toolerrors.CodeResourceExhausted, "llmagent: token budget exhausted")
		}

		req := llm.Request{Messages: a.messages, MaxTokens: a.maxTokens, Temperature: a.temperature}
		chunks, err := a.client.StreamText(ctx, req)
		if err != nil {
			return nil, toolerrors.Wrap(toolerrors.CodeLLM, "llmagent: stream start failed", err)
		}

		var reply string
		for chunk := range chunks {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			reply += chunk.TokenDelta
			if chunk.Done {
				if a.tokens != nil {
					a.tokens.Record(time.Now(), chunk.InputTokens+chunk.OutputTokens)
				}
			}
		}

		a.messages = append(a.messages, llm.Message{Role: llm.RoleAssistant, Content: reply})
		return reply, nil
	})
}
