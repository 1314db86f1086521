// Package toolagent implements ToolAgent (spec §4.H): an agent.BaseAgent
// that dispatches tool calls directly, or lets an llm.Client decide which
// tool to call via function-calling schemas derived from the registry's
// tool catalog.
package toolagent

import (
	"context"
	"fmt"

	"goa.design/agentcore/internal/agent"
	"goa.design/agentcore/internal/llm"
	"goa.design/agentcore/internal/model"
	"goa.design/agentcore/internal/registry"
	"goa.design/agentcore/internal/telemetry"
	"goa.design/agentcore/internal/tools"
	"goa.design/agentcore/internal/toolerrors"
)

// EventKind discriminates a StreamEvent's payload.
type EventKind string

// Event kinds, emitted in this relative order within one turn.
const (
	EventStatus     EventKind = "status"
	EventToken      EventKind = "token"
	EventToolCalls  EventKind = "tool_calls"
	EventToolCall   EventKind = "tool_call"
	EventToolResult EventKind = "tool_result"
	EventResult     EventKind = "result"
)

// StreamEvent is one element of a ToolAgent turn's event stream.
type StreamEvent struct {
	Kind      EventKind
	Status    string
	Token     string
	ToolCalls []llm.ToolCall
	ToolCall  llm.ToolCall
	Result    any
	Err       error
}

// Agent is a ToolAgent: BaseAgent lifecycle plumbed into direct tool
// dispatch and LLM-assisted tool selection.
type Agent struct {
	*agent.BaseAgent
	registry  *registry.Registry
	llmClient llm.Client
	toolNames []string
	logger    telemetry.Logger
}

// Option configures an Agent.
type Option func(*Agent)

// WithLLMClient installs the client used for the LLM-assisted path.
func WithLLMClient(c llm.Client) Option { return func(a *Agent) { a.llmClient = c } }

// WithToolNames restricts function-calling schema derivation to the named
// tools. When no names are set, no schemas are derived and the LLM is
// offered no tools.
func WithToolNames(names ...string) Option { return func(a *Agent) { a.toolNames = names } }

// WithLogger sets the agent's logger.
func WithLogger(l telemetry.Logger) Option { return func(a *Agent) { a.logger = l } }

// New constructs a ToolAgent bound to reg for tool dispatch.
func New(reg *registry.Registry, opts ...Option) *Agent {
	a := &Agent{
		registry: reg,
		logger:   telemetry.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.BaseAgent = agent.New(agent.WithLogger(a.logger), agent.WithCapabilities("tool_execution"))
	return a
}

// InvokeDirect runs one tool operation through the Registry, tracked as a
// BaseAgent execution.
func (a *Agent) InvokeDirect(ctx context.Context, toolName, operation string, params map[string]any, invokeOpts registry.InvokeOptions) *model.ExecutionResult {
	execCtx := model.NewExecutionContext("")
	execCtx.InputData = map[string]any{"tool": toolName, "operation": operation, "parameters": params}
	return a.Execute(ctx, execCtx, func(ctx context.Context) (any, error) {
		return a.registry.Invoke(ctx, toolName, operation, params, invokeOpts)
	})
}

// Run drives one LLM-assisted turn: streams a completion with function
// schemas for the agent's tools, executes any tool calls the model
// requests, and emits the full event union over the returned channel. The
// channel is always closed by Run, even on error (the last event carries
// Err).
func (a *Agent) Run(ctx context.Context, messages []llm.Message, invokeOpts registry.InvokeOptions) <-chan StreamEvent {
	out := make(chan StreamEvent, 8)
	if a.llmClient == nil {
		go func() {
			defer close(out)
			out <- StreamEvent{Kind: EventResult, Err: toolerrors.New(toolerrors.CodeLLM, "toolagent: no llm.Client configured")}
		}()
		return out
	}

	go func() {
		defer close(out)
		out <- StreamEvent{Kind: EventStatus, Status: "thinking"}

		req := llm.Request{Messages: messages, Tools: a.schemas()}
		chunks, err := a.llmClient.StreamText(ctx, req)
		if err != nil {
			out <- StreamEvent{Kind: EventResult, Err: toolerrors.Wrap(toolerrors.CodeLLM, "toolagent: stream start failed", err)}
			return
		}

		var text string
		var calls []llm.ToolCall
		for chunk := range chunks {
			if chunk.TokenDelta != "" {
				text += chunk.TokenDelta
				out <- StreamEvent{Kind: EventToken, Token: chunk.TokenDelta}
			}
			if chunk.ToolCall != nil {
				calls = append(calls, *chunk.ToolCall)
			}
			if ctx.Err() != nil {
				out <- StreamEvent{Kind: EventResult, Err: ctx.Err()}
				return
			}
		}

		if len(calls) == 0 {
			out <- StreamEvent{Kind: EventResult, Result: text}
			return
		}

		out <- StreamEvent{Kind: EventToolCalls, ToolCalls: calls}
		results := make([]any, 0, len(calls))
		for _, call := range calls {
			out <- StreamEvent{Kind: EventToolCall, ToolCall: call}
			toolName, operation := call.Name, operationOf(call)
			if operation != call.Name {
				toolName = call.Name[:len(call.Name)-len(operation)-1]
			}
			result, err := a.registry.Invoke(ctx, toolName, operation, call.Arguments, invokeOpts)
			if err != nil {
				out <- StreamEvent{Kind: EventToolResult, ToolCall: call, Err: err}
				continue
			}
			results = append(results, result)
			out <- StreamEvent{Kind: EventToolResult, ToolCall: call, Result: result}
		}
		out <- StreamEvent{Kind: EventResult, Result: results}
	}()
	return out
}

// operationOf recovers the operation name a ToolCall targets. Provider
// function-calling APIs name a single callable function per tool
// operation (e.g. "file.read"); the convention here is "tool.operation".
func operationOf(call llm.ToolCall) string {
	for i := len(call.Name) - 1; i >= 0; i-- {
		if call.Name[i] == '.' {
			return call.Name[i+1:]
		}
	}
	return call.Name
}

// schemas derives llm.ToolSchema entries for every configured tool's
// operations, using tools.SchemaProvider when the tool implements it. For
// other tools the entry carries only the name and a generated description,
// with no parameter schema; internal/tools/reflectschema is not consulted.
func (a *Agent) schemas() []llm.ToolSchema {
	var out []llm.ToolSchema
	for _, name := range a.toolNames {
		t, ok := a.registry.Get(name)
		if !ok {
			continue
		}
		for _, op := range t.DescribeOperations() {
			full := fmt.Sprintf("%s.%s", name, op)
			if sp, ok := t.(tools.SchemaProvider); ok {
				if opSchema, ok := sp.OperationSchema(op); ok {
					out = append(out, llm.ToolSchema{
						Name:        full,
						Description: opSchema.Description,
						Parameters:  parametersOf(opSchema),
					})
					continue
				}
			}
			out = append(out, llm.ToolSchema{Name: full, Description: fmt.Sprintf("%s operation of %s", op, name)})
		}
	}
	return out
}

func parametersOf(s *tools.OperationSchema) map[string]any {
	props := map[string]any{}
	var required []string
	for name, field := range s.Parameters {
		props[name] = map[string]any{"type": field.Type, "description": field.Description}
		if field.Required {
			required = append(required, name)
		}
	}
	return map[string]any{"type": "object", "properties": props, "required": required}
}
