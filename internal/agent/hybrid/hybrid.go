// Package hybrid implements HybridAgent (spec §4.J): the orchestrator that
// unifies ToolAgent's direct dispatch, LLMAgent's conversation management,
// parallel tool execution, collaboration and recovery into one
// single-turn task loop.
package hybrid

import (
	"context"
	"regexp"
	"sync"
	"time"

	"goa.design/agentcore/internal/agent"
	"goa.design/agentcore/internal/capabilities"
	"goa.design/agentcore/internal/llm"
	"goa.design/agentcore/internal/model"
	"goa.design/agentcore/internal/observation"
	"goa.design/agentcore/internal/parallel"
	"goa.design/agentcore/internal/registry"
	"goa.design/agentcore/internal/telemetry"
	"goa.design/agentcore/internal/toolerrors"
	"goa.design/agentcore/internal/tools"
)

// Task is one unit of work submitted to the agent: either a direct tool
// call (Tool+Operation set) or an LLM-assisted task (Description only).
type Task struct {
	TaskID      string
	TaskType    string
	Description string
	Tool        string
	Operation   string
	Parameters  map[string]any
	Context     []capabilities.ContextItem
}

// Result is the outcome of one Agent.Execute call.
type Result struct {
	Success        bool
	Output         any
	ToolCallsCount int
	ToolResults    []any
	Observations   []observation.Observation
}

// Agent is a HybridAgent.
type Agent struct {
	*agent.BaseAgent

	registry  *registry.Registry
	llmClient llm.Client
	peers     *agent.Registry
	toolNames []string

	cache      *capabilities.CacheMixin
	contextSel *capabilities.ContextMixin
	learning   *capabilities.LearningMixin
	tokenUsage *capabilities.ResourceMixin
	callUsage  *capabilities.ResourceMixin

	maxIterations      int
	maxConcurrentTasks int
	maxConcurrentCalls int
	learningEnabled    bool
	systemPrompt       string

	parallelEngine *parallel.Engine
	logger         telemetry.Logger
}

// Option configures an Agent.
type Option func(*Agent)

func WithLLMClient(c llm.Client) Option         { return func(a *Agent) { a.llmClient = c } }
func WithPeerRegistry(r *agent.Registry) Option { return func(a *Agent) { a.peers = r } }
func WithToolNames(names ...string) Option      { return func(a *Agent) { a.toolNames = names } }
func WithSystemPrompt(p string) Option          { return func(a *Agent) { a.systemPrompt = p } }
func WithMaxIterations(n int) Option            { return func(a *Agent) { a.maxIterations = n } }
func WithMaxConcurrentCalls(n int) Option       { return func(a *Agent) { a.maxConcurrentCalls = n } }
func WithLearningEnabled(enabled bool) Option   { return func(a *Agent) { a.learningEnabled = enabled } }
func WithContextSelection(minRelevance float64, preserveTypes []string, maxTokens int) Option {
	return func(a *Agent) { a.contextSel = capabilities.NewContextMixin(minRelevance, preserveTypes, maxTokens) }
}
func WithResourceLimits(maxConcurrentTasks, maxTokensPerMinute, maxToolCallsPerMinute int) Option {
	return func(a *Agent) {
		a.maxConcurrentTasks = maxConcurrentTasks
		a.tokenUsage = capabilities.NewResourceMixin(time.Minute, maxTokensPerMinute)
		a.callUsage = capabilities.NewResourceMixin(time.Minute, maxToolCallsPerMinute)
	}
}
func WithLogger(l telemetry.Logger) Option { return func(a *Agent) { a.logger = l } }

// New constructs a HybridAgent bound to reg for tool dispatch.
func New(reg *registry.Registry, opts ...Option) *Agent {
	a := &Agent{
		registry:           reg,
		cache:              capabilities.NewCacheMixin(),
		contextSel:         capabilities.NewContextMixin(0.1, nil, 4000),
		learning:           capabilities.NewLearningMixin(),
		tokenUsage:         capabilities.NewResourceMixin(time.Minute, 0),
		callUsage:          capabilities.NewResourceMixin(time.Minute, 0),
		maxIterations:      5,
		maxConcurrentTasks: 10,
		maxConcurrentCalls: 5,
		logger:             telemetry.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.parallelEngine = parallel.New(parallel.WithMaxConcurrentTasks(a.maxConcurrentCalls), parallel.WithLogger(a.logger))
	a.BaseAgent = agent.New(agent.WithLogger(a.logger), agent.WithCapabilities("tool_execution", "llm_reasoning", "collaboration"))
	if a.peers != nil {
		a.peers.Register(a)
	}
	return a
}

// Execute runs one task to completion: the direct path when task.Tool is
// set, otherwise the LLM-driven reasoning/tool/feedback loop.
func (a *Agent) Execute(ctx context.Context, task Task) *model.ExecutionResult {
	execCtx := model.NewExecutionContext("")
	execCtx.InputData = map[string]any{"task_id": task.TaskID, "description": task.Description}

	start := time.Now()
	result := a.BaseAgent.Execute(ctx, execCtx, func(ctx context.Context) (any, error) {
		if task.Tool != "" {
			return a.runDirect(ctx, task)
		}
		return a.runLoop(ctx, task)
	})

	if a.learningEnabled {
		a.learning.Record(capabilities.Experience{
			TaskType: task.TaskType,
			Success:  result.Success,
			Duration: time.Since(start),
			Recorded: time.Now(),
		})
	}
	return result
}

func (a *Agent) runDirect(ctx context.Context, task Task) (*Result, error) {
	value, err := a.registry.Invoke(ctx, task.Tool, task.Operation, task.Parameters, registry.InvokeOptions{TaskID: task.TaskID})
	if err != nil {
		return nil, err
	}
	return &Result{Success: true, Output: value, ToolCallsCount: 1, ToolResults: []any{value}}, nil
}

func (a *Agent) runLoop(ctx context.Context, task Task) (*Result, error) {
	messages := a.assemblePrompt(task)
	schemas := a.toolSchemas()

	var allResults []any
	var observations []observation.Observation
	toolCallsCount := 0

	for iteration := 0; iteration < a.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req := llm.Request{Messages: messages, Tools: schemas}
		chunks, err := a.llmClient.StreamText(ctx, req)
		if err != nil {
			return nil, toolerrors.Wrap(toolerrors.CodeLLM, "hybrid: llm stream failed", err)
		}

		var content string
		var calls []llm.ToolCall
		for chunk := range chunks {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			content += chunk.TokenDelta
			if chunk.ToolCall != nil {
				calls = append(calls, *chunk.ToolCall)
			}
			if chunk.Done {
				a.tokenUsage.Record(time.Now(), chunk.InputTokens+chunk.OutputTokens)
			}
		}

		if len(calls) == 0 {
			return &Result{
				Success:        true,
				Output:         content,
				ToolCallsCount: toolCallsCount,
				ToolResults:    allResults,
				Observations:   observations,
			}, nil
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: content, ToolCalls: calls})
		toolCallsCount += len(calls)

		results, obs, err := a.executeToolsParallel(ctx, task.TaskID, calls)
		if err != nil {
			return nil, err
		}
		observations = append(observations, obs...)
		for i, call := range calls {
			allResults = append(allResults, results[i])
			messages = append(messages, llm.Message{Role: llm.RoleTool, ToolCallID: call.ID, Content: renderToolResult(results[i])})
		}
	}

	return &Result{
		Success:        true,
		Output:         "max iterations reached",
		ToolCallsCount: toolCallsCount,
		ToolResults:    allResults,
		Observations:   observations,
	}, nil
}

func (a *Agent) assemblePrompt(task Task) []llm.Message {
	var messages []llm.Message
	if a.systemPrompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: a.systemPrompt})
	}
	for _, item := range a.contextSel.Select(task.Description, task.Context) {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: item.Type + ": " + item.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: task.Description})
	return messages
}

func (a *Agent) toolSchemas() []llm.ToolSchema {
	var out []llm.ToolSchema
	for _, name := range a.toolNames {
		t, ok := a.registry.Get(name)
		if !ok {
			continue
		}
		for _, op := range t.DescribeOperations() {
			full := name + "." + op
			if sp, ok := t.(tools.SchemaProvider); ok {
				if opSchema, ok := sp.OperationSchema(op); ok {
					out = append(out, llm.ToolSchema{Name: full, Description: opSchema.Description})
					continue
				}
			}
			out = append(out, llm.ToolSchema{Name: full, Description: op + " operation of " + name})
		}
	}
	return out
}

func renderToolResult(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return observation.Observation{Result: v, Success: true}.ToText()
}

// resultRefPattern matches "${result.<call-id>.<path>}" references one
// tool call's arguments can make into an earlier call's result, mirroring
// internal/dslengine's convention so callers see one resolution syntax
// across the DSL and agent layers.
var resultRefPattern = regexp.MustCompile(`\$\{result\.([A-Za-z0-9_]+)(\.[A-Za-z0-9_.]+)?\}`)

// executeToolsParallel runs calls through ParallelEngine: calls whose
// arguments reference another call's id via ${result.<id>...} depend on
// that call; everything else runs in the same batch, each call first
// consulting the per-agent cache.
func (a *Agent) executeToolsParallel(ctx context.Context, taskID string, calls []llm.ToolCall) ([]any, []observation.Observation, error) {
	shared := map[string]any{}
	var sharedMu sync.Mutex

	results := make([]any, len(calls))
	observations := make([]observation.Observation, len(calls))

	nodes := make([]parallel.TaskNode, len(calls))
	for i, call := range calls {
		i, call := i, call
		nodes[i] = parallel.TaskNode{
			TaskID:       call.ID,
			Dependencies: dependenciesOf(call, calls),
			Run: parallel.TaskRunnerFunc(func(ctx context.Context) (any, error) {
				sharedMu.Lock()
				args := resolveArgs(call.Arguments, shared)
				sharedMu.Unlock()

				toolName, op := splitToolCall(call.Name)
				cacheKey := registry.CanonicalKey(toolName, op, args, "", taskID)
				start := time.Now()

				if cached, hit := a.cache.Get(cacheKey); hit {
					obs := observation.New(toolName, args, cached, start)
					results[i] = cached
					observations[i] = obs

					sharedMu.Lock()
					shared[call.ID] = cached
					sharedMu.Unlock()
					return cached, nil
				}

				a.callUsage.Record(time.Now(), 1)
				value, err := a.registry.Invoke(ctx, toolName, op, args, registry.InvokeOptions{TaskID: taskID})
				if err != nil {
					observations[i] = observation.NewFailed(toolName, args, err, start)
					return nil, err
				}
				a.cache.Put(cacheKey, value, 0)
				results[i] = value
				observations[i] = observation.New(toolName, args, value, start)

				sharedMu.Lock()
				shared[call.ID] = value
				sharedMu.Unlock()
				return value, nil
			}),
		}
	}

	if _, err := a.parallelEngine.Execute(ctx, taskID, nodes); err != nil {
		return results, observations, err
	}
	return results, observations, nil
}

func dependenciesOf(call llm.ToolCall, all []llm.ToolCall) []string {
	ids := make(map[string]bool, len(all))
	for _, c := range all {
		ids[c.ID] = true
	}
	seen := map[string]bool{}
	var deps []string
	for _, v := range call.Arguments {
		s, ok := v.(string)
		if !ok {
			continue
		}
		for _, m := range resultRefPattern.FindAllStringSubmatch(s, -1) {
			id := m[1]
			if ids[id] && id != call.ID && !seen[id] {
				seen[id] = true
				deps = append(deps, id)
			}
		}
	}
	return deps
}

func resolveArgs(args map[string]any, shared map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		s, ok := v.(string)
		if !ok {
			out[k] = v
			continue
		}
		match := resultRefPattern.FindStringSubmatch(s)
		if match != nil && match[0] == s {
			out[k] = shared[match[1]]
			continue
		}
		out[k] = resultRefPattern.ReplaceAllStringFunc(s, func(raw string) string {
			m := resultRefPattern.FindStringSubmatch(raw)
			if val, ok := shared[m[1]]; ok {
				return toString(val)
			}
			return raw
		})
	}
	return out
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return observation.Observation{Result: v}.ToText()
}

func splitToolCall(name string) (tool, op string) {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i], name[i+1:]
		}
	}
	return name, ""
}
