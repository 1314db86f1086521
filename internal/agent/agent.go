// Package agent implements BaseAgent (spec §4.G): the lifecycle state
// machine, hook pipeline and execution bookkeeping shared by ToolAgent,
// LLMAgent and HybridAgent.
package agent

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"goa.design/agentcore/internal/model"
	"goa.design/agentcore/internal/telemetry"
)

// State is a BaseAgent lifecycle state.
type State string

// Lifecycle states.
const (
	StateCreated      State = "CREATED"
	StateInitializing State = "INITIALIZING"
	StateActive       State = "ACTIVE"
	StateBusy         State = "BUSY"
	StatePaused       State = "PAUSED"
	StateShuttingDown State = "SHUTTING_DOWN"
	StateTerminated   State = "TERMINATED"
)

// transitions enumerates the legal edges of the BaseAgent state machine.
var transitions = map[State][]State{
	StateCreated:      {StateInitializing, StateTerminated},
	StateInitializing: {StateActive, StateTerminated},
	StateActive:       {StateBusy, StatePaused, StateShuttingDown},
	StateBusy:         {StateActive, StateShuttingDown},
	StatePaused:       {StateActive, StateShuttingDown},
	StateShuttingDown: {StateTerminated},
	StateTerminated:   {},
}

// TransitionError reports an illegal state transition attempt.
type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return "illegal agent state transition from " + string(e.From) + " to " + string(e.To)
}

// Hook runs around every execution. Hooks never abort an execution: a
// returned error is logged with error_code=HOOK_ERROR and swallowed.
type Hook func(ctx context.Context, execCtx *model.ExecutionContext) error

// ErrorHook runs when an execution fails, receiving the triggering error.
type ErrorHook func(ctx context.Context, execCtx *model.ExecutionContext, cause error)

// Hooks groups the three BaseAgent hook points.
type Hooks struct {
	PreExecution  []Hook
	PostExecution []Hook
	OnError       []ErrorHook
}

// BaseAgent is the shared lifecycle and bookkeeping layer for every agent
// kind. It is safe for concurrent use.
type BaseAgent struct {
	AgentID string

	mu    sync.Mutex
	state State

	hooks        Hooks
	logger       telemetry.Logger
	tracer       telemetry.Tracer
	capabilities []string

	executions sync.Map // execution_id -> *executionHandle
	cancelled  atomic.Bool
}

type executionHandle struct {
	cancel context.CancelFunc
}

// Option configures a BaseAgent.
type Option func(*BaseAgent)

// WithAgentID overrides the generated agent id.
func WithAgentID(id string) Option { return func(a *BaseAgent) { a.AgentID = id } }

// WithHooks installs the pre/post/error hook pipeline.
func WithHooks(h Hooks) Option { return func(a *BaseAgent) { a.hooks = h } }

// WithLogger sets the agent's structured logger.
func WithLogger(l telemetry.Logger) Option { return func(a *BaseAgent) { a.logger = l } }

// WithTracer sets the agent's tracer.
func WithTracer(t telemetry.Tracer) Option { return func(a *BaseAgent) { a.tracer = t } }

// WithCapabilities declares the capability tags a Registry can match this
// agent against (see Registry.FindCapable).
func WithCapabilities(caps ...string) Option {
	return func(a *BaseAgent) { a.capabilities = caps }
}

// New constructs a BaseAgent in StateCreated.
func New(opts ...Option) *BaseAgent {
	a := &BaseAgent{
		AgentID: uuid.NewString(),
		state:   StateCreated,
		logger:  telemetry.NewNoopLogger(),
		tracer:  telemetry.NewNoopTracer(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// State reports the agent's current lifecycle state.
func (a *BaseAgent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Transition moves the agent to to, returning a TransitionError if the
// edge is not legal from the current state.
func (a *BaseAgent) Transition(to State) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, allowed := range transitions[a.state] {
		if allowed == to {
			a.state = to
			return nil
		}
	}
	return &TransitionError{From: a.state, To: to}
}

// Initialize transitions CREATED -> INITIALIZING -> ACTIVE.
func (a *BaseAgent) Initialize(ctx context.Context) error {
	if err := a.Transition(StateInitializing); err != nil {
		return err
	}
	return a.Transition(StateActive)
}

// Shutdown transitions the agent toward TERMINATED from whatever active
// state it's in, cancelling every tracked execution first.
func (a *BaseAgent) Shutdown(ctx context.Context) error {
	a.cancelled.Store(true)
	a.executions.Range(func(_, v any) bool {
		v.(*executionHandle).cancel()
		return true
	})
	switch a.State() {
	case StateActive, StateBusy, StatePaused:
		if err := a.Transition(StateShuttingDown); err != nil {
			return err
		}
	}
	return a.Transition(StateTerminated)
}

// Cancelled reports whether Shutdown has been called, for suspension
// points that poll rather than select on a context.
func (a *BaseAgent) Cancelled() bool { return a.cancelled.Load() }

// ID satisfies Handle so a BaseAgent (and anything embedding it) can be
// registered directly with a Registry.
func (a *BaseAgent) ID() string { return a.AgentID }

// Capabilities satisfies Handle.
func (a *BaseAgent) Capabilities() []string { return a.capabilities }

// Execute runs fn as one tracked execution: registers a cancellable
// context under execCtx.ExecutionID, transitions ACTIVE<->BUSY around the
// call, runs pre/post/error hooks, and records the result's timing.
func (a *BaseAgent) Execute(ctx context.Context, execCtx *model.ExecutionContext, fn func(ctx context.Context) (any, error)) *model.ExecutionResult {
	execCtx.ExecutionID = nonEmpty(execCtx.ExecutionID, uuid.NewString())
	start := time.Now()

	runCtx, cancel := context.WithCancel(ctx)
	handle := &executionHandle{cancel: cancel}
	a.executions.Store(execCtx.ExecutionID, handle)
	defer a.executions.Delete(execCtx.ExecutionID)
	defer cancel()

	if err := a.Transition(StateBusy); err != nil {
		// Concurrent executions are expected; only the state label is
		// best-effort here, so a failed transition doesn't abort the run.
		a.logger.Debug(runCtx, "busy transition skipped", "agent_id", a.AgentID, "reason", err.Error())
	}
	defer func() {
		if err := a.Transition(StateActive); err != nil {
			a.logger.Debug(runCtx, "active transition skipped", "agent_id", a.AgentID, "reason", err.Error())
		}
	}()

	a.runHooks(runCtx, execCtx, a.hooks.PreExecution)

	value, err := fn(runCtx)

	result := &model.ExecutionResult{
		ExecutionID: execCtx.ExecutionID,
		StepID:      execCtx.ExecutionID,
		StartedAt:   start,
		CompletedAt: time.Now(),
		Result:      value,
	}
	if err != nil {
		result.Success = false
		result.Status = statusFor(runCtx, err)
		result.ErrorMessage = err.Error()
		a.runErrorHooks(runCtx, execCtx, err)
	} else {
		result.Success = true
		result.Status = model.StatusCompleted
	}

	a.runHooks(runCtx, execCtx, a.hooks.PostExecution)
	return result
}

func statusFor(ctx context.Context, err error) model.Status {
	if ctx.Err() != nil {
		return model.StatusCancelled
	}
	return model.StatusFailed
}

func (a *BaseAgent) runHooks(ctx context.Context, execCtx *model.ExecutionContext, hooks []Hook) {
	for _, h := range hooks {
		a.runHook(ctx, execCtx, h)
	}
}

func (a *BaseAgent) runHook(ctx context.Context, execCtx *model.ExecutionContext, h Hook) {
	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error(ctx, "agent hook panicked", "agent_id", a.AgentID, "error_code", "HOOK_ERROR", "panic", rec)
		}
	}()
	if err := h(ctx, execCtx); err != nil {
		a.logger.Error(ctx, "agent hook failed", "agent_id", a.AgentID, "error_code", "HOOK_ERROR", "error", err.Error())
	}
}

func (a *BaseAgent) runErrorHooks(ctx context.Context, execCtx *model.ExecutionContext, cause error) {
	for _, h := range a.hooks.OnError {
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					a.logger.Error(ctx, "agent error hook panicked", "agent_id", a.AgentID, "error_code", "HOOK_ERROR", "panic", rec)
				}
			}()
			h(ctx, execCtx, cause)
		}()
	}
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
