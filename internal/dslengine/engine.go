// Package dslengine implements DSLEngine (spec §4.E): execution of a
// validated dsl.Node tree. The engine itself never calls a tool directly;
// TASK nodes are dispatched through a caller-supplied TaskExecutor so the
// engine stays decoupled from ToolRegistry, matching the capability-boundary
// style used throughout this module (telemetry.Logger, llm.Client, ...).
package dslengine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"goa.design/agentcore/internal/dsl"
	"goa.design/agentcore/internal/dsl/expr"
	"goa.design/agentcore/internal/execbase"
	"goa.design/agentcore/internal/model"
	"goa.design/agentcore/internal/telemetry"
	"goa.design/agentcore/internal/toolerrors"
)

// TaskExecutor runs one TASK node's resolved parameters and returns its
// result. Implementations typically delegate to a registry.Registry.
type TaskExecutor interface {
	ExecuteTask(ctx context.Context, cfg dsl.TaskConfig, resolvedParams map[string]any) (any, error)
}

// TaskExecutorFunc adapts a function to TaskExecutor.
type TaskExecutorFunc func(ctx context.Context, cfg dsl.TaskConfig, resolvedParams map[string]any) (any, error)

// ExecuteTask implements TaskExecutor.
func (f TaskExecutorFunc) ExecuteTask(ctx context.Context, cfg dsl.TaskConfig, resolvedParams map[string]any) (any, error) {
	return f(ctx, cfg, resolvedParams)
}

// NodeResult is the outcome of executing a single tree node.
type NodeResult struct {
	NodeID string
	Status model.Status
	Result any
	Err    error
}

// Engine drives a validated dsl.Node tree to completion. It embeds
// execbase.Executor for the Start/Close lifecycle shared with
// internal/parallel.Engine; Engine itself has no resources to acquire, so
// the embedded hooks are no-ops unless a future TaskExecutor needs them.
type Engine struct {
	*execbase.Executor

	executor TaskExecutor
	logger   telemetry.Logger
	tracer   telemetry.Tracer
	sleep    func(ctx context.Context, d time.Duration) bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's structured logger.
func WithLogger(l telemetry.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithTracer sets the engine's tracer.
func WithTracer(t telemetry.Tracer) Option { return func(e *Engine) { e.tracer = t } }

// WithSleeper overrides the WAIT node's poll-delay mechanism, primarily for
// tests. sleep must return false if ctx was cancelled before d elapsed.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) bool) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// New constructs an Engine. executor must not be nil.
func New(executor TaskExecutor, opts ...Option) *Engine {
	e := &Engine{
		Executor: execbase.New(execbase.Hooks{}),
		executor: executor,
		logger:   telemetry.NewNoopLogger(),
		tracer:   telemetry.NewNoopTracer(),
		sleep:    defaultSleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultSleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// results tracks per-node outcomes during one Execute call, keyed by
// NodeID and also by task name (for ${result.<task_name>.<path>} lookups
// and for expr.Env.SubtaskExists, spec §4.C "subtasks.includes").
type results struct {
	mu     sync.Mutex
	byID   map[string]*NodeResult
	byName map[string]*NodeResult
}

func newResults() *results {
	return &results{byID: map[string]*NodeResult{}, byName: map[string]*NodeResult{}}
}

// record and the lookup helpers below take r.mu because PARALLEL nodes run
// children concurrently, all reading and writing the same results set.
func (r *results) record(nodeID, taskName string, res *NodeResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[nodeID] = res
	if taskName != "" {
		r.byName[taskName] = res
	}
}

func (r *results) get(nodeID string) (*NodeResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.byID[nodeID]
	return res, ok
}

func (r *results) getByName(name string) (*NodeResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.byName[name]
	return res, ok
}

func (r *results) hasName(name string) bool {
	_, ok := r.getByName(name)
	return ok
}

// snapshot returns a shallow copy of byID for returning to callers once
// execution completes, safe to read without holding r.mu.
func (r *results) snapshot() map[string]*NodeResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*NodeResult, len(r.byID))
	for k, v := range r.byID {
		out[k] = v
	}
	return out
}

func (r *results) env(execCtx *model.ExecutionContext) expr.Env {
	return expr.Env{
		Result: func(path string) (any, bool) {
			return lookupResultPath(r, path)
		},
		Context: func(path string) (any, bool) {
			return lookupPath(execCtx.Variables, path)
		},
		SubtaskExists: r.hasName,
	}
}

func lookupResultPath(r *results, path string) (any, bool) {
	parts := strings.SplitN(path, ".", 2)
	res, ok := r.get(parts[0])
	if !ok {
		res, ok = r.getByName(parts[0])
	}
	if !ok {
		return nil, false
	}
	if len(parts) == 1 {
		return res.Result, true
	}
	return lookupPath(res.Result, parts[1])
}

// Execute runs root to completion under ctx, resolving ${result...} and
// ${context...} references from prior node results and execCtx.Variables
// respectively, and returns every node's outcome keyed by NodeID.
func (e *Engine) Execute(ctx context.Context, root *dsl.Node, execCtx *model.ExecutionContext) (map[string]*NodeResult, error) {
	r := newResults()
	err := e.run(ctx, root, execCtx, r)
	return r.snapshot(), err
}

func (e *Engine) run(ctx context.Context, n *dsl.Node, execCtx *model.ExecutionContext, r *results) error {
	if err := ctx.Err(); err != nil {
		r.record(n.NodeID, "", &NodeResult{NodeID: n.NodeID, Status: model.StatusCancelled, Err: err})
		return err
	}
	switch n.Type {
	case dsl.NodeTask:
		return e.runTask(ctx, n, execCtx, r)
	case dsl.NodeSequence:
		return e.runSequence(ctx, n, execCtx, r)
	case dsl.NodeParallel:
		return e.runParallel(ctx, n, execCtx, r)
	case dsl.NodeCondition:
		return e.runCondition(ctx, n, execCtx, r)
	case dsl.NodeLoop:
		return e.runLoop(ctx, n, execCtx, r)
	case dsl.NodeWait:
		return e.runWait(ctx, n, execCtx, r)
	default:
		return toolerrors.Newf(toolerrors.CodeExecution, "unknown node type %q", n.Type)
	}
}

func (e *Engine) runTask(ctx context.Context, n *dsl.Node, execCtx *model.ExecutionContext, r *results) error {
	cfg := dsl.TaskConfigFrom(n.Config)

	for _, cond := range cfg.Conditions {
		if !expr.Eval(cond, r.env(execCtx)) {
			res := &NodeResult{NodeID: n.NodeID, Status: model.StatusSkipped}
			r.record(n.NodeID, cfg.Task, res)
			return nil
		}
	}

	resolved := resolveParameters(cfg.Parameters, r, execCtx)

	attempts := cfg.RetryCount + 1
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		taskCtx := ctx
		var cancel context.CancelFunc
		if cfg.Timeout > 0 {
			taskCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Timeout*float64(time.Second)))
		}
		value, err := e.executor.ExecuteTask(taskCtx, cfg, resolved)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			res := &NodeResult{NodeID: n.NodeID, Status: model.StatusCompleted, Result: value}
			r.record(n.NodeID, cfg.Task, res)
			return nil
		}
		lastErr = err
		e.logger.Error(ctx, "dsl task failed", "node_id", n.NodeID, "task", cfg.Task, "attempt", attempt+1, "error", err.Error())
		if ctx.Err() != nil {
			break
		}
	}

	res := &NodeResult{NodeID: n.NodeID, Status: model.StatusFailed, Err: lastErr}
	r.record(n.NodeID, cfg.Task, res)
	return toolerrors.Wrap(toolerrors.CodeExecution, fmt.Sprintf("task %q exhausted retries", cfg.Task), lastErr)
}

func (e *Engine) runSequence(ctx context.Context, n *dsl.Node, execCtx *model.ExecutionContext, r *results) error {
	for _, child := range n.Children {
		if err := e.run(ctx, child, execCtx, r); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) runParallel(ctx context.Context, n *dsl.Node, execCtx *model.ExecutionContext, r *results) error {
	cfg := dsl.ParallelConfigFrom(n.Config, len(n.Children))
	concurrency := cfg.MaxConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make([]error, len(n.Children))
	done := make(chan struct{})
	var pending = len(n.Children)

	for i, child := range n.Children {
		i, child := i, child
		go func() {
			if err := sem.Acquire(runCtx, 1); err != nil {
				errs[i] = err
				done <- struct{}{}
				return
			}
			defer sem.Release(1)
			err := e.run(runCtx, child, execCtx, r)
			errs[i] = err
			if err != nil && cfg.FailFast {
				cancel()
			}
			done <- struct{}{}
		}()
	}

	for pending > 0 {
		<-done
		pending--
	}

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) runCondition(ctx context.Context, n *dsl.Node, execCtx *model.ExecutionContext, r *results) error {
	cfg := dsl.ConditionConfig{}
	cfg.Expression, _ = n.Config["expression"].(string)
	value := expr.Eval(cfg.Expression, r.env(execCtx))

	wantTag := "else"
	if value {
		wantTag = "then"
	}
	for i, tag := range n.ChildTags {
		if tag == wantTag && i < len(n.Children) {
			return e.run(ctx, n.Children[i], execCtx, r)
		}
	}
	return nil
}

func (e *Engine) runLoop(ctx context.Context, n *dsl.Node, execCtx *model.ExecutionContext, r *results) error {
	cfg := dsl.LoopConfigFrom(n.Config)
	body := &dsl.Node{NodeID: n.NodeID + "_body", Type: dsl.NodeSequence, Children: n.Children}

	for i := 0; i < cfg.MaxIterations; i++ {
		if !expr.Eval(cfg.Condition, r.env(execCtx)) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.run(ctx, body, execCtx, r); err != nil {
			if cfg.BreakOnError {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) runWait(ctx context.Context, n *dsl.Node, execCtx *model.ExecutionContext, r *results) error {
	cfg := dsl.WaitConfigFrom(n.Config)
	deadline := time.Duration(cfg.Timeout * float64(time.Second))
	poll := time.Duration(cfg.PollInterval * float64(time.Second))
	if poll <= 0 {
		poll = time.Second
	}
	waitCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	for {
		if expr.Eval(cfg.Condition, r.env(execCtx)) {
			r.record(n.NodeID, "", &NodeResult{NodeID: n.NodeID, Status: model.StatusCompleted})
			return nil
		}
		if !e.sleep(waitCtx, poll) {
			r.record(n.NodeID, "", &NodeResult{NodeID: n.NodeID, Status: model.StatusTimedOut, Err: waitCtx.Err()})
			return toolerrors.Newf(toolerrors.CodeTimeout, "wait node %q timed out after %s", n.NodeID, deadline)
		}
	}
}

var (
	resultRefPattern  = regexp.MustCompile(`\$\{result\.([A-Za-z0-9_.]+)\}`)
	contextRefPattern = regexp.MustCompile(`\$\{context\.([A-Za-z0-9_.]+)\}`)
)

// resolveParameters substitutes ${result.<id>.<path>} and
// ${context.<path>} references in params. A parameter value that is
// exactly one template reference is replaced by the referenced value with
// its original type preserved; a reference embedded in a larger string is
// stringified in place.
//
// Resolution runs as two separate scans, result references first and then
// context references, rather than one combined pass. The context scan runs
// over the string the result scan produced, so a value that embeds both
// kinds of reference has both substituted.
func resolveParameters(params map[string]any, r *results, execCtx *model.ExecutionContext) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = resolveValue(v, r, execCtx)
	}
	return out
}

func resolveValue(v any, r *results, execCtx *model.ExecutionContext) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	s, resolved := resolveRefs(s, resultRefPattern, func(path string) any {
		val, _ := lookupResultPath(r, path)
		return val
	})
	if resolved != nil {
		return resolved
	}
	s, resolved = resolveRefs(s, contextRefPattern, func(path string) any {
		val, _ := lookupPath(execCtx.Variables, path)
		return val
	})
	if resolved != nil {
		return resolved
	}
	return s
}

// resolveRefs replaces every match of pattern in s using lookup. If s is
// exactly one reference, the typed value is returned as resolved (out is
// unused in that case); otherwise each match is stringified in place and
// out holds the rewritten string with resolved left nil.
func resolveRefs(s string, pattern *regexp.Regexp, lookup func(path string) any) (out string, resolved any) {
	match := pattern.FindStringSubmatch(s)
	if match != nil && match[0] == s {
		return s, lookup(match[1])
	}
	return pattern.ReplaceAllStringFunc(s, func(raw string) string {
		m := pattern.FindStringSubmatch(raw)
		return fmt.Sprint(lookup(m[1]))
	}), nil
}

// lookupPath navigates a dotted path through nested maps and slices (by
// numeric index). Structs are not supported since tool results are plain
// map[string]any/[]any/scalars.
func lookupPath(v any, path string) (any, bool) {
	if path == "" {
		return v, true
	}
	cur := v
	for _, seg := range strings.Split(path, ".") {
		switch t := cur.(type) {
		case map[string]any:
			next, ok := t[seg]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(t) {
				return nil, false
			}
			cur = t[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}
