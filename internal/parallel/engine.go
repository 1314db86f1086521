// Package parallel implements ParallelEngine (spec §4.F): executes a set
// of interdependent TaskNodes in dependency order, batching every node
// whose dependencies are satisfied into a single concurrent wave bounded
// by max_concurrent_tasks, detecting deadlock when no node in the
// remaining set is ready, and serializing access to named resources a
// batch's tasks declare they need.
package parallel

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/semaphore"

	"goa.design/agentcore/internal/execbase"
	"goa.design/agentcore/internal/model"
	"goa.design/agentcore/internal/parallel/workerpool"
	"goa.design/agentcore/internal/telemetry"
	"goa.design/agentcore/internal/toolerrors"
)

// TaskNode is one unit of work in the dependency graph.
type TaskNode struct {
	TaskID       string
	Dependencies []string
	Resources    []string
	Run          TaskRunner
}

// TaskRunner executes one TaskNode's work. A runner that reports
// Blocking() true is dispatched on the bounded worker pool instead of a
// bare goroutine (Supplemented Features, "sync vs async task execution
// paths").
type TaskRunner interface {
	Run(ctx context.Context) (any, error)
}

// TaskRunnerFunc adapts a function to TaskRunner with Blocking() false.
type TaskRunnerFunc func(ctx context.Context) (any, error)

// Run implements TaskRunner.
func (f TaskRunnerFunc) Run(ctx context.Context) (any, error) { return f(ctx) }

// Blocking classifies a TaskRunner for worker-pool routing.
type Blocking interface {
	Blocking() bool
}

// BlockingTaskRunnerFunc adapts a function to TaskRunner with Blocking() true.
type BlockingTaskRunnerFunc func(ctx context.Context) (any, error)

// Run implements TaskRunner.
func (f BlockingTaskRunnerFunc) Run(ctx context.Context) (any, error) { return f(ctx) }

// Blocking implements Blocking.
func (f BlockingTaskRunnerFunc) Blocking() bool { return true }

// PlanIssue reports one structural problem found by ValidateExecutionPlan.
type PlanIssue struct {
	Message string
	TaskID  string
}

// DeadlockError reports that no task in the remaining set became ready,
// which can only happen if the dependency graph is cyclic or references a
// task id absent from the node set — ValidateExecutionPlan should be run
// ahead of Execute to rule this out, but Execute defends against it too.
type DeadlockError struct {
	Remaining []string
}

func (e *DeadlockError) Error() string {
	return fmt.Sprintf("parallel execution deadlocked: %d task(s) never became ready", len(e.Remaining))
}

// Engine drives a TaskNode set to completion.
type Engine struct {
	*execbase.Executor

	maxConcurrentTasks int
	pool               *workerpool.Pool
	logger             telemetry.Logger
	tracer             telemetry.Tracer

	resourceMu sync.Map // resource name -> *sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxConcurrentTasks bounds how many tasks run in one ready-set batch.
func WithMaxConcurrentTasks(n int) Option {
	return func(e *Engine) { e.maxConcurrentTasks = n }
}

// WithWorkerPoolSize sizes the pool blocking TaskRunners are routed to.
func WithWorkerPoolSize(n int) Option {
	return func(e *Engine) { e.pool = workerpool.New(n) }
}

// WithLogger sets the engine's structured logger.
func WithLogger(l telemetry.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithTracer sets the engine's tracer.
func WithTracer(t telemetry.Tracer) Option { return func(e *Engine) { e.tracer = t } }

// New constructs an Engine. Default max_concurrent_tasks is 5, matching
// config.Default(); the blocking worker pool defaults to 4 workers.
func New(opts ...Option) *Engine {
	e := &Engine{
		maxConcurrentTasks: 5,
		logger:             telemetry.NewNoopLogger(),
		tracer:             telemetry.NewNoopTracer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.Executor = execbase.New(execbase.Hooks{
		Cleanup: func(ctx context.Context) error {
			if e.pool != nil {
				e.pool.Close()
			}
			return nil
		},
	})
	if e.pool == nil {
		e.pool = workerpool.New(4)
	}
	return e
}

// ValidateExecutionPlan checks that nodes forms a DAG referencing only
// known task ids, and reports tasks in the same dependency "layer" that
// declare overlapping resources as a best-effort conflict warning (such
// tasks will serialize on the resource mutex rather than run concurrently,
// which is correct but may surprise a caller expecting full parallelism).
func ValidateExecutionPlan(nodes []TaskNode) []PlanIssue {
	var issues []PlanIssue
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n.TaskID] = true
	}
	deps := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		deps[n.TaskID] = n.Dependencies
		for _, d := range n.Dependencies {
			if !known[d] {
				issues = append(issues, PlanIssue{TaskID: n.TaskID, Message: fmt.Sprintf("depends on unknown task %q", d)})
			}
		}
	}
	if cycle := findCycle(deps); cycle != "" {
		issues = append(issues, PlanIssue{Message: "dependency cycle detected: " + cycle})
	}

	byLayer := layers(nodes)
	for _, layer := range byLayer {
		seen := map[string]string{}
		for _, taskID := range layer {
			n := nodeByID(nodes, taskID)
			for _, res := range n.Resources {
				if owner, ok := seen[res]; ok {
					issues = append(issues, PlanIssue{TaskID: taskID, Message: fmt.Sprintf("resource %q also claimed by %q in the same batch", res, owner)})
				} else {
					seen[res] = taskID
				}
			}
		}
	}
	return issues
}

func nodeByID(nodes []TaskNode, id string) *TaskNode {
	for i := range nodes {
		if nodes[i].TaskID == id {
			return &nodes[i]
		}
	}
	return nil
}

func findCycle(deps map[string][]string) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}
	var path []string
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		path = append(path, id)
		for _, d := range deps[id] {
			if color[d] == gray {
				path = append(path, d)
				return true
			}
			if color[d] == white && visit(d) {
				return true
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}
	ids := make([]string, 0, len(deps))
	for id := range deps {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if color[id] == white && visit(id) {
			result := path[0]
			for _, p := range path[1:] {
				result += " -> " + p
			}
			return result
		}
	}
	return ""
}

// layers groups nodes into dependency-satisfied batches purely for
// ValidateExecutionPlan's resource-conflict report; it does not run tasks.
func layers(nodes []TaskNode) [][]string {
	remaining := make(map[string]*TaskNode, len(nodes))
	for i := range nodes {
		remaining[nodes[i].TaskID] = &nodes[i]
	}
	done := map[string]bool{}
	var out [][]string
	for len(remaining) > 0 {
		var ready []string
		for id, n := range remaining {
			if allDone(n.Dependencies, done) {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			break
		}
		sort.Strings(ready)
		out = append(out, ready)
		for _, id := range ready {
			done[id] = true
			delete(remaining, id)
		}
	}
	return out
}

func allDone(deps []string, done map[string]bool) bool {
	for _, d := range deps {
		if !done[d] {
			return false
		}
	}
	return true
}

// Execute runs nodes to completion, batching ready tasks into
// concurrency-bounded waves and returning one ExecutionResult per task.
func (e *Engine) Execute(ctx context.Context, executionID string, nodes []TaskNode) (map[string]*model.ExecutionResult, error) {
	remaining := make(map[string]*TaskNode, len(nodes))
	for i := range nodes {
		remaining[nodes[i].TaskID] = &nodes[i]
	}
	results := make(map[string]*model.ExecutionResult, len(nodes))
	done := map[string]bool{}

	batchSize := e.maxConcurrentTasks
	if batchSize < 1 {
		batchSize = 1
	}

	for len(remaining) > 0 {
		var ready []string
		for id, n := range remaining {
			if allDone(n.Dependencies, done) {
				ready = append(ready, id)
			}
		}
		if len(ready) == 0 {
			rem := make([]string, 0, len(remaining))
			for id := range remaining {
				rem = append(rem, id)
			}
			sort.Strings(rem)
			return results, &DeadlockError{Remaining: rem}
		}
		sort.Strings(ready)

		sem := semaphore.NewWeighted(int64(batchSize))
		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, id := range ready {
			n := remaining[id]
			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				results[id] = failedResult(executionID, id, err)
				mu.Unlock()
				continue
			}
			wg.Add(1)
			go func(n *TaskNode) {
				defer wg.Done()
				defer sem.Release(1)
				res := e.runOne(ctx, executionID, n)
				mu.Lock()
				results[n.TaskID] = res
				mu.Unlock()
			}(n)
		}
		wg.Wait()

		for _, id := range ready {
			done[id] = true
			delete(remaining, id)
		}
	}
	return results, nil
}

func (e *Engine) runOne(ctx context.Context, executionID string, n *TaskNode) *model.ExecutionResult {
	release := e.lockResources(n.Resources)
	defer release()

	var value any
	var err error
	if blocking, ok := n.Run.(Blocking); ok && blocking.Blocking() {
		doneCh := make(chan struct{})
		submitErr := e.pool.Submit(ctx, func(jobCtx context.Context) {
			value, err = n.Run.Run(ctx)
			close(doneCh)
		})
		if submitErr != nil {
			return failedResult(executionID, n.TaskID, submitErr)
		}
		<-doneCh
	} else {
		value, err = n.Run.Run(ctx)
	}

	if err != nil {
		return failedResult(executionID, n.TaskID, err)
	}
	return &model.ExecutionResult{
		ExecutionID: executionID,
		StepID:      n.TaskID,
		Status:      model.StatusCompleted,
		Success:     true,
		Result:      value,
	}
}

func failedResult(executionID, taskID string, err error) *model.ExecutionResult {
	code := string(toolerrors.CodeExecution)
	var ee *toolerrors.ExecutionError
	if wrapped, ok := err.(*toolerrors.ExecutionError); ok {
		ee = wrapped
		code = string(ee.Code)
	}
	return &model.ExecutionResult{
		ExecutionID:  executionID,
		StepID:       taskID,
		Status:       model.StatusFailed,
		Success:      false,
		ErrorCode:    code,
		ErrorMessage: err.Error(),
	}
}

// lockResources acquires, in the caller-declared order, one mutex per
// named resource so tasks that touch the same resource serialize rather
// than race, then returns a function that releases them in reverse order.
func (e *Engine) lockResources(resources []string) func() {
	locks := make([]*sync.Mutex, 0, len(resources))
	for _, res := range resources {
		value, _ := e.resourceMu.LoadOrStore(res, &sync.Mutex{})
		mu := value.(*sync.Mutex)
		mu.Lock()
		locks = append(locks, mu)
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}
