// Package model defines the shared data types that flow between the
// ToolRegistry, DSL engine, ParallelEngine and the agent stack: Task,
// ExecutionContext, ExecutionResult and ExecutionPlan.
package model

import "time"

// Status is the lifecycle status of an ExecutionResult.
type Status string

// Execution statuses. Terminal states are Completed, Failed, TimedOut and
// Cancelled.
const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusTimedOut  Status = "TIMED_OUT"
	StatusCancelled Status = "CANCELLED"
	StatusPaused    Status = "PAUSED"
	StatusSkipped   Status = "SKIPPED"
)

// Terminal reports whether s is one of the four terminal statuses.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut, StatusCancelled:
		return true
	default:
		return false
	}
}

// ExecutionMode selects how an ExecutionPlan's steps are driven.
type ExecutionMode string

const (
	ModeSequential ExecutionMode = "SEQUENTIAL"
	ModeParallel   ExecutionMode = "PARALLEL"
)

// Task is an immutable unit of work submitted to an agent or engine.
// Once submitted a Task must not be mutated; callers that need to adjust
// parameters construct a new Task.
type Task struct {
	Description string
	TaskID      string
	Tool        string
	Operation   string
	Parameters  map[string]any
	Type        string
	Timeout     time.Duration
	MaxRetries  int
}

// WithParameters returns a copy of t with Parameters replaced, preserving
// immutability of the original Task.
func (t Task) WithParameters(params map[string]any) Task {
	t.Parameters = params
	return t
}

// ExecutionContext is created by the submitter of a logical execution and
// mutated only by the owning executor for the lifetime of that execution.
// Concurrent writes to the same SharedData/Variables key from more than one
// executor are undefined; callers must namespace keys by step id.
type ExecutionContext struct {
	ExecutionID    string
	InputData      map[string]any
	SharedData     map[string]any
	Variables      map[string]any
	TimeoutSeconds float64
}

// NewExecutionContext allocates an ExecutionContext with initialized maps.
func NewExecutionContext(executionID string) *ExecutionContext {
	return &ExecutionContext{
		ExecutionID: executionID,
		InputData:   map[string]any{},
		SharedData:  map[string]any{},
		Variables:   map[string]any{},
	}
}

// ExecutionResult reports the outcome of one execution or one DSL node /
// parallel task step.
type ExecutionResult struct {
	ExecutionID  string
	StepID       string
	Status       Status
	Success      bool
	Message      string
	Result       any
	ErrorCode    string
	ErrorMessage string
	StartedAt    time.Time
	CompletedAt  time.Time
}

// ExecutionPlan is a validated DAG lowered from a workflow definition.
// Invariant: Dependencies forms a DAG and every id referenced by
// Dependencies appears in Steps.
type ExecutionPlan struct {
	PlanID         string
	WorkflowID     string
	Steps          []string
	Dependencies   map[string][]string
	ParallelGroups [][]string
	ExecutionMode  ExecutionMode
	Optimized      bool
	Validated      bool
	CreatedBy      string
}

// Validate checks the DAG and referential invariants described in §3 of the
// specification: every dependency id must name a known step and the
// dependency graph must be acyclic.
func (p *ExecutionPlan) Validate() error {
	known := make(map[string]bool, len(p.Steps))
	for _, s := range p.Steps {
		known[s] = true
	}
	for step, deps := range p.Dependencies {
		if !known[step] {
			return &PlanError{Reason: "unknown step in dependencies: " + step}
		}
		for _, d := range deps {
			if !known[d] {
				return &PlanError{Reason: "unknown dependency " + d + " for step " + step}
			}
		}
	}
	if cyclic(p.Dependencies) {
		return &PlanError{Reason: "dependency graph contains a cycle"}
	}
	return nil
}

// PlanError reports a structural problem with an ExecutionPlan.
type PlanError struct{ Reason string }

func (e *PlanError) Error() string { return "execution plan invalid: " + e.Reason }

func cyclic(deps map[string][]string) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(deps))
	var visit func(string) bool
	visit = func(n string) bool {
		switch color[n] {
		case black:
			return false
		case gray:
			return true
		}
		color[n] = gray
		for _, d := range deps[n] {
			if visit(d) {
				return true
			}
		}
		color[n] = black
		return false
	}
	for n := range deps {
		if color[n] == white && visit(n) {
			return true
		}
	}
	return false
}
