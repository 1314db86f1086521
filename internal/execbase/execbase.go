// Package execbase provides the common start/close lifecycle shared by
// every long-lived executor in this module (ParallelEngine, DSLEngine):
// a once-only initialize step and an idempotent cleanup step, mirroring
// the original implementation's _initialize_executor/_cleanup_executor
// pair around each executor instance.
package execbase

import (
	"context"
	"sync"
)

// Hooks are the lifecycle callbacks an embedding executor supplies.
// Either may be nil.
type Hooks struct {
	Initialize func(ctx context.Context) error
	Cleanup    func(ctx context.Context) error
}

// Executor runs Hooks.Initialize exactly once and Hooks.Cleanup at most
// once, and is safe to call Close without ever calling Start.
type Executor struct {
	hooks Hooks

	startOnce sync.Once
	startErr  error

	closeOnce sync.Once
	closeErr  error
}

// New constructs an Executor around hooks.
func New(hooks Hooks) *Executor {
	return &Executor{hooks: hooks}
}

// Start runs the initialize hook exactly once across the lifetime of e,
// regardless of how many times Start is called; later calls return the
// first call's result.
func (e *Executor) Start(ctx context.Context) error {
	e.startOnce.Do(func() {
		if e.hooks.Initialize != nil {
			e.startErr = e.hooks.Initialize(ctx)
		}
	})
	return e.startErr
}

// Close runs the cleanup hook exactly once, even if Start was never called.
func (e *Executor) Close(ctx context.Context) error {
	e.closeOnce.Do(func() {
		if e.hooks.Cleanup != nil {
			e.closeErr = e.hooks.Cleanup(ctx)
		}
	})
	return e.closeErr
}
