// Package contextengine defines the ContextEngine capability (spec §6):
// durable key/value context scoped to a session, used by HybridAgent to
// carry state across turns. The core consumes this interface; it does not
// own persistence. InMemory is a reference implementation suitable for
// tests and single-process deployments.
package contextengine

import (
	"context"
	"sync"

	"goa.design/agentcore/internal/toolerrors"
)

// Engine is the ContextEngine capability: initialize/put/get/close scoped
// by session_id, per spec §6.
type Engine interface {
	Initialize(ctx context.Context) error
	Put(ctx context.Context, sessionID, key string, value any) error
	Get(ctx context.Context, sessionID, key string) (any, bool, error)
	Close(ctx context.Context) error
}

// InMemory is a process-local Engine backed by a map of maps. It never
// persists across restarts; production deployments supply their own
// Engine backed by durable storage.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[string]map[string]any
	closed   bool
}

// New constructs an uninitialized InMemory engine.
func New() *InMemory {
	return &InMemory{}
}

// Initialize allocates the session map. Calling Put/Get before Initialize
// returns CodeExecution.
func (e *InMemory) Initialize(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions = map[string]map[string]any{}
	e.closed = false
	return nil
}

// Put stores value under key within sessionID, creating the session on
// first use.
func (e *InMemory) Put(ctx context.Context, sessionID, key string, value any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkOpen(); err != nil {
		return err
	}
	session, ok := e.sessions[sessionID]
	if !ok {
		session = map[string]any{}
		e.sessions[sessionID] = session
	}
	session[key] = value
	return nil
}

// Get returns the value stored under key within sessionID, and whether it
// was found.
func (e *InMemory) Get(ctx context.Context, sessionID, key string) (any, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if err := e.checkOpen(); err != nil {
		return nil, false, err
	}
	session, ok := e.sessions[sessionID]
	if !ok {
		return nil, false, nil
	}
	value, ok := session[key]
	return value, ok, nil
}

// Close releases the engine. A closed engine rejects further Put/Get
// until Initialize is called again.
func (e *InMemory) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.sessions = nil
	return nil
}

func (e *InMemory) checkOpen() error {
	if e.closed || e.sessions == nil {
		return toolerrors.New(toolerrors.CodeExecution, "contextengine: not initialized")
	}
	return nil
}
