// Package checkpoint defines the Checkpointer capability (spec §6):
// save/load/list snapshots of an agent's state scoped by agent_id and
// session_id. The core consumes this interface; it does not own
// persistence. InMemory is a reference implementation suitable for tests
// and single-process deployments.
package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"goa.design/agentcore/internal/toolerrors"
)

// Checkpointer is the Checkpointer capability, per spec §6.
type Checkpointer interface {
	SaveCheckpoint(ctx context.Context, agentID, sessionID string, data map[string]any) (string, error)
	LoadCheckpoint(ctx context.Context, agentID, sessionID, checkpointID string) (map[string]any, error)
	ListCheckpoints(ctx context.Context, agentID, sessionID string) ([]string, error)
}

type record struct {
	id        string
	data      map[string]any
	createdAt time.Time
}

type scopeKey struct {
	agentID   string
	sessionID string
}

// InMemory is a process-local Checkpointer. LoadCheckpoint with an empty
// checkpointID returns the most recently saved checkpoint for the scope.
type InMemory struct {
	mu    sync.RWMutex
	byKey map[scopeKey][]record
}

// New constructs an empty InMemory checkpointer.
func New() *InMemory {
	return &InMemory{byKey: map[scopeKey][]record{}}
}

// SaveCheckpoint stores data under a newly minted checkpoint id and
// returns it.
func (c *InMemory) SaveCheckpoint(ctx context.Context, agentID, sessionID string, data map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := scopeKey{agentID, sessionID}
	id := uuid.NewString()
	cp := make(map[string]any, len(data))
	for k, v := range data {
		cp[k] = v
	}
	c.byKey[key] = append(c.byKey[key], record{id: id, data: cp, createdAt: time.Now()})
	return id, nil
}

// LoadCheckpoint returns the data saved under checkpointID, or the most
// recent checkpoint for the scope when checkpointID is empty.
func (c *InMemory) LoadCheckpoint(ctx context.Context, agentID, sessionID, checkpointID string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	records := c.byKey[scopeKey{agentID, sessionID}]
	if len(records) == 0 {
		return nil, toolerrors.New(toolerrors.CodeExecution, "checkpoint: no checkpoints for scope")
	}
	if checkpointID == "" {
		return records[len(records)-1].data, nil
	}
	for _, r := range records {
		if r.id == checkpointID {
			return r.data, nil
		}
	}
	return nil, toolerrors.Newf(toolerrors.CodeExecution, "checkpoint: %q not found", checkpointID)
}

// ListCheckpoints returns every checkpoint id for the scope, oldest first.
func (c *InMemory) ListCheckpoints(ctx context.Context, agentID, sessionID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	records := c.byKey[scopeKey{agentID, sessionID}]
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.id
	}
	return ids, nil
}
