package hybrid

import (
	"context"
	"time"
)

// CheckResourceAvailability reports whether starting estimatedTokens/
// estimatedToolCalls worth of work right now would stay within the
// agent's active-task, token-per-minute and tool-call-per-minute limits.
func (a *Agent) CheckResourceAvailability(activeTasks, estimatedTokens, estimatedToolCalls int) bool {
	if a.maxConcurrentTasks > 0 && activeTasks >= a.maxConcurrentTasks {
		return false
	}
	now := time.Now()
	if a.tokenUsage.WouldExceed(now, estimatedTokens) {
		return false
	}
	if a.callUsage.WouldExceed(now, estimatedToolCalls) {
		return false
	}
	return true
}

// WaitForResources polls CheckResourceAvailability at a fixed interval
// until it reports true, ctx is cancelled, or timeout elapses. It returns
// false on timeout rather than an error, per the resource gate contract.
func (a *Agent) WaitForResources(ctx context.Context, activeTasks, estimatedTokens, estimatedToolCalls int, timeout time.Duration) bool {
	const pollInterval = 50 * time.Millisecond
	deadline := time.Now().Add(timeout)
	for {
		if a.CheckResourceAvailability(activeTasks, estimatedTokens, estimatedToolCalls) {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-time.After(pollInterval):
		case <-ctx.Done():
			return false
		}
	}
}
