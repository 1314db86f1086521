package hybrid

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"goa.design/agentcore/internal/toolerrors"
)

// RecoveryStrategy is one fallback step ExecuteWithRecovery can attempt.
type RecoveryStrategy string

const (
	RecoveryRetry    RecoveryStrategy = "RETRY"
	RecoverySimplify RecoveryStrategy = "SIMPLIFY"
	RecoveryFallback RecoveryStrategy = "FALLBACK"
	RecoveryDelegate RecoveryStrategy = "DELEGATE"
)

// RecoveryOptions configures ExecuteWithRecovery.
type RecoveryOptions struct {
	Strategies   []RecoveryStrategy
	MaxRetries   int
	FallbackTool string
	DelegateToID string
}

// DefaultRecoveryOptions returns the caller-supplied default order:
// RETRY, SIMPLIFY, FALLBACK, DELEGATE.
func DefaultRecoveryOptions() RecoveryOptions {
	return RecoveryOptions{
		Strategies: []RecoveryStrategy{RecoveryRetry, RecoverySimplify, RecoveryFallback, RecoveryDelegate},
		MaxRetries: 3,
	}
}

// ExecuteWithRecovery runs task, and on failure walks opts.Strategies in
// order until one succeeds. RETRY only fires on toolerrors.Retryable
// errors. All strategies failing raises a RecoveryExhaustedError carrying
// one RecoveryCause per attempted strategy.
func (a *Agent) ExecuteWithRecovery(ctx context.Context, task Task, opts RecoveryOptions) (*Result, error) {
	result, err := a.ExecuteTask(ctx, task)
	if err == nil {
		return result, nil
	}

	var causes []toolerrors.RecoveryCause
	for _, strategy := range opts.Strategies {
		var strategyErr error
		switch strategy {
		case RecoveryRetry:
			result, strategyErr = a.recoverByRetry(ctx, task, err, opts.MaxRetries)
		case RecoverySimplify:
			result, strategyErr = a.recoverBySimplify(ctx, task)
		case RecoveryFallback:
			result, strategyErr = a.recoverByFallback(ctx, task, opts.FallbackTool)
		case RecoveryDelegate:
			result, strategyErr = a.recoverByDelegate(ctx, task, opts.DelegateToID)
		default:
			strategyErr = toolerrors.Newf(toolerrors.CodePlanning, "hybrid: unknown recovery strategy %q", strategy)
		}
		causes = append(causes, toolerrors.RecoveryCause{Strategy: string(strategy), Err: strategyErr})
		if strategyErr == nil {
			return result, nil
		}
		err = strategyErr
	}

	return nil, &toolerrors.RecoveryExhaustedError{Message: "all recovery strategies failed", Causes: causes}
}

func (a *Agent) recoverByRetry(ctx context.Context, task Task, cause error, maxRetries int) (*Result, error) {
	if !toolerrors.Retryable(cause) {
		return nil, toolerrors.New(toolerrors.CodeExecution, "hybrid: error is not retryable")
	}
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		backoff := time.Duration(1<<uint(attempt)) * 100 * time.Millisecond
		jitter := time.Duration(rand.Int63n(int64(backoff) + 1))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		result, err := a.ExecuteTask(ctx, task)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// recoverBySimplify drops the task's selected context and shortens its
// description before retrying once, trading fidelity for a better chance
// at staying within the model's effective context window.
func (a *Agent) recoverBySimplify(ctx context.Context, task Task) (*Result, error) {
	simplified := task
	simplified.Context = nil
	simplified.Description = simplifyDescription(task.Description)
	return a.ExecuteTask(ctx, simplified)
}

func simplifyDescription(desc string) string {
	const maxLen = 200
	desc = strings.Split(desc, ". ")[0]
	if len(desc) > maxLen {
		desc = desc[:maxLen]
	}
	return desc
}

// recoverByFallback retries task against an alternative tool when one is
// configured; with no fallback tool it fails immediately rather than
// silently no-op-ing.
func (a *Agent) recoverByFallback(ctx context.Context, task Task, fallbackTool string) (*Result, error) {
	if fallbackTool == "" {
		return nil, toolerrors.New(toolerrors.CodePlanning, "hybrid: no fallback tool configured")
	}
	fallback := task
	fallback.Tool = fallbackTool
	return a.ExecuteTask(ctx, fallback)
}

func (a *Agent) recoverByDelegate(ctx context.Context, task Task, delegateToID string) (*Result, error) {
	if delegateToID == "" {
		capable := a.FindCapableAgents("tool_execution")
		if len(capable) == 0 {
			return nil, toolerrors.New(toolerrors.CodePlanning, "hybrid: no capable peer to delegate to")
		}
		delegateToID = capable[0]
	}
	return a.DelegateTask(ctx, task, delegateToID)
}
