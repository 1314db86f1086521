package hybrid

import (
	"context"
	"fmt"

	"goa.design/agentcore/internal/agent"
	"goa.design/agentcore/internal/capabilities"
	"goa.design/agentcore/internal/toolerrors"
)

// Strategy selects how CollaborateOnTask combines peer results.
type Strategy string

const (
	StrategyParallel   Strategy = "parallel"
	StrategySequential Strategy = "sequential"
	StrategyConsensus  Strategy = "consensus"
)

// PeerReview is a reviewer's verdict on a completed task result.
type PeerReview struct {
	Approved   bool
	Feedback   string
	ReviewerID string
}

// Peer is the subset of a HybridAgent's surface collaboration needs from a
// registered peer. *Agent satisfies it, so collaboration only ever touches
// a peer through this narrow interface resolved fresh from the Registry on
// every call, never a long-lived pointer into the peer's internals.
type Peer interface {
	agent.Handle
	ExecuteTask(ctx context.Context, task Task) (*Result, error)
}

// ExecuteTask runs task and unwraps its Result from the underlying
// BaseAgent.Execute bookkeeping, for callers (collaboration, recovery) that
// want the domain result rather than the full ExecutionResult envelope.
func (a *Agent) ExecuteTask(ctx context.Context, task Task) (*Result, error) {
	er := a.Execute(ctx, task)
	if !er.Success {
		return nil, toolerrors.New(toolerrors.CodeExecution, er.ErrorMessage)
	}
	res, ok := er.Result.(*Result)
	if !ok {
		return nil, toolerrors.New(toolerrors.CodeExecution, "hybrid: task produced no result")
	}
	return res, nil
}

// resolvePeer looks up a peer id in the agent's Registry and reports a
// machine-coded error on failure so callers don't need to special-case "no
// registry configured" vs "unknown peer".
func (a *Agent) resolvePeer(id string) (Peer, error) {
	if a.peers == nil {
		return nil, toolerrors.New(toolerrors.CodePlanning, "hybrid: no peer registry configured")
	}
	h, ok := a.peers.Get(id)
	if !ok {
		return nil, toolerrors.Newf(toolerrors.CodePlanning, "hybrid: no peer registered as %q", id)
	}
	p, ok := h.(Peer)
	if !ok {
		return nil, toolerrors.Newf(toolerrors.CodePlanning, "hybrid: peer %q does not support task execution", id)
	}
	return p, nil
}

// DelegateTask forwards task to a registered peer by id, never holding a
// direct pointer into the peer's internals.
func (a *Agent) DelegateTask(ctx context.Context, task Task, targetAgentID string) (*Result, error) {
	peer, err := a.resolvePeer(targetAgentID)
	if err != nil {
		return nil, err
	}
	return peerExecute(ctx, peer, task)
}

// FindCapableAgents returns every registered peer id that declares every
// capability in capabilitySet.
func (a *Agent) FindCapableAgents(capabilitySet ...string) []string {
	if a.peers == nil || len(capabilitySet) == 0 {
		return nil
	}
	candidates := a.peers.FindCapable(capabilitySet[0])
	var out []string
	for _, h := range candidates {
		if hasAll(h.Capabilities(), capabilitySet) {
			out = append(out, h.ID())
		}
	}
	return out
}

func hasAll(have []string, want []string) bool {
	set := make(map[string]bool, len(have))
	for _, c := range have {
		set[c] = true
	}
	for _, c := range want {
		if !set[c] {
			return false
		}
	}
	return true
}

// RequestPeerReview asks reviewerID to review result and returns its verdict.
func (a *Agent) RequestPeerReview(ctx context.Context, task Task, result *Result, reviewerID string) (*PeerReview, error) {
	peer, err := a.resolvePeer(reviewerID)
	if err != nil {
		return nil, err
	}
	reviewTask := Task{
		TaskID:      task.TaskID + "_review",
		Description: fmt.Sprintf("Review this result for task %q: %v", task.Description, result.Output),
	}
	reviewResult, err := peerExecute(ctx, peer, reviewTask)
	if err != nil {
		return nil, err
	}
	approved := reviewResult.Success
	feedback, _ := reviewResult.Output.(string)
	return &PeerReview{Approved: approved, Feedback: feedback, ReviewerID: reviewerID}, nil
}

// CollaborateOnTask runs task across collaborators per strategy:
// parallel runs every peer concurrently and returns all outputs; sequential
// pipes each peer's output into the next peer's context under the key
// "task_<i>_result"; consensus runs every peer in parallel and returns the
// output the majority of peers produced (ties broken by first-seen order).
func (a *Agent) CollaborateOnTask(ctx context.Context, task Task, collaborators []string, strategy Strategy) ([]*Result, error) {
	switch strategy {
	case StrategySequential:
		return a.collaborateSequential(ctx, task, collaborators)
	case StrategyConsensus:
		results, err := a.collaborateParallel(ctx, task, collaborators)
		if err != nil {
			return nil, err
		}
		return []*Result{consensusOf(results)}, nil
	default:
		return a.collaborateParallel(ctx, task, collaborators)
	}
}

func (a *Agent) collaborateParallel(ctx context.Context, task Task, collaborators []string) ([]*Result, error) {
	results := make([]*Result, len(collaborators))
	errs := make([]error, len(collaborators))
	done := make(chan int, len(collaborators))
	for i, id := range collaborators {
		go func(i int, id string) {
			r, err := a.DelegateTask(ctx, task, id)
			results[i], errs[i] = r, err
			done <- i
		}(i, id)
	}
	for range collaborators {
		<-done
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (a *Agent) collaborateSequential(ctx context.Context, task Task, collaborators []string) ([]*Result, error) {
	results := make([]*Result, 0, len(collaborators))
	current := task
	for i, id := range collaborators {
		r, err := a.DelegateTask(ctx, current, id)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
		current.Context = append(current.Context, capabilities.ContextItem{
			Type:    fmt.Sprintf("task_%d_result", i),
			Content: fmt.Sprintf("%v", r.Output),
		})
	}
	return results, nil
}

func consensusOf(results []*Result) *Result {
	counts := map[string]int{}
	first := map[string]*Result{}
	var order []string
	for _, r := range results {
		key := fmt.Sprintf("%v", r.Output)
		if _, ok := first[key]; !ok {
			first[key] = r
			order = append(order, key)
		}
		counts[key]++
	}
	best := order[0]
	for _, k := range order[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return first[best]
}

func peerExecute(ctx context.Context, peer Peer, task Task) (*Result, error) {
	return peer.ExecuteTask(ctx, task)
}
