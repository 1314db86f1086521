package agent

import "sync"

// Handle is the subset of an agent's surface the Registry exposes to
// collaborators: enough to route a delegated task without a direct
// pointer into the owning agent's internals.
type Handle interface {
	ID() string
	Capabilities() []string
}

// Registry maps agent ids to Handles. HybridAgent collaboration
// (delegate_task, find_capable_agents, ...) always goes through a
// Registry rather than holding a direct reference to a peer agent, so two
// agents can never form a reference cycle between each other.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Handle
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{agents: map[string]Handle{}}
}

// Register adds or replaces the Handle for h.ID().
func (r *Registry) Register(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[h.ID()] = h
}

// Deregister removes an agent id from the registry.
func (r *Registry) Deregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, id)
}

// Get resolves an agent id to its Handle.
func (r *Registry) Get(id string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.agents[id]
	return h, ok
}

// FindCapable returns every registered Handle that declares capability
// among its Capabilities(). The order of the returned Handles is not
// defined.
func (r *Registry) FindCapable(capability string) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Handle
	for _, h := range r.agents {
		for _, c := range h.Capabilities() {
			if c == capability {
				out = append(out, h)
				break
			}
		}
	}
	return out
}
