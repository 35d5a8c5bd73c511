// Package agents provides execution-collaborator adapters for the roster.
package agents

import (
	"sort"
	"sync"

	"github.com/hugo-lorenzo-mato/diligent/internal/core"
)

// Registry manages registered agent adapters by name.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]core.Agent
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]core.Agent)}
}

// Register adds an adapter. Registering the same name twice replaces it.
func (r *Registry) Register(agent core.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agent.Name()] = agent
}

// Get returns the adapter with the given name.
func (r *Registry) Get(name string) (core.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.agents[name]
	if !ok {
		return nil, core.ErrValidation(core.CodeAgentUnknown, "unknown agent adapter: "+name)
	}
	return agent, nil
}

// List returns registered adapter names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
