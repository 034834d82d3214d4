package synth

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the generation engines the orchestrator may select.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
}

// NewRegistry creates an empty engine registry.
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]Engine),
	}
}

// NewDefaultRegistry returns a registry with the builtin and SDV engines.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Builtin)
	r.Register(SDV)
	return r
}

// Register adds an engine, replacing any engine with the same name.
func (r *Registry) Register(e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[e.Name] = e
}

// Resolve returns the engine for name. An empty name resolves to DefaultEngine.
func (r *Registry) Resolve(name string) (Engine, error) {
	if name == "" {
		name = DefaultEngine
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.engines[name]
	if !ok {
		return Engine{}, fmt.Errorf("unknown generation engine %q", name)
	}
	return e, nil
}

// List returns all registered engines sorted by name for a stable API response.
func (r *Registry) List() []Engine {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Engine, 0, len(r.engines))
	for _, e := range r.engines {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}
