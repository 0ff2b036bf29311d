package generation

import (
	"fmt"
	"sort"
	"sync"
)

// Registry manages the configured generation backends.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Backend),
	}
}

// Register adds a backend to the registry, replacing any backend that
// already uses the same name.
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.Name()] = b
}

// Get retrieves a backend by name.
func (r *Registry) Get(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("provider not configured: %s", name)
	}
	return b, nil
}

// Has checks if a backend with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.backends[name]
	return ok
}

// Names returns the sorted names of all registered backends.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all registered backends ordered by name.
func (r *Registry) List() []Backend {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Backend, 0, len(names))
	for _, name := range names {
		list = append(list, r.backends[name])
	}
	return list
}
