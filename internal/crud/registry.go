package crud

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the controllers served by one process. It is filled at
// startup and read concurrently afterwards.
type Registry struct {
	mu          sync.RWMutex
	controllers map[string]*Controller
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{controllers: make(map[string]*Controller)}
}

// Register adds c under its name. Names must be unique.
func (r *Registry) Register(c *Controller) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.controllers[c.Name()]; exists {
		return fmt.Errorf("resource already registered: %s", c.Name())
	}
	r.controllers[c.Name()] = c
	return nil
}

// Get returns the controller registered under name.
func (r *Registry) Get(name string) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.controllers[name]
	return c, ok
}

// Lookup is Get returning an *UnknownResourceError for unregistered names.
func (r *Registry) Lookup(name string) (*Controller, error) {
	c, ok := r.Get(name)
	if !ok {
		return nil, &UnknownResourceError{Name: name}
	}
	return c, nil
}

// All returns every controller sorted by name.
func (r *Registry) All() []*Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Controller, 0, len(r.controllers))
	for _, c := range r.controllers {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

// Len returns the number of registered resources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.controllers)
}
