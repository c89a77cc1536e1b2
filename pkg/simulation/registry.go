package simulation

import (
	"fmt"
	"sync"

	cerrors "github.com/r3d91ll/consensus/pkg/errors"
)

// Registry tracks batches by ID with thread-safe access.
type Registry struct {
	mu      sync.RWMutex
	batches map[string]*Batch
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{batches: make(map[string]*Batch)}
}

// Register adds a batch.
func (r *Registry) Register(b *Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.batches[b.ID()]; exists {
		return fmt.Errorf("batch %q already registered", b.ID())
	}
	r.batches[b.ID()] = b
	r.order = append(r.order, b.ID())
	return nil
}

// Get retrieves a batch by ID.
func (r *Registry) Get(id string) (*Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, cerrors.Simulation(cerrors.ErrRunNotFound, "no run with this ID").
			WithContext("id", id)
	}
	return b, nil
}

// List returns the registered batches in registration order.
func (r *Registry) List() []*Batch {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Batch, 0, len(r.order))
	for _, id := range r.order {
		result = append(result, r.batches[id])
	}
	return result
}

// Remove drops a batch from the registry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.batches, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// AbortAll broadcasts Abort to every running batch.
func (r *Registry) AbortAll() {
	for _, b := range r.List() {
		b.Abort()
	}
}
