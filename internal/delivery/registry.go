package delivery

import (
	"sync"
)

// Factory builds the manager for a courier session.
type Factory func(identity Identity) *Manager

// Registry keeps one Manager per logged-in courier. Managers are created on
// first use after login and dropped on logout.
type Registry struct {
	factory Factory

	mu       sync.Mutex
	managers map[string]*Manager
}

// NewRegistry constructs a registry.
func NewRegistry(factory Factory) *Registry {
	return &Registry{factory: factory, managers: map[string]*Manager{}}
}

// Get returns the courier's manager, creating it when absent. A manager whose
// identity no longer matches (salesman id changed) is replaced.
func (r *Registry) Get(identity Identity) (*Manager, error) {
	if !identity.Resolved() {
		return nil, ErrNoCourier
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.managers[identity.UserID]; ok && m.Identity() == identity {
		return m, nil
	}
	m := r.factory(identity)
	r.managers[identity.UserID] = m
	return m, nil
}

// Dispose drops the manager of userID.
func (r *Registry) Dispose(userID string) {
	r.mu.Lock()
	delete(r.managers, userID)
	r.mu.Unlock()
}

// Len reports how many managers are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.managers)
}
