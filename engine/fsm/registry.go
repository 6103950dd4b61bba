package fsm

import (
	"errors"
	"fmt"
	"time"
)

// Registry creates, looks up and destroys machines for owners of type T
// Machines are keyed by (owner type, name) and driven in creation order
type Registry[T any] struct {
	machines map[Key]*Machine[T]
	order    []Key
}

// NewRegistry creates an empty machine registry
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		machines: make(map[Key]*Machine[T]),
	}
}

// Create builds a machine through New and registers it
// The key check runs first so a duplicate never initializes its states
func (r *Registry[T]) Create(name string, owner T, states ...State[T]) (*Machine[T], error) {
	key := KeyOf[T](name)
	if _, exists := r.machines[key]; exists {
		return nil, fmt.Errorf("fsm '%s': %w", key, ErrDuplicateMachine)
	}

	m, err := New(name, owner, states...)
	if err != nil {
		return nil, err
	}
	r.machines[key] = m
	r.order = append(r.order, key)
	return m, nil
}

// Get returns the machine registered under name
func (r *Registry[T]) Get(name string) (*Machine[T], bool) {
	m, ok := r.machines[r.key(name)]
	return m, ok
}

// Has reports whether a machine is registered under name
func (r *Registry[T]) Has(name string) bool {
	_, ok := r.machines[r.key(name)]
	return ok
}

// Count returns the number of live machines
func (r *Registry[T]) Count() int { return len(r.machines) }

// Destroy clears and unregisters the machine; false if absent
func (r *Registry[T]) Destroy(name string) bool {
	key := r.key(name)
	m, ok := r.machines[key]
	if !ok {
		return false
	}
	m.Clear()
	delete(r.machines, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Update drives every machine once, in creation order
// Errors from individual machines are joined; all machines are updated
func (r *Registry[T]) Update(elapsed time.Duration) error {
	var errs []error
	for _, key := range append([]Key(nil), r.order...) {
		m, ok := r.machines[key]
		if !ok {
			continue
		}
		if err := m.Update(elapsed); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Shutdown clears every machine in creation order and empties the registry
func (r *Registry[T]) Shutdown() {
	for _, key := range r.order {
		if m, ok := r.machines[key]; ok {
			m.Clear()
		}
	}
	r.machines = make(map[Key]*Machine[T])
	r.order = nil
}

func (r *Registry[T]) key(name string) Key {
	return KeyOf[T](name)
}
