package fsm

import (
	"context"
	"fmt"
	"reflect"
	"time"
)

// Machine is a finite state machine owned by a single T
// Exactly one state is active while running; all calls happen on the tick thread
type Machine[T any] struct {
	key   Key
	owner T

	// Registration order is kept for deterministic teardown
	states map[StateID]State[T]
	order  []StateID

	// Lazily allocated on first SetData
	data map[string]any

	current     State[T]
	currentTime time.Duration
	destroyed   bool

	// Cancelled on Clear; background work tied to the machine derives from it
	ctx    context.Context
	cancel context.CancelFunc

	// Optional transition observer, see SetObserver
	observer func(from, to StateID)
}

// New creates a machine and runs OnInit on every state in argument order
// Validation happens before any state is touched
func New[T any](name string, owner T, states ...State[T]) (*Machine[T], error) {
	key := KeyOf[T](name)
	if isNil(owner) {
		return nil, fmt.Errorf("fsm '%s': %w", key, ErrInvalidOwner)
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("fsm '%s': %w", key, ErrEmptyStates)
	}

	m := &Machine[T]{
		key:    key,
		owner:  owner,
		states: make(map[StateID]State[T], len(states)),
		order:  make([]StateID, 0, len(states)),
	}
	for _, s := range states {
		if isNil(s) {
			return nil, fmt.Errorf("fsm '%s': %w", key, ErrEmptyStates)
		}
		id := s.ID()
		if _, exists := m.states[id]; exists {
			return nil, fmt.Errorf("fsm '%s' state '%s': %w", key, id, ErrDuplicateState)
		}
		m.states[id] = s
		m.order = append(m.order, id)
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())

	for _, id := range m.order {
		m.states[id].OnInit(m)
	}
	return m, nil
}

// Name returns the instance name
func (m *Machine[T]) Name() string { return m.key.Name }

// Key returns the owner/name identity of the machine
func (m *Machine[T]) Key() Key { return m.key }

// Owner returns the owning object; zero value after Clear
func (m *Machine[T]) Owner() T { return m.owner }

// StateCount returns the number of registered states
func (m *Machine[T]) StateCount() int { return len(m.states) }

// IsRunning reports whether a state is active
func (m *Machine[T]) IsRunning() bool { return m.current != nil }

// IsDestroyed reports whether Clear has been called
func (m *Machine[T]) IsDestroyed() bool { return m.destroyed }

// Current returns the active state, nil when idle
func (m *Machine[T]) Current() State[T] { return m.current }

// CurrentID returns the active state ID, StateNone when idle
func (m *Machine[T]) CurrentID() StateID {
	if m.current == nil {
		return StateNone
	}
	return m.current.ID()
}

// CurrentElapsed returns time spent in the active state
func (m *Machine[T]) CurrentElapsed() time.Duration { return m.currentTime }

// Context is cancelled when the machine is cleared
func (m *Machine[T]) Context() context.Context { return m.ctx }

// SetObserver installs a callback invoked after every Start and ChangeState
// from is StateNone for Start
func (m *Machine[T]) SetObserver(fn func(from, to StateID)) { m.observer = fn }

// HasState reports whether a state with the given ID is registered
func (m *Machine[T]) HasState(id StateID) bool {
	_, ok := m.states[id]
	return ok
}

// State returns the registered state for id
func (m *Machine[T]) State(id StateID) (State[T], bool) {
	s, ok := m.states[id]
	return s, ok
}

// States returns all states in registration order
func (m *Machine[T]) States() []State[T] {
	result := make([]State[T], 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.states[id])
	}
	return result
}

// Start activates the initial state
func (m *Machine[T]) Start(id StateID) error {
	if m.destroyed {
		return fmt.Errorf("fsm '%s': %w", m.key, ErrDestroyed)
	}
	if m.current != nil {
		return fmt.Errorf("fsm '%s': %w", m.key, ErrAlreadyRunning)
	}
	state, ok := m.states[id]
	if !ok {
		return fmt.Errorf("fsm '%s' can not start state '%s': %w", m.key, id, ErrUnknownState)
	}

	m.current = state
	m.currentTime = 0
	state.OnEnter(m)
	m.notify(StateNone, id)
	return nil
}

// ChangeState leaves the active state and enters id
// Must not be called from the OnEnter/OnLeave hooks of the same transition
func (m *Machine[T]) ChangeState(id StateID) error {
	if m.current == nil {
		return fmt.Errorf("fsm '%s': %w", m.key, ErrNotRunning)
	}
	state, ok := m.states[id]
	if !ok {
		return fmt.Errorf("fsm '%s' can not change state to '%s': %w", m.key, id, ErrUnknownState)
	}

	from := m.current.ID()
	m.current.OnLeave(m, false)
	m.currentTime = 0
	m.current = state
	state.OnEnter(m)
	m.notify(from, id)
	return nil
}

// Update advances the active state by elapsed; no-op when idle
func (m *Machine[T]) Update(elapsed time.Duration) error {
	if m.current == nil {
		return nil
	}
	m.currentTime += elapsed
	return m.current.OnUpdate(m, elapsed)
}

// Clear leaves the active state with shutdown=true, destroys every state and
// releases owner and data. The machine is inert afterwards and must be discarded
func (m *Machine[T]) Clear() {
	if m.destroyed {
		return
	}
	if m.current != nil {
		m.current.OnLeave(m, true)
	}
	for _, id := range m.order {
		m.states[id].OnDestroy(m)
	}

	var zero T
	m.owner = zero
	m.states = make(map[StateID]State[T])
	m.order = nil
	m.data = nil
	m.current = nil
	m.currentTime = 0
	m.destroyed = true
	m.cancel()
}

func (m *Machine[T]) notify(from, to StateID) {
	if m.observer != nil {
		m.observer(from, to)
	}
}

// isNil catches untyped nil and nil pointers/maps/funcs wrapped in an interface
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
