package fsm

import "fmt"

// SetData stores v under name, allocating the store on first use
func (m *Machine[T]) SetData(name string, v any) error {
	if name == "" {
		return fmt.Errorf("fsm '%s': %w", m.key, ErrInvalidDataName)
	}
	if m.data == nil {
		m.data = make(map[string]any)
	}
	m.data[name] = v
	return nil
}

// Data returns the value stored under name
// Missing names yield (nil, false); an empty name panics
func (m *Machine[T]) Data(name string) (any, bool) {
	m.mustDataName(name)
	v, ok := m.data[name]
	return v, ok
}

// HasData reports whether name is stored; an empty name panics
func (m *Machine[T]) HasData(name string) bool {
	m.mustDataName(name)
	_, ok := m.data[name]
	return ok
}

// RemoveData deletes name and reports whether it existed; an empty name panics
func (m *Machine[T]) RemoveData(name string) bool {
	m.mustDataName(name)
	if _, ok := m.data[name]; !ok {
		return false
	}
	delete(m.data, name)
	return true
}

// DataAs returns the value stored under name asserted to D
// A missing name or a value of another type yields the zero D and false
func DataAs[D any, T any](m *Machine[T], name string) (D, bool) {
	var zero D
	v, ok := m.Data(name)
	if !ok {
		return zero, false
	}
	typed, ok := v.(D)
	if !ok {
		return zero, false
	}
	return typed, true
}

func (m *Machine[T]) mustDataName(name string) {
	if name == "" {
		panic(fmt.Errorf("fsm '%s': %w", m.key, ErrInvalidDataName))
	}
}
