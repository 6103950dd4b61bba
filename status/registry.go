package status

import (
	"slices"
	"sync"
	"sync/atomic"
)

// MetricMap hands out one lazily allocated cell of type T per key
// Cells never move, so callers cache the pointer and skip the map afterwards
type MetricMap[T any] struct {
	cells sync.Map // string -> *T
	count atomic.Int64
}

func NewMetricMap[T any]() *MetricMap[T] {
	return &MetricMap[T]{}
}

// Get returns the cell for key, allocating it on first use
func (m *MetricMap[T]) Get(key string) *T {
	if cell, ok := m.cells.Load(key); ok {
		return cell.(*T)
	}
	cell, loaded := m.cells.LoadOrStore(key, new(T))
	if !loaded {
		m.count.Add(1)
	}
	return cell.(*T)
}

func (m *MetricMap[T]) Has(key string) bool {
	_, ok := m.cells.Load(key)
	return ok
}

// Keys returns registered keys in sorted order
func (m *MetricMap[T]) Keys() []string {
	var keys []string
	m.cells.Range(func(k, _ any) bool {
		keys = append(keys, k.(string))
		return true
	})
	slices.Sort(keys)
	return keys
}

// Range visits every cell in sorted key order
func (m *MetricMap[T]) Range(fn func(key string, cell *T)) {
	for _, k := range m.Keys() {
		if cell, ok := m.cells.Load(k); ok {
			fn(k, cell.(*T))
		}
	}
}

func (m *MetricMap[T]) Count() int { return int(m.count.Load()) }

// Registry groups the runtime's metric maps by value type
// Modules cache cell pointers at creation and write them from the tick thread;
// the terminal view and the CLI read them from anywhere
type Registry struct {
	Bools   *MetricMap[atomic.Bool]
	Ints    *MetricMap[atomic.Int64]
	Floats  *MetricMap[AtomicFloat]
	Strings *MetricMap[AtomicString]
}

// NewRegistry creates an empty Registry
func NewRegistry() *Registry {
	return &Registry{
		Bools:   NewMetricMap[atomic.Bool](),
		Ints:    NewMetricMap[atomic.Int64](),
		Floats:  NewMetricMap[AtomicFloat](),
		Strings: NewMetricMap[AtomicString](),
	}
}

// TotalCount returns the number of metrics across all maps
func (r *Registry) TotalCount() int {
	return r.Bools.Count() + r.Ints.Count() + r.Floats.Count() + r.Strings.Count()
}

// Snapshot is a point-in-time copy of every metric value
type Snapshot struct {
	Bools   map[string]bool
	Ints    map[string]int64
	Floats  map[string]float64
	Strings map[string]string
}

// Snapshot copies current values; each cell is read atomically, the set as a whole is not
func (r *Registry) Snapshot() Snapshot {
	snap := Snapshot{
		Bools:   make(map[string]bool, r.Bools.Count()),
		Ints:    make(map[string]int64, r.Ints.Count()),
		Floats:  make(map[string]float64, r.Floats.Count()),
		Strings: make(map[string]string, r.Strings.Count()),
	}
	r.Bools.Range(func(k string, v *atomic.Bool) { snap.Bools[k] = v.Load() })
	r.Ints.Range(func(k string, v *atomic.Int64) { snap.Ints[k] = v.Load() })
	r.Floats.Range(func(k string, v *AtomicFloat) { snap.Floats[k] = v.Get() })
	r.Strings.Range(func(k string, v *AtomicString) { snap.Strings[k] = v.Load() })
	return snap
}
