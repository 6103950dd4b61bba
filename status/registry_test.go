package status

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricMap_GetCachesPointer(t *testing.T) {
	r := NewRegistry()

	a := r.Ints.Get(EngineTicks)
	b := r.Ints.Get(EngineTicks)
	require.Same(t, a, b)

	a.Add(3)
	assert.Equal(t, int64(3), b.Load())
	assert.True(t, r.Ints.Has(EngineTicks))
	assert.False(t, r.Ints.Has(EngineSorts))
}

func TestMetricMap_KeysSorted(t *testing.T) {
	m := NewMetricMap[AtomicFloat]()
	m.Get("c")
	m.Get("a")
	m.Get("b")

	assert.Equal(t, []string{"a", "b", "c"}, m.Keys())

	var seen []string
	m.Range(func(k string, _ *AtomicFloat) { seen = append(seen, k) })
	assert.Equal(t, []string{"a", "b", "c"}, seen)
}

func TestMetricMap_ConcurrentGet(t *testing.T) {
	m := NewMetricMap[AtomicFloat]()
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Get(AssetProgress).Add(1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, m.Count())
	assert.InDelta(t, 16.0, m.Get(AssetProgress).Get(), 1e-9)
}

func TestAtomicString_Truncates(t *testing.T) {
	var s AtomicString
	assert.Equal(t, "", s.Load())

	s.Store("Boot")
	assert.Equal(t, "Boot", s.Load())

	s.Store(strings.Repeat("x", MaxStringLen+10))
	assert.Len(t, s.Load(), MaxStringLen)

	// A two-byte rune straddling the limit is dropped whole
	s.Store(strings.Repeat("x", MaxStringLen-1) + "é")
	assert.Equal(t, strings.Repeat("x", MaxStringLen-1), s.Load())
}

func TestRegistry_Snapshot(t *testing.T) {
	r := NewRegistry()
	r.Ints.Get(EngineModules).Store(4)
	r.Floats.Get(AssetProgress).Set(0.5)
	r.Strings.Get(ProcedureCurrent).Store("Login")
	r.Bools.Get(AssetReady).Store(true)

	snap := r.Snapshot()
	assert.Equal(t, int64(4), snap.Ints[EngineModules])
	assert.InDelta(t, 0.5, snap.Floats[AssetProgress], 1e-9)
	assert.Equal(t, "Login", snap.Strings[ProcedureCurrent])
	assert.True(t, snap.Bools[AssetReady])
	assert.Equal(t, 4, r.TotalCount())

	// Later writes do not leak into an existing snapshot
	r.Ints.Get(EngineModules).Store(9)
	assert.Equal(t, int64(4), snap.Ints[EngineModules])
}
