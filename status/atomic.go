package status

import (
	"math"
	"sync/atomic"
	"unicode/utf8"
)

// MaxStringLen caps stored labels in bytes
const MaxStringLen = 48

// AtomicFloat is a float64 cell stored as its IEEE bits; the zero value reads 0
type AtomicFloat struct {
	bits atomic.Uint64
}

func (f *AtomicFloat) Set(val float64) { f.bits.Store(math.Float64bits(val)) }

func (f *AtomicFloat) Get() float64 { return math.Float64frombits(f.bits.Load()) }

// Add adds delta and returns the resulting value
func (f *AtomicFloat) Add(delta float64) float64 {
	for {
		cur := f.bits.Load()
		sum := math.Float64bits(math.Float64frombits(cur) + delta)
		if f.bits.CompareAndSwap(cur, sum) {
			return math.Float64frombits(sum)
		}
	}
}

// AtomicString is a short label cell; the zero value reads ""
type AtomicString struct {
	v atomic.Value
}

// Store sets the label, cut to MaxStringLen bytes on a rune boundary
func (s *AtomicString) Store(val string) {
	if len(val) > MaxStringLen {
		cut := MaxStringLen
		for cut > 0 && !utf8.RuneStart(val[cut]) {
			cut--
		}
		val = val[:cut]
	}
	s.v.Store(val)
}

func (s *AtomicString) Load() string {
	val, _ := s.v.Load().(string)
	return val
}
