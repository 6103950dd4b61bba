package engine

import (
	"sync/atomic"
	"time"
)

// TimeProvider supplies wall-clock readings to clocks and drivers
type TimeProvider interface {
	Now() time.Time
}

// MonotonicTimeProvider reads the system clock, including the monotonic component
type MonotonicTimeProvider struct{}

func NewMonotonicTimeProvider() *MonotonicTimeProvider {
	return &MonotonicTimeProvider{}
}

func (p *MonotonicTimeProvider) Now() time.Time {
	return time.Now()
}

// MockTimeProvider only moves when told to
// Readings are an offset from the start time, so concurrent Advance calls never lose time
type MockTimeProvider struct {
	start  time.Time
	offset atomic.Int64
}

func NewMockTimeProvider(start time.Time) *MockTimeProvider {
	return &MockTimeProvider{start: start}
}

func (m *MockTimeProvider) Now() time.Time {
	return m.start.Add(time.Duration(m.offset.Load()))
}

// SetTime jumps to t, which may lie before the start time
func (m *MockTimeProvider) SetTime(t time.Time) {
	m.offset.Store(int64(t.Sub(m.start)))
}

// Advance moves forward by d and returns the new reading
func (m *MockTimeProvider) Advance(d time.Duration) time.Time {
	return m.start.Add(time.Duration(m.offset.Add(int64(d))))
}
