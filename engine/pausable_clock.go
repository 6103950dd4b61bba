package engine

import (
	"sync"
	"time"
)

// PausableClock derives tick time from a TimeProvider, freezing while paused
// The driver measures dt against it, so a paused clock produces empty ticks
type PausableClock struct {
	mu sync.RWMutex

	source    TimeProvider
	origin    time.Time     // source reading at creation
	paused    bool          // frozen while true
	pausedAt  time.Time     // source reading when the current pause began
	pausedSum time.Duration // completed pauses
}

// NewPausableClock creates a running clock over source; nil means system time
func NewPausableClock(source TimeProvider) *PausableClock {
	if source == nil {
		source = NewMonotonicTimeProvider()
	}
	return &PausableClock{
		source: source,
		origin: source.Now(),
	}
}

// Now returns clock time: source time minus every pause
func (pc *PausableClock) Now() time.Time {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	if pc.paused {
		return pc.origin.Add(pc.pausedAt.Sub(pc.origin) - pc.pausedSum)
	}
	return pc.origin.Add(pc.source.Now().Sub(pc.origin) - pc.pausedSum)
}

// Elapsed returns clock time since creation
func (pc *PausableClock) Elapsed() time.Duration {
	return pc.Now().Sub(pc.origin)
}

// Pause freezes the clock; no-op when already paused
func (pc *PausableClock) Pause() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.paused {
		return
	}
	pc.paused = true
	pc.pausedAt = pc.source.Now()
}

// Resume unfreezes the clock; no-op when running
func (pc *PausableClock) Resume() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if !pc.paused {
		return
	}
	pc.pausedSum += pc.source.Now().Sub(pc.pausedAt)
	pc.paused = false
	pc.pausedAt = time.Time{}
}

// IsPaused reports the pause state
func (pc *PausableClock) IsPaused() bool {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.paused
}

// TotalPauseDuration returns cumulative pause time including a pause in progress
func (pc *PausableClock) TotalPauseDuration() time.Duration {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	total := pc.pausedSum
	if pc.paused {
		total += pc.source.Now().Sub(pc.pausedAt)
	}
	return total
}
