package asset

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/lixenwraith/tickflow/status"
)

// Handle tracks one asynchronous load
// It satisfies engine.Operation, so tasks can Await it
type Handle struct {
	id   string
	path string

	progress status.AtomicFloat
	done     atomic.Bool

	mu    sync.Mutex
	asset any
	err   error
}

func newHandle(path string) *Handle {
	return &Handle{
		id:   uuid.NewString(),
		path: path,
	}
}

// ID is unique per load
func (h *Handle) ID() string { return h.id }

// Path is the asset path the handle loads
func (h *Handle) Path() string { return h.path }

// Progress is in [0, 1]; 1 once done
func (h *Handle) Progress() float64 { return h.progress.Get() }

// IsDone reports completion, successful or failed
func (h *Handle) IsDone() bool { return h.done.Load() }

// Err returns the load failure, nil while pending or on success
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Asset returns the loaded asset, nil until done
func (h *Handle) Asset() any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.asset
}

// setProgress holds mu so it cannot land after finish
func (h *Handle) setProgress(p float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.done.Load() {
		h.progress.Set(min(max(p, 0), 1))
	}
}

// finish records the outcome once; later calls are ignored and return false
func (h *Handle) finish(asset any, err error) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done.Load() {
		return false
	}
	h.asset = asset
	h.err = err
	h.progress.Set(1)
	h.done.Store(true)
	return true
}
