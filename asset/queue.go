package asset

import (
	"slices"
	"sync"
)

// LoadQueue aggregates handles into one progress value
type LoadQueue struct {
	mu      sync.Mutex
	handles []*Handle
}

func NewLoadQueue() *LoadQueue {
	return &LoadQueue{}
}

// Add tracks handles; nil handles are ignored
func (q *LoadQueue) Add(handles ...*Handle) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, h := range handles {
		if h != nil {
			q.handles = append(q.handles, h)
		}
	}
}

// Len returns the number of tracked handles
func (q *LoadQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.handles)
}

// Progress is the mean of per-handle progress, 0 when empty
func (q *LoadQueue) Progress() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.handles) == 0 {
		return 0
	}
	var total float64
	for _, h := range q.handles {
		total += h.Progress()
	}
	return total / float64(len(q.handles))
}

// Pending returns the number of unfinished handles
func (q *LoadQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, h := range q.handles {
		if !h.IsDone() {
			n++
		}
	}
	return n
}

// Done reports whether every tracked handle finished
func (q *LoadQueue) Done() bool {
	return q.Pending() == 0
}

// Prune drops finished handles and returns how many were dropped
func (q *LoadQueue) Prune() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	before := len(q.handles)
	q.handles = slices.DeleteFunc(q.handles, (*Handle).IsDone)
	return before - len(q.handles)
}
