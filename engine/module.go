package engine

import (
	"context"
	"errors"
	"time"
)

// Module is an independently lifecycled subsystem driven by the Scheduler
//
// Lifecycle:
//  1. Construction by the caller
//  2. OnCreate(ctx, s, params...) - synchronous, inside Scheduler.Create
//  3. OnUpdate(dt) - once per tick, in priority order
//  4. OnDestroy() - inside Scheduler.Destroy or Scheduler.Shutdown
type Module interface {
	// Name returns the unique identifier; one module per name may be registered
	Name() string

	// OnCreate receives the module lifetime context, cancelled on destroy,
	// and the scheduler for creating tasks or querying other modules
	// A returned error aborts registration
	OnCreate(ctx context.Context, s *Scheduler, params ...any) error

	// OnUpdate advances the module by dt
	OnUpdate(dt time.Duration) error

	// OnDestroy releases module resources
	OnDestroy()
}

// Contract violations returned by the Scheduler
var (
	ErrNotInitialized   = errors.New("scheduler is not initialized")
	ErrDestroyed        = errors.New("scheduler is destroyed")
	ErrInvalidModule    = errors.New("module is invalid")
	ErrDuplicateModule  = errors.New("module already exists")
	ErrNegativePriority = errors.New("module priority must not be negative")
)

// CreateOption configures a single Create call
type CreateOption func(*createConfig)

type createConfig struct {
	priority    int
	hasPriority bool
	params      []any
}

// WithPriority sets an explicit priority; higher values update earlier
func WithPriority(p int) CreateOption {
	return func(c *createConfig) {
		c.priority = p
		c.hasPriority = true
	}
}

// WithParams passes creation parameters to OnCreate
func WithParams(params ...any) CreateOption {
	return func(c *createConfig) {
		c.params = params
	}
}

// entry is the scheduler bookkeeping for one module
type entry struct {
	module   Module
	name     string
	priority int
	seq      uint64 // insertion order, breaks priority ties
	ctx      context.Context
	cancel   context.CancelFunc
	removed  bool
}
