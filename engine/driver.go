package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrDriverStarted is returned when Run is called on a driver that already ran
var ErrDriverStarted = errors.New("driver already started")

// Driver is the host tick source: it calls Scheduler.Update on a fixed interval
// with dt measured on a pausable clock. Ticks, posted work and manual Tick calls
// are serialized, so modules always run on one logical thread
type Driver struct {
	sched    *Scheduler
	clock    *PausableClock
	interval time.Duration
	logger   zerolog.Logger

	crash   func(r any)
	onError func(err error)

	// Serializes ticks and posted work
	mu   sync.Mutex
	last time.Time

	posted   chan func()
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	started  atomic.Bool
	running  atomic.Bool

	ticks atomic.Uint64
}

// DriverOption configures a Driver
type DriverOption func(*Driver)

// WithClock sets the clock used to measure dt
func WithClock(c *PausableClock) DriverOption {
	return func(d *Driver) { d.clock = c }
}

// WithCrashHandler receives panics raised inside the tick loop goroutine
// started by Start; without one the panic is logged and re-raised
func WithCrashHandler(fn func(r any)) DriverOption {
	return func(d *Driver) { d.crash = fn }
}

// WithErrorHandler receives errors returned by Scheduler.Update
func WithErrorHandler(fn func(err error)) DriverOption {
	return func(d *Driver) { d.onError = fn }
}

// NewDriver creates a driver for s and attaches it, so Scheduler.Shutdown stops it
func NewDriver(s *Scheduler, interval time.Duration, opts ...DriverOption) *Driver {
	d := &Driver{
		sched:    s,
		interval: interval,
		logger:   s.logger.With().Str("component", "driver").Logger(),
		posted:   make(chan func(), 64),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.clock == nil {
		d.clock = NewPausableClock(nil)
	}
	if d.onError == nil {
		d.onError = func(err error) {
			d.logger.Error().Err(err).Msg("tick failed")
		}
	}
	d.last = d.clock.Now()
	s.driver = d
	return d
}

// Clock returns the clock dt is measured on
func (d *Driver) Clock() *PausableClock { return d.clock }

// Interval returns the tick interval
func (d *Driver) Interval() time.Duration { return d.interval }

// Ticks returns the number of ticks delivered to the scheduler
func (d *Driver) Ticks() uint64 { return d.ticks.Load() }

// Done is closed when the loop started by Run or Start exits
func (d *Driver) Done() <-chan struct{} { return d.done }

// Run blocks, ticking until ctx is cancelled, Stop is called or the
// scheduler is shut down. A driver runs at most once
func (d *Driver) Run(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return ErrDriverStarted
	}
	return d.loop(ctx)
}

// Start runs the loop on its own goroutine with panic recovery
func (d *Driver) Start() {
	if !d.started.CompareAndSwap(false, true) {
		d.logger.Warn().Err(ErrDriverStarted).Msg("driver start ignored")
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.handleCrash(r)
			}
		}()
		_ = d.loop(context.Background())
	}()
}

func (d *Driver) loop(ctx context.Context) error {
	d.running.Store(true)
	defer func() {
		d.running.Store(false)
		close(d.done)
	}()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.logger.Info().Dur("interval", d.interval).Msg("tick loop started")
	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("tick loop stopped by context")
			return nil
		case <-d.stopChan:
			d.logger.Info().Msg("tick loop stopped")
			return nil
		case fn := <-d.posted:
			d.guarded(fn)
		case <-ticker.C:
			var err error
			d.guarded(func() { err = d.tick() })
			if errors.Is(err, ErrDestroyed) {
				d.logger.Info().Msg("scheduler destroyed, tick loop exiting")
				return nil
			}
			if err != nil {
				d.onError(err)
			}
		}
	}
}

// Halt asks the loop to exit once the current tick or posted call returns,
// without waiting. This is the form to use on the tick thread
func (d *Driver) Halt() {
	d.stopOnce.Do(func() {
		close(d.stopChan)
	})
}

// Stop halts the loop and waits until it has exited, including a tick in progress
// Safe to call multiple times and before the loop started. Calling it from the
// tick thread deadlocks; use Halt or Scheduler.Shutdown there
func (d *Driver) Stop() {
	d.Halt()
	if d.started.Load() {
		<-d.done
	}
}

// Tick delivers one tick synchronously; used for manual stepping and tests
func (d *Driver) Tick() error {
	var err error
	d.guarded(func() { err = d.tick() })
	return err
}

// Post runs fn on the tick thread between ticks
// Before the loop runs, or after it ended, fn runs immediately under the tick lock
func (d *Driver) Post(fn func()) {
	if d.running.Load() {
		select {
		case d.posted <- fn:
			return
		case <-d.done:
		}
	}
	d.guarded(fn)
}

// resetBaseline restarts dt measurement from the current clock time
func (d *Driver) resetBaseline() {
	d.mu.Lock()
	d.last = d.clock.Now()
	d.mu.Unlock()
}

// guarded runs fn holding the tick lock
func (d *Driver) guarded(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

// tick measures dt and updates the scheduler; a paused clock skips the update
func (d *Driver) tick() error {
	now := d.clock.Now()
	dt := now.Sub(d.last)
	d.last = now

	if d.clock.IsPaused() {
		return nil
	}
	d.ticks.Add(1)
	return d.sched.Update(dt)
}

func (d *Driver) handleCrash(r any) {
	if d.crash != nil {
		d.crash(r)
		return
	}
	d.logger.Error().Str("panic", fmt.Sprint(r)).Str("stack", string(debug.Stack())).Msg("tick loop crashed")
	panic(r)
}
