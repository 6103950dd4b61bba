package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lixenwraith/tickflow/status"
)

const tracerName = "github.com/lixenwraith/tickflow/engine"

type phase int

const (
	phaseUninitialized phase = iota
	phaseInitialized
	phaseDestroyed
)

// Scheduler is the ordered module registry driven once per tick
// It is not safe for concurrent use: call it from the tick thread, or route
// work through Driver.Post when a Driver owns the tick loop
type Scheduler struct {
	logger zerolog.Logger
	tracer trace.Tracer
	status *status.Registry

	phase phase

	// entries is the update order once sorted; index maps name to entry
	entries []*entry
	index   map[string]*entry
	dirty   bool
	seq     uint64

	// creating holds names whose OnCreate is still running
	creating map[string]struct{}

	tasks []*task

	driver *Driver

	// Cached metric pointers
	statTicks   *atomic.Int64
	statSorts   *atomic.Int64
	statModules *atomic.Int64
	statTasks   *atomic.Int64
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithTracer overrides the tracer used for module lifecycle spans
func WithTracer(t trace.Tracer) Option {
	return func(s *Scheduler) { s.tracer = t }
}

// WithStatus publishes scheduler metrics into an existing registry
func WithStatus(r *status.Registry) Option {
	return func(s *Scheduler) { s.status = r }
}

// NewScheduler creates an uninitialized scheduler; call Init before use
func NewScheduler(logger zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger: logger.With().Str("component", "scheduler").Logger(),
		index:  make(map[string]*entry),

		creating: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	if s.status == nil {
		s.status = status.NewRegistry()
	}

	s.statTicks = s.status.Ints.Get(status.EngineTicks)
	s.statSorts = s.status.Ints.Get(status.EngineSorts)
	s.statModules = s.status.Ints.Get(status.EngineModules)
	s.statTasks = s.status.Ints.Get(status.EngineTasks)
	return s
}

// Status returns the metrics registry the scheduler writes to
func (s *Scheduler) Status() *status.Registry { return s.status }

// Init moves the scheduler to the initialized phase and resets the attached
// driver's clock baseline. A second call only logs a warning
func (s *Scheduler) Init() error {
	switch s.phase {
	case phaseInitialized:
		s.logger.Warn().Msg("scheduler already initialized, ignoring repeated Init")
		return nil
	case phaseDestroyed:
		return ErrDestroyed
	}

	s.phase = phaseInitialized
	if s.driver != nil {
		s.driver.resetBaseline()
	}
	s.logger.Info().Msg("scheduler initialized")
	return nil
}

// IsInitialized reports whether modules may be created
func (s *Scheduler) IsInitialized() bool { return s.phase == phaseInitialized }

// Create registers m and invokes its OnCreate synchronously
// Without WithPriority the module gets a priority below every existing one
func (s *Scheduler) Create(m Module, opts ...CreateOption) (err error) {
	if err := s.checkPhase(); err != nil {
		return err
	}
	if m == nil || m.Name() == "" {
		return ErrInvalidModule
	}
	name := m.Name()
	_, pending := s.creating[name]
	if _, exists := s.index[name]; exists || pending {
		s.logger.Error().Str("module", name).Msg("module creation failed: already exists")
		return fmt.Errorf("module '%s': %w", name, ErrDuplicateModule)
	}

	var cfg createConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.hasPriority && cfg.priority < 0 {
		return fmt.Errorf("module '%s' priority %d: %w", name, cfg.priority, ErrNegativePriority)
	}
	priority := cfg.priority
	if !cfg.hasPriority {
		priority = s.implicitPriority()
	}

	_, span := s.tracer.Start(context.Background(), "module.create",
		trace.WithAttributes(
			attribute.String("module", name),
			attribute.Int("priority", priority),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	s.seq++
	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{
		module:   m,
		name:     name,
		priority: priority,
		seq:      s.seq,
		ctx:      ctx,
		cancel:   cancel,
	}

	s.creating[name] = struct{}{}
	err = m.OnCreate(ctx, s, cfg.params...)
	delete(s.creating, name)
	if err != nil {
		cancel()
		s.logger.Error().Err(err).Str("module", name).Msg("module creation failed")
		return fmt.Errorf("module '%s' create: %w", name, err)
	}

	s.entries = append(s.entries, e)
	s.index[name] = e
	s.dirty = true
	s.statModules.Store(int64(len(s.entries)))

	s.logger.Info().Str("module", name).Int("priority", priority).Msg("module created")
	return nil
}

// implicitPriority returns one below the current minimum, 0 for an empty registry
func (s *Scheduler) implicitPriority() int {
	if len(s.entries) == 0 {
		return 0
	}
	lowest := s.entries[0].priority
	for _, e := range s.entries[1:] {
		lowest = min(lowest, e.priority)
	}
	return lowest - 1
}

// Get returns the module registered under name
// Absence is logged as a warning, callers may check for optional modules
func (s *Scheduler) Get(name string) (Module, bool) {
	e, ok := s.index[name]
	if !ok {
		s.logger.Warn().Str("module", name).Msg("module does not exist")
		return nil, false
	}
	return e.module, true
}

// Contains reports whether a module is registered under name
func (s *Scheduler) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Priority returns the priority assigned to a registered module
func (s *Scheduler) Priority(name string) (int, bool) {
	e, ok := s.index[name]
	if !ok {
		return 0, false
	}
	return e.priority, true
}

// Count returns the number of registered modules
func (s *Scheduler) Count() int { return len(s.entries) }

// Lookup returns the module registered under name asserted to T
func Lookup[T Module](s *Scheduler, name string) (T, bool) {
	var zero T
	m, ok := s.Get(name)
	if !ok {
		return zero, false
	}
	typed, ok := m.(T)
	if !ok {
		s.logger.Warn().Str("module", name).Str("type", fmt.Sprintf("%T", m)).Msg("module type mismatch")
		return zero, false
	}
	return typed, true
}

// MustGet returns the module registered under name asserted to T
// Panics if the module is missing or has another type
func MustGet[T Module](s *Scheduler, name string) T {
	e, ok := s.index[name]
	if !ok {
		panic(fmt.Sprintf("module not found: %s", name))
	}
	typed, ok := e.module.(T)
	if !ok {
		panic(fmt.Sprintf("module %s: type mismatch, got %T", name, e.module))
	}
	return typed
}

// Destroy invokes OnDestroy, cancels the module context and unregisters it
// Returns false without calling any hook when name is not registered
func (s *Scheduler) Destroy(name string) bool {
	if s.phase != phaseInitialized {
		s.logger.Warn().Str("module", name).Msg("module destroy outside initialized scheduler")
		return false
	}
	e, ok := s.index[name]
	if !ok {
		return false
	}

	_, span := s.tracer.Start(context.Background(), "module.destroy",
		trace.WithAttributes(attribute.String("module", name)))
	defer span.End()

	e.module.OnDestroy()
	e.cancel()
	e.removed = true

	delete(s.index, name)
	s.entries = slices.DeleteFunc(s.entries, func(x *entry) bool { return x == e })
	s.statModules.Store(int64(len(s.entries)))

	s.logger.Info().Str("module", name).Msg("module destroyed")
	return true
}

// Order returns module names in update order, applying a pending re-sort
func (s *Scheduler) Order() []string {
	s.sortIfDirty()
	names := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		names = append(names, e.name)
	}
	return names
}

// Update runs one tick: re-sorts if the registry changed, updates every
// module in priority order, then resumes background tasks
// Module errors do not stop the pass; they are joined and returned
func (s *Scheduler) Update(dt time.Duration) error {
	if err := s.checkPhase(); err != nil {
		return err
	}

	s.sortIfDirty()

	// Snapshot: modules created during the pass start next tick,
	// modules destroyed during the pass are skipped
	snapshot := slices.Clone(s.entries)

	var errs []error
	for _, e := range snapshot {
		if e.removed {
			continue
		}
		if err := e.module.OnUpdate(dt); err != nil {
			errs = append(errs, fmt.Errorf("module '%s' update: %w", e.name, err))
		}
	}

	s.resumeTasks(dt)
	s.statTicks.Add(1)

	return errors.Join(errs...)
}

// sortIfDirty orders entries by priority descending, insertion order on ties
func (s *Scheduler) sortIfDirty() {
	if !s.dirty {
		return
	}
	slices.SortStableFunc(s.entries, func(a, b *entry) int {
		if c := cmp.Compare(b.priority, a.priority); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	s.dirty = false
	s.statSorts.Add(1)
}

// Shutdown destroys every module in current registry order, cancels all
// tasks and halts the attached driver. The scheduler cannot be re-initialized
func (s *Scheduler) Shutdown() {
	if s.phase != phaseInitialized {
		s.phase = phaseDestroyed
		return
	}

	_, span := s.tracer.Start(context.Background(), "scheduler.shutdown",
		trace.WithAttributes(attribute.Int("modules", len(s.entries))))
	defer span.End()

	for _, e := range slices.Clone(s.entries) {
		e.module.OnDestroy()
		e.cancel()
		e.removed = true
	}
	s.entries = nil
	s.index = make(map[string]*entry)
	s.dirty = false
	s.statModules.Store(0)

	s.StopAllTasks()
	s.phase = phaseDestroyed

	if s.driver != nil {
		s.driver.Halt()
	}
	s.logger.Info().Msg("all modules destroyed")
}

func (s *Scheduler) checkPhase() error {
	switch s.phase {
	case phaseUninitialized:
		return ErrNotInitialized
	case phaseDestroyed:
		return ErrDestroyed
	}
	return nil
}
