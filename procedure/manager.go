package procedure

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lixenwraith/tickflow/engine"
	"github.com/lixenwraith/tickflow/engine/fsm"
	"github.com/lixenwraith/tickflow/status"
)

// ModuleName is the scheduler name of the procedure manager
const ModuleName = "procedure"

const (
	machineName = "procedure"
	tracerName  = "github.com/lixenwraith/tickflow/procedure"
)

var (
	ErrNotInitialized     = errors.New("procedure manager is not initialized")
	ErrAlreadyInitialized = errors.New("procedure manager is already initialized")
	ErrInvalidRegistry    = errors.New("fsm registry is invalid")
	ErrInvalidParams      = errors.New("invalid procedure manager params")
)

// Manager sequences procedures through one state machine and forwards
// scheduler ticks to it
type Manager struct {
	logger zerolog.Logger
	tracer trace.Tracer

	ctx   context.Context
	sched *engine.Scheduler

	registry *fsm.Registry[*Manager]
	machine  *Machine

	statTransitions *atomic.Int64
	statCurrent     *status.AtomicString
}

// NewManager creates a manager; register it with Scheduler.Create
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		logger: logger.With().Str("component", "procedure").Logger(),
		tracer: otel.Tracer(tracerName),
	}
}

// Name implements engine.Module
func (pm *Manager) Name() string { return ModuleName }

// OnCreate implements engine.Module
// Params, when present, are a *fsm.Registry[*Manager] followed by procedures
// and initialize the manager in place
func (pm *Manager) OnCreate(ctx context.Context, s *engine.Scheduler, params ...any) error {
	pm.ctx = ctx
	pm.sched = s
	pm.statTransitions = s.Status().Ints.Get(status.FSMTransitions)
	pm.statCurrent = s.Status().Strings.Get(status.ProcedureCurrent)

	if len(params) == 0 {
		return nil
	}
	registry, ok := params[0].(*fsm.Registry[*Manager])
	if !ok {
		return fmt.Errorf("%w: first param is %T", ErrInvalidParams, params[0])
	}
	procs := make([]Procedure, 0, len(params)-1)
	for i, p := range params[1:] {
		proc, ok := p.(Procedure)
		if !ok {
			return fmt.Errorf("%w: param %d is %T", ErrInvalidParams, i+1, p)
		}
		procs = append(procs, proc)
	}
	return pm.Initialize(registry, procs...)
}

// Initialize creates the procedure machine in registry; every procedure's
// OnInit runs here
func (pm *Manager) Initialize(registry *fsm.Registry[*Manager], procs ...Procedure) error {
	if registry == nil {
		return ErrInvalidRegistry
	}
	if pm.machine != nil {
		return ErrAlreadyInitialized
	}

	m, err := registry.Create(machineName, pm, procs...)
	if err != nil {
		return fmt.Errorf("procedure initialize: %w", err)
	}
	m.SetObserver(pm.onTransition)

	pm.registry = registry
	pm.machine = m
	pm.logger.Info().Int("procedures", m.StateCount()).Msg("procedures initialized")
	return nil
}

// Start enters the first procedure
func (pm *Manager) Start(id fsm.StateID) error {
	if pm.machine == nil {
		return ErrNotInitialized
	}
	return pm.machine.Start(id)
}

// Current returns the active procedure, nil before Start
func (pm *Manager) Current() (Procedure, error) {
	if pm.machine == nil {
		return nil, ErrNotInitialized
	}
	return pm.machine.Current(), nil
}

// CurrentID returns the active procedure id
func (pm *Manager) CurrentID() (fsm.StateID, error) {
	if pm.machine == nil {
		return fsm.StateNone, ErrNotInitialized
	}
	return pm.machine.CurrentID(), nil
}

// CurrentElapsed returns time spent in the active procedure
func (pm *Manager) CurrentElapsed() (time.Duration, error) {
	if pm.machine == nil {
		return 0, ErrNotInitialized
	}
	return pm.machine.CurrentElapsed(), nil
}

// Has reports whether a procedure with id was registered
func (pm *Manager) Has(id fsm.StateID) (bool, error) {
	if pm.machine == nil {
		return false, ErrNotInitialized
	}
	return pm.machine.HasState(id), nil
}

// Get returns the procedure registered under id
func (pm *Manager) Get(id fsm.StateID) (Procedure, error) {
	if pm.machine == nil {
		return nil, ErrNotInitialized
	}
	p, ok := pm.machine.State(id)
	if !ok {
		return nil, fmt.Errorf("procedure '%s': %w", id, fsm.ErrUnknownState)
	}
	return p, nil
}

// Machine exposes the procedure machine, nil before Initialize
func (pm *Manager) Machine() *Machine { return pm.machine }

// Scheduler returns the scheduler the manager was created in
func (pm *Manager) Scheduler() *engine.Scheduler { return pm.sched }

// Context is the manager's module lifetime context
func (pm *Manager) Context() context.Context { return pm.ctx }

// OnUpdate implements engine.Module
func (pm *Manager) OnUpdate(dt time.Duration) error {
	if pm.machine == nil {
		return nil
	}
	return pm.machine.Update(dt)
}

// OnDestroy implements engine.Module
func (pm *Manager) OnDestroy() {
	if pm.registry == nil {
		return
	}
	if pm.machine != nil {
		pm.registry.Destroy(machineName)
		pm.machine = nil
	}
	pm.registry = nil
	pm.logger.Info().Msg("procedures destroyed")
}

func (pm *Manager) onTransition(from, to fsm.StateID) {
	// Initialize may run before the manager joins a scheduler
	if pm.statTransitions != nil {
		pm.statTransitions.Add(1)
		pm.statCurrent.Store(string(to))
	}

	ctx := pm.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := pm.tracer.Start(ctx, "procedure.transition",
		trace.WithAttributes(
			attribute.String("from", string(from)),
			attribute.String("to", string(to)),
		))
	span.End()

	pm.logger.Info().Str("from", string(from)).Str("to", string(to)).Msg("procedure changed")
}
