package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lixenwraith/tickflow/asset"
	"github.com/lixenwraith/tickflow/audio"
	"github.com/lixenwraith/tickflow/config"
	"github.com/lixenwraith/tickflow/engine"
	"github.com/lixenwraith/tickflow/engine/fsm"
	"github.com/lixenwraith/tickflow/procedure"
	"github.com/lixenwraith/tickflow/terminal"
	"github.com/lixenwraith/tickflow/tracing"
)

// Module priorities: assets publish progress before procedures read it,
// the view draws last with an implicit priority
const (
	priorityAssets     = 200
	priorityProcedures = 100
	priorityLimit      = 1
)

// runtime is the hub service owning the scheduler and its tick driver
type runtime struct {
	cfg      *config.Config
	logger   zerolog.Logger
	screen   *terminal.Service
	sound    *audio.Service
	maxTicks uint64
	quit     func()

	sched   *engine.Scheduler
	driver  *engine.Driver
	view    *terminal.View
	started bool
}

func newRuntime(cfg *config.Config, logger zerolog.Logger, screen *terminal.Service, sound *audio.Service, maxTicks uint64, quit func()) *runtime {
	return &runtime{
		cfg:      cfg,
		logger:   logger,
		screen:   screen,
		sound:    sound,
		maxTicks: maxTicks,
		quit:     quit,
	}
}

func (r *runtime) Name() string { return "runtime" }

func (r *runtime) Dependencies() []string {
	deps := []string{tracing.ServiceName}
	if r.screen != nil {
		deps = append(deps, terminal.ServiceName)
	}
	if r.sound != nil {
		deps = append(deps, audio.ServiceName)
	}
	return deps
}

// Init builds the scheduler and creates every module; nothing ticks until Start
func (r *runtime) Init(context.Context) error {
	r.sched = engine.NewScheduler(r.logger)

	var crash func(any)
	if r.screen != nil {
		crash = terminal.CrashHandler(r.screen.Screen())
	} else {
		crash = terminal.CrashHandler(nil)
	}
	r.driver = engine.NewDriver(r.sched, r.cfg.Engine.TickInterval, engine.WithCrashHandler(crash))

	if err := r.sched.Init(); err != nil {
		return err
	}

	if err := r.sched.Create(asset.NewBootstrap(r.cfg.Assets, r.logger), engine.WithPriority(priorityAssets)); err != nil {
		return err
	}

	var out player
	if r.sound != nil && r.sound.Engine() != nil {
		out = r.sound.Engine()
	}
	procs := procedure.NewManager(r.logger)
	params := append([]any{fsm.NewRegistry[*procedure.Manager]()}, demoProcedures(r.logger, out)...)
	err := r.sched.Create(procs, engine.WithPriority(priorityProcedures), engine.WithParams(params...))
	if err != nil {
		return err
	}

	if r.maxTicks > 0 {
		if err := r.sched.Create(&tickLimit{max: r.maxTicks, quit: r.quit}, engine.WithPriority(priorityLimit)); err != nil {
			return err
		}
	}

	if r.screen != nil {
		// Input is posted by Start, so it is handled while the clock is paused
		r.view = terminal.NewView(r.screen.Screen(), nil, r.logger,
			terminal.WithQuit(r.quit),
			terminal.WithPause(r.driver.Clock()),
		)
		if err := r.sched.Create(r.view); err != nil {
			return err
		}
	}

	if err := procs.Start(procBoot); err != nil {
		return fmt.Errorf("start procedures: %w", err)
	}
	return nil
}

func (r *runtime) Start() error {
	r.started = true
	r.driver.Start()
	if r.view != nil {
		go r.forwardInput()
	}
	return nil
}

func (r *runtime) forwardInput() {
	events := r.screen.Events()
	for {
		select {
		case ev := <-events:
			r.driver.Post(func() {
				if r.sched.IsInitialized() {
					r.view.Handle(ev)
				}
			})
		case <-r.driver.Done():
			return
		}
	}
}

// Stop shuts the scheduler down on the tick thread and waits for the loop
func (r *runtime) Stop() error {
	if r.sched == nil {
		return nil
	}
	r.driver.Post(r.sched.Shutdown)
	if r.started {
		select {
		case <-r.driver.Done():
		case <-time.After(5 * time.Second):
			return errors.New("tick loop did not stop")
		}
	}
	return nil
}

// Done is closed when the tick loop exits
func (r *runtime) Done() <-chan struct{} { return r.driver.Done() }

// tickLimit asks the host to quit after a fixed number of ticks
type tickLimit struct {
	max   uint64
	seen  uint64
	quit  func()
	fired bool
}

func (l *tickLimit) Name() string { return "limit" }

func (l *tickLimit) OnCreate(context.Context, *engine.Scheduler, ...any) error { return nil }

func (l *tickLimit) OnUpdate(time.Duration) error {
	l.seen++
	if l.seen >= l.max && !l.fired {
		l.fired = true
		l.quit()
	}
	return nil
}

func (l *tickLimit) OnDestroy() {}
