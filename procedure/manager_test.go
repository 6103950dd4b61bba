package procedure

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/tickflow/engine"
	"github.com/lixenwraith/tickflow/engine/fsm"
	"github.com/lixenwraith/tickflow/status"
)

const (
	boot     fsm.StateID = "boot"
	login    fsm.StateID = "login"
	gameplay fsm.StateID = "gameplay"
)

type trail struct{ events []string }

func (t *trail) add(e string) { t.events = append(t.events, e) }

// bootProc moves on to login after a fixed splash time
type bootProc struct {
	Base
	trail *trail
	hold  time.Duration
}

func (p *bootProc) ID() fsm.StateID { return boot }

func (p *bootProc) OnInit(*Machine) { p.trail.add("init:boot") }

func (p *bootProc) OnEnter(*Machine) { p.trail.add("enter:boot") }

func (p *bootProc) OnUpdate(m *Machine, _ time.Duration) error {
	if m.CurrentElapsed() >= p.hold {
		return m.ChangeState(login)
	}
	return nil
}

func (p *bootProc) OnLeave(_ *Machine, shutdown bool) {
	if !shutdown {
		p.trail.add("leave:boot")
	}
}

// loginProc authenticates through a background task bound to the machine
type loginProc struct {
	Base
	trail  *trail
	authed bool
}

func (p *loginProc) ID() fsm.StateID { return login }

func (p *loginProc) OnEnter(m *Machine) {
	p.trail.add("enter:login")
	_, err := m.Owner().Scheduler().StartTask(m.Context(), "auth", engine.Sequence(
		engine.WaitFor(200*time.Millisecond),
		engine.Do(func(context.Context) error {
			p.authed = true
			return nil
		}),
	))
	if err != nil {
		p.trail.add("task-error")
	}
}

func (p *loginProc) OnUpdate(m *Machine, _ time.Duration) error {
	if p.authed {
		return m.ChangeState(gameplay)
	}
	return nil
}

type gameplayProc struct {
	Base
	trail   *trail
	updates int
}

func (p *gameplayProc) ID() fsm.StateID { return gameplay }

func (p *gameplayProc) OnEnter(*Machine) { p.trail.add("enter:gameplay") }

func (p *gameplayProc) OnUpdate(*Machine, time.Duration) error {
	p.updates++
	return nil
}

func (p *gameplayProc) OnLeave(_ *Machine, shutdown bool) {
	if shutdown {
		p.trail.add("shutdown:gameplay")
	}
}

func (p *gameplayProc) OnDestroy(*Machine) { p.trail.add("destroy:gameplay") }

func newRuntime(t *testing.T) *engine.Scheduler {
	t.Helper()
	s := engine.NewScheduler(zerolog.Nop())
	require.NoError(t, s.Init())
	return s
}

func TestManager_FlowBootLoginGameplay(t *testing.T) {
	s := newRuntime(t)
	tr := &trail{}
	registry := fsm.NewRegistry[*Manager]()
	play := &gameplayProc{trail: tr}

	pm := NewManager(zerolog.Nop())
	require.NoError(t, s.Create(pm, engine.WithPriority(0)))
	require.NoError(t, pm.Initialize(registry,
		&bootProc{trail: tr, hold: 300 * time.Millisecond},
		&loginProc{trail: tr},
		play,
	))
	require.NoError(t, pm.Start(boot))

	tick := func(n int) {
		for range n {
			require.NoError(t, s.Update(100*time.Millisecond))
		}
	}

	// Boot holds for 300ms
	tick(2)
	id, err := pm.CurrentID()
	require.NoError(t, err)
	assert.Equal(t, boot, id)

	tick(1)
	id, _ = pm.CurrentID()
	assert.Equal(t, login, id)
	assert.Equal(t, 1, s.TaskCount())

	// The auth task needs 200ms of task time, login moves on the tick after
	tick(2)
	id, _ = pm.CurrentID()
	assert.Equal(t, gameplay, id)
	elapsed, _ := pm.CurrentElapsed()
	assert.Zero(t, elapsed)

	tick(10)
	elapsed, err = pm.CurrentElapsed()
	require.NoError(t, err)
	assert.Equal(t, time.Second, elapsed)
	assert.Equal(t, 10, play.updates)

	assert.Equal(t, []string{"init:boot", "enter:boot", "leave:boot", "enter:login", "enter:gameplay"}, tr.events)

	reg := s.Status()
	assert.Equal(t, int64(3), reg.Ints.Get(status.FSMTransitions).Load())
	assert.Equal(t, "gameplay", reg.Strings.Get(status.ProcedureCurrent).Load())

	current, err := pm.Current()
	require.NoError(t, err)
	assert.Same(t, play, current)
}

func TestManager_DestroyClearsMachine(t *testing.T) {
	s := newRuntime(t)
	tr := &trail{}
	registry := fsm.NewRegistry[*Manager]()

	pm := NewManager(zerolog.Nop())
	require.NoError(t, s.Create(pm))
	require.NoError(t, pm.Initialize(registry, &gameplayProc{trail: tr}))
	require.NoError(t, pm.Start(gameplay))
	machine := pm.Machine()

	s.Shutdown()

	assert.True(t, machine.IsDestroyed())
	assert.Equal(t, 0, registry.Count())
	assert.Equal(t, []string{"enter:gameplay", "shutdown:gameplay", "destroy:gameplay"}, tr.events)

	_, err := pm.CurrentID()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestManager_InitializeThroughParams(t *testing.T) {
	s := newRuntime(t)
	tr := &trail{}
	registry := fsm.NewRegistry[*Manager]()

	pm := NewManager(zerolog.Nop())
	require.NoError(t, s.Create(pm, engine.WithParams(registry, &bootProc{trail: tr}, &gameplayProc{trail: tr})))

	ok, err := pm.Has(boot)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = pm.Has(login)
	assert.False(t, ok)

	p, err := pm.Get(gameplay)
	require.NoError(t, err)
	assert.Equal(t, gameplay, p.ID())

	_, err = pm.Get(login)
	assert.ErrorIs(t, err, fsm.ErrUnknownState)
}

func TestManager_BadParams(t *testing.T) {
	s := newRuntime(t)

	err := s.Create(NewManager(zerolog.Nop()), engine.WithParams("registry"))
	assert.ErrorIs(t, err, ErrInvalidParams)
	assert.False(t, s.Contains(ModuleName))

	registry := fsm.NewRegistry[*Manager]()
	err = s.Create(NewManager(zerolog.Nop()), engine.WithParams(registry, 42))
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestManager_NotInitialized(t *testing.T) {
	pm := NewManager(zerolog.Nop())

	assert.ErrorIs(t, pm.Start(boot), ErrNotInitialized)
	_, err := pm.Current()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = pm.CurrentElapsed()
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = pm.Has(boot)
	assert.ErrorIs(t, err, ErrNotInitialized)
	_, err = pm.Get(boot)
	assert.ErrorIs(t, err, ErrNotInitialized)

	assert.NoError(t, pm.OnUpdate(time.Second), "idle manager ignores ticks")
	assert.ErrorIs(t, pm.Initialize(nil), ErrInvalidRegistry)
}

func TestManager_Errors(t *testing.T) {
	s := newRuntime(t)
	tr := &trail{}
	registry := fsm.NewRegistry[*Manager]()

	pm := NewManager(zerolog.Nop())
	require.NoError(t, s.Create(pm))
	require.NoError(t, pm.Initialize(registry, &gameplayProc{trail: tr}))

	assert.ErrorIs(t, pm.Initialize(registry, &bootProc{trail: tr}), ErrAlreadyInitialized)
	assert.ErrorIs(t, pm.Start(login), fsm.ErrUnknownState)
	require.NoError(t, pm.Start(gameplay))
	assert.ErrorIs(t, pm.Start(gameplay), fsm.ErrAlreadyRunning)
}
