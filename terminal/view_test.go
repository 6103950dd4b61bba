package terminal

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/tickflow/engine"
	"github.com/lixenwraith/tickflow/status"
)

type idleModule struct{ name string }

func (m *idleModule) Name() string                                              { return m.name }
func (m *idleModule) OnCreate(context.Context, *engine.Scheduler, ...any) error { return nil }
func (m *idleModule) OnUpdate(time.Duration) error                              { return nil }
func (m *idleModule) OnDestroy()                                                {}

func newScheduler(t *testing.T) *engine.Scheduler {
	t.Helper()
	s := engine.NewScheduler(zerolog.Nop())
	require.NoError(t, s.Init())
	return s
}

func TestView_RendersDashboard(t *testing.T) {
	screen := newScreen(t, 60, 16)
	s := newScheduler(t)

	require.NoError(t, s.Create(&idleModule{name: "physics"}, engine.WithPriority(10)))
	v := NewView(screen, nil, zerolog.Nop(), WithRefresh(0))
	require.NoError(t, s.Create(v))
	assert.Equal(t, uint64(1), v.Frames())

	s.Status().Strings.Get(status.ProcedureCurrent).Store("login")
	s.Status().Ints.Get(status.FSMTransitions).Store(2)
	s.Status().Floats.Get(status.AssetProgress).Set(0.5)
	s.Status().Bools.Get(status.AssetReady).Store(true)

	require.NoError(t, s.Update(16*time.Millisecond))
	assert.Equal(t, uint64(2), v.Frames())

	assert.True(t, strings.HasPrefix(line(screen, 0), " tickflow"))
	// The counter is read before this tick is counted
	assert.True(t, strings.HasSuffix(line(screen, 0), "ticks 0"))
	assert.Contains(t, line(screen, 2), "procedure: login  (2 transitions)")
	assert.Contains(t, line(screen, 3), "tasks: 0")
	assert.Contains(t, line(screen, 4), "assets:")
	assert.Contains(t, line(screen, 4), " 50%  0 pending")
	assert.NotContains(t, line(screen, 4), "not ready")

	assert.Contains(t, line(screen, 6), "modules")
	assert.Contains(t, line(screen, 7), "10  physics")
	assert.Contains(t, line(screen, 8), "9  view")
}

func TestView_NotReadyAndIdleProcedure(t *testing.T) {
	screen := newScreen(t, 80, 12)
	s := newScheduler(t)
	require.NoError(t, s.Create(NewView(screen, nil, zerolog.Nop())))

	assert.Contains(t, line(screen, 2), "procedure: -")
	assert.Contains(t, line(screen, 4), "not ready")
}

func TestView_RefreshThrottle(t *testing.T) {
	screen := newScreen(t, 40, 10)
	s := newScheduler(t)
	v := NewView(screen, nil, zerolog.Nop(), WithRefresh(100*time.Millisecond))
	require.NoError(t, s.Create(v))

	for range 5 {
		require.NoError(t, s.Update(30*time.Millisecond))
	}
	// Initial frame plus one at 120ms
	assert.Equal(t, uint64(2), v.Frames())
}

func TestView_QuitKeys(t *testing.T) {
	tests := []struct {
		name string
		ev   *tcell.EventKey
		quit bool
	}{
		{"escape", tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), true},
		{"ctrl-c", tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl), true},
		{"q", tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone), true},
		{"other rune", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			screen := newScreen(t, 40, 10)
			s := newScheduler(t)
			events := make(chan tcell.Event, 1)
			quit := false
			require.NoError(t, s.Create(NewView(screen, events, zerolog.Nop(), WithQuit(func() { quit = true }))))

			events <- tt.ev
			require.NoError(t, s.Update(0))
			assert.Equal(t, tt.quit, quit)
		})
	}
}

func TestView_DestroyClears(t *testing.T) {
	screen := newScreen(t, 40, 10)
	s := newScheduler(t)
	require.NoError(t, s.Create(NewView(screen, nil, zerolog.Nop())))
	require.NotEmpty(t, line(screen, 0))

	s.Destroy(ModuleName)
	assert.Empty(t, line(screen, 0))
}

func TestView_PauseToggle(t *testing.T) {
	screen := newScreen(t, 40, 10)
	s := newScheduler(t)
	clock := engine.NewPausableClock(nil)
	v := NewView(screen, nil, zerolog.Nop(), WithPause(clock))
	require.NoError(t, s.Create(v))

	pause := tcell.NewEventKey(tcell.KeyRune, 'p', tcell.ModNone)
	v.Handle(pause)
	assert.True(t, clock.IsPaused())
	assert.Contains(t, line(screen, 0), "tickflow [paused]")

	v.Handle(pause)
	assert.False(t, clock.IsPaused())
	assert.NotContains(t, line(screen, 0), "[paused]")
}
