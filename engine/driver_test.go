package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ticker is safe to observe from the test goroutine while a driver runs
type ticker struct {
	name    string
	n       atomic.Int64
	elapsed atomic.Int64
	err     error
	panics  bool
	during  func()
}

func (m *ticker) Name() string { return m.name }

func (m *ticker) OnCreate(context.Context, *Scheduler, ...any) error { return nil }

func (m *ticker) OnUpdate(dt time.Duration) error {
	m.n.Add(1)
	m.elapsed.Add(int64(dt))
	if m.during != nil {
		m.during()
	}
	if m.panics {
		panic("tick exploded")
	}
	return m.err
}

func (m *ticker) OnDestroy() {}

func TestDriver_TickMeasuresClock(t *testing.T) {
	mock := NewMockTimeProvider(epoch)
	s := NewScheduler(zerolog.Nop())
	d := NewDriver(s, 10*time.Millisecond, WithClock(NewPausableClock(mock)))

	// Time before Init does not count toward the first tick
	mock.Advance(time.Hour)
	require.NoError(t, s.Init())

	m := &ticker{name: "t"}
	require.NoError(t, s.Create(m))

	mock.Advance(100 * time.Millisecond)
	require.NoError(t, d.Tick())
	assert.Equal(t, int64(1), m.n.Load())
	assert.Equal(t, 100*time.Millisecond, time.Duration(m.elapsed.Load()))
	assert.Equal(t, uint64(1), d.Ticks())
}

func TestDriver_PausedClockSkipsUpdates(t *testing.T) {
	mock := NewMockTimeProvider(epoch)
	clock := NewPausableClock(mock)
	s := NewScheduler(zerolog.Nop())
	d := NewDriver(s, 10*time.Millisecond, WithClock(clock))
	require.NoError(t, s.Init())

	m := &ticker{name: "t"}
	require.NoError(t, s.Create(m))

	clock.Pause()
	mock.Advance(time.Second)
	require.NoError(t, d.Tick())
	assert.Equal(t, int64(0), m.n.Load())

	clock.Resume()
	mock.Advance(50 * time.Millisecond)
	require.NoError(t, d.Tick())
	assert.Equal(t, int64(1), m.n.Load())
	assert.Equal(t, 50*time.Millisecond, time.Duration(m.elapsed.Load()))
}

func TestDriver_StartAndShutdownFromTick(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	d := NewDriver(s, time.Millisecond)
	require.NoError(t, s.Init())

	m := &ticker{name: "t"}
	require.NoError(t, s.Create(m))

	d.Start()
	require.Eventually(t, func() bool { return m.n.Load() >= 3 }, 2*time.Second, time.Millisecond)

	// Shutdown runs on the tick thread and stops the driver without deadlocking
	d.Post(s.Shutdown)

	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not stop after shutdown")
	}
	assert.ErrorIs(t, d.Run(context.Background()), ErrDriverStarted)
}

func TestDriver_StopFromOutside(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	d := NewDriver(s, time.Millisecond)
	require.NoError(t, s.Init())

	d.Start()
	require.Eventually(t, func() bool { return d.Ticks() > 0 }, 2*time.Second, time.Millisecond)

	d.Stop()
	d.Stop()
	select {
	case <-d.Done():
	default:
		t.Fatal("Stop returned before the loop exited")
	}
}

func TestDriver_StopWaitsForTickInProgress(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	d := NewDriver(s, time.Millisecond)
	require.NoError(t, s.Init())

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	require.NoError(t, s.Create(&ticker{name: "slow", during: func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}}))

	d.Start()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("tick never started")
	}

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a tick was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the tick finished")
	}
	select {
	case <-d.Done():
	default:
		t.Fatal("Stop returned before the loop exited")
	}
}

func TestDriver_HaltFromTickThread(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	d := NewDriver(s, time.Millisecond)
	require.NoError(t, s.Init())

	d.Start()
	require.Eventually(t, func() bool { return d.Ticks() > 0 }, 2*time.Second, time.Millisecond)

	d.Post(d.Halt)
	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not stop after Halt")
	}
	assert.NoError(t, s.Update(0), "halting the driver leaves the scheduler usable")
}

func TestDriver_RunStopsOnContext(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	d := NewDriver(s, time.Millisecond)
	require.NoError(t, s.Init())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NoError(t, d.Run(ctx))
}

func TestDriver_ErrorHandler(t *testing.T) {
	boom := errors.New("boom")
	errs := make(chan error, 16)

	s := NewScheduler(zerolog.Nop())
	d := NewDriver(s, time.Millisecond, WithErrorHandler(func(err error) {
		select {
		case errs <- err:
		default:
		}
	}))
	require.NoError(t, s.Init())
	require.NoError(t, s.Create(&ticker{name: "bad", err: boom}))

	d.Start()
	defer d.Stop()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("error handler not called")
	}
}

func TestDriver_CrashHandler(t *testing.T) {
	crashes := make(chan any, 1)

	s := NewScheduler(zerolog.Nop())
	d := NewDriver(s, time.Millisecond, WithCrashHandler(func(r any) { crashes <- r }))
	require.NoError(t, s.Init())
	require.NoError(t, s.Create(&ticker{name: "panicky", panics: true}))

	d.Start()
	select {
	case r := <-crashes:
		assert.Equal(t, "tick exploded", r)
	case <-time.After(2 * time.Second):
		t.Fatal("crash handler not called")
	}
	<-d.Done()
}

func TestDriver_PostBeforeRunExecutesInline(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	d := NewDriver(s, time.Millisecond)

	ran := false
	d.Post(func() { ran = true })
	assert.True(t, ran)
}
