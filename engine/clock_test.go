package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestMonotonicTimeProvider_Advances(t *testing.T) {
	p := NewMonotonicTimeProvider()
	t1 := p.Now()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, p.Now().Sub(t1), 5*time.Millisecond)
}

func TestMockTimeProvider(t *testing.T) {
	mock := NewMockTimeProvider(epoch)
	assert.True(t, mock.Now().Equal(epoch))

	mock.Advance(time.Hour)
	mock.Advance(30 * time.Minute)
	assert.True(t, mock.Now().Equal(epoch.Add(90*time.Minute)))

	jump := epoch.Add(24 * time.Hour)
	mock.SetTime(jump)
	assert.True(t, mock.Now().Equal(jump))
}

func TestMockTimeProvider_ConcurrentAdvance(t *testing.T) {
	mock := NewMockTimeProvider(epoch)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				mock.Advance(time.Millisecond)
				_ = mock.Now()
			}
		}()
	}
	wg.Wait()

	assert.True(t, mock.Now().Equal(epoch.Add(250*time.Millisecond)))
}

func TestPausableClock_FreezesWhilePaused(t *testing.T) {
	mock := NewMockTimeProvider(epoch)
	clock := NewPausableClock(mock)

	mock.Advance(time.Second)
	assert.Equal(t, time.Second, clock.Elapsed())

	clock.Pause()
	clock.Pause() // no-op
	require.True(t, clock.IsPaused())
	mock.Advance(3 * time.Second)
	assert.Equal(t, time.Second, clock.Elapsed())
	assert.Equal(t, 3*time.Second, clock.TotalPauseDuration())

	clock.Resume()
	clock.Resume() // no-op
	mock.Advance(500 * time.Millisecond)
	assert.False(t, clock.IsPaused())
	assert.Equal(t, 1500*time.Millisecond, clock.Elapsed())
	assert.Equal(t, 3*time.Second, clock.TotalPauseDuration())
}

func TestTimeProviderInterface(t *testing.T) {
	var _ TimeProvider = &MonotonicTimeProvider{}
	var _ TimeProvider = &MockTimeProvider{}
}
