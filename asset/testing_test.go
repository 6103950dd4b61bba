package asset

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/lixenwraith/tickflow/engine"
)

var testFormat = beep.Format{SampleRate: 8000, NumChannels: 1, Precision: 2}

// writeTone writes a WAV of rate.N(d) samples; 125ms is 1000 samples
func writeTone(t *testing.T, path string, d time.Duration) {
	t.Helper()
	require.NoError(t, WriteWAV(path, Tone(440, d, testFormat.SampleRate), testFormat))
}

func writeText(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newScheduler(t *testing.T) *engine.Scheduler {
	t.Helper()
	s := engine.NewScheduler(zerolog.Nop())
	require.NoError(t, s.Init())
	return s
}

// tickUntil updates s until cond holds or the attempts run out
func tickUntil(t *testing.T, s *engine.Scheduler, cond func() bool) {
	t.Helper()
	for range 1000 {
		if cond() {
			return
		}
		require.NoError(t, s.Update(time.Millisecond))
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached")
}
