package audio

import (
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/rs/zerolog"

	"github.com/lixenwraith/tickflow/asset"
	"github.com/lixenwraith/tickflow/config"
	"github.com/lixenwraith/tickflow/status"
)

// Engine plays decoded sounds by piping mixed PCM to a system player
// Without a backend it runs in silent mode: Play reports false, nothing fails
type Engine struct {
	logger zerolog.Logger
	detect func() (*BackendConfig, error)
	preset io.Writer

	volume status.AtomicFloat
	muted  atomic.Bool

	running atomic.Bool
	silent  atomic.Bool

	backend *BackendConfig
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	ossFile *os.File
	mixer   *Mixer

	wg sync.WaitGroup
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithDetector replaces backend detection
func WithDetector(fn func() (*BackendConfig, error)) EngineOption {
	return func(e *Engine) { e.detect = fn }
}

// WithOutput writes PCM to w instead of a detected backend
func WithOutput(w io.Writer) EngineOption {
	return func(e *Engine) { e.preset = w }
}

func NewEngine(cfg config.Audio, logger zerolog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		logger: logger.With().Str("component", "audio").Logger(),
		detect: DetectBackend,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.volume.Set(cfg.Volume)
	e.muted.Store(!cfg.Enabled)
	return e
}

// Start launches the backend and mixer; a missing backend selects silent mode
func (e *Engine) Start() error {
	if e.running.Load() {
		return ErrRunning
	}

	writer := e.preset
	if writer == nil {
		w, err := e.openBackend()
		if err != nil {
			e.logger.Info().Err(err).Msg("audio unavailable, running silent")
			e.silent.Store(true)
			e.running.Store(true)
			return nil
		}
		writer = w
	}

	e.mixer = NewMixer(writer, DefaultPeriod)
	e.mixer.Start()

	e.wg.Add(1)
	go e.monitorMixer()

	e.running.Store(true)
	if e.backend != nil {
		e.logger.Info().Str("backend", e.backend.Name).Msg("audio started")
	}
	return nil
}

func (e *Engine) openBackend() (io.Writer, error) {
	backend, err := e.detect()
	if err != nil {
		return nil, err
	}

	if backend.Type == BackendOSS {
		f, err := os.OpenFile(backend.Path, os.O_WRONLY, 0)
		if err != nil {
			return nil, err
		}
		e.backend = backend
		e.ossFile = f
		return f, nil
	}

	cmd := exec.Command(backend.Path, backend.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, err
	}

	e.backend = backend
	e.cmd = cmd
	e.stdin = stdin

	e.wg.Add(1)
	go e.monitorProcess()
	return stdin, nil
}

// monitorProcess watches for subprocess exit
func (e *Engine) monitorProcess() {
	defer e.wg.Done()
	err := e.cmd.Wait()
	if err != nil && e.running.Load() && !e.silent.Load() {
		e.logger.Warn().Err(err).Str("backend", e.backend.Name).Msg("audio backend exited")
		e.silent.Store(true)
	}
}

// monitorMixer watches for pipe errors
func (e *Engine) monitorMixer() {
	defer e.wg.Done()
	<-e.mixer.done
	select {
	case err := <-e.mixer.Errors():
		e.logger.Warn().Err(err).Msg("audio output failed, running silent")
		e.silent.Store(true)
	default:
	}
}

// Stop terminates the engine
func (e *Engine) Stop() {
	if !e.running.CompareAndSwap(true, false) {
		return
	}
	if e.mixer != nil {
		e.mixer.Stop()
	}
	if e.stdin != nil {
		e.stdin.Close()
	}
	if e.ossFile != nil {
		e.ossFile.Close()
	}
	if e.cmd != nil && e.cmd.Process != nil {
		e.cmd.Process.Kill()
	}
	e.wg.Wait()
}

// Play queues snd at the current volume; false when muted, silent or stopped
func (e *Engine) Play(snd *asset.Sound) bool {
	if snd == nil || !e.IsEnabled() || e.mixer == nil {
		return false
	}

	var s beep.Streamer = snd.Streamer()
	if snd.Format.SampleRate != SampleRate {
		s = beep.Resample(4, snd.Format.SampleRate, SampleRate, s)
	}
	s = &effects.Gain{Streamer: s, Gain: e.volume.Get() - 1}
	return e.mixer.Play(s)
}

// ToggleMute toggles mute state, returns true if now enabled
func (e *Engine) ToggleMute() bool {
	muted := !e.muted.Load()
	e.muted.Store(muted)
	return !muted
}

// IsMuted returns current mute state
func (e *Engine) IsMuted() bool { return e.muted.Load() }

// IsSilent reports that no backend is available
func (e *Engine) IsSilent() bool { return e.silent.Load() }

// IsRunning returns true if engine is running (even in silent mode)
func (e *Engine) IsRunning() bool { return e.running.Load() }

// IsEnabled returns true if running, unmuted and not silent
func (e *Engine) IsEnabled() bool {
	return e.running.Load() && !e.muted.Load() && !e.silent.Load()
}

// SetVolume updates master volume (0.0-1.0)
func (e *Engine) SetVolume(vol float64) {
	e.volume.Set(min(max(vol, 0), 1))
}

// Volume returns master volume
func (e *Engine) Volume() float64 { return e.volume.Get() }

// Stats returns played and dropped counts
func (e *Engine) Stats() (played, dropped uint64) {
	if e.mixer == nil {
		return 0, 0
	}
	return e.mixer.Stats()
}
