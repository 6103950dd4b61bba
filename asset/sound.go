package asset

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
	"github.com/rs/zerolog"
	"github.com/viant/afs"

	"github.com/lixenwraith/tickflow/engine"
)

// DefaultChunkSamples is how many samples an async load decodes per tick
const DefaultChunkSamples = 4096

// Sound is a fully decoded audio asset
type Sound struct {
	Buffer *beep.Buffer
	Format beep.Format
}

// Streamer plays the whole sound from the start
func (s *Sound) Streamer() beep.StreamSeeker {
	return s.Buffer.Streamer(0, s.Buffer.Len())
}

// Duration is the playback length
func (s *Sound) Duration() time.Duration {
	return s.Format.SampleRate.D(s.Buffer.Len())
}

// SoundProvider decodes WAV assets from a package base URL (local path or
// any afs-supported scheme). Decoded sounds are cached by path
type SoundProvider struct {
	ctx    context.Context
	sched  *engine.Scheduler
	fs     afs.Service
	base   string
	chunk  int
	queue  *LoadQueue
	logger zerolog.Logger

	mu    sync.RWMutex
	cache map[string]*Sound
}

// SoundOption configures a SoundProvider
type SoundOption func(*SoundProvider)

// WithChunkSamples sets the per-tick decode budget of async loads
func WithChunkSamples(n int) SoundOption {
	return func(p *SoundProvider) {
		if n > 0 {
			p.chunk = n
		}
	}
}

// WithQueue reports async loads into q instead of a private queue
func WithQueue(q *LoadQueue) SoundOption {
	return func(p *SoundProvider) { p.queue = q }
}

// WithFileSystem replaces the default afs service
func WithFileSystem(fs afs.Service) SoundOption {
	return func(p *SoundProvider) { p.fs = fs }
}

// NewSoundProvider creates a provider reading under base
// Async loads run as tasks of s bound to ctx; cancelling ctx fails pending handles
func NewSoundProvider(ctx context.Context, s *engine.Scheduler, base string, logger zerolog.Logger, opts ...SoundOption) *SoundProvider {
	p := &SoundProvider{
		ctx:    ctx,
		sched:  s,
		base:   base,
		chunk:  DefaultChunkSamples,
		logger: logger.With().Str("component", "sound").Logger(),
		cache:  make(map[string]*Sound),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.ctx == nil {
		p.ctx = context.Background()
	}
	if p.fs == nil {
		p.fs = afs.New()
	}
	if p.queue == nil {
		p.queue = NewLoadQueue()
	}
	return p
}

// Queue returns the queue async loads are tracked in
func (p *SoundProvider) Queue() *LoadQueue { return p.queue }

// Progress implements Provider
func (p *SoundProvider) Progress() float64 { return p.queue.Progress() }

// Load implements Provider
func (p *SoundProvider) Load(path string) (any, error) {
	return p.LoadSound(path)
}

// LoadSound decodes the whole file synchronously
func (p *SoundProvider) LoadSound(path string) (*Sound, error) {
	if snd, ok := p.cached(path); ok {
		return snd, nil
	}

	stream, format, err := p.open(p.ctx, path)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	buf := beep.NewBuffer(format)
	buf.Append(stream)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	snd := &Sound{Buffer: buf, Format: format}
	p.store(path, snd)
	return snd, nil
}

// LoadAsync implements Provider
// A cached sound completes immediately, before LoadAsync returns
func (p *SoundProvider) LoadAsync(path string, onComplete func(*Handle)) *Handle {
	h := newHandle(path)
	p.queue.Add(h)

	if snd, ok := p.cached(path); ok {
		h.finish(snd, nil)
		if onComplete != nil {
			onComplete(h)
		}
		return h
	}

	l := &soundLoad{provider: p, handle: h, onComplete: onComplete}
	if _, err := p.sched.StartTask(p.ctx, "sound:"+path, l.step); err != nil {
		l.fail(err)
		return h
	}
	// Tasks are never resumed after cancellation, so the handle is failed here
	l.stop = context.AfterFunc(p.ctx, func() {
		l.cancel(p.ctx.Err())
	})
	return h
}

func (p *SoundProvider) url(path string) string {
	return joinURL(p.base, path)
}

func (p *SoundProvider) open(ctx context.Context, path string) (beep.StreamSeekCloser, beep.Format, error) {
	data, err := p.fs.DownloadWithURL(ctx, p.url(path))
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("read %s: %w", path, err)
	}
	stream, format, err := wav.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return stream, format, nil
}

func (p *SoundProvider) cached(path string) (*Sound, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	snd, ok := p.cache[path]
	return snd, ok
}

func (p *SoundProvider) store(path string, snd *Sound) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache[path] = snd
}

// soundLoad decodes one file a chunk per resumption
type soundLoad struct {
	provider   *SoundProvider
	handle     *Handle
	onComplete func(*Handle)
	stop       func() bool

	// mu guards the stream against cancellation from the context's goroutine
	mu       sync.Mutex
	released bool
	stream   beep.StreamSeekCloser
	format   beep.Format
	buffer   *beep.Buffer
}

func (l *soundLoad) step(ctx context.Context, _ time.Duration) (engine.Status, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return engine.Done, nil
	}

	if l.stream == nil {
		stream, format, err := l.provider.open(ctx, l.handle.path)
		if err != nil {
			l.fail(err)
			return engine.Done, nil
		}
		l.stream, l.format = stream, format
		l.buffer = beep.NewBuffer(format)
	}

	l.buffer.Append(beep.Take(l.provider.chunk, l.stream))
	if err := l.stream.Err(); err != nil {
		l.fail(fmt.Errorf("decode %s: %w", l.handle.path, err))
		return engine.Done, nil
	}

	total := l.stream.Len()
	pos := l.stream.Position()
	if pos < total {
		l.handle.setProgress(float64(pos) / float64(total))
		return engine.Running, nil
	}

	l.closeStream()
	snd := &Sound{Buffer: l.buffer, Format: l.format}
	l.provider.store(l.handle.path, snd)
	l.complete(snd, nil)
	return engine.Done, nil
}

// cancel fails the handle off the tick thread, so onComplete is not called
func (l *soundLoad) cancel(err error) {
	l.mu.Lock()
	l.closeStream()
	l.mu.Unlock()
	if l.handle.finish(nil, err) {
		l.provider.logger.Debug().Err(err).Str("path", l.handle.path).Msg("sound load cancelled")
	}
}

// closeStream releases the decoder; callers hold mu
func (l *soundLoad) closeStream() {
	l.released = true
	if l.stream != nil {
		l.stream.Close()
		l.stream = nil
	}
}

func (l *soundLoad) fail(err error) {
	l.closeStream()
	l.provider.logger.Error().Err(err).Str("path", l.handle.path).Msg("sound load failed")
	l.complete(nil, err)
}

func (l *soundLoad) complete(snd *Sound, err error) {
	if l.stop != nil {
		l.stop()
	}
	if !l.handle.finish(snd, err) {
		return
	}
	if err == nil {
		l.provider.logger.Debug().Str("path", l.handle.path).Dur("duration", snd.Duration()).Msg("sound loaded")
	}
	if l.onComplete != nil {
		l.onComplete(l.handle)
	}
}
