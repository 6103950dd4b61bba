package asset

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/viant/afs"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lixenwraith/tickflow/config"
	"github.com/lixenwraith/tickflow/engine"
	"github.com/lixenwraith/tickflow/status"
)

// ModuleName is the scheduler name of the bootstrap module
const ModuleName = "asset"

const tracerName = "github.com/lixenwraith/tickflow/asset"

var ErrNotReady = errors.New("asset package is not ready")

// Bootstrap initializes the default asset package when created and then
// publishes load progress every tick. Initialization runs once; a failure is
// logged and kept in Err, it is never retried
type Bootstrap struct {
	cfg    config.Assets
	base   zerolog.Logger
	logger zerolog.Logger
	tracer trace.Tracer
	fs     afs.Service

	ctx   context.Context
	sched *engine.Scheduler
	op    *InitOperation
	span  trace.Span
	queue *LoadQueue

	pkg      *Package
	err      error
	ready    bool
	finished bool

	statProgress *status.AtomicFloat
	statPending  *atomic.Int64
	statReady    *atomic.Bool
}

// BootstrapOption configures a Bootstrap
type BootstrapOption func(*Bootstrap)

// WithBootstrapTracer replaces the global tracer for the init span
func WithBootstrapTracer(t trace.Tracer) BootstrapOption {
	return func(b *Bootstrap) { b.tracer = t }
}

// WithBootstrapFileSystem replaces the default afs service
func WithBootstrapFileSystem(fs afs.Service) BootstrapOption {
	return func(b *Bootstrap) { b.fs = fs }
}

func NewBootstrap(cfg config.Assets, logger zerolog.Logger, opts ...BootstrapOption) *Bootstrap {
	b := &Bootstrap{
		cfg:    cfg,
		base:   logger,
		logger: logger.With().Str("component", "asset").Logger(),
		tracer: otel.Tracer(tracerName),
		queue:  NewLoadQueue(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.fs == nil {
		b.fs = afs.New()
	}
	return b
}

// Name implements engine.Module
func (b *Bootstrap) Name() string { return ModuleName }

// OnCreate implements engine.Module
func (b *Bootstrap) OnCreate(ctx context.Context, s *engine.Scheduler, _ ...any) error {
	switch b.cfg.PlayMode {
	case config.PlayModeEditorSimulate, config.PlayModeOffline, config.PlayModeHost:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPlayMode, b.cfg.PlayMode)
	}

	b.ctx = ctx
	b.sched = s
	b.statProgress = s.Status().Floats.Get(status.AssetProgress)
	b.statPending = s.Status().Ints.Get(status.AssetPending)
	b.statReady = s.Status().Bools.Get(status.AssetReady)

	spec := SpecFromConfig(b.cfg)
	_, b.span = b.tracer.Start(ctx, "asset.init_package",
		trace.WithAttributes(
			attribute.String("package", spec.Name),
			attribute.String("play_mode", string(spec.Mode)),
		))

	b.op = Initialize(ctx, b.fs, spec)
	_, err := s.StartTask(ctx, "asset.init_package", engine.Sequence(
		engine.WaitUntil(b.op.IsDone),
		engine.Do(b.finish),
	))
	if err != nil {
		b.endSpan()
		return err
	}
	b.logger.Info().Str("package", spec.Name).Str("play_mode", string(spec.Mode)).Msg("package initialization started")
	return nil
}

// finish runs on the tick thread once the operation completed
func (b *Bootstrap) finish(context.Context) error {
	b.finished = true
	defer b.endSpan()

	if err := b.op.Err(); err != nil {
		b.err = err
		b.span.RecordError(err)
		b.span.SetStatus(codes.Error, err.Error())
		b.logger.Error().Err(err).
			Str("package", b.cfg.DefaultPackage).
			Str("play_mode", string(b.cfg.PlayMode)).
			Msg("package initialization failed")
		return nil
	}

	b.pkg = b.op.Package()
	b.ready = true
	b.statReady.Store(true)
	b.logger.Info().
		Str("package", b.pkg.Name).
		Str("play_mode", string(b.pkg.Mode)).
		Str("base", b.pkg.BaseURL).
		Int("files", len(b.pkg.Files)).
		Msg("package initialized")
	return nil
}

// OnUpdate implements engine.Module
func (b *Bootstrap) OnUpdate(time.Duration) error {
	b.statProgress.Set(b.queue.Progress())
	b.statPending.Store(int64(b.queue.Pending()))
	return nil
}

// OnDestroy implements engine.Module
func (b *Bootstrap) OnDestroy() {
	if !b.finished && b.span != nil {
		b.span.SetStatus(codes.Error, "destroyed before package initialized")
		b.endSpan()
	}
	b.statReady.Store(false)
	b.ready = false
}

func (b *Bootstrap) endSpan() {
	if b.span != nil {
		b.span.End()
		b.span = nil
	}
}

// Ready reports whether the package initialized successfully
func (b *Bootstrap) Ready() bool { return b.ready }

// Done reports whether initialization finished, successfully or not
func (b *Bootstrap) Done() bool { return b.finished }

// Err returns the initialization failure
func (b *Bootstrap) Err() error { return b.err }

// Package returns the initialized package, nil until Ready
func (b *Bootstrap) Package() *Package { return b.pkg }

// Queue is where providers created by the bootstrap report async loads
func (b *Bootstrap) Queue() *LoadQueue { return b.queue }

// Sounds returns a sound provider over the initialized package
func (b *Bootstrap) Sounds(opts ...SoundOption) (*SoundProvider, error) {
	if !b.ready {
		return nil, ErrNotReady
	}
	opts = append([]SoundOption{WithQueue(b.queue), WithFileSystem(b.fs)}, opts...)
	return NewSoundProvider(b.ctx, b.sched, b.pkg.BaseURL, b.base, opts...), nil
}
