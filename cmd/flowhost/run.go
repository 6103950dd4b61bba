package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/lixenwraith/tickflow/audio"
	"github.com/lixenwraith/tickflow/config"
	"github.com/lixenwraith/tickflow/logging"
	"github.com/lixenwraith/tickflow/service"
	"github.com/lixenwraith/tickflow/terminal"
	"github.com/lixenwraith/tickflow/tracing"
)

func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	return config.Load(configPath)
}

func run(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The view owns the terminal; logs go to a file or nowhere
	var out io.Writer = os.Stderr
	if !headless && cfg.Log.File == "" {
		out = io.Discard
	}
	logger, closer, err := logging.New(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, Out: out})
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := service.NewHub(logger)
	var screen *terminal.Service
	if !headless {
		screen = terminal.NewService(logger)
	}
	sound := audio.NewService(cfg.Audio, logger)
	rt := newRuntime(cfg, logger, screen, sound, maxTicks, stop)

	svcs := []service.Service{tracing.NewService(cfg.Tracing, version, logger), sound, rt}
	if screen != nil {
		svcs = append(svcs, screen)
	}
	for _, svc := range svcs {
		if err := hub.Register(svc); err != nil {
			return err
		}
	}

	if err := hub.InitAll(ctx); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := hub.StartAll(); err != nil {
		return errors.Join(fmt.Errorf("start: %w", err), hub.StopAll())
	}
	logger.Info().Strs("services", hub.Names()).Dur("interval", cfg.Engine.TickInterval).Msg("flowhost running")

	select {
	case <-ctx.Done():
	case <-rt.Done():
	}

	err = hub.StopAll()
	logStats(logger, rt)
	return err
}

func logStats(logger zerolog.Logger, rt *runtime) {
	ev := logger.Info().Uint64("ticks", rt.driver.Ticks())
	for k, v := range rt.sched.Status().Snapshot().Ints {
		ev = ev.Int64(k, v)
	}
	ev.Msg("flowhost stopped")
}
