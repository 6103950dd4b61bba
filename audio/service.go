package audio

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lixenwraith/tickflow/config"
)

// ServiceName is the hub name of the audio service
const ServiceName = "audio"

// Service wraps Engine for the service hub
// Handles graceful degradation when no audio backend is available
type Service struct {
	cfg    config.Audio
	logger zerolog.Logger
	opts   []EngineOption
	engine *Engine
}

func NewService(cfg config.Audio, logger zerolog.Logger, opts ...EngineOption) *Service {
	return &Service{cfg: cfg, logger: logger, opts: opts}
}

// Name implements service.Service
func (s *Service) Name() string { return ServiceName }

// Dependencies implements service.Service
func (s *Service) Dependencies() []string { return nil }

// Init implements service.Service
func (s *Service) Init(context.Context) error {
	s.engine = NewEngine(s.cfg, s.logger, s.opts...)
	return nil
}

// Start implements service.Service; a missing backend is not an error
func (s *Service) Start() error {
	return s.engine.Start()
}

// Stop implements service.Service
func (s *Service) Stop() error {
	if s.engine != nil {
		s.engine.Stop()
	}
	return nil
}

// Engine returns the engine, nil before Init
func (s *Service) Engine() *Engine { return s.engine }
