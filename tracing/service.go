package tracing

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/lixenwraith/tickflow/config"
)

// ServiceName is the hub name of the tracing service
const ServiceName = "tracing"

// Service installs tracing on Init and flushes it on Stop
// A disabled configuration leaves the no-op provider in place
type Service struct {
	cfg      config.Tracing
	version  string
	logger   zerolog.Logger
	provider *Provider
}

func NewService(cfg config.Tracing, version string, logger zerolog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		version: version,
		logger:  logger.With().Str("component", "tracing").Logger(),
	}
}

func (s *Service) Name() string           { return ServiceName }
func (s *Service) Dependencies() []string { return nil }

func (s *Service) Init(context.Context) error {
	if !s.cfg.Enabled {
		return nil
	}
	p, err := Init("flowhost", s.version, s.cfg.Output)
	if err != nil {
		return err
	}
	s.provider = p
	s.logger.Info().Str("output", s.cfg.Output).Msg("tracing enabled")
	return nil
}

func (s *Service) Start() error { return nil }

func (s *Service) Stop() error {
	if s.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	p := s.provider
	s.provider = nil
	return p.Shutdown(ctx)
}
