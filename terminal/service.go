package terminal

import (
	"context"
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
)

// ServiceName is the hub name of the terminal service
const ServiceName = "terminal"

// Service manages screen lifecycle and input polling
type Service struct {
	screen   tcell.Screen
	logger   zerolog.Logger
	eventCh  chan tcell.Event
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	running  bool
	finiOnce sync.Once
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithScreen uses an existing screen instead of opening the controlling terminal
func WithScreen(screen tcell.Screen) ServiceOption {
	return func(s *Service) { s.screen = screen }
}

func NewService(logger zerolog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		logger:  logger.With().Str("component", "terminal").Logger(),
		eventCh: make(chan tcell.Event, 256),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements service.Service
func (s *Service) Name() string { return ServiceName }

// Dependencies implements service.Service
func (s *Service) Dependencies() []string { return nil }

// Init implements service.Service
func (s *Service) Init(context.Context) error {
	if s.screen == nil {
		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("terminal open: %w", err)
		}
		s.screen = screen
	}
	if err := s.screen.Init(); err != nil {
		return fmt.Errorf("terminal init: %w", err)
	}
	s.screen.HideCursor()
	s.screen.Clear()
	return nil
}

// Start implements service.Service, launching the input polling goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	go s.pollLoop()
	return nil
}

// pollLoop reads input events until stop signal
func (s *Service) pollLoop() {
	defer close(s.doneCh)
	defer func() {
		if r := recover(); r != nil {
			CrashHandler(s.screen)(r)
		}
	}()

	for {
		ev := s.screen.PollEvent()
		if ev == nil {
			return
		}
		if _, ok := ev.(*tcell.EventInterrupt); ok {
			select {
			case <-s.stopCh:
				return
			default:
			}
		}

		select {
		case s.eventCh <- ev:
		case <-s.stopCh:
			return
		default:
			s.logger.Warn().Msg("event channel full, dropping input event")
		}
	}
}

// Stop implements service.Service, ending polling and restoring the terminal
func (s *Service) Stop() error {
	s.mu.Lock()
	running := s.running
	s.running = false
	s.mu.Unlock()

	if running {
		close(s.stopCh)
		// Unblock PollEvent
		if err := s.screen.PostEvent(tcell.NewEventInterrupt(nil)); err != nil {
			s.logger.Debug().Err(err).Msg("interrupt post failed")
		}
		<-s.doneCh
	}

	if s.screen != nil {
		s.finiOnce.Do(s.screen.Fini)
	}
	return nil
}

// Screen returns the managed screen, nil before Init
func (s *Service) Screen() tcell.Screen { return s.screen }

// Events returns the input event channel
func (s *Service) Events() <-chan tcell.Event { return s.eventCh }
