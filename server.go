// Package swayless composes the tag coordinator, the control socket, and the
// focus listener into the daemon.
package swayless

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/swayless/core"
	"pkt.systems/swayless/ctlsocket"
	"pkt.systems/swayless/internal/eventbus"
	"pkt.systems/swayless/internal/focuswatch"
	"pkt.systems/swayless/schema"
)

// Server runs the daemon.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerConfig configures the daemon.
type ServerConfig struct {
	Coordinator schema.CoordinatorConfig
	Socket      ctlsocket.ServerConfig
}

// ServerDeps captures dependencies required to build the daemon.
type ServerDeps struct {
	WindowManager core.WindowManager
	// Focus is optional; without it external focus changes go unobserved.
	Focus core.FocusSource
	// Sink receives state events in addition to watch subscribers.
	Sink   core.StateSink
	Logger pslog.Logger
}

// New constructs the daemon.
func New(cfg ServerConfig, deps ServerDeps) (Server, error) {
	if deps.WindowManager == nil {
		return nil, errors.New("window manager dependency is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	bus := eventbus.New(logger)
	coord, err := core.NewCoordinator(cfg.Coordinator, core.CoordinatorDeps{
		WindowManager: deps.WindowManager,
		Sink:          fanoutSinks(deps.Sink, bus),
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	ctl, err := ctlsocket.NewServer(cfg.Socket, ctlsocket.ServerDeps{
		Coordinator: coord,
		Events:      bus,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	srv := &daemon{
		cfg:    cfg,
		coord:  coord,
		ctl:    ctl,
		bus:    bus,
		logger: logger,
	}
	if deps.Focus != nil {
		srv.focus = focuswatch.New(deps.Focus, coord, logger)
	}
	return srv, nil
}

type daemon struct {
	cfg    ServerConfig
	coord  core.Coordinator
	ctl    *ctlsocket.Server
	focus  *focuswatch.Watcher
	bus    *eventbus.Bus
	logger pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	wg      sync.WaitGroup
	started bool
}

// Start binds the control socket, initializes every output, and launches
// the accept loop and the focus listener.
func (s *daemon) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		s.logger.Warn("daemon start rejected", "reason", "already started")
		return errors.New("daemon already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 2)
	s.started = true
	s.mu.Unlock()

	log := s.logger
	log.Info("daemon start", "socket", s.ctl.Path(), "initial_tag", s.cfg.Coordinator.InitialTag, "focus_listener", s.focus != nil)
	if err := s.ctl.Listen(); err != nil {
		s.cancel()
		return err
	}
	initCtx := pslog.ContextWithLogger(s.ctx, log.With("verb", schema.VerbInit))
	if err := s.coord.Init(initCtx); err != nil {
		_ = s.ctl.Close()
		s.cancel()
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.ctl.Serve(s.ctx); err != nil {
			log.Error("control socket failed", "err", err)
			s.errCh <- err
		}
	}()
	if s.focus != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.focus.Run(s.ctx); err != nil {
				log.Error("focus listener stopped", "err", err)
			}
		}()
	}
	return nil
}

func (s *daemon) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("daemon not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			s.logger.Error("daemon stopped", "err", err)
			_ = s.Stop(context.Background())
			return err
		}
		return nil
	}
}

func (s *daemon) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil
	}
	log := s.logger
	log.Info("daemon stop requested")
	if cancel != nil {
		cancel()
	}
	s.bus.Close()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		log.Warn("daemon stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-done:
		log.Info("daemon stopped")
		return nil
	}
}
