// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/vidlingo/internal/config"
	"github.com/ManuGH/vidlingo/internal/log"
)

// ShutdownHook releases a resource once the trigger API has stopped
// accepting requests. Hooks run last registered first.
type ShutdownHook func(ctx context.Context) error

// Manager owns the listener of the trigger API.
type Manager interface {
	// Start serves until ctx ends or the server fails, then shuts down.
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
	RegisterShutdownHook(name string, hook ShutdownHook)
	// Addr blocks until Start has bound (or failed to bind) the listener.
	Addr() string
}

type namedHook struct {
	name string
	hook ShutdownHook
}

type manager struct {
	cfg     config.ServerConfig
	handler http.Handler
	logger  zerolog.Logger
	ready   chan struct{}

	mu       sync.Mutex
	srv      *http.Server
	addr     string
	hooks    []namedHook
	started  bool
	stopping bool
}

// NewManager validates deps and returns an idle manager.
func NewManager(deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	return &manager{
		cfg:     deps.Server,
		handler: deps.APIHandler,
		logger:  deps.Logger.With().Str(log.FieldComponent, "manager").Logger(),
		ready:   make(chan struct{}),
	}, nil
}

func (m *manager) shutdownTimeout() time.Duration {
	if m.cfg.ShutdownTimeout > 0 {
		return m.cfg.ShutdownTimeout
	}
	return 15 * time.Second
}

func (m *manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("manager already started")
	}
	m.started = true
	m.mu.Unlock()

	ln, err := net.Listen("tcp", m.cfg.ListenAddr)
	if err != nil {
		close(m.ready)
		return fmt.Errorf("listen %s: %w", m.cfg.ListenAddr, err)
	}
	srv := &http.Server{
		Handler:           m.handler,
		ReadTimeout:       m.cfg.ReadTimeout,
		ReadHeaderTimeout: m.cfg.ReadTimeout / 2,
		WriteTimeout:      m.cfg.WriteTimeout,
	}
	m.mu.Lock()
	m.srv, m.addr = srv, ln.Addr().String()
	m.mu.Unlock()
	close(m.ready)

	m.logger.Info().
		Str(log.FieldEvent, "api.listening").
		Str("addr", ln.Addr().String()).
		Dur("read_timeout", m.cfg.ReadTimeout).
		Dur("write_timeout", m.cfg.WriteTimeout).
		Msg("trigger API listening")

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var cause error
	select {
	case err, ok := <-serveErr:
		if ok {
			cause = fmt.Errorf("API server: %w", err)
			m.logger.Error().Err(err).Str(log.FieldEvent, "api.server.failed").Msg("trigger API failed")
		}
	case <-ctx.Done():
		m.logger.Info().Str(log.FieldEvent, "api.stopping").Msg("shutdown requested")
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.shutdownTimeout())
	defer cancel()
	return errors.Join(cause, m.Shutdown(stopCtx))
}

func (m *manager) Addr() string {
	<-m.ready
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

// Shutdown drains in-flight requests, then runs the hooks. Calling it again is a no-op.
func (m *manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	switch {
	case m.stopping:
		m.mu.Unlock()
		return nil
	case !m.started:
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	srv := m.srv
	hooks := slices.Clone(m.hooks)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.shutdownTimeout())
	defer cancel()

	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("API server shutdown: %w", err))
		}
	}
	for _, h := range slices.Backward(hooks) {
		start := time.Now()
		err := h.hook(ctx)
		ev := m.logger.Debug()
		if err != nil {
			ev = m.logger.Error().Err(err)
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
		}
		ev.Str("hook", h.name).Dur("duration", time.Since(start)).Msg("shutdown hook finished")
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	m.logger.Info().Str(log.FieldEvent, "api.stopped").Msg("trigger API stopped")
	return nil
}

func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, namedHook{name: name, hook: hook})
}
