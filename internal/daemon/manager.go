// SPDX-License-Identifier: MIT

// Package daemon manages the process lifecycle: the HTTP server, the engine
// scheduler and graceful teardown of every persistent resource.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gjbm2/screen-machine-sub000/internal/engine"
)

// ShutdownHook performs cleanup during graceful shutdown. Hooks run in
// reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

type namedHook struct {
	name string
	hook ShutdownHook
}

// Manager runs the API server and the engine scheduler and coordinates
// shutdown between them.
type Manager struct {
	listenAddr      string
	handler         http.Handler
	engine          *engine.Engine
	logger          zerolog.Logger
	shutdownTimeout time.Duration

	mu            sync.Mutex
	started       bool
	shutdownHooks []namedHook

	apiServer *http.Server
}

// NewManager creates a Manager. The engine may already have hooks attached
// (file watchers, pruners) registered via RegisterShutdownHook.
func NewManager(listenAddr string, handler http.Handler, eng *engine.Engine, logger zerolog.Logger) *Manager {
	return &Manager{
		listenAddr:      listenAddr,
		handler:         handler,
		engine:          eng,
		logger:          logger.With().Str("component", "daemon").Logger(),
		shutdownTimeout: 30 * time.Second,
	}
}

// RegisterShutdownHook adds a named cleanup step; hooks run LIFO.
func (m *Manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shutdownHooks = append(m.shutdownHooks, namedHook{name: name, hook: hook})
}

// Start runs the servers and blocks until ctx is cancelled or a server
// fails, then shuts everything down.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return fmt.Errorf("manager already started")
	}
	m.started = true
	m.mu.Unlock()

	m.logger.Info().
		Str("event", "daemon.starting").
		Str("listen", m.listenAddr).
		Msg("starting daemon")

	errChan := make(chan error, 2)

	go func() {
		if err := m.engine.Run(ctx); err != nil {
			errChan <- fmt.Errorf("engine scheduler: %w", err)
		}
	}()

	m.apiServer = &http.Server{
		Addr:              m.listenAddr,
		Handler:           m.handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		m.logger.Info().
			Str("event", "api.listening").
			Str("addr", m.listenAddr).
			Msg("API server listening")
		if err := m.apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("api server: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		m.logger.Error().Err(err).Str("event", "daemon.server_failed").Msg("server error, shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.shutdownTimeout)
		defer cancel()
		if shutdownErr := m.Shutdown(shutdownCtx); shutdownErr != nil {
			return errors.Join(err, shutdownErr)
		}
		return err
	case <-ctx.Done():
		m.logger.Info().Str("event", "daemon.signal").Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.shutdownTimeout)
		defer cancel()
		return m.Shutdown(shutdownCtx)
	}
}

// Shutdown stops the API server, tears the engine down and runs the
// registered hooks in LIFO order.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error

	if m.apiServer != nil {
		if err := m.apiServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("api server shutdown: %w", err))
		}
	}

	m.engine.Close()

	m.mu.Lock()
	hooks := make([]namedHook, len(m.shutdownHooks))
	copy(hooks, m.shutdownHooks)
	m.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		m.logger.Debug().
			Str("event", "daemon.hook").
			Str("hook", h.name).
			Msg("running shutdown hook")
		if err := h.hook(ctx); err != nil {
			m.logger.Warn().Err(err).
				Str("event", "daemon.hook_failed").
				Str("hook", h.name).
				Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
		}
	}

	m.logger.Info().Str("event", "daemon.stopped").Msg("daemon stopped")
	return errors.Join(errs...)
}
