// SPDX-License-Identifier: MPL-2.0

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cmdtree/cmdtree/internal/dispatch"
	"github.com/cmdtree/cmdtree/internal/live"
	"github.com/cmdtree/cmdtree/pkg/cmdtree"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

type (
	// Trees is the live side the server reads and reloads. *live.Manager
	// implements it.
	Trees interface {
		Current() *cmdtree.Tree
		Reload(ctx context.Context) (*live.Report, error)
	}

	// Config holds the listener settings.
	Config struct {
		// Listen is the host:port to bind; port 0 picks a free port.
		Listen          string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	// Server serves the command tree over HTTP. A Server is single-use:
	// once stopped or failed, create a new one.
	Server struct {
		lifecycle

		cfg        Config
		trees      Trees
		dispatcher *dispatch.Dispatcher
		gatherer   prometheus.Gatherer
		logger     *slog.Logger
		router     chi.Router

		srvMu      sync.Mutex
		httpServer *http.Server
		listener   net.Listener
	}

	// Option configures a Server.
	Option func(*Server)
)

// DefaultConfig returns loopback defaults.
func DefaultConfig() Config {
	return Config{
		Listen:          "127.0.0.1:8080",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// WithLogger sets the logger used for request and lifecycle logs.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithGatherer serves /metrics from g. Without it /metrics answers 404.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New creates a server for trees. Commands are executed by d, which should
// read from the same trees.
func New(cfg Config, trees Trees, d *dispatch.Dispatcher, opts ...Option) *Server {
	def := DefaultConfig()
	if cfg.Listen == "" {
		cfg.Listen = def.Listen
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}

	s := &Server{
		lifecycle:  newLifecycle(),
		cfg:        cfg,
		trees:      trees,
		dispatcher: d,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the router, for mounting elsewhere or for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start binds the listener and serves in the background. It returns once
// the server accepts connections.
func (s *Server) Start(ctx context.Context) error {
	if err := s.toStarting(ctx); err != nil {
		return err
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Listen)
	if err != nil {
		s.toFailed(fmt.Errorf("listen on %s: %w", s.cfg.Listen, err))
		return s.LastError()
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	s.srvMu.Lock()
	s.listener = ln
	s.httpServer = srv
	s.srvMu.Unlock()

	s.wg.Add(1)
	go s.serve(srv, ln)

	s.toRunning()
	s.logger.Info("http server started", "address", ln.Addr().String())
	return nil
}

func (s *Server) serve(srv *http.Server, ln net.Listener) {
	defer s.wg.Done()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error("http server failed", "error", err)
		s.toFailed(fmt.Errorf("serve: %w", err))
	}
}

// Stop shuts the server down gracefully. It is safe to call more than once.
func (s *Server) Stop() error {
	if !s.toStopping() {
		s.wg.Wait()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.srvMu.Lock()
	srv := s.httpServer
	s.srvMu.Unlock()

	var err error
	if srv != nil {
		if err = srv.Shutdown(ctx); err != nil {
			err = fmt.Errorf("shutdown http server: %w", err)
		}
	}
	s.wg.Wait()
	s.toStopped()
	s.logger.Info("http server stopped")
	return err
}

// Wait blocks until the serving goroutine has exited and returns the
// failure, if any.
func (s *Server) Wait() error {
	s.wg.Wait()
	if s.State() == StateFailed {
		return s.LastError()
	}
	return nil
}

// Address returns the bound address, or "" before Start.
func (s *Server) Address() string {
	s.srvMu.Lock()
	defer s.srvMu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// URL returns the base URL of the server, or "" before Start.
func (s *Server) URL() string {
	addr := s.Address()
	if addr == "" {
		return ""
	}
	return "http://" + addr
}
