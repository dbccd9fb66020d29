// Package server is the remote store: an HTTP front for one storage backend.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/openmined/skywriter/internal/auth"
	"github.com/openmined/skywriter/internal/server/store"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	config *Config
	server *http.Server
	store  store.Store
}

func New(ctx context.Context, config *Config) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	st, err := store.New(ctx, &config.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	return NewWithStore(config, st)
}

// NewWithStore wires the HTTP layer around an already built store.
func NewWithStore(config *Config, st store.Store) (*Server, error) {
	handler, err := SetupRoutes(config, st, auth.NewVerifier(&config.Auth))
	if err != nil {
		return nil, err
	}

	return &Server{
		config: config,
		store:  st,
		server: &http.Server{
			Addr:              config.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	slog.Info("skywriter server start", "addr", s.config.HTTP.Addr, "backend", s.config.Storage.Backend, "auth", s.config.Auth.Enabled)
	defer slog.Info("skywriter server stop")

	ln, err := net.Listen("tcp", s.config.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.HTTP.Addr, err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("server shutdown signal")
	}

	return s.Stop()
}

func (s *Server) Stop() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.server.Shutdown(shutdownCtx)
	return errors.Join(err, s.store.Close())
}

func (s *Server) serve(ln net.Listener) error {
	if s.config.HTTP.TLS() {
		slog.Info("server start tls", "addr", ln.Addr(), "cert", s.config.HTTP.CertFile, "key", s.config.HTTP.KeyFile)
		return s.server.ServeTLS(ln, s.config.HTTP.CertFile, s.config.HTTP.KeyFile)
	}
	slog.Info("server start http", "addr", ln.Addr())
	return s.server.Serve(ln)
}
