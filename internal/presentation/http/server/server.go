// Package server owns the HTTP listener for the tracker API.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/AtRiskMedia/cartloop-go/internal/application/container"
	"github.com/AtRiskMedia/cartloop-go/internal/presentation/http/routes"
	"github.com/AtRiskMedia/cartloop-go/pkg/config"
)

// Server wraps the standard library HTTP server around the tracker's route
// tree and timeout configuration.
type Server struct {
	httpServer *http.Server
	container  *container.Container
}

// New builds the listener on the given port with the shared service container.
func New(port string, container *container.Container) *Server {
	router := routes.SetupRoutes(container)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	return &Server{
		httpServer: httpServer,
		container:  container,
	}
}

// Start listens until the server is shut down. A clean shutdown is not an
// error.
func (s *Server) Start() error {
	s.container.Logger.System().Info("HTTP listener starting", "addr", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http listener failed: %w", err)
	}

	return nil
}

// Stop drains in-flight requests within the ctx deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.container.Logger.Shutdown().Info("HTTP listener draining")
	return s.httpServer.Shutdown(ctx)
}
