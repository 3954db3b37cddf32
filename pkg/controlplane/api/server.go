// Package api implements the control-plane REST API: remote-entity
// configuration management and transaction status/cancel, gated by
// HMAC JWT authentication.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cfdpgo/entity/internal/logger"
	"github.com/cfdpgo/entity/pkg/cfdp/host"
	"github.com/cfdpgo/entity/pkg/cfdp/remoteconfig"
	"github.com/cfdpgo/entity/pkg/cfdp/remoteconfig/store"
	"github.com/cfdpgo/entity/pkg/controlplane/api/auth"
)

// Server is the control-plane HTTP server. It is created stopped;
// call Start to begin serving.
type Server struct {
	server       *http.Server
	config       Config
	shutdownOnce sync.Once
}

// NewServer builds a Server wired to manager (transaction status/
// cancel), db and table (remote-config CRUD, mirrored into the live
// Table), configured by config.
func NewServer(config Config, manager *host.Manager, db *store.GORMStore, table *remoteconfig.Table) (*Server, error) {
	config.applyDefaults()

	secret := config.JWTSecret()
	if len(secret) < 32 {
		return nil, fmt.Errorf("JWT secret must be at least 32 characters; set via %s env var or config", EnvJWTSecret)
	}

	jwtSvc, err := auth.New(auth.Config{
		Secret:        secret,
		Issuer:        "cfdpd",
		TokenDuration: config.JWT.TokenDuration,
	})
	if err != nil {
		return nil, fmt.Errorf("create JWT service: %w", err)
	}

	router := NewRouter(manager, db, table, jwtSvc)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", config.Port),
			Handler:      router,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
		config: config,
	}, nil
}

// Start serves the API until ctx is cancelled, then shuts down
// gracefully. Returns nil on a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		logger.Info("control-plane API listening", "port", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("control-plane API shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("control-plane API failed: %w", err)
	}
}

// Stop gracefully shuts down the server. Safe to call multiple times.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("control-plane API shutdown error: %w", err)
			logger.Error("control-plane API shutdown error", "error", err)
		} else {
			logger.Info("control-plane API stopped gracefully")
		}
	})
	return shutdownErr
}

// Port returns the TCP port the server is configured to listen on.
func (s *Server) Port() int { return s.config.Port }
