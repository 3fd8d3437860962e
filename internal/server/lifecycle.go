// Package server runs HTTP servers with graceful shutdown
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lcrostarosa/vigil/internal/logging"
)

// ShutdownTimeout is the default timeout for graceful shutdown
const ShutdownTimeout = 5 * time.Second

// GracefulServer wraps an http.Server with graceful shutdown capabilities
type GracefulServer struct {
	name         string
	server       *http.Server
	listener     net.Listener
	timeout      time.Duration
	beforeStop   func()
	shutdownHook func()
	log          *zap.Logger
}

// GracefulServerOptions configures a GracefulServer
type GracefulServerOptions struct {
	// BeforeStop is called before initiating shutdown (e.g., stop the dispatcher)
	BeforeStop func()
	// ShutdownHook is called after server shutdown completes
	ShutdownHook func()
	// Timeout bounds the shutdown; ShutdownTimeout when zero
	Timeout time.Duration
}

// NewGracefulServer creates a server wrapper with graceful shutdown. name
// only labels log lines.
func NewGracefulServer(name string, server *http.Server, opts *GracefulServerOptions) *GracefulServer {
	gs := &GracefulServer{
		name:    name,
		server:  server,
		timeout: ShutdownTimeout,
		log:     logging.Named("server").With(zap.String("server", name)),
	}
	if opts != nil {
		gs.beforeStop = opts.BeforeStop
		gs.shutdownHook = opts.ShutdownHook
		if opts.Timeout > 0 {
			gs.timeout = opts.Timeout
		}
	}
	return gs
}

// Listen binds the listen address without serving yet. Calling it first
// lets callers learn the port when the address ends in ":0".
func (gs *GracefulServer) Listen() error {
	if gs.listener != nil {
		return nil
	}
	addr := gs.server.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	gs.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (gs *GracefulServer) Addr() string {
	if gs.listener != nil {
		return gs.listener.Addr().String()
	}
	return gs.server.Addr
}

// Serve serves until ctx is cancelled, then shuts down gracefully. It
// returns nil after a clean shutdown.
func (gs *GracefulServer) Serve(ctx context.Context) error {
	if err := gs.Listen(); err != nil {
		return err
	}
	gs.log.Info("listening", zap.String("addr", gs.Addr()))

	errCh := make(chan error, 1)
	go func() {
		if err := gs.server.Serve(gs.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			gs.log.Error("server error", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
		return gs.Shutdown()
	}
}

// ListenAndServe serves until SIGINT or SIGTERM.
// This is a blocking call that returns when the server has been shut down.
func (gs *GracefulServer) ListenAndServe() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return gs.Serve(ctx)
}

// Shutdown gracefully shuts down the server
func (gs *GracefulServer) Shutdown() error {
	gs.log.Info("shutting down")

	if gs.beforeStop != nil {
		gs.beforeStop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gs.timeout)
	defer cancel()

	if err := gs.server.Shutdown(ctx); err != nil {
		return err
	}

	if gs.shutdownHook != nil {
		gs.shutdownHook()
	}

	gs.log.Info("server stopped")
	return nil
}

// RunWithGracefulShutdown starts an HTTP server and handles shutdown signals.
// beforeStop is called before shutdown begins (can be nil).
func RunWithGracefulShutdown(name string, server *http.Server, beforeStop func()) error {
	gs := NewGracefulServer(name, server, &GracefulServerOptions{
		BeforeStop: beforeStop,
	})
	return gs.ListenAndServe()
}
