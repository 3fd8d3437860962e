package relay

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lcrostarosa/vigil/internal/logging"
	"github.com/lcrostarosa/vigil/internal/middleware"
)

// MaxBodyBytes bounds request bodies
const MaxBodyBytes = 64 << 10

// ServerConfig configures the relay HTTP server
type ServerConfig struct {
	Addr string
	// APIKey is required on every route but /health. An empty key with Open
	// set disables authentication.
	APIKey string
	Open   bool
	// RateLimit defaults to middleware.DefaultRateLimitConfig
	RateLimit *middleware.RateLimitConfig
	// Metrics is mounted at /metrics when set
	Metrics http.Handler
	Clock   clockwork.Clock
}

// Server is the relay HTTP API
type Server struct {
	httpServer *http.Server
	dispatcher *Dispatcher
	store      *TaskStore
	limiter    *middleware.RateLimiter
	clock      clockwork.Clock
	metrics    http.Handler
	addr       string
}

// NewServer creates the relay server
func NewServer(cfg ServerConfig, d *Dispatcher) *Server {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Server{
		dispatcher: d,
		store:      d.store,
		limiter:    middleware.NewRateLimiter(cfg.RateLimit),
		clock:      clock,
		metrics:    cfg.Metrics,
		addr:       cfg.Addr,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := middleware.Chain(mux,
		middleware.Logging,
		s.limiter.Middleware,
		middleware.RequireAPIKey(cfg.APIKey, cfg.Open, "/health"),
	)

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		ErrorLog:     logging.StdLogger(),
	}
	return s
}

// HTTPServer returns the underlying server for lifecycle management
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.addr
}

// Start listens and serves until Shutdown
func (s *Server) Start() error {
	logging.Info("relay listening", logging.String("addr", s.addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the server and its rate limiter
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.httpServer.Shutdown(ctx)
}
