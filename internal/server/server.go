// Package server exposes the agent over HTTP and websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/server/handler"
	"github.com/alanyoungcy/polyarb/internal/server/middleware"
	"github.com/alanyoungcy/polyarb/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            int
	CORSOrigins     []string
	APIKey          string // empty disables authentication
	RateLimitPerMin int    // 0 disables rate limiting
	OrderTimeout    time.Duration
}

// writeTimeout leaves room for ?execute=true, which may wait out a full
// order timeout before answering.
func (c Config) writeTimeout() time.Duration {
	return max(2*time.Minute, c.OrderTimeout+time.Minute)
}

// Handlers aggregates the HTTP handlers to register.
type Handlers struct {
	Health *handler.HealthHandler
	Agent  *handler.AgentHandler
}

// Server is the control API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers the routes and builds the middleware chain. wsHub and
// limiter are optional.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	mws := []middleware.Middleware{
		middleware.CORS(cfg.CORSOrigins),
		middleware.Logging(logger),
	}
	if limiter != nil && cfg.RateLimitPerMin > 0 {
		mws = append(mws, middleware.RateLimit(limiter, cfg.RateLimitPerMin, time.Minute, logger))
	}
	mws = append(mws, middleware.Auth(cfg.APIKey, "/api/health"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           middleware.Chain(Routes(handlers, wsHub), mws...),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.writeTimeout(),
		IdleTimeout:       60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// Routes returns the bare route table without middleware.
func Routes(h Handlers, wsHub *ws.Hub) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", h.Health.GetStatus)

	mux.HandleFunc("POST /api/scan", h.Agent.Scan)
	mux.HandleFunc("GET /api/markets", h.Agent.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", h.Agent.GetMarket)
	mux.HandleFunc("GET /api/candidates/{id}", h.Agent.GetCandidate)
	mux.HandleFunc("GET /api/statistics", h.Agent.GetStatistics)
	mux.HandleFunc("POST /api/start", h.Agent.Start)
	mux.HandleFunc("POST /api/stop", h.Agent.Stop)

	mux.HandleFunc("GET /api/portfolio", h.Agent.GetPortfolio)
	mux.HandleFunc("GET /api/positions", h.Agent.ListPositions)
	mux.HandleFunc("GET /api/trades", h.Agent.ListTrades)
	mux.HandleFunc("GET /api/audit", h.Agent.ListAudit)

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}
	return mux
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown waits for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
