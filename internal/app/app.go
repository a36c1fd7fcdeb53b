// Package app wires the agent from configuration and runs it in the
// configured mode.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyarb/internal/config"
	"github.com/alanyoungcy/polyarb/internal/server"
	"github.com/alanyoungcy/polyarb/internal/server/handler"
	"github.com/alanyoungcy/polyarb/internal/server/ws"
)

const shutdownTimeout = 10 * time.Second

// App is the root application object. Cleanup functions run in reverse
// registration order on Close.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	out     io.Writer // scan mode output
	closers []func()
}

// New creates an App.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
		out:    os.Stdout,
	}
}

// Run wires dependencies and blocks in the configured mode until ctx is
// cancelled, or until the single scan finishes in scan mode.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case "agent":
		return a.AgentMode(ctx, deps)
	case "server":
		return a.ServerMode(ctx, deps)
	case "scan":
		return a.ScanMode(ctx, deps)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// AgentMode runs the continuous loop from startup, with the control API
// alongside when the server is enabled.
func (a *App) AgentMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return deps.Agent.Run(ctx, deps.Agent.DefaultParams(), nil)
	})
	a.settle(ctx, g, deps)
	if a.cfg.Server.Enabled {
		a.serve(ctx, g, deps)
	}
	return g.Wait()
}

// ServerMode serves the control API only. The loop is started and stopped
// through it.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)
	a.settle(ctx, g, deps)
	a.serve(ctx, g, deps)
	g.Go(func() error {
		<-ctx.Done()
		deps.Agent.StopContinuous()
		<-deps.Agent.Done()
		return nil
	})
	return g.Wait()
}

// ScanMode runs one scan and writes the candidates as JSON.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	cands, err := deps.Agent.ScanOnce(ctx, deps.Agent.DefaultParams())
	if err != nil {
		return fmt.Errorf("app: scan: %w", err)
	}
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cands); err != nil {
		return fmt.Errorf("app: write candidates: %w", err)
	}
	a.logger.InfoContext(ctx, "scan complete", slog.Int("candidates", len(cands)))
	return nil
}

// settle polls for resolved markets on g unless disabled.
func (a *App) settle(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	interval := a.cfg.Pipeline.SettleInterval.Duration
	if interval <= 0 {
		return
	}
	g.Go(func() error {
		return deps.Agent.RunSettlement(ctx, interval)
	})
}

// serve starts the HTTP server, and the websocket hub when a bus exists, on g.
func (a *App) serve(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	var hub *ws.Hub
	if deps.Bus != nil {
		hub = ws.NewHub(deps.Bus, deps.Agent.CurrentStatistics, a.logger)
		g.Go(func() error {
			if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimitPerMin: a.cfg.Server.RateLimitPerMin,
		OrderTimeout:    a.cfg.Trading.OrderTimeout.Duration,
	}, server.Handlers{
		Health: handler.NewHealthHandler(deps.Agent, deps.Pingers, a.cfg.Mode, deps.DryRun, a.logger),
		Agent:  handler.NewAgentHandler(ctx, deps.Agent, a.logger),
	}, hub, deps.Limiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// Close runs the cleanup functions. Later calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
