package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/pipeline"
)

// Agent is the slice of the pipeline agent the HTTP surface drives.
type Agent interface {
	DefaultParams() domain.ScanParams
	ScanOnce(ctx context.Context, p domain.ScanParams) ([]domain.MarketCandidate, error)
	RunCycle(ctx context.Context, p domain.ScanParams) (domain.CycleReport, error)
	StartContinuous(ctx context.Context, p domain.ScanParams, cb pipeline.Callback) (bool, error)
	StopContinuous() bool
	Running() bool
	CurrentStatistics() domain.Statistics
	RecentMarkets(n int) []domain.MarketCandidate
	RecentPositions(n int) []domain.PositionRecord
	GetMarketDetails(ctx context.Context, id string) (domain.MarketDetails, error)
	Candidate(ctx context.Context, id string) (domain.MarketCandidate, error)
	Portfolio() domain.PortfolioState
	Holdings() []domain.Holding
	AuditLog(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error)
	Trades(ctx context.Context, opts domain.ListOpts) ([]domain.TradeRecord, error)
}

// AgentHandler serves scanning, loop control and portfolio endpoints.
type AgentHandler struct {
	agent  Agent
	base   context.Context // outlives requests; the loop and executing cycles run on it
	logger *slog.Logger
}

// NewAgentHandler creates an AgentHandler. base is the application context
// handed to StartContinuous and to cycles started with ?execute=true.
func NewAgentHandler(base context.Context, agent Agent, logger *slog.Logger) *AgentHandler {
	return &AgentHandler{agent: agent, base: base, logger: logger}
}

// Scan runs one scan, or a full cycle with ?execute=true. A cycle runs on the
// application context and is not cancelled when the client disconnects.
// POST /api/scan
func (h *AgentHandler) Scan(w http.ResponseWriter, r *http.Request) {
	p, err := decodeParams(r, h.agent.DefaultParams())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if r.URL.Query().Get("execute") == "true" {
		report, err := h.agent.RunCycle(h.base, p)
		if r.Context().Err() != nil {
			h.logger.WarnContext(h.base, "client left before cycle finished",
				slog.String("cycle_id", report.ID),
			)
			return
		}
		if err != nil {
			h.fail(w, r, "cycle", err)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	cands, err := h.agent.ScanOnce(r.Context(), p)
	if err != nil {
		h.fail(w, r, "scan", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"params":     p,
		"count":      len(cands),
		"candidates": cands,
	})
}

// ListMarkets returns the most recent candidates, newest first.
// GET /api/markets
func (h *AgentHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.agent.RecentMarkets(parseLimit(r, 20)))
}

// GetMarket explains how a single market fares against the scan filters.
// GET /api/markets/{id}
func (h *AgentHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}
	details, err := h.agent.GetMarketDetails(r.Context(), id)
	if err != nil {
		h.fail(w, r, "market details", err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// GetCandidate returns a recently found candidate.
// GET /api/candidates/{id}
func (h *AgentHandler) GetCandidate(w http.ResponseWriter, r *http.Request) {
	c, err := h.agent.Candidate(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, "candidate", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GetStatistics returns the session counters.
// GET /api/statistics
func (h *AgentHandler) GetStatistics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.agent.CurrentStatistics())
}

// Start begins continuous scanning. Starting a running loop is not an error.
// POST /api/start
func (h *AgentHandler) Start(w http.ResponseWriter, r *http.Request) {
	p, err := decodeParams(r, h.agent.DefaultParams())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	started, err := h.agent.StartContinuous(h.base, p, nil)
	if err != nil {
		h.fail(w, r, "start", err)
		return
	}
	msg := "scanning started"
	if !started {
		msg = "already scanning"
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg, "is_scanning": true})
}

// Stop halts continuous scanning. Stopping an idle loop is not an error.
// POST /api/stop
func (h *AgentHandler) Stop(w http.ResponseWriter, _ *http.Request) {
	msg := "scanning stopped"
	if !h.agent.StopContinuous() {
		msg = "not currently scanning"
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": msg, "is_scanning": false})
}

// GetPortfolio returns the risk manager's exposure snapshot.
// GET /api/portfolio
func (h *AgentHandler) GetPortfolio(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.agent.Portfolio())
}

// ListPositions returns held positions and the latest per-candidate outcomes.
// GET /api/positions
func (h *AgentHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"holdings": h.agent.Holdings(),
		"recent":   h.agent.RecentPositions(parseLimit(r, 20)),
	})
}

// ListAudit pages through the audit log.
// GET /api/audit
func (h *AgentHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.agent.AuditLog(r.Context(), parseListOpts(r))
	if err != nil {
		h.fail(w, r, "audit", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// ListTrades pages through recorded trades.
// GET /api/trades
func (h *AgentHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.agent.Trades(r.Context(), parseListOpts(r))
	if err != nil {
		h.fail(w, r, "trades", err)
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (h *AgentHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), op+" failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
