package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/pipeline"
)

type fakeAgent struct {
	running   bool
	params    domain.ScanParams
	scanErr   error
	cands     []domain.MarketCandidate
	cycled    bool
	onCycle   func()
	cycleErr  error // context error seen at the end of RunCycle
	startCtx  context.Context
	auditErr  error
	detailErr error
}

func (f *fakeAgent) DefaultParams() domain.ScanParams {
	return domain.ScanParams{MinProb: 0.9, MaxProb: 0.99, TimeWindowHours: 24, LiquidityFloor: 1000}
}

func (f *fakeAgent) ScanOnce(_ context.Context, p domain.ScanParams) ([]domain.MarketCandidate, error) {
	f.params = p
	return f.cands, f.scanErr
}

func (f *fakeAgent) RunCycle(ctx context.Context, p domain.ScanParams) (domain.CycleReport, error) {
	f.params = p
	f.cycled = true
	if f.onCycle != nil {
		f.onCycle()
	}
	f.cycleErr = ctx.Err()
	return domain.CycleReport{ID: "cycle-1", Params: p, Candidates: f.cands}, f.scanErr
}

func (f *fakeAgent) StartContinuous(ctx context.Context, p domain.ScanParams, _ pipeline.Callback) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	f.startCtx = ctx
	if f.running {
		return false, nil
	}
	f.running = true
	return true, nil
}

func (f *fakeAgent) StopContinuous() bool {
	was := f.running
	f.running = false
	return was
}

func (f *fakeAgent) Running() bool { return f.running }

func (f *fakeAgent) CurrentStatistics() domain.Statistics {
	return domain.Statistics{Running: f.running, Scans: 7}
}

func (f *fakeAgent) RecentMarkets(n int) []domain.MarketCandidate {
	return f.cands[:min(n, len(f.cands))]
}

func (f *fakeAgent) RecentPositions(int) []domain.PositionRecord { return nil }

func (f *fakeAgent) GetMarketDetails(_ context.Context, id string) (domain.MarketDetails, error) {
	if f.detailErr != nil {
		return domain.MarketDetails{}, f.detailErr
	}
	return domain.MarketDetails{Criteria: map[string]bool{"active": true}, Reason: "probability " + id}, nil
}

func (f *fakeAgent) Candidate(_ context.Context, id string) (domain.MarketCandidate, error) {
	for _, c := range f.cands {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.MarketCandidate{}, fmt.Errorf("candidate %s: %w", id, domain.ErrNotFound)
}

func (f *fakeAgent) Portfolio() domain.PortfolioState { return domain.PortfolioState{Open: 2} }

func (f *fakeAgent) Holdings() []domain.Holding { return nil }

func (f *fakeAgent) AuditLog(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return []domain.AuditEntry{{ID: 1, Event: "cycle_completed"}}, f.auditErr
}

func (f *fakeAgent) Trades(context.Context, domain.ListOpts) ([]domain.TradeRecord, error) {
	return nil, fmt.Errorf("pipeline: trades: %w", domain.ErrNotFound)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMux(agent *fakeAgent, base context.Context) *http.ServeMux {
	h := NewAgentHandler(base, agent, discardLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/scan", h.Scan)
	mux.HandleFunc("GET /api/markets", h.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", h.GetMarket)
	mux.HandleFunc("GET /api/candidates/{id}", h.GetCandidate)
	mux.HandleFunc("GET /api/statistics", h.GetStatistics)
	mux.HandleFunc("POST /api/start", h.Start)
	mux.HandleFunc("POST /api/stop", h.Stop)
	mux.HandleFunc("GET /api/portfolio", h.GetPortfolio)
	mux.HandleFunc("GET /api/audit", h.ListAudit)
	mux.HandleFunc("GET /api/trades", h.ListTrades)
	return mux
}

func do(t *testing.T, mux http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, rd))

	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func TestScanMergesParamsOverDefaults(t *testing.T) {
	agent := &fakeAgent{cands: []domain.MarketCandidate{{ID: "m1"}, {ID: "m2"}}}
	rec, out := do(t, newMux(agent, context.Background()), http.MethodPost, "/api/scan", `{"min_prob":0.95,"limit":10}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	if out["count"] != float64(2) {
		t.Fatalf("count = %v", out["count"])
	}
	want := domain.ScanParams{MinProb: 0.95, MaxProb: 0.99, TimeWindowHours: 24, LiquidityFloor: 1000, Limit: 10}
	if agent.params != want {
		t.Fatalf("params = %+v, want %+v", agent.params, want)
	}
	if agent.cycled {
		t.Fatal("plain scan must not run a cycle")
	}
}

func TestScanExecuteRunsCycle(t *testing.T) {
	agent := &fakeAgent{}
	rec, out := do(t, newMux(agent, context.Background()), http.MethodPost, "/api/scan?execute=true", "")
	if rec.Code != http.StatusOK || !agent.cycled || out["id"] != "cycle-1" {
		t.Fatalf("status = %d cycled = %v body = %s", rec.Code, agent.cycled, rec.Body)
	}
}

func TestScanExecuteSurvivesClientDisconnect(t *testing.T) {
	reqCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	agent := &fakeAgent{onCycle: cancel}

	req := httptest.NewRequest(http.MethodPost, "/api/scan?execute=true", nil).WithContext(reqCtx)
	rec := httptest.NewRecorder()
	newMux(agent, context.Background()).ServeHTTP(rec, req)

	if !agent.cycled {
		t.Fatal("cycle did not run")
	}
	if agent.cycleErr != nil {
		t.Fatalf("cycle context cancelled with the request: %v", agent.cycleErr)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("no response expected for a departed client, got %s", rec.Body)
	}
}

func TestScanErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"bad json", `{"min_prob":`, nil, http.StatusBadRequest},
		{"unknown field", `{"nope":1}`, nil, http.StatusBadRequest},
		{"inverted range", `{"min_prob":0.99,"max_prob":0.9}`, nil, http.StatusBadRequest},
		{"upstream", "", fmt.Errorf("gamma: %w", domain.ErrUpstream), http.StatusBadGateway},
		{"rate limited", "", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"unexpected", "", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			agent := &fakeAgent{scanErr: tc.err}
			rec, out := do(t, newMux(agent, context.Background()), http.MethodPost, "/api/scan", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tc.status, rec.Body)
			}
			if out["error"] == nil {
				t.Fatal("missing error field")
			}
		})
	}
}

func TestStartStopAreIdempotent(t *testing.T) {
	type key struct{}
	base := context.WithValue(context.Background(), key{}, "app")
	agent := &fakeAgent{}
	mux := newMux(agent, base)

	steps := []struct {
		target string
		msg    string
	}{
		{"/api/start", "scanning started"},
		{"/api/start", "already scanning"},
		{"/api/stop", "scanning stopped"},
		{"/api/stop", "not currently scanning"},
	}
	for _, s := range steps {
		rec, out := do(t, mux, http.MethodPost, s.target, "")
		if rec.Code != http.StatusOK || out["message"] != s.msg {
			t.Fatalf("%s: status = %d message = %v, want %q", s.target, rec.Code, out["message"], s.msg)
		}
	}
	if agent.startCtx == nil || agent.startCtx.Value(key{}) != "app" {
		t.Fatal("loop must run on the application context, not the request's")
	}
}

func TestStartRejectsInvalidParams(t *testing.T) {
	agent := &fakeAgent{}
	rec, _ := do(t, newMux(agent, context.Background()), http.MethodPost, "/api/start", `{"time_window_hours":-1}`)
	if rec.Code != http.StatusBadRequest || agent.running {
		t.Fatalf("status = %d running = %v", rec.Code, agent.running)
	}
}

func TestLookups(t *testing.T) {
	agent := &fakeAgent{
		cands:     []domain.MarketCandidate{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}},
		detailErr: nil,
	}
	mux := newMux(agent, context.Background())

	rec, out := do(t, mux, http.MethodGet, "/api/candidates/m2", "")
	if rec.Code != http.StatusOK || out["market_id"] != "m2" {
		t.Fatalf("candidate: %d %s", rec.Code, rec.Body)
	}
	if rec, _ := do(t, mux, http.MethodGet, "/api/candidates/zz", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing candidate status = %d", rec.Code)
	}

	rec, _ = do(t, mux, http.MethodGet, "/api/markets?limit=2", "")
	var list []domain.MarketCandidate
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list) != 2 {
		t.Fatalf("markets = %s (%v)", rec.Body, err)
	}

	rec, out = do(t, mux, http.MethodGet, "/api/markets/m9", "")
	if rec.Code != http.StatusOK || out["reason"] != "probability m9" {
		t.Fatalf("details: %d %s", rec.Code, rec.Body)
	}

	agent.detailErr = fmt.Errorf("gamma: market m9: %w", domain.ErrNotFound)
	if rec, _ := do(t, mux, http.MethodGet, "/api/markets/m9", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown market status = %d", rec.Code)
	}

	rec, out = do(t, mux, http.MethodGet, "/api/statistics", "")
	if rec.Code != http.StatusOK || out["scans"] != float64(7) {
		t.Fatalf("statistics: %s", rec.Body)
	}
}

func TestStoreBackedEndpoints(t *testing.T) {
	agent := &fakeAgent{}
	mux := newMux(agent, context.Background())

	rec, _ := do(t, mux, http.MethodGet, "/api/audit?limit=5", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "cycle_completed") {
		t.Fatalf("audit: %d %s", rec.Code, rec.Body)
	}
	if rec, _ := do(t, mux, http.MethodGet, "/api/trades", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("trades without a store: %d", rec.Code)
	}
	agent.auditErr = errors.New("connection refused")
	if rec, _ := do(t, mux, http.MethodGet, "/api/audit", ""); rec.Code != http.StatusInternalServerError {
		t.Fatalf("audit failure: %d", rec.Code)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name   string
		deps   map[string]Pinger
		status int
		want   string
	}{
		{"no deps", nil, http.StatusOK, "ok"},
		{"healthy", map[string]Pinger{"redis": fakePinger{}}, http.StatusOK, "ok"},
		{"degraded", map[string]Pinger{"redis": fakePinger{}, "postgres": fakePinger{errors.New("down")}}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHealthHandler(&fakeAgent{}, tc.deps, "server", true, discardLogger())
			rec := httptest.NewRecorder()
			h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			var out map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
				t.Fatal(err)
			}
			if rec.Code != tc.status || out["status"] != tc.want {
				t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestGetStatus(t *testing.T) {
	h := NewHealthHandler(&fakeAgent{running: true}, nil, "agent", false, discardLogger())
	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out["mode"] != "agent" || out["dry_run"] != false || out["is_scanning"] != true {
		t.Fatalf("status = %v", out)
	}
}
