// Package pipeline runs the agent: scan, verify, size and execute, once on
// demand or continuously, while keeping the session counters.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/notify"
	"github.com/alanyoungcy/polyarb/internal/risk"
	"github.com/alanyoungcy/polyarb/internal/scanner"
)

const cycleLockKey = "polyarb:lock:cycle"

// Scanner finds candidates.
type Scanner interface {
	Scan(ctx context.Context, p domain.ScanParams) (domain.ScanResult, error)
	Details(ctx context.Context, id string, p domain.ScanParams) (domain.MarketDetails, error)
}

// Verifier corroborates a candidate.
type Verifier interface {
	Verify(ctx context.Context, c domain.MarketCandidate) domain.VerificationResult
}

// RiskManager sizes positions and owns the portfolio.
type RiskManager interface {
	SizeAndApprove(c domain.MarketCandidate, v domain.VerificationResult) domain.Position
	ConfirmFill(id string) bool
	Rollback(id string) bool
	Settle(id string, pnl decimal.Decimal) error
	UpdateBalance(usd decimal.Decimal, err error)
	Snapshot() domain.PortfolioState
	Holdings() []domain.Holding
}

// Executor places orders.
type Executor interface {
	Execute(ctx context.Context, pos domain.Position) domain.OrderResult
}

// Notifier delivers alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// ReportExporter stores a cycle report and returns its key.
type ReportExporter interface {
	Export(ctx context.Context, r domain.CycleReport) (string, error)
}

// Callback receives the candidates of each continuous cycle.
type Callback func(ctx context.Context, candidates []domain.MarketCandidate) error

// Deps are the agent's collaborators. Scanner, Verifier, Risk and Executor
// are required; the rest may be nil.
type Deps struct {
	Scanner  Scanner
	Verifier Verifier
	Risk     RiskManager
	Executor Executor

	Notifier Notifier
	Locks    domain.LockManager
	Bus      domain.SignalBus
	Cache    domain.CandidateCache
	Audit    domain.AuditStore
	Trades   domain.TradeStore
	Reports  ReportExporter
	Markets  domain.MarketSource // resolution lookups for settlement
	Balance  domain.BalanceSource // live trading only
}

// Options tune an Agent.
type Options struct {
	ScanInterval         time.Duration
	CallbackTimeout      time.Duration
	CandidateConcurrency int
	NotifyTopN           int
	LockTTL              time.Duration
	HistorySize          int
	DefaultParams        domain.ScanParams
}

// Agent sequences the pipeline stages and owns the scan session.
type Agent struct {
	deps    Deps
	opts    Options
	session *Session
	loop    *scanner.Loop
	logger  *slog.Logger
	now     func() time.Time
}

// New creates an Agent with a stopped loop.
func New(deps Deps, opts Options, logger *slog.Logger) *Agent {
	if opts.ScanInterval <= 0 {
		opts.ScanInterval = 60 * time.Second
	}
	if opts.CallbackTimeout <= 0 {
		opts.CallbackTimeout = 30 * time.Second
	}
	if opts.CandidateConcurrency <= 0 {
		opts.CandidateConcurrency = 4
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 5 * time.Minute
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 100
	}
	return &Agent{
		deps:    deps,
		opts:    opts,
		session: NewSession(opts.HistorySize),
		loop:    scanner.NewLoop(opts.ScanInterval, logger),
		logger:  logger.With(slog.String("component", "agent")),
		now:     time.Now,
	}
}

// DefaultParams returns the configured scan parameters.
func (a *Agent) DefaultParams() domain.ScanParams {
	return a.opts.DefaultParams
}

// ScanOnce runs one scan and returns the candidates without verifying or
// trading them. The session counters and recent history are updated.
func (a *Agent) ScanOnce(ctx context.Context, p domain.ScanParams) ([]domain.MarketCandidate, error) {
	res, err := a.scan(ctx, p)
	if err != nil {
		return nil, err
	}
	return res.Candidates, nil
}

func (a *Agent) scan(ctx context.Context, p domain.ScanParams) (domain.ScanResult, error) {
	res, err := a.deps.Scanner.Scan(ctx, p)
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("pipeline: scan: %w", err)
	}
	a.session.recordScan(res, a.now().UTC())

	for _, c := range res.Candidates {
		a.publish(ctx, domain.ChannelCandidates, domain.EventCandidateFound, c)
	}
	a.cacheCandidates(ctx, res.Candidates)

	a.logger.InfoContext(ctx, "scan completed",
		slog.Int("fetched", res.Fetched),
		slog.Int("candidates", len(res.Candidates)),
		slog.Int("rejected", len(res.Rejected)),
		slog.Duration("elapsed", res.Duration),
	)
	return res, nil
}

func (a *Agent) cacheCandidates(ctx context.Context, cands []domain.MarketCandidate) {
	if a.deps.Cache == nil {
		return
	}
	ctx, cancel := sinkContext(ctx)
	defer cancel()
	for _, c := range cands {
		if err := a.deps.Cache.Set(ctx, c); err != nil {
			a.logger.WarnContext(ctx, "cache candidate failed",
				slog.String("market_id", c.ID),
				slog.String("error", err.Error()),
			)
			return
		}
	}
}

// RunCycle scans once and takes every candidate through verification,
// sizing and execution. Per-candidate failures never fail the cycle.
func (a *Agent) RunCycle(ctx context.Context, p domain.ScanParams) (domain.CycleReport, error) {
	report := domain.CycleReport{
		ID:        uuid.NewString(),
		StartedAt: a.now().UTC(),
		Params:    p,
	}
	res, err := a.scan(ctx, p)
	if err != nil {
		return report, err
	}
	report.Fetched = res.Fetched
	report.Candidates = res.Candidates
	report.Errors = res.Errors

	if len(res.Candidates) > 0 {
		a.refreshBalance(ctx)
	}
	report.Verified, report.Positions = a.process(ctx, res.Candidates)
	report.FinishedAt = a.now().UTC()

	a.finishCycle(ctx, report)
	a.logger.InfoContext(ctx, "cycle completed",
		slog.String("cycle_id", report.ID),
		slog.Int("candidates", len(report.Candidates)),
		slog.Int("positions", len(report.Positions)),
		slog.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// refreshBalance reads the wallet balance once per cycle for the risk
// manager's balance check. A failed read makes approvals fail that check.
func (a *Agent) refreshBalance(ctx context.Context) {
	if a.deps.Balance == nil {
		return
	}
	bal, err := a.deps.Balance.CollateralBalance(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "wallet balance unavailable", slog.String("error", err.Error()))
	}
	a.deps.Risk.UpdateBalance(bal, err)
}

// process runs the candidates on a bounded group. Results keep candidate
// order.
func (a *Agent) process(ctx context.Context, cands []domain.MarketCandidate) ([]domain.VerificationResult, []domain.PositionRecord) {
	verifs := make([]*domain.VerificationResult, len(cands))
	records := make([]*domain.PositionRecord, len(cands))

	var g errgroup.Group
	g.SetLimit(a.opts.CandidateConcurrency)
	for i, c := range cands {
		g.Go(func() error {
			verifs[i], records[i] = a.handle(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	outV := make([]domain.VerificationResult, 0, len(cands))
	outP := make([]domain.PositionRecord, 0, len(cands))
	for i := range cands {
		if verifs[i] != nil {
			outV = append(outV, *verifs[i])
		}
		if records[i] != nil {
			outP = append(outP, *records[i])
		}
	}
	return outV, outP
}

// handle takes one candidate through the stages. An approved position whose
// order fails is rolled back before handle returns.
func (a *Agent) handle(ctx context.Context, c domain.MarketCandidate) (*domain.VerificationResult, *domain.PositionRecord) {
	if ctx.Err() != nil {
		return nil, nil
	}
	log := a.logger.With(slog.String("market_id", c.ID))

	v := a.deps.Verifier.Verify(ctx, c)
	if !v.Verified() {
		log.DebugContext(ctx, "candidate not verified",
			slog.String("verdict", string(v.Verdict)),
			slog.Int("responded", v.Responded),
		)
		return &v, nil
	}
	a.session.recordVerified()

	pos := a.deps.Risk.SizeAndApprove(c, v)
	rec := &domain.PositionRecord{Position: pos}
	a.publish(ctx, domain.ChannelPositions, domain.EventPositionSized, pos)
	if !pos.Approved {
		a.session.recordPosition(*rec)
		a.audit(ctx, auditRejected, map[string]any{
			"market_id": c.ID,
			"check":     string(pos.Check),
			"reason":    pos.Reason,
		})
		return &v, rec
	}
	a.session.recordApproved()
	a.audit(ctx, auditApproved, map[string]any{
		"position_id": pos.ID,
		"market_id":   c.ID,
		"size_usd":    pos.Size.StringFixed(2),
		"clamped":     pos.Clamped,
		"confidence":  v.Confidence,
	})

	res := a.deps.Executor.Execute(ctx, pos)
	rec.Result = &res
	rolledBack := false
	if res.Success {
		a.deps.Risk.ConfirmFill(pos.ID)
	} else {
		rolledBack = a.deps.Risk.Rollback(pos.ID)
		log.WarnContext(ctx, "order failed, reservation released",
			slog.String("position_id", pos.ID),
			slog.Bool("rolled_back", rolledBack),
			slog.String("error", res.Error),
		)
	}
	a.session.recordOrder(res.Success, rolledBack)
	a.session.recordPosition(*rec)

	a.publish(ctx, domain.ChannelOrders, domain.EventOrderExecuted, rec)
	a.audit(ctx, auditOrder, map[string]any{
		"position_id": pos.ID,
		"order_id":    res.OrderID,
		"success":     res.Success,
		"dry_run":     res.DryRun,
		"status":      string(res.Status),
		"error":       res.Error,
	})
	a.recordTrade(ctx, pos, res)
	a.notifyTrade(ctx, pos, res)
	return &v, rec
}

// StartContinuous starts the continuous loop with params p. It returns
// false, doing nothing, when the loop is already running. cb may be nil.
func (a *Agent) StartContinuous(ctx context.Context, p domain.ScanParams, cb Callback) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, fmt.Errorf("pipeline: start: %w", err)
	}
	started := a.loop.Start(ctx, func(ctx context.Context) error {
		return a.cycle(ctx, p, cb)
	})
	if started {
		a.publish(ctx, domain.ChannelStatus, domain.EventScanningStarted, map[string]any{"params": p})
		a.audit(ctx, auditStarted, map[string]any{"interval": a.opts.ScanInterval.String()})
		a.notify(ctx, notify.EventStatus, "Scanning started",
			fmt.Sprintf("Every %s, probability %.2f-%.2f within %.0fh", a.opts.ScanInterval, p.MinProb, p.MaxProb, p.TimeWindowHours))
	}
	return started, nil
}

// StopContinuous asks the loop to stop at the next cycle boundary. It
// returns false when the loop was not running.
func (a *Agent) StopContinuous() bool {
	if !a.loop.Stop() {
		return false
	}
	ctx := context.Background()
	a.publish(ctx, domain.ChannelStatus, domain.EventScanningStopped, nil)
	a.audit(ctx, auditStopped, nil)
	a.notify(ctx, notify.EventStatus, "Scanning stopped", "The continuous scan loop was stopped.")
	return true
}

// Done is closed once the loop has fully exited, including any in-flight
// cycle.
func (a *Agent) Done() <-chan struct{} {
	return a.loop.Done()
}

// Run starts the loop and blocks until ctx is cancelled and the last cycle
// has drained.
func (a *Agent) Run(ctx context.Context, p domain.ScanParams, cb Callback) error {
	if _, err := a.StartContinuous(ctx, p, cb); err != nil {
		return err
	}
	<-ctx.Done()
	a.StopContinuous()
	<-a.Done()
	return nil
}

// cycle is one continuous iteration. Only one process runs a cycle at a
// time when a lock manager is configured.
func (a *Agent) cycle(ctx context.Context, p domain.ScanParams, cb Callback) error {
	if a.deps.Locks != nil {
		unlock, err := a.deps.Locks.Acquire(ctx, cycleLockKey, a.opts.LockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			a.logger.InfoContext(ctx, "cycle skipped, lock held elsewhere")
			return nil
		}
		if err != nil {
			return fmt.Errorf("pipeline: acquire cycle lock: %w", err)
		}
		defer unlock()
	}

	report, err := a.RunCycle(ctx, p)
	if err != nil {
		return err
	}
	if cb != nil {
		a.invoke(ctx, cb, report.Candidates)
	}
	a.notifyCandidates(ctx, report.Candidates)
	return nil
}

// invoke runs the callback under CallbackTimeout. A callback that ignores
// its context is abandoned at the deadline so the loop keeps moving.
func (a *Agent) invoke(ctx context.Context, cb Callback, cands []domain.MarketCandidate) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.CallbackTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("callback panicked: %v", r)
			}
		}()
		done <- cb(ctx, slices.Clone(cands))
	}()

	select {
	case err := <-done:
		if err != nil {
			a.logger.WarnContext(ctx, "cycle callback failed", slog.String("error", err.Error()))
		}
	case <-ctx.Done():
		a.logger.WarnContext(ctx, "cycle callback timed out",
			slog.Duration("timeout", a.opts.CallbackTimeout),
		)
	}
}

// notifyCandidates alerts on the best candidates by expected return.
func (a *Agent) notifyCandidates(ctx context.Context, cands []domain.MarketCandidate) {
	if a.deps.Notifier == nil || len(cands) == 0 || a.opts.NotifyTopN == 0 {
		return
	}
	ranked := slices.Clone(cands)
	slices.SortStableFunc(ranked, func(x, y domain.MarketCandidate) int {
		rx := risk.ExpectedROIPercent(x.WinningProbability, x.Spread)
		ry := risk.ExpectedROIPercent(y.WinningProbability, y.Spread)
		switch {
		case rx > ry:
			return -1
		case rx < ry:
			return 1
		}
		return 0
	})
	title, msg := notify.CandidatesMessage(ranked, a.opts.NotifyTopN)
	a.notify(ctx, notify.EventCandidates, title, msg)
}

// CurrentStatistics returns a copy of the session counters.
func (a *Agent) CurrentStatistics() domain.Statistics {
	return a.session.Statistics(a.loop.Running(), a.loop.Interval())
}

// Running reports whether continuous scanning is on.
func (a *Agent) Running() bool {
	return a.loop.Running()
}

// RecentMarkets returns up to n recent candidates, newest first. n <= 0
// returns the whole history.
func (a *Agent) RecentMarkets(n int) []domain.MarketCandidate {
	return a.session.RecentMarkets(n)
}

// RecentPositions returns up to n recent sizing decisions, newest first.
func (a *Agent) RecentPositions(n int) []domain.PositionRecord {
	return a.session.RecentPositions(n)
}

// GetMarketDetails evaluates one market against the default criteria
// without filtering it out.
func (a *Agent) GetMarketDetails(ctx context.Context, id string) (domain.MarketDetails, error) {
	d, err := a.deps.Scanner.Details(ctx, id, a.opts.DefaultParams)
	if err != nil {
		return domain.MarketDetails{}, fmt.Errorf("pipeline: market details: %w", err)
	}
	return d, nil
}

// Candidate returns a recently scanned candidate, from the cache when one is
// configured, otherwise from the recent history.
func (a *Agent) Candidate(ctx context.Context, id string) (domain.MarketCandidate, error) {
	if a.deps.Cache != nil {
		c, err := a.deps.Cache.Get(ctx, id)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			a.logger.WarnContext(ctx, "candidate cache read failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	for _, c := range a.session.RecentMarkets(0) {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.MarketCandidate{}, fmt.Errorf("pipeline: candidate %s: %w", id, domain.ErrNotFound)
}

// Portfolio returns the risk manager's portfolio counters.
func (a *Agent) Portfolio() domain.PortfolioState {
	return a.deps.Risk.Snapshot()
}

// Holdings lists the tracked positions.
func (a *Agent) Holdings() []domain.Holding {
	return a.deps.Risk.Holdings()
}

// AuditLog lists audit entries when an audit store is configured.
func (a *Agent) AuditLog(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	if a.deps.Audit == nil {
		return nil, fmt.Errorf("pipeline: audit log: %w", domain.ErrNotFound)
	}
	return a.deps.Audit.List(ctx, opts)
}

// Trades lists the trade log when a trade store is configured.
func (a *Agent) Trades(ctx context.Context, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	if a.deps.Trades == nil {
		return nil, fmt.Errorf("pipeline: trades: %w", domain.ErrNotFound)
	}
	return a.deps.Trades.ListRecent(ctx, opts)
}
