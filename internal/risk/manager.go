// Package risk sizes verified candidates and approves or rejects them
// against the portfolio's exposure, category and loss limits.
package risk

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/config"
	"github.com/alanyoungcy/polyarb/internal/domain"
)

// Cost assumptions used for expected value.
const (
	feeRate      = 0.01
	slippageRate = 0.01
	maxClosed    = 500
	maxEntries   = 5000
)

// balanceBuffer is the balance required per dollar of position size.
var balanceBuffer = decimal.RequireFromString("1.1")

// Limits are the sizing and approval thresholds.
type Limits struct {
	MaxPositionSize          decimal.Decimal
	MaxTotalExposure         decimal.Decimal
	MinPositionSize          decimal.Decimal
	MaxPositionsPerCategory  int
	MinExpectedROIPercent    float64
	PositionSizeMultiplier   float64
	EstimatedLiquidityFactor float64
	MaxDailyLoss             decimal.Decimal
	EmergencyExitThreshold   float64 // minimum fraction of the entry probability still held
	MaxSpread                float64 // 0 disables the spread check
}

// LimitsFromConfig builds Limits from validated configuration.
func LimitsFromConfig(pos config.PositionConfig, r config.RiskConfig) Limits {
	return Limits{
		MaxPositionSize:          decimal.NewFromFloat(pos.MaxPositionSizeUSD),
		MaxTotalExposure:         decimal.NewFromFloat(pos.MaxTotalExposureUSD),
		MinPositionSize:          decimal.NewFromFloat(pos.MinPositionSizeUSD),
		MaxPositionsPerCategory:  pos.MaxPositionsPerCategory,
		MinExpectedROIPercent:    pos.MinExpectedROIPercent,
		PositionSizeMultiplier:   pos.PositionSizeMultiplier,
		EstimatedLiquidityFactor: pos.EstimatedLiquidityFactor,
		MaxDailyLoss:             decimal.NewFromFloat(r.MaxDailyLossUSD),
		EmergencyExitThreshold:   r.EmergencyExitThreshold,
		MaxSpread:                r.MaxSpread,
	}
}

// Manager owns the portfolio state. Every read and write of that state,
// including the check-then-reserve of an approval, happens under one mutex.
type Manager struct {
	limits Limits
	logger *slog.Logger
	now    func() time.Time

	mu sync.Mutex
	p  *portfolio
}

// New creates a Manager with an empty portfolio.
func New(limits Limits, logger *slog.Logger) *Manager {
	if limits.PositionSizeMultiplier <= 0 {
		limits.PositionSizeMultiplier = 1
	}
	if limits.EstimatedLiquidityFactor <= 0 {
		limits.EstimatedLiquidityFactor = 1
	}
	return &Manager{
		limits: limits,
		logger: logger.With(slog.String("component", "risk")),
		now:    time.Now,
		p:      newPortfolio(maxEntries),
	}
}

// ExpectedROIPercent is the return of buying at p and collecting 1 on
// resolution, less half the spread as slippage.
func ExpectedROIPercent(p, spread float64) float64 {
	if p <= 0 {
		return 0
	}
	slippage := (spread / 2) / p * 100
	return (1/p-1)*100 - slippage
}

// ExpectedValueUSD is the expected profit of buying size USD at price p when
// the outcome wins with probability win, after fee and slippage estimates.
func ExpectedValueUSD(size decimal.Decimal, p, win float64) float64 {
	if p <= 0 {
		return 0
	}
	s := size.InexactFloat64()
	payout := s / p
	return payout*win - s - s*feeRate - s*slippageRate
}

// SizeAndApprove sizes the candidate and runs the approval checks in order;
// the first failure wins. An approved position is reserved in the portfolio
// before returning and must be released with Rollback if its order fails.
func (m *Manager) SizeAndApprove(c domain.MarketCandidate, v domain.VerificationResult) domain.Position {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	m.p.rollDay(now)
	entry := m.p.entry(c.ID, c.WinningProbability)

	size, clamped := m.size(c)
	pos := domain.Position{
		ID:                     uuid.NewString(),
		MarketID:               c.ID,
		Question:               c.Question,
		Category:               c.Category,
		OutcomeIndex:           c.WinningIndex,
		Outcome:                c.WinningOutcome(),
		TokenID:                c.WinningTokenID(),
		Probability:            c.WinningProbability,
		EntryProbability:       entry,
		Size:                   size,
		ExpectedROIPercent:     ExpectedROIPercent(c.WinningProbability, c.Spread),
		ExpectedValueUSD:       ExpectedValueUSD(size, c.WinningProbability, v.Confidence),
		VerificationConfidence: v.Confidence,
		Clamped:                clamped,
		CreatedAt:              now,
	}

	if check, reason := m.check(c, pos, entry); check != domain.CheckNone {
		pos.Check, pos.Reason = check, reason
		m.logger.Info("position rejected",
			slog.String("market_id", c.ID),
			slog.String("check", string(check)),
			slog.String("reason", reason),
		)
		return pos
	}

	pos.Approved = true
	m.p.reserve(pos, now)
	m.logger.Info("position approved",
		slog.String("position_id", pos.ID),
		slog.String("market_id", c.ID),
		slog.String("size_usd", pos.Size.StringFixed(2)),
		slog.Bool("clamped", clamped),
		slog.String("exposure_usd", m.p.exposure.StringFixed(2)),
	)
	return pos
}

// size computes min(max position, headroom) × multiplier, scaled down for
// estimated liquidity, clamped to headroom and rounded down to cents.
func (m *Manager) size(c domain.MarketCandidate) (decimal.Decimal, bool) {
	headroom := m.limits.MaxTotalExposure.Sub(m.p.exposure)
	if headroom.IsNegative() {
		headroom = decimal.Zero
	}
	base := decimal.Min(m.limits.MaxPositionSize, headroom)
	clamped := headroom.LessThan(m.limits.MaxPositionSize)

	size := base.Mul(decimal.NewFromFloat(m.limits.PositionSizeMultiplier))
	if c.Liquidity.Estimated() {
		size = size.Mul(decimal.NewFromFloat(m.limits.EstimatedLiquidityFactor))
	}
	if size.GreaterThan(headroom) {
		size, clamped = headroom, true
	}
	return size.RoundDown(2), clamped
}

// check runs the approval checks in their fixed order.
func (m *Manager) check(c domain.MarketCandidate, pos domain.Position, entry float64) (domain.RiskCheck, string) {
	l := m.limits

	// 1. Expected return.
	if pos.ExpectedROIPercent < l.MinExpectedROIPercent {
		return domain.CheckExpectedROI, fmt.Sprintf("expected ROI %.2f%% below minimum %.2f%%",
			pos.ExpectedROIPercent, l.MinExpectedROIPercent)
	}

	// 2. Aggregate exposure, including the minimum viable size.
	if after := m.p.exposure.Add(pos.Size); after.GreaterThan(l.MaxTotalExposure) {
		return domain.CheckExposure, fmt.Sprintf("total exposure $%s would exceed limit $%s",
			after.StringFixed(2), l.MaxTotalExposure.StringFixed(2))
	}
	if pos.Size.LessThan(l.MinPositionSize) || !pos.Size.IsPositive() {
		return domain.CheckExposure, fmt.Sprintf("position size $%s below minimum $%s (exposure $%s of $%s)",
			pos.Size.StringFixed(2), l.MinPositionSize.StringFixed(2),
			m.p.exposure.StringFixed(2), l.MaxTotalExposure.StringFixed(2))
	}

	// 3. Category concentration.
	if n := m.p.categories[c.Category]; n >= l.MaxPositionsPerCategory {
		return domain.CheckCategoryLimit, fmt.Sprintf("category %s at limit (%d/%d open positions)",
			c.Category, n, l.MaxPositionsPerCategory)
	}

	// 4. Daily loss budget.
	if m.p.dailyLoss.GreaterThan(l.MaxDailyLoss) {
		return domain.CheckDailyLoss, fmt.Sprintf("daily loss $%s exceeds limit $%s",
			m.p.dailyLoss.StringFixed(2), l.MaxDailyLoss.StringFixed(2))
	}

	// 5. Adverse move since the entry snapshot.
	if entry > 0 && c.WinningProbability < entry*l.EmergencyExitThreshold {
		return domain.CheckEmergencyExit, fmt.Sprintf("probability %.4f fell below %.0f%% of entry %.4f",
			c.WinningProbability, l.EmergencyExitThreshold*100, entry)
	}

	// 6. Spread.
	if l.MaxSpread > 0 && c.Spread > l.MaxSpread {
		return domain.CheckSpread, fmt.Sprintf("spread %.4f wider than %.4f", c.Spread, l.MaxSpread)
	}

	// 7. Wallet balance, once one has been reported.
	if b := m.p.balance; b != nil {
		if b.err != nil {
			return domain.CheckBalance, fmt.Sprintf("wallet balance unavailable: %v", b.err)
		}
		need := pos.Size.Mul(balanceBuffer)
		if avail := b.usd.Sub(m.p.spentSinceBalance()); avail.LessThan(need) {
			return domain.CheckBalance, fmt.Sprintf("insufficient balance: $%s available < $%s required",
				avail.StringFixed(2), need.StringFixed(2))
		}
	}

	return domain.CheckNone, ""
}

// UpdateBalance records the wallet's collateral balance, or the error that
// prevented reading it. Approvals after this call are checked against it,
// less what they reserve. No balance check runs until the first call.
func (m *Manager) UpdateBalance(usd decimal.Decimal, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.p.setBalance(usd, err)
}

// Rollback releases the reservation of an approved position whose order
// failed. It reports whether anything was released; a second call for the
// same id is a no-op.
func (m *Manager) Rollback(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.p.holdings[id]
	if !ok || h.Status != domain.HoldingReserved {
		return false
	}
	m.p.release(h)
	m.p.remove(id)
	m.logger.Info("reservation rolled back",
		slog.String("position_id", id),
		slog.String("exposure_usd", m.p.exposure.StringFixed(2)),
	)
	return true
}

// ConfirmFill marks a reserved position as open after its order filled.
func (m *Manager) ConfirmFill(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.p.holdings[id]
	if !ok || h.Status != domain.HoldingReserved {
		return false
	}
	now := m.now().UTC()
	h.Status = domain.HoldingOpen
	h.FilledAt = &now
	return true
}

// Settle closes a position with its realised PnL, releasing its exposure.
// Losses count against today's loss budget.
func (m *Manager) Settle(id string, pnl decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.p.holdings[id]
	if !ok {
		return fmt.Errorf("risk: settle %s: %w", id, domain.ErrNotFound)
	}
	if h.Status == domain.HoldingClosed {
		return fmt.Errorf("risk: settle %s: already closed", id)
	}

	now := m.now().UTC()
	m.p.rollDay(now)
	m.p.release(h)
	m.p.realize(pnl)
	h.Status = domain.HoldingClosed
	h.PnL = pnl
	h.ClosedAt = &now
	if !m.p.held(h.Position.MarketID) {
		m.p.forgetEntry(h.Position.MarketID)
	}
	m.pruneClosed()

	m.logger.Info("position settled",
		slog.String("position_id", id),
		slog.String("pnl_usd", pnl.StringFixed(2)),
		slog.String("daily_loss_usd", m.p.dailyLoss.StringFixed(2)),
	)
	return nil
}

// pruneClosed drops the oldest closed holdings beyond maxClosed.
func (m *Manager) pruneClosed() {
	closed := 0
	for _, id := range m.p.order {
		if m.p.holdings[id].Status == domain.HoldingClosed {
			closed++
		}
	}
	for i := 0; closed > maxClosed && i < len(m.p.order); {
		id := m.p.order[i]
		if m.p.holdings[id].Status == domain.HoldingClosed {
			m.p.remove(id)
			closed--
			continue
		}
		i++
	}
}

// Snapshot returns a copy of the portfolio counters.
func (m *Manager) Snapshot() domain.PortfolioState {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now().UTC()
	m.p.rollDay(now)
	return m.p.snapshot(m.limits.MaxTotalExposure, now)
}

// Holdings lists tracked positions in approval order.
func (m *Manager) Holdings() []domain.Holding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.p.list()
}

// Holding returns one tracked position.
func (m *Manager) Holding(id string) (domain.Holding, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.p.holdings[id]
	if !ok {
		return domain.Holding{}, false
	}
	return *h, true
}
