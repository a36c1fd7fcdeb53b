package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/notify"
	"github.com/alanyoungcy/polyarb/internal/scanner"
)

// SettleResolved closes open holdings whose markets have resolved and
// returns how many it settled. Lookups that fail are retried on the next
// pass.
func (a *Agent) SettleResolved(ctx context.Context) (int, error) {
	if a.deps.Markets == nil {
		return 0, nil
	}
	settled := 0
	for _, h := range a.deps.Risk.Holdings() {
		if h.Status != domain.HoldingOpen {
			continue
		}
		pos := h.Position
		rec, err := a.deps.Markets.GetMarket(ctx, pos.MarketID)
		if err != nil {
			if ctx.Err() != nil {
				return settled, fmt.Errorf("pipeline: settle: %w", ctx.Err())
			}
			a.logger.DebugContext(ctx, "resolution lookup failed",
				slog.String("market_id", pos.MarketID),
				slog.String("error", err.Error()),
			)
			continue
		}
		winner, ok := scanner.Resolution(rec)
		if !ok {
			continue
		}

		won := winner == pos.OutcomeIndex
		pnl := settlementPnL(pos, won)
		if err := a.deps.Risk.Settle(pos.ID, pnl); err != nil {
			a.logger.WarnContext(ctx, "settle failed",
				slog.String("position_id", pos.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		settled++

		detail := map[string]any{
			"position_id": pos.ID,
			"market_id":   pos.MarketID,
			"won":         won,
			"pnl_usd":     pnl.StringFixed(2),
		}
		a.publish(ctx, domain.ChannelPositions, domain.EventPositionSettled, detail)
		a.audit(ctx, auditSettled, detail)
		a.notify(ctx, notify.EventTrade, "Position settled",
			fmt.Sprintf("%s\nOutcome: %s (%s)\nPnL: $%s", pos.Question, pos.Outcome, resultLabel(won), pnl.StringFixed(2)))
	}
	return settled, nil
}

// RunSettlement calls SettleResolved every interval until ctx is done.
func (a *Agent) RunSettlement(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := a.SettleResolved(ctx)
			if err != nil {
				return nil
			}
			if n > 0 {
				a.logger.InfoContext(ctx, "positions settled", slog.Int("count", n))
			}
		}
	}
}

// settlementPnL is the payout of size/p shares at 1 minus the stake when the
// outcome won, and the whole stake otherwise.
func settlementPnL(pos domain.Position, won bool) decimal.Decimal {
	if !won {
		return pos.Size.Neg()
	}
	if pos.Probability <= 0 {
		return decimal.Zero
	}
	shares := pos.Size.Div(decimal.NewFromFloat(pos.Probability))
	return shares.Sub(pos.Size).Round(2)
}

func resultLabel(won bool) string {
	if won {
		return "won"
	}
	return "lost"
}
