package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

type fakeMarkets struct {
	recs map[string]domain.MarketRecord
}

func (f *fakeMarkets) ListMarkets(context.Context, int) ([]domain.MarketRecord, error) {
	return nil, nil
}

func (f *fakeMarkets) GetMarket(_ context.Context, id string) (domain.MarketRecord, error) {
	rec, ok := f.recs[id]
	if !ok {
		return domain.MarketRecord{}, errors.New("unavailable")
	}
	return rec, nil
}

func resolved(id, prices string) domain.MarketRecord {
	return domain.MarketRecord{
		ID:           id,
		Closed:       true,
		OutcomesJSON: `["Yes","No"]`,
		PricesJSON:   prices,
	}
}

func TestSettleResolved(t *testing.T) {
	tests := []struct {
		name      string
		prices    string
		realized  string
		dailyLoss string
	}{
		{"won", `["1","0"]`, "5.26", "0"},
		{"lost", `["0","1"]`, "-100", "100"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(&fakeExecutor{}, candidate("a", 0.95))
			if _, err := h.agent.RunCycle(context.Background(), testParams()); err != nil {
				t.Fatal(err)
			}
			markets := &fakeMarkets{recs: map[string]domain.MarketRecord{}}
			h.agent.deps.Markets = markets

			// Still open: nothing to settle.
			if n, err := h.agent.SettleResolved(context.Background()); err != nil || n != 0 {
				t.Fatalf("settled = %d, %v", n, err)
			}

			markets.recs["a"] = resolved("a", tc.prices)
			n, err := h.agent.SettleResolved(context.Background())
			if err != nil || n != 1 {
				t.Fatalf("settled = %d, %v", n, err)
			}
			snap := h.risk.Snapshot()
			if !snap.ExposureUSD.IsZero() || snap.Open != 0 || snap.Closed != 1 {
				t.Fatalf("snapshot = %+v", snap)
			}
			if !snap.RealizedPnLUSD.Equal(decimal.RequireFromString(tc.realized)) {
				t.Fatalf("realized = %s, want %s", snap.RealizedPnLUSD, tc.realized)
			}
			if !snap.DailyLossUSD.Equal(decimal.RequireFromString(tc.dailyLoss)) {
				t.Fatalf("daily loss = %s, want %s", snap.DailyLossUSD, tc.dailyLoss)
			}
			if got := h.bus.count(domain.ChannelPositions, domain.EventPositionSettled); got != 1 {
				t.Fatalf("settled events = %d", got)
			}

			// A closed holding is never settled twice.
			if n, _ := h.agent.SettleResolved(context.Background()); n != 0 {
				t.Fatalf("second pass settled %d", n)
			}
		})
	}
}

func TestSettlementPnL(t *testing.T) {
	pos := domain.Position{Size: decimal.NewFromInt(200), Probability: 0.8}
	if got := settlementPnL(pos, true); !got.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("win pnl = %s", got)
	}
	if got := settlementPnL(pos, false); !got.Equal(decimal.NewFromInt(-200)) {
		t.Fatalf("loss pnl = %s", got)
	}
}
