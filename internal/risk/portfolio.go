package risk

import (
	"maps"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// portfolio is the mutable state behind Manager. It is not safe for
// concurrent use; Manager serialises every access.
type portfolio struct {
	holdings   map[string]*domain.Holding
	order      []string // holding ids in reservation order
	exposure   decimal.Decimal
	categories map[domain.Category]int
	entries    map[string]float64 // market id -> probability at first evaluation
	entryOrder []string           // market ids in first-seen order
	maxEntries int

	balance      *balanceSnapshot
	sinceBalance map[string]bool // holding ids reserved after the balance was read

	day       string
	dailyLoss decimal.Decimal
	realized  decimal.Decimal
	highWater decimal.Decimal
}

type balanceSnapshot struct {
	usd decimal.Decimal
	err error
}

func newPortfolio(maxEntries int) *portfolio {
	return &portfolio{
		holdings:     make(map[string]*domain.Holding),
		categories:   make(map[domain.Category]int),
		entries:      make(map[string]float64),
		maxEntries:   maxEntries,
		sinceBalance: make(map[string]bool),
	}
}

// rollDay resets the daily loss accumulator when the UTC date changes.
func (p *portfolio) rollDay(now time.Time) {
	day := now.UTC().Format(time.DateOnly)
	if day != p.day {
		p.day = day
		p.dailyLoss = decimal.Zero
	}
}

// entry returns the recorded entry probability for a market, recording prob
// on first sight.
func (p *portfolio) entry(marketID string, prob float64) float64 {
	if e, ok := p.entries[marketID]; ok {
		return e
	}
	p.pruneEntries(p.maxEntries - 1)
	p.entries[marketID] = prob
	p.entryOrder = append(p.entryOrder, marketID)
	return prob
}

// pruneEntries drops the oldest snapshots beyond limit, keeping those of
// markets that still have a live holding.
func (p *portfolio) pruneEntries(limit int) {
	excess := len(p.entries) - limit
	if excess <= 0 {
		return
	}
	kept := p.entryOrder[:0]
	for _, id := range p.entryOrder {
		if excess > 0 && !p.held(id) {
			delete(p.entries, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	p.entryOrder = kept
}

func (p *portfolio) forgetEntry(marketID string) {
	delete(p.entries, marketID)
	p.entryOrder = slices.DeleteFunc(p.entryOrder, func(s string) bool { return s == marketID })
}

// held reports whether the market has a reserved or open holding.
func (p *portfolio) held(marketID string) bool {
	for _, h := range p.holdings {
		if h.Position.MarketID == marketID && h.Status != domain.HoldingClosed {
			return true
		}
	}
	return false
}

func (p *portfolio) setBalance(usd decimal.Decimal, err error) {
	p.balance = &balanceSnapshot{usd: usd, err: err}
	clear(p.sinceBalance)
}

// spentSinceBalance sums the holdings reserved after the last balance read.
func (p *portfolio) spentSinceBalance() decimal.Decimal {
	total := decimal.Zero
	for id := range p.sinceBalance {
		if h, ok := p.holdings[id]; ok {
			total = total.Add(h.Position.Size)
		}
	}
	return total
}

func (p *portfolio) reserve(pos domain.Position, now time.Time) {
	p.holdings[pos.ID] = &domain.Holding{
		Position:   pos,
		Status:     domain.HoldingReserved,
		ReservedAt: now,
	}
	p.order = append(p.order, pos.ID)
	if p.balance != nil {
		p.sinceBalance[pos.ID] = true
	}
	p.exposure = p.exposure.Add(pos.Size)
	p.categories[pos.Category]++
}

// release undoes a holding's exposure and category reservation.
func (p *portfolio) release(h *domain.Holding) {
	p.exposure = p.exposure.Sub(h.Position.Size)
	if p.exposure.IsNegative() {
		p.exposure = decimal.Zero
	}
	if p.categories[h.Position.Category]--; p.categories[h.Position.Category] <= 0 {
		delete(p.categories, h.Position.Category)
	}
}

func (p *portfolio) remove(id string) {
	delete(p.holdings, id)
	delete(p.sinceBalance, id)
	p.order = slices.DeleteFunc(p.order, func(s string) bool { return s == id })
}

// realize books a settled position's PnL.
func (p *portfolio) realize(pnl decimal.Decimal) {
	p.realized = p.realized.Add(pnl)
	if pnl.IsNegative() {
		p.dailyLoss = p.dailyLoss.Add(pnl.Neg())
	}
	if p.realized.GreaterThan(p.highWater) {
		p.highWater = p.realized
	}
}

func (p *portfolio) snapshot(maxExposure decimal.Decimal, now time.Time) domain.PortfolioState {
	s := domain.PortfolioState{
		ExposureUSD:      p.exposure,
		MaxExposureUSD:   maxExposure,
		CategoryCounts:   maps.Clone(p.categories),
		DailyLossUSD:     p.dailyLoss,
		RealizedPnLUSD:   p.realized,
		HighWaterMarkUSD: p.highWater,
		DrawdownUSD:      p.highWater.Sub(p.realized),
		UpdatedAt:        now,
	}
	for _, h := range p.holdings {
		switch h.Status {
		case domain.HoldingReserved:
			s.Reserved++
		case domain.HoldingOpen:
			s.Open++
		case domain.HoldingClosed:
			s.Closed++
		}
	}
	return s
}

func (p *portfolio) list() []domain.Holding {
	out := make([]domain.Holding, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, *p.holdings[id])
	}
	return out
}
