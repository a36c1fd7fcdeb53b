package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// HoldingStatus tracks an approved position from reservation to settlement.
type HoldingStatus string

const (
	HoldingReserved HoldingStatus = "reserved"
	HoldingOpen     HoldingStatus = "open"
	HoldingClosed   HoldingStatus = "closed"
)

// Holding is an approved position as tracked by the portfolio.
type Holding struct {
	Position   Position        `json:"position"`
	Status     HoldingStatus   `json:"status"`
	PnL        decimal.Decimal `json:"pnl_usd"`
	ReservedAt time.Time       `json:"reserved_at"`
	FilledAt   *time.Time      `json:"filled_at,omitempty"`
	ClosedAt   *time.Time      `json:"closed_at,omitempty"`
}

// PortfolioState is a point-in-time copy of the portfolio counters.
type PortfolioState struct {
	ExposureUSD      decimal.Decimal  `json:"exposure_usd"`
	MaxExposureUSD   decimal.Decimal  `json:"max_exposure_usd"`
	CategoryCounts   map[Category]int `json:"category_counts"`
	Reserved         int              `json:"reserved"`
	Open             int              `json:"open"`
	Closed           int              `json:"closed"`
	DailyLossUSD     decimal.Decimal  `json:"daily_loss_usd"`
	RealizedPnLUSD   decimal.Decimal  `json:"realized_pnl_usd"`
	HighWaterMarkUSD decimal.Decimal  `json:"high_water_mark_usd"`
	DrawdownUSD      decimal.Decimal  `json:"drawdown_usd"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
