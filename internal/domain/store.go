package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// TradeRecord is one executed (or simulated) position as written to the
// trade log.
type TradeRecord struct {
	PositionID  string
	MarketID    string
	Question    string
	Category    Category
	Outcome     string
	TokenID     string
	Probability float64
	SizeUSD     string // decimal string
	OrderID     string
	DryRun      bool
	Success     bool
	Status      OrderStatus
	Error       string
	CreatedAt   time.Time
}

// TradeStore persists the trade log.
type TradeStore interface {
	Insert(ctx context.Context, rec TradeRecord) error
	ListRecent(ctx context.Context, opts ListOpts) ([]TradeRecord, error)
}
