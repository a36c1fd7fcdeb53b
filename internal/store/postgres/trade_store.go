package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// TradeStore implements domain.TradeStore on the trades table, one row per
// executed or simulated position.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore.
func NewTradeStore(c *Client) *TradeStore {
	return &TradeStore{pool: c.pool}
}

const tradeCols = `position_id, market_id, question, category, outcome, token_id,
	probability, size_usd, order_id, dry_run, success, status, error, created_at`

// size_usd is read back as text to keep the decimal string exact.
const tradeSelectCols = `position_id, market_id, question, category, outcome, token_id,
	probability, size_usd::text, order_id, dry_run, success, status, error, created_at`

// Insert records rec. A position is written once; repeats are ignored.
func (s *TradeStore) Insert(ctx context.Context, rec domain.TradeRecord) error {
	const query = `INSERT INTO trades (` + tradeCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (position_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		rec.PositionID, rec.MarketID, rec.Question, string(rec.Category), rec.Outcome, rec.TokenID,
		rec.Probability, rec.SizeUSD, rec.OrderID, rec.DryRun, rec.Success, string(rec.Status),
		rec.Error, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", rec.PositionID, err)
	}
	return nil
}

// ListRecent returns trades newest first.
func (s *TradeStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.TradeRecord, error) {
	query, args := listQuery(`SELECT `+tradeSelectCols+` FROM trades WHERE TRUE`, "created_at", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TradeRecord, error) {
		var r domain.TradeRecord
		var category, status string
		err := row.Scan(&r.PositionID, &r.MarketID, &r.Question, &category, &r.Outcome, &r.TokenID,
			&r.Probability, &r.SizeUSD, &r.OrderID, &r.DryRun, &r.Success, &status, &r.Error, &r.CreatedAt)
		r.Category = domain.Category(category)
		r.Status = domain.OrderStatus(status)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return recs, nil
}

var _ domain.TradeStore = (*TradeStore)(nil)
