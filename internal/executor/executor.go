// Package executor turns approved positions into exchange orders, or
// simulated ones in dry-run mode.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// Canceler is optional. When the submitter implements it, orders still
// resting at the order timeout are cancelled.
type Canceler interface {
	CancelOrder(ctx context.Context, orderID string) error
}

// Options tune an Executor.
type Options struct {
	DryRun           bool
	MinConfirmations int
	OrderTimeout     time.Duration
	PollInterval     time.Duration
	MaxSafeRetries   int
	RetryBackoff     time.Duration
	MaxSlippage      float64 // added to the probability to form the limit price
	DedupTTL         time.Duration
}

// maxLimitPrice keeps limit prices inside the exchange's open (0, 1) range.
var maxLimitPrice = decimal.RequireFromString("0.99")

// Executor places orders for approved positions.
type Executor struct {
	submitter domain.OrderSubmitter
	opts      Options
	dedup     *Dedup
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an Executor. submitter may be nil in dry-run mode.
func New(submitter domain.OrderSubmitter, opts Options, logger *slog.Logger) *Executor {
	if opts.MinConfirmations <= 0 {
		opts.MinConfirmations = 1
	}
	if opts.OrderTimeout <= 0 {
		opts.OrderTimeout = 300 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = 24 * time.Hour
	}
	return &Executor{
		submitter: submitter,
		opts:      opts,
		dedup:     NewDedup(opts.DedupTTL),
		logger:    logger.With(slog.String("component", "executor")),
		now:       time.Now,
	}
}

// DryRun reports whether orders are simulated.
func (e *Executor) DryRun() bool {
	return e.opts.DryRun || e.submitter == nil
}

// Execute submits (or simulates) the order for pos. It never panics or
// returns an error: failures are reported on the result with the remote
// error text.
func (e *Executor) Execute(ctx context.Context, pos domain.Position) domain.OrderResult {
	res := domain.OrderResult{
		PositionID:  pos.ID,
		MarketID:    pos.MarketID,
		DryRun:      e.DryRun(),
		SubmittedAt: e.now().UTC(),
	}
	log := e.logger.With(
		slog.String("position_id", pos.ID),
		slog.String("market_id", pos.MarketID),
		slog.String("size_usd", pos.Size.StringFixed(2)),
	)

	// 1. Only approved positions are executed.
	if !pos.Approved {
		res.Status = domain.OrderStatusFailed
		res.Error = "position not approved"
		return res
	}

	// 2. Dry run: no remote call.
	if res.DryRun {
		res.Success = true
		res.OrderID = "dry-" + uuid.NewString()
		res.Status = domain.OrderStatusSimulated
		log.InfoContext(ctx, "dry run order",
			slog.String("order_id", res.OrderID),
			slog.String("outcome", pos.Outcome),
			slog.Float64("probability", pos.Probability),
		)
		return res
	}

	// 3. Never submit the same position twice.
	if e.dedup.IsDuplicate(pos.ID) {
		res.Status = domain.OrderStatusFailed
		res.Error = "position already submitted"
		log.WarnContext(ctx, "duplicate submission refused")
		return res
	}
	e.dedup.Cleanup()

	req := domain.OrderRequest{
		PositionID: pos.ID,
		MarketID:   pos.MarketID,
		TokenID:    pos.TokenID,
		Side:       domain.OrderSideBuy,
		Type:       domain.OrderTypeFOK,
		Price:      e.limitPrice(pos.Probability),
		SizeUSD:    pos.Size,
	}

	ctx, cancel := context.WithTimeout(ctx, e.opts.OrderTimeout)
	defer cancel()

	// 4. Submit, retrying only failures classified safe.
	ack, err := e.submit(ctx, req, &res, log)
	if err != nil {
		res.Status = domain.OrderStatusFailed
		res.Error = err.Error()
		res.SafeToRetry = domain.IsSafeToRetry(err)
		if errors.Is(err, domain.ErrNotSubmitted) {
			e.dedup.Forget(pos.ID)
		}
		log.ErrorContext(ctx, "order submission failed",
			slog.Int("attempts", res.Attempts),
			slog.Bool("safe_to_retry", res.SafeToRetry),
			slog.String("error", err.Error()),
		)
		return res
	}
	res.OrderID = ack.OrderID
	res.Status = ack.Status

	// 5. Wait for confirmations.
	status, err := e.confirm(ctx, ack)
	res.Status = status
	if err != nil {
		res.Error = err.Error()
		log.WarnContext(ctx, "order not confirmed",
			slog.String("order_id", ack.OrderID),
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
		if errors.Is(err, context.DeadlineExceeded) {
			e.cancelResting(ack.OrderID, log)
		}
		return res
	}

	res.Success = true
	log.InfoContext(ctx, "order confirmed",
		slog.String("order_id", ack.OrderID),
		slog.Int("attempts", res.Attempts),
	)
	return res
}

// limitPrice is the probability plus the slippage allowance, rounded to the
// cent and capped below 1.
func (e *Executor) limitPrice(p float64) decimal.Decimal {
	price := decimal.NewFromFloat(p + e.opts.MaxSlippage).Round(2)
	return decimal.Min(price, maxLimitPrice)
}

func (e *Executor) submit(ctx context.Context, req domain.OrderRequest, res *domain.OrderResult, log *slog.Logger) (domain.OrderAck, error) {
	attempts := 1 + max(e.opts.MaxSafeRetries, 0)
	var lastErr error
	for n := 1; n <= attempts; n++ {
		if n > 1 {
			select {
			case <-ctx.Done():
				return domain.OrderAck{}, fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
			case <-time.After(e.opts.RetryBackoff):
			}
			log.InfoContext(ctx, "retrying order submission",
				slog.Int("attempt", n),
				slog.String("previous_error", lastErr.Error()),
			)
		}
		res.Attempts = n
		ack, err := e.submitter.SubmitOrder(ctx, req)
		if err == nil {
			return ack, nil
		}
		lastErr = err
		if !domain.IsSafeToRetry(err) {
			break
		}
	}
	return domain.OrderAck{}, lastErr
}

// confirm polls the order until it has been seen matched MinConfirmations
// times in a row, it reaches another terminal status, or ctx expires.
func (e *Executor) confirm(ctx context.Context, ack domain.OrderAck) (domain.OrderStatus, error) {
	status := ack.Status
	seen := 0
	if status == domain.OrderStatusMatched {
		seen = 1
	}
	if seen >= e.opts.MinConfirmations {
		return status, nil
	}
	if status.Terminal() && status != domain.OrderStatusMatched {
		return status, fmt.Errorf("order %s %s: %s", ack.OrderID, status, ack.Message)
	}

	ticker := time.NewTicker(e.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return status, fmt.Errorf("order %s not confirmed (%d/%d): %w", ack.OrderID, seen, e.opts.MinConfirmations, ctx.Err())
		case <-ticker.C:
		}

		cur, err := e.submitter.OrderStatus(ctx, ack.OrderID)
		if err != nil {
			e.logger.DebugContext(ctx, "order status poll failed",
				slog.String("order_id", ack.OrderID),
				slog.String("error", err.Error()),
			)
			continue
		}
		status = cur.Status
		switch status {
		case domain.OrderStatusMatched:
			seen++
			if seen >= e.opts.MinConfirmations {
				return status, nil
			}
		case domain.OrderStatusCancelled, domain.OrderStatusFailed:
			return status, fmt.Errorf("order %s %s: %s", ack.OrderID, status, cur.Message)
		default:
			seen = 0
		}
	}
}

// cancelResting cancels an order that timed out unconfirmed. It runs on its
// own short context since the order context has already expired.
func (e *Executor) cancelResting(orderID string, log *slog.Logger) {
	c, ok := e.submitter.(Canceler)
	if !ok || orderID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.CancelOrder(ctx, orderID); err != nil {
		log.Warn("cancel after timeout failed",
			slog.String("order_id", orderID),
			slog.String("error", err.Error()),
		)
	}
}
