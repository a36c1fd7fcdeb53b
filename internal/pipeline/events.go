package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/notify"
)

// Sinks are best effort: failures are logged and never affect decisions.
const sinkTimeout = 10 * time.Second

// Audit events.
const (
	auditCycle    = "cycle_completed"
	auditApproved = "position_approved"
	auditRejected = "position_rejected"
	auditOrder    = "order_executed"
	auditSettled  = "position_settled"
	auditStarted  = "scanning_started"
	auditStopped  = "scanning_stopped"
)

// sinkContext detaches side effects from cycle cancellation so an order that
// was placed is still recorded during shutdown.
func sinkContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
}

func (a *Agent) publish(ctx context.Context, channel string, typ domain.EventType, data any) {
	if a.deps.Bus == nil {
		return
	}
	payload, err := json.Marshal(domain.Event{Type: typ, Data: data, Timestamp: a.now().UTC()})
	if err != nil {
		a.logger.WarnContext(ctx, "marshal event failed",
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
		return
	}
	ctx, cancel := sinkContext(ctx)
	defer cancel()
	if err := a.deps.Bus.Publish(ctx, channel, payload); err != nil {
		a.logger.WarnContext(ctx, "publish event failed",
			slog.String("channel", channel),
			slog.String("type", string(typ)),
			slog.String("error", err.Error()),
		)
	}
}

func (a *Agent) audit(ctx context.Context, event string, detail map[string]any) {
	if a.deps.Audit == nil {
		return
	}
	ctx, cancel := sinkContext(ctx)
	defer cancel()
	if err := a.deps.Audit.Log(ctx, event, detail); err != nil {
		a.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (a *Agent) recordTrade(ctx context.Context, pos domain.Position, res domain.OrderResult) {
	if a.deps.Trades == nil {
		return
	}
	rec := domain.TradeRecord{
		PositionID:  pos.ID,
		MarketID:    pos.MarketID,
		Question:    pos.Question,
		Category:    pos.Category,
		Outcome:     pos.Outcome,
		TokenID:     pos.TokenID,
		Probability: pos.Probability,
		SizeUSD:     pos.Size.StringFixed(2),
		OrderID:     res.OrderID,
		DryRun:      res.DryRun,
		Success:     res.Success,
		Status:      res.Status,
		Error:       res.Error,
		CreatedAt:   res.SubmittedAt,
	}
	ctx, cancel := sinkContext(ctx)
	defer cancel()
	if err := a.deps.Trades.Insert(ctx, rec); err != nil {
		a.logger.WarnContext(ctx, "trade log insert failed",
			slog.String("position_id", pos.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (a *Agent) notify(ctx context.Context, event, title, message string) {
	if a.deps.Notifier == nil {
		return
	}
	ctx, cancel := sinkContext(ctx)
	defer cancel()
	if err := a.deps.Notifier.Notify(ctx, event, title, message); err != nil {
		a.logger.WarnContext(ctx, "notification failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

func (a *Agent) notifyTrade(ctx context.Context, pos domain.Position, res domain.OrderResult) {
	title, msg := notify.TradeMessage(pos, res)
	a.notify(ctx, notify.EventTrade, title, msg)
}

// cycleSummary is the compact form of a report for the status channel and
// the audit log.
func cycleSummary(r domain.CycleReport) map[string]any {
	verified, approved, placed := 0, 0, 0
	for _, v := range r.Verified {
		if v.Verified() {
			verified++
		}
	}
	for _, p := range r.Positions {
		if p.Position.Approved {
			approved++
		}
		if p.Result != nil && p.Result.Success {
			placed++
		}
	}
	return map[string]any{
		"cycle_id":    r.ID,
		"fetched":     r.Fetched,
		"candidates":  len(r.Candidates),
		"verified":    verified,
		"approved":    approved,
		"placed":      placed,
		"errors":      len(r.Errors),
		"duration_ms": r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
	}
}

// finishCycle fans the report out to the bus, the cycle stream, the audit
// log and the report store.
func (a *Agent) finishCycle(ctx context.Context, r domain.CycleReport) {
	summary := cycleSummary(r)
	a.publish(ctx, domain.ChannelStatus, domain.EventCycleCompleted, summary)
	a.audit(ctx, auditCycle, summary)

	if a.deps.Bus != nil {
		payload, err := json.Marshal(r)
		if err == nil {
			sctx, cancel := sinkContext(ctx)
			err = a.deps.Bus.StreamAppend(sctx, domain.StreamCycles, payload)
			cancel()
		}
		if err != nil {
			a.logger.WarnContext(ctx, "append cycle stream failed",
				slog.String("cycle_id", r.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if a.deps.Reports != nil {
		sctx, cancel := sinkContext(ctx)
		key, err := a.deps.Reports.Export(sctx, r)
		cancel()
		if err != nil {
			a.logger.WarnContext(ctx, "report export failed",
				slog.String("cycle_id", r.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		a.logger.DebugContext(ctx, "cycle report exported",
			slog.String("cycle_id", r.ID),
			slog.String("key", key),
		)
	}
}
