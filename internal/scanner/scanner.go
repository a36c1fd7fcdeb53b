// Package scanner finds near-certain markets: it pulls the active market
// list, filters it down to candidates and runs the continuous scan loop.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyarb/internal/config"
	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/retry"
)

// Options tune a Scanner.
type Options struct {
	Retry       retry.Policy
	Concurrency int // concurrent order-book fetches
	Now         func() time.Time
}

// Scanner turns raw market records into candidates.
type Scanner struct {
	markets   domain.MarketSource
	books     domain.BookSource
	blacklist *config.Blacklist
	opts      Options
	logger    *slog.Logger
}

// New creates a Scanner. books may be nil, in which case records without
// liquidity are treated as having none.
func New(markets domain.MarketSource, books domain.BookSource, blacklist *config.Blacklist, opts Options, logger *slog.Logger) *Scanner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scanner{
		markets:   markets,
		books:     books,
		blacklist: blacklist,
		opts:      opts,
		logger:    logger.With(slog.String("component", "scanner")),
	}
}

// Scan fetches the market list once and returns every record that passes the
// filter, in source order. Per-market problems become rejections; only a
// failed list fetch fails the scan.
func (s *Scanner) Scan(ctx context.Context, p domain.ScanParams) (domain.ScanResult, error) {
	if err := p.Validate(); err != nil {
		return domain.ScanResult{}, fmt.Errorf("scanner: %w", err)
	}

	now := s.opts.Now().UTC()
	res := domain.ScanResult{StartedAt: now}

	var records []domain.MarketRecord
	_, err := s.opts.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		records, err = s.markets.ListMarkets(ctx, p.Limit)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("scanner: list markets: %w", err)
	}
	if p.Limit > 0 && len(records) > p.Limit {
		records = records[:p.Limit]
	}
	res.Fetched = len(records)

	evals := make([]*evaluation, len(records))
	for i, rec := range records {
		evals[i] = prefilter(rec, p, now)
	}

	bookErrs := s.estimateLiquidity(ctx, evals)

	for i, ev := range evals {
		if bookErrs[i] != nil {
			ev.reject(fmt.Sprintf("order book unavailable: %v", bookErrs[i]), false)
			res.Errors = append(res.Errors, fmt.Sprintf("market %s: %v", ev.rec.ID, bookErrs[i]))
		}
		finish(ev, p, s.blacklist)
		if ev.rejection != nil {
			if ev.rejection.Malformed {
				s.logger.WarnContext(ctx, "skipping malformed market",
					slog.String("market_id", ev.rec.ID),
					slog.String("reason", ev.rejection.Reason),
				)
			}
			res.Rejected = append(res.Rejected, *ev.rejection)
			continue
		}
		res.Candidates = append(res.Candidates, ev.candidate)
	}
	res.Duration = s.opts.Now().Sub(now)

	s.logger.InfoContext(ctx, "scan complete",
		slog.Int("fetched", res.Fetched),
		slog.Int("candidates", len(res.Candidates)),
		slog.Int("rejected", len(res.Rejected)),
		slog.Int("errors", len(res.Errors)),
		slog.Duration("duration", res.Duration),
	)
	return res, nil
}

// estimateLiquidity fills in book-derived liquidity for evaluations that
// need it. Fetches run concurrently; errors are returned by index.
func (s *Scanner) estimateLiquidity(ctx context.Context, evals []*evaluation) []error {
	errs := make([]error, len(evals))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, ev := range evals {
		if !ev.needsBook() {
			continue
		}
		ev.candidate.Liquidity = domain.Liquidity{Source: domain.LiquidityEstimated}
		token := ev.candidate.WinningTokenID()
		if s.books == nil || token == "" {
			continue
		}
		g.Go(func() error {
			var book domain.OrderBook
			_, err := s.opts.Retry.Do(gctx, func(ctx context.Context) error {
				var err error
				book, err = s.books.OrderBook(ctx, token)
				return err
			})
			if err != nil {
				errs[i] = err
				s.logger.WarnContext(gctx, "order book fetch failed",
					slog.String("market_id", ev.rec.ID),
					slog.String("error", err.Error()),
				)
				return nil
			}
			ev.candidate.Liquidity.USD = book.DepthUSD(bookDepthLevels)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// Details fetches one market and evaluates it against every criterion
// without filtering it out.
func (s *Scanner) Details(ctx context.Context, id string, p domain.ScanParams) (domain.MarketDetails, error) {
	var rec domain.MarketRecord
	_, err := s.opts.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		rec, err = s.markets.GetMarket(ctx, id)
		return err
	})
	if err != nil {
		return domain.MarketDetails{}, fmt.Errorf("scanner: get market %s: %w", id, err)
	}

	now := s.opts.Now().UTC()
	out := domain.MarketDetails{Criteria: map[string]bool{
		CriterionActive: rec.Active,
		CriterionOpen:   !rec.Closed && !rec.Archived,
		CriterionFunded: rec.Funded,
	}}
	var reasons []string

	end, err := parseEndTime(rec)
	if err != nil {
		reasons = append(reasons, err.Error())
	} else {
		hours := end.Sub(now).Hours()
		out.Criteria[CriterionTimeWindow] = hours > 0 && hours <= p.TimeWindowHours
	}

	outcomes, prices, tokens, err := parseOutcomes(rec)
	if err != nil {
		reasons = append(reasons, err.Error())
		out.Reason = strings.Join(reasons, "; ")
		return out, nil
	}
	out.Criteria[CriterionPrices] = true

	ev := &evaluation{rec: rec, candidate: newCandidate(rec, outcomes, prices, tokens, end, now)}
	if errs := s.estimateLiquidity(ctx, []*evaluation{ev}); errs[0] != nil {
		reasons = append(reasons, fmt.Sprintf("order book unavailable: %v", errs[0]))
	}
	c := ev.candidate
	out.Candidate = &c
	out.Criteria[CriterionProbability] = c.WinningProbability >= p.MinProb && c.WinningProbability <= p.MaxProb
	out.Criteria[CriterionLiquidity] = c.Liquidity.USD >= p.LiquidityFloor
	hit, reason := s.blacklist.Match(rec.Question, rec.Description, string(c.Category))
	out.Criteria[CriterionBlacklist] = !hit
	if hit {
		reasons = append(reasons, reason)
	}
	out.Reason = strings.Join(reasons, "; ")
	return out, nil
}
