// Package verifier corroborates a candidate's leading outcome with
// independent evidence sources and turns their answers into a verdict.
package verifier

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/retry"
)

// Options tune a Verifier.
type Options struct {
	MinConfidence      float64
	MinSourceAgreement int
	SourceTimeout      time.Duration // per source call
	RetryAttempts      int           // extra tries after a transient failure
	RetryBackoff       time.Duration
	Concurrency        int
	Weights            map[string]float64 // by source name; missing means 1
	Now                func() time.Time
}

// Verifier dispatches candidates to evidence sources by category.
type Verifier struct {
	sources []domain.EvidenceSource
	opts    Options
	logger  *slog.Logger
}

// New creates a Verifier over sources.
func New(sources []domain.EvidenceSource, opts Options, logger *slog.Logger) *Verifier {
	if opts.MinSourceAgreement <= 0 {
		opts.MinSourceAgreement = 2
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = 30 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 500 * time.Millisecond
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Verifier{
		sources: sources,
		opts:    opts,
		logger:  logger.With(slog.String("component", "verifier")),
	}
}

// SourceNames lists the configured sources.
func (v *Verifier) SourceNames() []string {
	names := make([]string, len(v.sources))
	for i, s := range v.sources {
		names[i] = s.Name()
	}
	return names
}

// Unverifiable lists the categories with fewer sources than the required
// agreement. Their candidates can never be verified.
func (v *Verifier) Unverifiable() []domain.Category {
	var out []domain.Category
	for _, cat := range domain.Categories {
		if len(v.sourcesFor(cat)) < v.opts.MinSourceAgreement {
			out = append(out, cat)
		}
	}
	return out
}

// sourcesFor selects the sources relevant to a category: sports sources for
// sports, news for the topical categories and everything otherwise.
func (v *Verifier) sourcesFor(cat domain.Category) []domain.EvidenceSource {
	var want domain.SourceKind
	switch cat {
	case domain.CategorySports:
		want = domain.SourceKindSports
	case domain.CategoryPolitics, domain.CategoryCrypto, domain.CategoryEconomics, domain.CategoryEntertainment:
		want = domain.SourceKindNews
	default:
		return v.sources
	}
	var out []domain.EvidenceSource
	for _, s := range v.sources {
		if s.Kind() == want {
			out = append(out, s)
		}
	}
	return out
}

type sourceAnswer struct {
	evidence domain.Evidence
	err      error
}

// Verify queries every relevant source concurrently and aggregates the
// answers. It never fails: source errors are recorded on the result and
// excluded from aggregation.
func (v *Verifier) Verify(ctx context.Context, c domain.MarketCandidate) domain.VerificationResult {
	sources := v.sourcesFor(c.Category)
	answers := make([]sourceAnswer, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			ev, err := v.query(gctx, src, c)
			answers[i] = sourceAnswer{evidence: ev, err: err}
			return nil
		})
	}
	_ = g.Wait()

	res := v.aggregate(c.ID, sources, answers)
	res.VerifiedAt = v.opts.Now().UTC()

	v.logger.InfoContext(ctx, "candidate verified",
		slog.String("market_id", c.ID),
		slog.String("category", string(c.Category)),
		slog.String("verdict", string(res.Verdict)),
		slog.Float64("confidence", res.Confidence),
		slog.Int("agreeing", len(res.AgreeingSources)),
		slog.Int("responded", res.Responded),
		slog.Int("errors", len(res.Errors)),
	)
	return res
}

// query runs one source call with its timeout, retrying transient failures.
func (v *Verifier) query(ctx context.Context, src domain.EvidenceSource, c domain.MarketCandidate) (domain.Evidence, error) {
	policy := retry.Policy{
		Attempts:  v.opts.RetryAttempts + 1,
		Base:      v.opts.RetryBackoff,
		Max:       4 * v.opts.RetryBackoff,
		Retryable: retry.Transient,
	}
	var ev domain.Evidence
	attempts, err := policy.Do(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, v.opts.SourceTimeout)
		defer cancel()
		var err error
		ev, err = src.Query(callCtx, c)
		return err
	})
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, domain.ErrNoEvidence) {
			level = slog.LevelDebug
		}
		v.logger.Log(ctx, level, "evidence source failed",
			slog.String("source", src.Name()),
			slog.String("market_id", c.ID),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
		return domain.Evidence{}, err
	}
	if ev.Source == "" {
		ev.Source = src.Name()
	}
	ev.Confidence = min(max(ev.Confidence, 0), 1)
	return ev, nil
}

// aggregate applies the verdict policy. Confidence is the weighted mean of
// the agreeing sources' confidences.
func (v *Verifier) aggregate(marketID string, sources []domain.EvidenceSource, answers []sourceAnswer) domain.VerificationResult {
	res := domain.VerificationResult{
		MarketID:        marketID,
		AgreeingSources: []string{},
		Evidence:        []domain.Evidence{},
	}

	var weighted, weights float64
	disagree := 0
	for i, a := range answers {
		name := sources[i].Name()
		if a.err != nil {
			res.Errors = append(res.Errors, domain.SourceError{Source: name, Error: a.err.Error()})
			continue
		}
		res.Responded++
		res.Evidence = append(res.Evidence, a.evidence)
		if !a.evidence.Supports {
			disagree++
			continue
		}
		w := v.weight(name)
		weighted += w * a.evidence.Confidence
		weights += w
		res.AgreeingSources = append(res.AgreeingSources, name)
	}
	if weights > 0 {
		res.Confidence = weighted / weights
	}

	agreeing := len(res.AgreeingSources)
	switch {
	case agreeing >= v.opts.MinSourceAgreement && res.Confidence >= v.opts.MinConfidence:
		res.Verdict = domain.VerdictVerified
	case disagree > 0:
		res.Verdict = domain.VerdictUnverified
	case res.Responded < v.opts.MinSourceAgreement:
		res.Verdict = domain.VerdictInconclusive
	default:
		res.Verdict = domain.VerdictUnverified
	}
	return res
}

func (v *Verifier) weight(source string) float64 {
	if w, ok := v.opts.Weights[source]; ok && w > 0 {
		return w
	}
	return 1
}
