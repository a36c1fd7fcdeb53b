package verifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"slices"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSource struct {
	name  string
	kind  domain.SourceKind
	ev    domain.Evidence
	errs  []error // returned in order before ev
	block bool
	calls atomic.Int32
}

func (f *fakeSource) Name() string            { return f.name }
func (f *fakeSource) Kind() domain.SourceKind { return f.kind }

func (f *fakeSource) Query(ctx context.Context, _ domain.MarketCandidate) (domain.Evidence, error) {
	n := int(f.calls.Add(1))
	if f.block {
		<-ctx.Done()
		return domain.Evidence{}, ctx.Err()
	}
	if n <= len(f.errs) {
		return domain.Evidence{}, f.errs[n-1]
	}
	return f.ev, nil
}

func sports(name string, supports bool, confidence float64) *fakeSource {
	return &fakeSource{
		name: name,
		kind: domain.SourceKindSports,
		ev:   domain.Evidence{Source: name, Supports: supports, Confidence: confidence},
	}
}

func testOptions() Options {
	return Options{
		MinConfidence:      0.90,
		MinSourceAgreement: 2,
		SourceTimeout:      time.Second,
		RetryAttempts:      2,
		RetryBackoff:       time.Millisecond,
		Concurrency:        4,
	}
}

func sportsCandidate() domain.MarketCandidate {
	return domain.MarketCandidate{
		ID:                 "m1",
		Question:           "Will the Lakers beat the Celtics?",
		Outcomes:           []string{"Yes", "No"},
		OutcomePrices:      []float64{0.95, 0.05},
		WinningProbability: 0.95,
		Category:           domain.CategorySports,
	}
}

func TestVerifyTwoAgreeingSources(t *testing.T) {
	v := New([]domain.EvidenceSource{sports("a", true, 0.95), sports("b", true, 0.92)}, testOptions(), discardLogger())

	res := v.Verify(context.Background(), sportsCandidate())
	if res.Verdict != domain.VerdictVerified {
		t.Fatalf("verdict = %s, want verified", res.Verdict)
	}
	if math.Abs(res.Confidence-0.935) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.935", res.Confidence)
	}
	if len(res.AgreeingSources) != 2 || res.AgreeingSources[0] != "a" || res.AgreeingSources[1] != "b" {
		t.Fatalf("agreeing = %v", res.AgreeingSources)
	}
	if res.Responded != 2 || len(res.Evidence) != 2 || res.MarketID != "m1" {
		t.Fatalf("result = %+v", res)
	}
}

func TestVerdictPolicy(t *testing.T) {
	upstream := &fakeSource{name: "down", kind: domain.SourceKindSports, errs: []error{
		domain.ErrUnauthorized,
	}}

	tests := []struct {
		name       string
		sources    []domain.EvidenceSource
		want       domain.Verdict
		confidence float64
		errors     int
	}{
		{
			name:       "single source below agreement minimum",
			sources:    []domain.EvidenceSource{sports("a", true, 0.99)},
			want:       domain.VerdictInconclusive,
			confidence: 0.99,
		},
		{
			name:       "active disagreement",
			sources:    []domain.EvidenceSource{sports("a", true, 0.95), sports("b", false, 0.90)},
			want:       domain.VerdictUnverified,
			confidence: 0.95,
		},
		{
			name:       "agreement with low confidence",
			sources:    []domain.EvidenceSource{sports("a", true, 0.80), sports("b", true, 0.85)},
			want:       domain.VerdictUnverified,
			confidence: 0.825,
		},
		{
			name:       "errored source is excluded, not disagreement",
			sources:    []domain.EvidenceSource{sports("a", true, 0.97), upstream},
			want:       domain.VerdictInconclusive,
			confidence: 0.97,
			errors:     1,
		},
		{
			name: "no sources",
			want: domain.VerdictInconclusive,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := New(tc.sources, testOptions(), discardLogger())
			res := v.Verify(context.Background(), sportsCandidate())
			if res.Verdict != tc.want {
				t.Fatalf("verdict = %s, want %s", res.Verdict, tc.want)
			}
			if math.Abs(res.Confidence-tc.confidence) > 1e-9 {
				t.Fatalf("confidence = %v, want %v", res.Confidence, tc.confidence)
			}
			if len(res.Errors) != tc.errors {
				t.Fatalf("errors = %v", res.Errors)
			}
		})
	}
}

func TestVerifyWeightedConfidence(t *testing.T) {
	opts := testOptions()
	opts.Weights = map[string]float64{"a": 3}
	v := New([]domain.EvidenceSource{sports("a", true, 0.99), sports("b", true, 0.91)}, opts, discardLogger())

	res := v.Verify(context.Background(), sportsCandidate())
	if math.Abs(res.Confidence-0.97) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.97", res.Confidence)
	}
}

func TestVerifyRetriesTransientFailuresOnly(t *testing.T) {
	flaky := &fakeSource{
		name: "flaky", kind: domain.SourceKindSports,
		errs: []error{domain.ErrUpstream},
		ev:   domain.Evidence{Supports: true, Confidence: 0.95},
	}
	empty := &fakeSource{name: "empty", kind: domain.SourceKindSports, errs: []error{domain.ErrNoEvidence}}
	down := &fakeSource{name: "down", kind: domain.SourceKindSports, errs: []error{
		domain.ErrRateLimited, domain.ErrRateLimited, domain.ErrRateLimited, domain.ErrRateLimited,
	}}

	v := New([]domain.EvidenceSource{flaky, empty, down}, testOptions(), discardLogger())
	res := v.Verify(context.Background(), sportsCandidate())

	if got := flaky.calls.Load(); got != 2 {
		t.Fatalf("flaky calls = %d, want 2", got)
	}
	if got := empty.calls.Load(); got != 1 {
		t.Fatalf("no-evidence calls = %d, want 1", got)
	}
	if got := down.calls.Load(); got != 3 {
		t.Fatalf("rate-limited calls = %d, want 3", got)
	}
	if res.Responded != 1 || len(res.Errors) != 2 {
		t.Fatalf("responded = %d errors = %v", res.Responded, res.Errors)
	}
	if res.Evidence[0].Source != "flaky" {
		t.Fatalf("evidence source = %q", res.Evidence[0].Source)
	}
}

func TestVerifySourceTimeout(t *testing.T) {
	opts := testOptions()
	opts.SourceTimeout = 20 * time.Millisecond
	opts.RetryAttempts = 0
	slow := &fakeSource{name: "slow", kind: domain.SourceKindSports, block: true}
	v := New([]domain.EvidenceSource{sports("a", true, 0.95), slow}, opts, discardLogger())

	start := time.Now()
	res := v.Verify(context.Background(), sportsCandidate())
	if time.Since(start) > time.Second {
		t.Fatal("timeout not applied")
	}
	if res.Verdict != domain.VerdictInconclusive {
		t.Fatalf("verdict = %s, want inconclusive", res.Verdict)
	}
	if len(res.Errors) != 1 || res.Errors[0].Source != "slow" {
		t.Fatalf("errors = %v", res.Errors)
	}
}

func TestSourceDispatchByCategory(t *testing.T) {
	sport := sports("espn", true, 0.95)
	news := &fakeSource{name: "newsapi", kind: domain.SourceKindNews, ev: domain.Evidence{Supports: true, Confidence: 0.9}}
	v := New([]domain.EvidenceSource{sport, news}, testOptions(), discardLogger())

	tests := []struct {
		category          domain.Category
		wantSport, wantNw int32
	}{
		{domain.CategorySports, 1, 0},
		{domain.CategoryPolitics, 0, 1},
		{domain.CategoryCrypto, 0, 1},
		{domain.CategoryEconomics, 0, 1},
		{domain.CategoryEntertainment, 0, 1},
		{domain.CategoryOther, 1, 1},
	}
	for _, tc := range tests {
		t.Run(string(tc.category), func(t *testing.T) {
			sport.calls.Store(0)
			news.calls.Store(0)
			c := sportsCandidate()
			c.Category = tc.category
			v.Verify(context.Background(), c)
			if sport.calls.Load() != tc.wantSport || news.calls.Load() != tc.wantNw {
				t.Fatalf("calls sports=%d news=%d", sport.calls.Load(), news.calls.Load())
			}
		})
	}
}

func TestUnverifiable(t *testing.T) {
	news := &fakeSource{name: "newsapi", kind: domain.SourceKindNews}
	v := New([]domain.EvidenceSource{sports("espn", true, 0.95), sports("oddsapi", true, 0.95), news}, testOptions(), discardLogger())

	want := []domain.Category{domain.CategoryPolitics, domain.CategoryCrypto, domain.CategoryEconomics, domain.CategoryEntertainment}
	if got := v.Unverifiable(); !slices.Equal(got, want) {
		t.Fatalf("unverifiable = %v, want %v", got, want)
	}

	v = New([]domain.EvidenceSource{sports("espn", true, 0.95)}, testOptions(), discardLogger())
	if got := v.Unverifiable(); len(got) != len(domain.Categories) {
		t.Fatalf("one source should leave every category unverifiable, got %v", got)
	}
}

func TestVerifyFailingSourceDoesNotCancelSiblings(t *testing.T) {
	bad := &fakeSource{name: "bad", kind: domain.SourceKindSports, errs: []error{errors.New("boom")}}
	v := New([]domain.EvidenceSource{bad, sports("a", true, 0.95), sports("b", true, 0.95)}, testOptions(), discardLogger())
	res := v.Verify(context.Background(), sportsCandidate())
	if res.Verdict != domain.VerdictVerified {
		t.Fatalf("verdict = %s, want verified", res.Verdict)
	}
}
