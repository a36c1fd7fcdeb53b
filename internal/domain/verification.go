package domain

import (
	"context"
	"time"
)

// Verdict is the outcome of corroborating a candidate.
type Verdict string

const (
	VerdictVerified     Verdict = "verified"
	VerdictUnverified   Verdict = "unverified"
	VerdictInconclusive Verdict = "inconclusive"
)

// SourceKind groups evidence sources for category dispatch.
type SourceKind string

const (
	SourceKindSports SourceKind = "sports"
	SourceKindNews   SourceKind = "news"
)

// Evidence is one source's opinion on a candidate's leading outcome.
type Evidence struct {
	Source     string  `json:"source"`
	Supports   bool    `json:"supports"`
	Confidence float64 `json:"confidence"`
	Snippet    string  `json:"snippet,omitempty"`
}

// SourceError records why a source produced no evidence.
type SourceError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// VerificationResult aggregates the evidence gathered for one candidate.
type VerificationResult struct {
	MarketID        string        `json:"market_id"`
	Verdict         Verdict       `json:"verdict"`
	Confidence      float64       `json:"confidence"`
	AgreeingSources []string      `json:"agreeing_sources"`
	Responded       int           `json:"responded"`
	Evidence        []Evidence    `json:"evidence"`
	Errors          []SourceError `json:"errors,omitempty"`
	VerifiedAt      time.Time     `json:"verified_at"`
}

// Verified reports whether the verdict is verified.
func (v VerificationResult) Verified() bool {
	return v.Verdict == VerdictVerified
}

// EvidenceSource is an independent source of outcome evidence. Query returns
// ErrNoEvidence when the source has nothing relevant to say.
type EvidenceSource interface {
	Name() string
	Kind() SourceKind
	Query(ctx context.Context, c MarketCandidate) (Evidence, error)
}
