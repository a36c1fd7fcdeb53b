package domain

import (
	"fmt"
	"math"
	"time"
)

// ScanParams bounds one scan.
type ScanParams struct {
	MinProb         float64 `json:"min_prob"`
	MaxProb         float64 `json:"max_prob"`
	TimeWindowHours float64 `json:"time_window_hours"`
	LiquidityFloor  float64 `json:"liquidity_floor"`
	Limit           int     `json:"limit"` // 0 means the source default
}

// Validate checks the parameter bounds. Errors wrap ErrInvalidParams. The
// comparisons are written so that NaN fails them.
func (p ScanParams) Validate() error {
	switch {
	case !(p.MinProb >= 0 && p.MinProb <= 1):
		return fmt.Errorf("%w: min_prob %.4f outside [0,1]", ErrInvalidParams, p.MinProb)
	case !(p.MaxProb >= 0 && p.MaxProb <= 1):
		return fmt.Errorf("%w: max_prob %.4f outside [0,1]", ErrInvalidParams, p.MaxProb)
	case !(p.MinProb < p.MaxProb):
		return fmt.Errorf("%w: min_prob %.4f must be below max_prob %.4f", ErrInvalidParams, p.MinProb, p.MaxProb)
	case !(p.TimeWindowHours > 0) || math.IsInf(p.TimeWindowHours, 1):
		return fmt.Errorf("%w: time_window_hours must be positive and finite", ErrInvalidParams)
	case !(p.LiquidityFloor >= 0):
		return fmt.Errorf("%w: liquidity_floor must not be negative", ErrInvalidParams)
	case p.Limit < 0:
		return fmt.Errorf("%w: limit must not be negative", ErrInvalidParams)
	}
	return nil
}

// Rejection explains why a market was filtered out.
type Rejection struct {
	MarketID  string `json:"market_id"`
	Question  string `json:"question"`
	Reason    string `json:"reason"`
	Malformed bool   `json:"malformed,omitempty"`
}

// ScanResult is the outcome of one scan. Candidates keep source order.
type ScanResult struct {
	Candidates []MarketCandidate `json:"candidates"`
	Rejected   []Rejection       `json:"rejected,omitempty"`
	Errors     []string          `json:"errors,omitempty"`
	Fetched    int               `json:"fetched"`
	StartedAt  time.Time         `json:"started_at"`
	Duration   time.Duration     `json:"duration"`
}

// Statistics is a point-in-time copy of the session counters.
type Statistics struct {
	Running          bool       `json:"is_scanning"`
	LastScan         *time.Time `json:"last_scan_time,omitempty"`
	Scans            int64      `json:"scans"`
	MarketsSeen      int64      `json:"markets_seen"`
	CandidatesFound  int64      `json:"candidates_found"`
	Verified         int64      `json:"verified"`
	Approved         int64      `json:"approved"`
	OrdersPlaced     int64      `json:"orders_placed"`
	OrdersFailed     int64      `json:"orders_failed"`
	Rollbacks        int64      `json:"rollbacks"`
	RecentCandidates int        `json:"recent_candidates"`
	ScanInterval     string     `json:"scan_interval"`
}

// MarketDetails is a single market evaluated against every criterion without
// being filtered out.
type MarketDetails struct {
	Candidate *MarketCandidate `json:"candidate,omitempty"`
	Criteria  map[string]bool  `json:"criteria"`
	Reason    string           `json:"reason,omitempty"`
}
