package pipeline

import (
	"sync"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/scanner"
)

// Session holds the counters and recent history of the agent for its
// lifetime. It is safe for concurrent use.
type Session struct {
	mu          sync.Mutex
	lastScan    *time.Time
	scans       int64
	marketsSeen int64
	candidates  int64
	verified    int64
	approved    int64
	placed      int64
	failed      int64
	rollbacks   int64

	markets   *scanner.History[domain.MarketCandidate]
	positions *scanner.History[domain.PositionRecord]
}

// NewSession creates a Session keeping at most historySize recent markets
// and positions.
func NewSession(historySize int) *Session {
	return &Session{
		markets:   scanner.NewHistory[domain.MarketCandidate](historySize),
		positions: scanner.NewHistory[domain.PositionRecord](historySize),
	}
}

func (s *Session) recordScan(res domain.ScanResult, at time.Time) {
	s.mu.Lock()
	s.scans++
	s.marketsSeen += int64(res.Fetched)
	s.candidates += int64(len(res.Candidates))
	s.lastScan = &at
	s.mu.Unlock()

	s.markets.Add(res.Candidates...)
}

func (s *Session) recordVerified() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verified++
}

func (s *Session) recordApproved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approved++
}

func (s *Session) recordOrder(success, rolledBack bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if success {
		s.placed++
	} else {
		s.failed++
	}
	if rolledBack {
		s.rollbacks++
	}
}

func (s *Session) recordPosition(rec domain.PositionRecord) {
	s.positions.Add(rec)
}

// Statistics returns a copy of the counters.
func (s *Session) Statistics(running bool, interval time.Duration) domain.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := domain.Statistics{
		Running:          running,
		Scans:            s.scans,
		MarketsSeen:      s.marketsSeen,
		CandidatesFound:  s.candidates,
		Verified:         s.verified,
		Approved:         s.approved,
		OrdersPlaced:     s.placed,
		OrdersFailed:     s.failed,
		Rollbacks:        s.rollbacks,
		RecentCandidates: s.markets.Len(),
		ScanInterval:     interval.String(),
	}
	if s.lastScan != nil {
		t := *s.lastScan
		st.LastScan = &t
	}
	return st
}

// RecentMarkets returns up to n recent candidates, newest first.
func (s *Session) RecentMarkets(n int) []domain.MarketCandidate {
	return s.markets.Recent(n)
}

// RecentPositions returns up to n recent sizing decisions, newest first.
func (s *Session) RecentPositions(n int) []domain.PositionRecord {
	return s.positions.Recent(n)
}
