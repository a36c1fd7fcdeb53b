package verifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/platform/espn"
	"github.com/alanyoungcy/polyarb/internal/platform/newsapi"
	"github.com/alanyoungcy/polyarb/internal/platform/oddsapi"
)

// Scoreboards is the ESPN client surface the sports source needs.
type Scoreboards interface {
	Scoreboard(ctx context.Context, league string, date time.Time) ([]espn.Game, error)
}

// ScoreFeed is the Odds API client surface the sports source needs.
type ScoreFeed interface {
	Scores(ctx context.Context, sport string, daysFrom int) ([]oddsapi.EventScore, error)
}

// NewsSearch is the NewsAPI client surface the news source needs.
type NewsSearch interface {
	Everything(ctx context.Context, q newsapi.Query) ([]newsapi.Article, error)
}

// supports compares the observed leader against the prediction.
func (p prediction) supports(leaderIsSubject bool) bool {
	return leaderIsSubject == p.Affirmative
}

// ---------------------------------------------------------------------------
// ESPN
// ---------------------------------------------------------------------------

// ESPNSource corroborates sports markets against ESPN scoreboards.
type ESPNSource struct {
	client  Scoreboards
	leagues []string
}

// NewESPNSource creates a source searching the given league paths.
func NewESPNSource(client Scoreboards, leagues []string) *ESPNSource {
	return &ESPNSource{client: client, leagues: leagues}
}

func (s *ESPNSource) Name() string            { return "espn" }
func (s *ESPNSource) Kind() domain.SourceKind { return domain.SourceKindSports }

// Query finds the game the market is about and reads its leader.
func (s *ESPNSource) Query(ctx context.Context, c domain.MarketCandidate) (domain.Evidence, error) {
	pred, ok := predict(c)
	if !ok {
		return domain.Evidence{}, fmt.Errorf("espn: %w: no team in question", domain.ErrNoEvidence)
	}

	var errs []error
	for _, league := range s.leagues {
		games, err := s.client.Scoreboard(ctx, league, time.Time{})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, g := range games {
			if !gameMatches(g, pred) {
				continue
			}
			return espnEvidence(g, pred)
		}
	}
	if len(errs) > 0 {
		return domain.Evidence{}, fmt.Errorf("espn: %w", errors.Join(errs...))
	}
	return domain.Evidence{}, fmt.Errorf("espn: %w: no game for %q", domain.ErrNoEvidence, pred.Subject)
}

func competitorMatches(team string, c espn.Competitor) bool {
	return teamMatches(team, c.Name, c.ShortName) ||
		(c.Abbreviation != "" && strings.EqualFold(strings.TrimSpace(team), c.Abbreviation))
}

func gameMatches(g espn.Game, p prediction) bool {
	var subject, opponent bool
	for _, c := range g.Competitors {
		subject = subject || competitorMatches(p.Subject, c)
		opponent = opponent || (p.Opponent != "" && competitorMatches(p.Opponent, c))
	}
	return subject && (p.Opponent == "" || opponent)
}

func espnEvidence(g espn.Game, p prediction) (domain.Evidence, error) {
	leader, ok := g.Leader()
	if !ok {
		return domain.Evidence{}, fmt.Errorf("espn: %w: %s has no leader (%s)", domain.ErrNoEvidence, g.Name, g.State)
	}
	margin := 0
	if len(g.Competitors) == 2 {
		margin = abs(g.Competitors[0].Score - g.Competitors[1].Score)
	}
	return domain.Evidence{
		Source:     "espn",
		Supports:   p.supports(competitorMatches(p.Subject, leader)),
		Confidence: scoreConfidence(g.Completed, margin),
		Snippet:    fmt.Sprintf("%s: %s leads, %s", g.Name, leader.Name, g.Detail),
	}, nil
}

// ---------------------------------------------------------------------------
// The Odds API
// ---------------------------------------------------------------------------

// OddsSource corroborates sports markets against The Odds API scores.
type OddsSource struct {
	client ScoreFeed
	sports []string
}

// NewOddsSource creates a source searching the given sport keys.
func NewOddsSource(client ScoreFeed, sports []string) *OddsSource {
	return &OddsSource{client: client, sports: sports}
}

func (s *OddsSource) Name() string            { return "oddsapi" }
func (s *OddsSource) Kind() domain.SourceKind { return domain.SourceKindSports }

// Query finds the event the market is about and reads its scores.
func (s *OddsSource) Query(ctx context.Context, c domain.MarketCandidate) (domain.Evidence, error) {
	pred, ok := predict(c)
	if !ok {
		return domain.Evidence{}, fmt.Errorf("oddsapi: %w: no team in question", domain.ErrNoEvidence)
	}

	var errs []error
	for _, sport := range s.sports {
		events, err := s.client.Scores(ctx, sport, 1)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, e := range events {
			if !eventMatches(e, pred) {
				continue
			}
			return oddsEvidence(e, pred)
		}
	}
	if len(errs) > 0 {
		return domain.Evidence{}, fmt.Errorf("oddsapi: %w", errors.Join(errs...))
	}
	return domain.Evidence{}, fmt.Errorf("oddsapi: %w: no event for %q", domain.ErrNoEvidence, pred.Subject)
}

func eventMatches(e oddsapi.EventScore, p prediction) bool {
	subject := teamMatches(p.Subject, e.HomeTeam) || teamMatches(p.Subject, e.AwayTeam)
	if p.Opponent == "" {
		return subject
	}
	return subject && (teamMatches(p.Opponent, e.HomeTeam) || teamMatches(p.Opponent, e.AwayTeam))
}

func oddsEvidence(e oddsapi.EventScore, p prediction) (domain.Evidence, error) {
	leader, ok := e.Leader()
	if !ok {
		return domain.Evidence{}, fmt.Errorf("oddsapi: %w: %s vs %s has no leader", domain.ErrNoEvidence, e.HomeTeam, e.AwayTeam)
	}
	margin := 0
	if len(e.Scores) == 2 {
		a, errA := strconv.Atoi(e.Scores[0].Score)
		b, errB := strconv.Atoi(e.Scores[1].Score)
		if errA == nil && errB == nil {
			margin = abs(a - b)
		}
	}
	state := "in progress"
	if e.Completed {
		state = "final"
	}
	return domain.Evidence{
		Source:     "oddsapi",
		Supports:   p.supports(teamMatches(p.Subject, leader)),
		Confidence: scoreConfidence(e.Completed, margin),
		Snippet:    fmt.Sprintf("%s vs %s: %s leads (%s)", e.HomeTeam, e.AwayTeam, leader, state),
	}, nil
}

// ---------------------------------------------------------------------------
// NewsAPI
// ---------------------------------------------------------------------------

const (
	newsLookback = 72 * time.Hour
	newsPageSize = 20
	newsKeywords = 6
)

// NewsSource corroborates markets with recent headlines.
type NewsSource struct {
	client NewsSearch
	now    func() time.Time
}

// NewNewsSource creates a news source.
func NewNewsSource(client NewsSearch) *NewsSource {
	return &NewsSource{client: client, now: time.Now}
}

func (s *NewsSource) Name() string            { return "newsapi" }
func (s *NewsSource) Kind() domain.SourceKind { return domain.SourceKindNews }

// Query searches recent articles about the question and weighs affirming
// against denying language in the ones that mention the predicted subject.
func (s *NewsSource) Query(ctx context.Context, c domain.MarketCandidate) (domain.Evidence, error) {
	terms := keywords(c.Question, newsKeywords)
	if len(terms) == 0 {
		return domain.Evidence{}, fmt.Errorf("newsapi: %w: no keywords in question", domain.ErrNoEvidence)
	}
	pred, ok := predict(c)
	if !ok {
		// Fall back to the question itself: a Yes outcome is affirmed by
		// affirming language.
		pred = prediction{Affirmative: !strings.EqualFold(c.WinningOutcome(), "no")}
	}

	articles, err := s.client.Everything(ctx, newsapi.Query{
		Q:        strings.Join(terms, " "),
		From:     s.now().Add(-newsLookback),
		PageSize: newsPageSize,
	})
	if err != nil {
		return domain.Evidence{}, fmt.Errorf("newsapi: %w", err)
	}

	subject := normalize(pred.Subject)
	var affirm, deny, relevant int
	var headline string
	for _, a := range articles {
		text := normalize(a.Title + " " + a.Description)
		if subject != "" && !containsPhrase(text, subject) {
			continue
		}
		if subject == "" && matchedTerms(text, terms) < min(2, len(terms)) {
			continue
		}
		relevant++
		af, de := signalCounts(text)
		affirm += af
		deny += de
		if headline == "" && af+de > 0 {
			headline = a.Title
		}
	}
	signal := affirm + deny
	if signal == 0 || affirm == deny {
		return domain.Evidence{}, fmt.Errorf("newsapi: %w: %d relevant articles, no clear signal", domain.ErrNoEvidence, relevant)
	}

	ratio := float64(max(affirm, deny)) / float64(signal)
	confidence := min(ratio*min(0.6+0.1*float64(relevant), 1), 0.95)
	return domain.Evidence{
		Source:     "newsapi",
		Supports:   pred.supports(affirm > deny),
		Confidence: confidence,
		Snippet:    headline,
	}, nil
}

func matchedTerms(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if containsPhrase(text, t) {
			n++
		}
	}
	return n
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
