package verifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/platform/espn"
	"github.com/alanyoungcy/polyarb/internal/platform/newsapi"
	"github.com/alanyoungcy/polyarb/internal/platform/oddsapi"
)

type fakeScoreboards struct {
	games map[string][]espn.Game
	errs  map[string]error
	calls []string
}

func (f *fakeScoreboards) Scoreboard(_ context.Context, league string, _ time.Time) ([]espn.Game, error) {
	f.calls = append(f.calls, league)
	if err := f.errs[league]; err != nil {
		return nil, err
	}
	return f.games[league], nil
}

type fakeScoreFeed struct {
	events []oddsapi.EventScore
	err    error
}

func (f *fakeScoreFeed) Scores(context.Context, string, int) ([]oddsapi.EventScore, error) {
	return f.events, f.err
}

type fakeNews struct {
	articles []newsapi.Article
	err      error
	last     newsapi.Query
}

func (f *fakeNews) Everything(_ context.Context, q newsapi.Query) ([]newsapi.Article, error) {
	f.last = q
	return f.articles, f.err
}

func lakersCeltics(state string, completed bool, lakers, celtics int) espn.Game {
	return espn.Game{
		ID:        "401",
		Name:      "Boston Celtics at Los Angeles Lakers",
		League:    "basketball/nba",
		State:     state,
		Completed: completed,
		Detail:    "Final",
		Competitors: []espn.Competitor{
			{Name: "Los Angeles Lakers", ShortName: "Lakers", Abbreviation: "LAL", HomeAway: "home", Score: lakers, Winner: completed && lakers > celtics},
			{Name: "Boston Celtics", ShortName: "Celtics", Abbreviation: "BOS", HomeAway: "away", Score: celtics, Winner: completed && celtics > lakers},
		},
	}
}

func TestESPNSource(t *testing.T) {
	yes := sportsCandidate()
	no := sportsCandidate()
	no.Outcomes = []string{"Yes", "No"}
	no.OutcomePrices = []float64{0.05, 0.95}
	no.WinningIndex = 1
	teams := domain.MarketCandidate{
		Question:     "Lakers vs. Celtics",
		Outcomes:     []string{"Lakers", "Celtics"},
		WinningIndex: 1,
	}

	tests := []struct {
		name       string
		candidate  domain.MarketCandidate
		game       espn.Game
		supports   bool
		confidence float64
	}{
		{"final result backs yes", yes, lakersCeltics(espn.StatePost, true, 110, 98), true, 0.99},
		{"final result contradicts no", no, lakersCeltics(espn.StatePost, true, 110, 98), false, 0.99},
		{"live lead backs team outcome", teams, lakersCeltics(espn.StateIn, false, 50, 56), true, 0.9},
		{"narrow live lead is less certain", yes, lakersCeltics(espn.StateIn, false, 61, 60), true, 0.65},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeScoreboards{games: map[string][]espn.Game{
				"football/nfl":   nil,
				"basketball/nba": {tc.game},
			}}
			src := NewESPNSource(client, []string{"football/nfl", "basketball/nba"})
			ev, err := src.Query(context.Background(), tc.candidate)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if ev.Supports != tc.supports {
				t.Fatalf("supports = %v, want %v", ev.Supports, tc.supports)
			}
			if diff := ev.Confidence - tc.confidence; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("confidence = %v, want %v", ev.Confidence, tc.confidence)
			}
			if ev.Source != "espn" || ev.Snippet == "" {
				t.Fatalf("evidence = %+v", ev)
			}
		})
	}
}

func TestESPNSourceNoEvidence(t *testing.T) {
	tests := []struct {
		name      string
		candidate domain.MarketCandidate
		games     []espn.Game
	}{
		{"game not started", sportsCandidate(), []espn.Game{lakersCeltics(espn.StatePre, false, 0, 0)}},
		{"tied game", sportsCandidate(), []espn.Game{lakersCeltics(espn.StateIn, false, 80, 80)}},
		{"no matching game", sportsCandidate(), nil},
		{"question without teams", domain.MarketCandidate{
			Question: "Total points over 220.5?", Outcomes: []string{"Yes", "No"},
		}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeScoreboards{games: map[string][]espn.Game{"basketball/nba": tc.games}}
			_, err := NewESPNSource(client, []string{"basketball/nba"}).Query(context.Background(), tc.candidate)
			if !errors.Is(err, domain.ErrNoEvidence) {
				t.Fatalf("err = %v, want ErrNoEvidence", err)
			}
		})
	}
}

func TestESPNSourceLeagueErrors(t *testing.T) {
	client := &fakeScoreboards{
		games: map[string][]espn.Game{"basketball/nba": {lakersCeltics(espn.StatePost, true, 110, 98)}},
		errs:  map[string]error{"football/nfl": domain.ErrUpstream},
	}
	src := NewESPNSource(client, []string{"football/nfl", "basketball/nba"})

	// A failing league does not hide a match in another.
	if _, err := src.Query(context.Background(), sportsCandidate()); err != nil {
		t.Fatalf("Query: %v", err)
	}

	client.games = nil
	_, err := src.Query(context.Background(), sportsCandidate())
	if !domain.IsTransient(err) {
		t.Fatalf("err = %v, want transient", err)
	}
}

func TestOddsSource(t *testing.T) {
	event := oddsapi.EventScore{
		ID:        "e1",
		HomeTeam:  "Boston Celtics",
		AwayTeam:  "Los Angeles Lakers",
		Completed: true,
		Scores: []oddsapi.TeamScore{
			{Name: "Boston Celtics", Score: "98"},
			{Name: "Los Angeles Lakers", Score: "110"},
		},
	}
	src := NewOddsSource(&fakeScoreFeed{events: []oddsapi.EventScore{event}}, []string{"basketball_nba"})

	ev, err := src.Query(context.Background(), sportsCandidate())
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !ev.Supports || ev.Confidence != 0.99 || ev.Source != "oddsapi" {
		t.Fatalf("evidence = %+v", ev)
	}

	event.Completed = false
	event.Scores = nil
	src = NewOddsSource(&fakeScoreFeed{events: []oddsapi.EventScore{event}}, []string{"basketball_nba"})
	if _, err := src.Query(context.Background(), sportsCandidate()); !errors.Is(err, domain.ErrNoEvidence) {
		t.Fatalf("err = %v, want ErrNoEvidence", err)
	}

	src = NewOddsSource(&fakeScoreFeed{err: domain.ErrUnauthorized}, []string{"basketball_nba"})
	if _, err := src.Query(context.Background(), sportsCandidate()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}
}

func TestNewsSource(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := domain.MarketCandidate{
		Question:     "Will the Senate pass the budget bill?",
		Outcomes:     []string{"Yes", "No"},
		WinningIndex: 0,
		Category:     domain.CategoryPolitics,
	}
	news := &fakeNews{articles: []newsapi.Article{
		{Title: "Senate passes budget bill after late vote"},
		{Title: "Budget bill approved by Senate", Description: "The measure now heads to the president."},
		{Title: "Weekend weather outlook"},
	}}
	src := NewNewsSource(news)
	src.now = func() time.Time { return now }

	ev, err := src.Query(context.Background(), c)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !ev.Supports {
		t.Fatal("affirming headlines should support yes")
	}
	if diff := ev.Confidence - 0.8; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("confidence = %v, want 0.8", ev.Confidence)
	}
	if ev.Snippet != "Senate passes budget bill after late vote" {
		t.Fatalf("snippet = %q", ev.Snippet)
	}
	if news.last.Q != "senate pass budget bill" {
		t.Fatalf("query = %q", news.last.Q)
	}
	if !news.last.From.Equal(now.Add(-72 * time.Hour)) {
		t.Fatalf("from = %v", news.last.From)
	}

	c.WinningIndex = 1
	ev, err = src.Query(context.Background(), c)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if ev.Supports {
		t.Fatal("affirming headlines should contradict no")
	}
}

func TestNewsSourceNoSignal(t *testing.T) {
	src := NewNewsSource(&fakeNews{articles: []newsapi.Article{
		{Title: "Senate debates budget bill"},
	}})
	c := domain.MarketCandidate{
		Question: "Will the Senate pass the budget bill?",
		Outcomes: []string{"Yes", "No"},
	}
	if _, err := src.Query(context.Background(), c); !errors.Is(err, domain.ErrNoEvidence) {
		t.Fatalf("err = %v, want ErrNoEvidence", err)
	}
}

func TestPredict(t *testing.T) {
	tests := []struct {
		question string
		outcomes []string
		lead     int
		want     prediction
		ok       bool
	}{
		{"Will the Lakers beat the Celtics?", []string{"Yes", "No"}, 0, prediction{"Lakers", "Celtics", true}, true},
		{"Will Arsenal defeat Chelsea on March 3?", []string{"Yes", "No"}, 1, prediction{"Arsenal", "Chelsea", false}, true},
		{"Will the Chiefs win the Super Bowl?", []string{"Yes", "No"}, 0, prediction{"Chiefs", "", true}, true},
		{"Lakers vs. Celtics", []string{"Lakers", "Celtics"}, 0, prediction{"Lakers", "Celtics", true}, true},
		{"Arsenal vs. Chelsea", []string{"Arsenal", "Draw", "Chelsea"}, 1, prediction{}, false},
		{"Bitcoin above $100k?", []string{"Yes", "No"}, 0, prediction{}, false},
	}
	for _, tc := range tests {
		t.Run(tc.question, func(t *testing.T) {
			got, ok := predict(domain.MarketCandidate{Question: tc.question, Outcomes: tc.outcomes, WinningIndex: tc.lead})
			if ok != tc.ok || got != tc.want {
				t.Fatalf("predict = %+v, %v; want %+v, %v", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestTeamMatches(t *testing.T) {
	tests := []struct {
		team  string
		names []string
		want  bool
	}{
		{"Lakers", []string{"Los Angeles Lakers"}, true},
		{"the LA Lakers", []string{"Los Angeles Lakers", "Lakers"}, true},
		{"Manchester United", []string{"Man United", "Manchester United"}, true},
		{"Lake", []string{"Los Angeles Lakers"}, false},
		{"", []string{"Los Angeles Lakers"}, false},
	}
	for _, tc := range tests {
		if got := teamMatches(tc.team, tc.names...); got != tc.want {
			t.Errorf("teamMatches(%q, %v) = %v, want %v", tc.team, tc.names, got, tc.want)
		}
	}
}

func TestKeywords(t *testing.T) {
	got := keywords("Will the Fed cut rates by 25 bps in March?", 4)
	want := []string{"fed", "cut", "rates", "25"}
	if len(got) != len(want) {
		t.Fatalf("keywords = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keywords = %v, want %v", got, want)
		}
	}
}
