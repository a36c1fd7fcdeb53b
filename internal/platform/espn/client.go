// Package espn is a client for ESPN's public site scoreboard API.
package espn

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// DefaultBaseURL is the public ESPN site API host.
const DefaultBaseURL = "https://site.api.espn.com"

// Game states as reported in status.type.state.
const (
	StatePre  = "pre"
	StateIn   = "in"
	StatePost = "post"
)

// Competitor is one side of a game.
type Competitor struct {
	Name         string // full display name, e.g. "Los Angeles Lakers"
	ShortName    string // e.g. "Lakers"
	Abbreviation string
	HomeAway     string
	Score        int
	Winner       bool
}

// Game is a scoreboard event.
type Game struct {
	ID          string
	Name        string
	League      string
	Date        time.Time
	State       string
	Completed   bool
	Detail      string
	Competitors []Competitor
}

// Leader returns the competitor that won, or that currently leads an
// in-progress game. ok is false for ties and games not yet started.
func (g Game) Leader() (Competitor, bool) {
	if g.State == StatePre || len(g.Competitors) != 2 {
		return Competitor{}, false
	}
	for _, c := range g.Competitors {
		if c.Winner {
			return c, true
		}
	}
	a, b := g.Competitors[0], g.Competitors[1]
	switch {
	case a.Score > b.Score:
		return a, true
	case b.Score > a.Score:
		return b, true
	}
	return Competitor{}, false
}

// Client fetches scoreboards.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

// New creates a client. An empty baseURL uses DefaultBaseURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		userAgent: "polyarb/1.0",
	}
}

// Scoreboard returns the games for a league path such as "basketball/nba".
// A zero date asks for ESPN's current window.
func (c *Client) Scoreboard(ctx context.Context, league string, date time.Time) ([]Game, error) {
	u := fmt.Sprintf("%s/apis/site/v2/sports/%s/scoreboard", c.baseURL, league)
	if !date.IsZero() {
		u += "?" + url.Values{"dates": {date.Format("20060102")}}.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("espn: create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("espn: scoreboard %s: %w", league, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("espn: read response: %w", err)
	}
	if err := checkStatus(resp.StatusCode, body); err != nil {
		return nil, fmt.Errorf("espn: scoreboard %s: %w", league, err)
	}

	var sb scoreboardResponse
	if err := json.Unmarshal(body, &sb); err != nil {
		return nil, fmt.Errorf("espn: decode scoreboard: %w: %v", domain.ErrMalformedRecord, err)
	}
	return sb.games(league), nil
}

type scoreboardResponse struct {
	Events []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Date   string `json:"date"`
		Status struct {
			Type struct {
				State     string `json:"state"`
				Completed bool   `json:"completed"`
				Detail    string `json:"detail"`
			} `json:"type"`
		} `json:"status"`
		Competitions []struct {
			Competitors []struct {
				HomeAway string `json:"homeAway"`
				Winner   bool   `json:"winner"`
				Score    string `json:"score"`
				Team     struct {
					DisplayName      string `json:"displayName"`
					ShortDisplayName string `json:"shortDisplayName"`
					Abbreviation     string `json:"abbreviation"`
				} `json:"team"`
			} `json:"competitors"`
		} `json:"competitions"`
	} `json:"events"`
}

func (r scoreboardResponse) games(league string) []Game {
	out := make([]Game, 0, len(r.Events))
	for _, ev := range r.Events {
		g := Game{
			ID:        ev.ID,
			Name:      ev.Name,
			League:    league,
			State:     ev.Status.Type.State,
			Completed: ev.Status.Type.Completed,
			Detail:    ev.Status.Type.Detail,
		}
		// ESPN dates omit seconds ("2024-01-15T00:30Z").
		if t, err := time.Parse("2006-01-02T15:04Z07:00", ev.Date); err == nil {
			g.Date = t
		} else if t, err := time.Parse(time.RFC3339, ev.Date); err == nil {
			g.Date = t
		}
		if len(ev.Competitions) > 0 {
			for _, comp := range ev.Competitions[0].Competitors {
				score, _ := strconv.Atoi(comp.Score)
				g.Competitors = append(g.Competitors, Competitor{
					Name:         comp.Team.DisplayName,
					ShortName:    comp.Team.ShortDisplayName,
					Abbreviation: comp.Team.Abbreviation,
					HomeAway:     comp.HomeAway,
					Score:        score,
					Winner:       comp.Winner,
				})
			}
		}
		out = append(out, g)
	}
	return out
}

func checkStatus(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, body)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, body)
	case code >= 500:
		return fmt.Errorf("%w: HTTP %d", domain.ErrUpstream, code)
	}
	return fmt.Errorf("HTTP %d: %s", code, body)
}
