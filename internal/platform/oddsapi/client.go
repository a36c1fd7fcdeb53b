// Package oddsapi is a client for The Odds API scores endpoint.
package oddsapi

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

// DefaultBaseURL is the public Odds API host.
const DefaultBaseURL = "https://api.the-odds-api.com"

// TeamScore is one team's score in an event.
type TeamScore struct {
	Name  string `json:"name"`
	Score string `json:"score"`
}

// EventScore is an event as returned by /v4/sports/{sport}/scores.
type EventScore struct {
	ID           string      `json:"id"`
	SportKey     string      `json:"sport_key"`
	SportTitle   string      `json:"sport_title"`
	CommenceTime time.Time   `json:"commence_time"`
	Completed    bool        `json:"completed"`
	HomeTeam     string      `json:"home_team"`
	AwayTeam     string      `json:"away_team"`
	Scores       []TeamScore `json:"scores"`
	LastUpdate   *time.Time  `json:"last_update"`
}

// Leader returns the team with the higher score. ok is false when scores are
// missing or level.
func (e EventScore) Leader() (team string, ok bool) {
	var home, away int
	var seen int
	for _, s := range e.Scores {
		n, err := strconv.Atoi(s.Score)
		if err != nil {
			continue
		}
		switch s.Name {
		case e.HomeTeam:
			home, seen = n, seen+1
		case e.AwayTeam:
			away, seen = n, seen+1
		}
	}
	if seen < 2 {
		return "", false
	}
	switch {
	case home > away:
		return e.HomeTeam, true
	case away > home:
		return e.AwayTeam, true
	}
	return "", false
}

// Client fetches event scores.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a client. An empty baseURL uses DefaultBaseURL.
func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Scores returns live and upcoming events for sport plus events completed
// within daysFrom days (1..3; 0 omits completed events).
func (c *Client) Scores(ctx context.Context, sport string, daysFrom int) ([]EventScore, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("oddsapi: scores: %w: no api key", domain.ErrUnauthorized)
	}
	params := url.Values{}
	params.Set("apiKey", c.apiKey)
	if daysFrom > 0 {
		params.Set("daysFrom", strconv.Itoa(min(daysFrom, 3)))
	}
	u := fmt.Sprintf("%s/v4/sports/%s/scores/?%s", c.baseURL, url.PathEscape(sport), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("oddsapi: create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oddsapi: scores %s: %w", sport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("oddsapi: read response: %w", err)
	}
	if err := checkStatus(resp.StatusCode, body); err != nil {
		return nil, fmt.Errorf("oddsapi: scores %s: %w", sport, err)
	}

	var events []EventScore
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("oddsapi: decode scores: %w: %v", domain.ErrMalformedRecord, err)
	}
	return events, nil
}

func checkStatus(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, body)
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, body)
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, body)
	case code >= 500:
		return fmt.Errorf("%w: HTTP %d", domain.ErrUpstream, code)
	}
	return fmt.Errorf("HTTP %d: %s", code, body)
}
