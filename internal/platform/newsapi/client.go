// Package newsapi is a client for the NewsAPI /v2/everything search.
package newsapi

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

// DefaultBaseURL is the public NewsAPI host.
const DefaultBaseURL = "https://newsapi.org"

// Article is a single search hit.
type Article struct {
	Source      string
	Author      string
	Title       string
	Description string
	URL         string
	PublishedAt time.Time
}

// Query describes an /v2/everything search.
type Query struct {
	Q        string
	From     time.Time
	Language string
	PageSize int
}

// Client searches news articles.
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

// Everything runs a search, newest articles first.
func (c *Client) Everything(ctx context.Context, q Query) ([]Article, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("newsapi: everything: %w: no api key", domain.ErrUnauthorized)
	}
	if strings.TrimSpace(q.Q) == "" {
		return nil, fmt.Errorf("newsapi: everything: %w: empty query", domain.ErrInvalidParams)
	}

	params := url.Values{}
	params.Set("q", q.Q)
	params.Set("sortBy", "publishedAt")
	if !q.From.IsZero() {
		params.Set("from", q.From.UTC().Format(time.RFC3339))
	}
	lang := q.Language
	if lang == "" {
		lang = "en"
	}
	params.Set("language", lang)
	if q.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(min(q.PageSize, 100)))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("newsapi: create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi: everything: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("newsapi: read response: %w", err)
	}

	var out everythingResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("newsapi: everything: %w: HTTP %d", domain.ErrUpstream, resp.StatusCode)
		}
		return nil, fmt.Errorf("newsapi: decode response: %w: %v", domain.ErrMalformedRecord, err)
	}
	if out.Status != "ok" || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("newsapi: everything: %w", apiError(resp.StatusCode, out.Code, out.Message))
	}
	return out.articles(), nil
}

type everythingResponse struct {
	Status       string `json:"status"`
	Code         string `json:"code"`
	Message      string `json:"message"`
	TotalResults int    `json:"totalResults"`
	Articles     []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Author      string `json:"author"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

func (r everythingResponse) articles() []Article {
	out := make([]Article, 0, len(r.Articles))
	for _, a := range r.Articles {
		art := Article{
			Source:      a.Source.Name,
			Author:      a.Author,
			Title:       a.Title,
			Description: a.Description,
			URL:         a.URL,
		}
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			art.PublishedAt = t
		}
		out = append(out, art)
	}
	return out
}

// apiError maps NewsAPI error codes onto domain sentinels.
func apiError(status int, code, message string) error {
	switch {
	case code == "apiKeyInvalid" || code == "apiKeyMissing" || code == "apiKeyDisabled" || code == "apiKeyExhausted":
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, message)
	case code == "rateLimited" || status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, message)
	case code == "parameterInvalid" || code == "parametersMissing":
		return fmt.Errorf("%w: %s", domain.ErrInvalidParams, message)
	case status >= 500 || code == "unexpectedError":
		return fmt.Errorf("%w: %s", domain.ErrUpstream, message)
	}
	return fmt.Errorf("HTTP %d %s: %s", status, code, message)
}
