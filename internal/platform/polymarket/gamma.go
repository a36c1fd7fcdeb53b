package polymarket

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

// gammaPageSize is the largest page requested from /markets.
const gammaPageSize = 100

// GammaClient reads market metadata from the Polymarket Gamma API. It
// implements domain.MarketSource.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    domain.RateLimiter
	perSecond  int
}

// NewGammaClient creates a client for baseURL, e.g.
// "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithRateLimiter gates every request through limiter at perSecond requests
// per second, shared by all processes using the same limiter.
func (g *GammaClient) WithRateLimiter(limiter domain.RateLimiter, perSecond int) *GammaClient {
	g.limiter = limiter
	g.perSecond = perSecond
	return g
}

// ListMarkets returns up to limit active, open, order-book-enabled markets,
// paging through /markets. limit <= 0 returns the API's default page.
func (g *GammaClient) ListMarkets(ctx context.Context, limit int) ([]domain.MarketRecord, error) {
	var records []domain.MarketRecord
	for offset := 0; ; {
		q := url.Values{
			"active":          {"true"},
			"closed":          {"false"},
			"archived":        {"false"},
			"enableOrderBook": {"true"},
		}
		size := 0
		if limit > 0 {
			size = min(limit-len(records), gammaPageSize)
			q.Set("limit", strconv.Itoa(size))
			if offset > 0 {
				q.Set("offset", strconv.Itoa(offset))
			}
		}

		var page []json.RawMessage
		if err := g.getJSON(ctx, "/markets?"+q.Encode(), &page); err != nil {
			return nil, fmt.Errorf("polymarket/gamma: list markets (offset %d): %w", offset, err)
		}
		for _, raw := range page {
			records = append(records, decodeMarket(raw))
		}

		offset += len(page)
		if size == 0 || len(page) < size || len(records) >= limit {
			return records, nil
		}
	}
}

// decodeMarket decodes one element of a /markets page. A record that does
// not decode is kept with DecodeError set so one bad market cannot fail the
// page.
func decodeMarket(raw json.RawMessage) domain.MarketRecord {
	var m APIMarket
	err := json.Unmarshal(raw, &m)
	if err == nil {
		return m.ToDomainRecord()
	}

	var ident struct {
		ID       json.RawMessage `json:"id"`
		Question any             `json:"question"`
	}
	_ = json.Unmarshal(raw, &ident)
	rec := domain.MarketRecord{
		ID:          strings.Trim(string(ident.ID), `"`),
		DecodeError: err.Error(),
	}
	if q, ok := ident.Question.(string); ok {
		rec.Question = q
	}
	return rec
}

// GetMarket returns one market by id, open or closed.
func (g *GammaClient) GetMarket(ctx context.Context, id string) (domain.MarketRecord, error) {
	var m APIMarket
	if err := g.getJSON(ctx, "/markets/"+url.PathEscape(id), &m); err != nil {
		return domain.MarketRecord{}, fmt.Errorf("polymarket/gamma: get market %s: %w", id, err)
	}
	return m.ToDomainRecord(), nil
}

func (g *GammaClient) getJSON(ctx context.Context, path string, out any) error {
	if g.limiter != nil && g.perSecond > 0 {
		if err := g.limiter.Wait(ctx, "gamma", g.perSecond, time.Second); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}
	return nil
}
