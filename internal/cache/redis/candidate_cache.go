package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// CandidateCache implements domain.CandidateCache. Each candidate is stored
// as JSON under candidate:{id} and expires after ttl.
type CandidateCache struct {
	c   *Client
	ttl time.Duration
}

// NewCandidateCache creates a CandidateCache. ttl defaults to 10 minutes.
func NewCandidateCache(c *Client, ttl time.Duration) *CandidateCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CandidateCache{c: c, ttl: ttl}
}

// Set stores c, replacing any earlier snapshot of the same market.
func (cc *CandidateCache) Set(ctx context.Context, c domain.MarketCandidate) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("redis: marshal candidate %s: %w", c.ID, err)
	}
	if err := cc.c.rdb.Set(ctx, cc.c.key("candidate", c.ID), data, cc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set candidate %s: %w", c.ID, err)
	}
	return nil
}

// Get returns the cached candidate or domain.ErrNotFound.
func (cc *CandidateCache) Get(ctx context.Context, id string) (domain.MarketCandidate, error) {
	data, err := cc.c.rdb.Get(ctx, cc.c.key("candidate", id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketCandidate{}, fmt.Errorf("redis: candidate %s: %w", id, domain.ErrNotFound)
		}
		return domain.MarketCandidate{}, fmt.Errorf("redis: get candidate %s: %w", id, err)
	}

	var c domain.MarketCandidate
	if err := json.Unmarshal(data, &c); err != nil {
		return domain.MarketCandidate{}, fmt.Errorf("redis: unmarshal candidate %s: %w", id, err)
	}
	return c, nil
}

// Invalidate removes a cached candidate.
func (cc *CandidateCache) Invalidate(ctx context.Context, id string) error {
	if err := cc.c.rdb.Del(ctx, cc.c.key("candidate", id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate candidate %s: %w", id, err)
	}
	return nil
}

var _ domain.CandidateCache = (*CandidateCache)(nil)
