package domain

import (
	"strings"
	"time"
)

// Category is the coarse topic bucket a market belongs to. Category caps in
// the risk manager are keyed by it.
type Category string

const (
	CategorySports        Category = "sports"
	CategoryPolitics      Category = "politics"
	CategoryCrypto        Category = "crypto"
	CategoryEconomics     Category = "economics"
	CategoryEntertainment Category = "entertainment"
	CategoryOther         Category = "other"
)

// Categories lists every category in classification priority order.
var Categories = []Category{
	CategorySports,
	CategoryPolitics,
	CategoryCrypto,
	CategoryEconomics,
	CategoryEntertainment,
	CategoryOther,
}

// ParseCategory maps a free-form label onto a Category, defaulting to other.
func ParseCategory(s string) Category {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if string(c) == s {
			return c
		}
	}
	return CategoryOther
}

// LiquiditySource tells whether a liquidity figure came from the market's own
// liquidity field or was estimated from order-book depth.
type LiquiditySource string

const (
	LiquidityAuthoritative LiquiditySource = "authoritative"
	LiquidityEstimated     LiquiditySource = "estimated"
)

// Liquidity is a USD liquidity figure tagged with its provenance.
type Liquidity struct {
	USD    float64         `json:"usd"`
	Source LiquiditySource `json:"source"`
}

// Estimated reports whether the figure is an order-book approximation.
func (l Liquidity) Estimated() bool {
	return l.Source == LiquidityEstimated
}

// MarketRecord is a market as delivered by the market-data source, before any
// parsing or filtering. Outcomes, prices and token ids are kept in their
// JSON-encoded wire form so the scanner can reject malformed records itself.
type MarketRecord struct {
	ID           string
	Question     string
	Description  string
	Slug         string
	ConditionID  string
	Category     string
	Tags         []string
	Active       bool
	Closed       bool
	Archived     bool
	Funded       bool
	OutcomesJSON string
	PricesJSON   string
	TokenIDsJSON string
	EndDate      string
	EndDateISO   string
	Liquidity    *float64 // nil when the source omitted it
	Volume       float64
	Volume24h    float64
	Spread       float64
	CreatedAt    string

	// DecodeError is set when the source record could not be decoded. Only
	// ID and Question are filled in and the scanner rejects it as malformed.
	DecodeError string
}

// MarketCandidate is an immutable snapshot of a market that passed every scan
// filter. WinningProbability always equals OutcomePrices[WinningIndex] and is
// the maximum of OutcomePrices.
type MarketCandidate struct {
	ID                   string    `json:"market_id"`
	Question             string    `json:"question"`
	Description          string    `json:"description,omitempty"`
	Slug                 string    `json:"slug,omitempty"`
	ConditionID          string    `json:"condition_id,omitempty"`
	Outcomes             []string  `json:"outcomes"`
	OutcomePrices        []float64 `json:"outcome_prices"`
	TokenIDs             []string  `json:"clob_token_ids,omitempty"`
	WinningIndex         int       `json:"winning_outcome_index"`
	WinningProbability   float64   `json:"winning_probability"`
	Liquidity            Liquidity `json:"liquidity"`
	Volume               float64   `json:"volume"`
	Volume24h            float64   `json:"volume_24hr"`
	Spread               float64   `json:"spread"`
	Category             Category  `json:"category"`
	Active               bool      `json:"active"`
	Closed               bool      `json:"closed"`
	Funded               bool      `json:"funded"`
	EndTime              time.Time `json:"end_time"`
	HoursUntilResolution float64   `json:"hours_until_resolution"`
	ScannedAt            time.Time `json:"scanned_at"`
}

// WinningOutcome returns the label of the leading outcome.
func (c MarketCandidate) WinningOutcome() string {
	if c.WinningIndex < 0 || c.WinningIndex >= len(c.Outcomes) {
		return ""
	}
	return c.Outcomes[c.WinningIndex]
}

// WinningTokenID returns the CLOB token id of the leading outcome, or "" when
// the market carries no token ids.
func (c MarketCandidate) WinningTokenID() string {
	if c.WinningIndex < 0 || c.WinningIndex >= len(c.TokenIDs) {
		return ""
	}
	return c.TokenIDs[c.WinningIndex]
}

// PriceLevel is a single price+size entry in an order book.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderBook is a snapshot of resting bids and asks for one outcome token.
// Bids are sorted best (highest) first and asks best (lowest) first.
type OrderBook struct {
	TokenID   string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// DepthUSD sums price*size over the best levels on both sides. levels <= 0
// means every level.
func (b OrderBook) DepthUSD(levels int) float64 {
	sum := func(side []PriceLevel) float64 {
		total := 0.0
		for i, lvl := range side {
			if levels > 0 && i >= levels {
				break
			}
			total += lvl.Price * lvl.Size
		}
		return total
	}
	return sum(b.Bids) + sum(b.Asks)
}
