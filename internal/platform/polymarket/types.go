package polymarket

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from a JSON number, a numeric string or null. Set
// reports whether a usable value was present.
type flexFloat struct {
	Value float64
	Set   bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = flexFloat{}
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat{Value: n, Set: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*f = flexFloat{}
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Keep the record; the scanner treats the field as absent.
		*f = flexFloat{}
		return nil
	}
	*f = flexFloat{Value: n, Set: true}
	return nil
}

// encodedList holds a list field that Gamma sends either as a JSON-encoded
// string ("[\"Yes\",\"No\"]") or as a plain JSON array. Text is always the
// JSON array text; decoding is left to the consumer.
type encodedList struct {
	Text string
}

func (l *encodedList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		l.Text = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		l.Text = s
	default:
		l.Text = string(data)
	}
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID            string      `json:"id"`
	Question      string      `json:"question"`
	ConditionID   string      `json:"conditionId"`
	Slug          string      `json:"slug"`
	Description   string      `json:"description"`
	Category      string      `json:"category"`
	Active        flexBool    `json:"active"`
	Closed        flexBool    `json:"closed"`
	Archived      flexBool    `json:"archived"`
	Funded        flexBool    `json:"funded"`
	Outcomes      encodedList `json:"outcomes"`
	OutcomePrices encodedList `json:"outcomePrices"`
	ClobTokenIDs  encodedList `json:"clobTokenIds"`
	EndDate       string      `json:"endDate"`
	EndDateISO    string      `json:"endDateIso"`
	Liquidity     flexFloat   `json:"liquidity"`
	LiquidityClob flexFloat   `json:"liquidityClob"`
	Volume        flexFloat   `json:"volume"`
	VolumeClob    flexFloat   `json:"volumeClob"`
	Volume24hr    flexFloat   `json:"volume24hr"`
	Spread        flexFloat   `json:"spread"`
	Tags          []APITag    `json:"tags"`
	CreatedAt     string      `json:"createdAt"`
}

// APITag is a tag attached to a Gamma market.
type APITag struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Slug  string `json:"slug"`
}

// ToDomainRecord converts an APIMarket into a raw domain.MarketRecord. No
// validation happens here; malformed fields are passed through for the
// scanner to reject with a reason.
func (m *APIMarket) ToDomainRecord() domain.MarketRecord {
	rec := domain.MarketRecord{
		ID:           m.ID,
		Question:     m.Question,
		Description:  m.Description,
		Slug:         m.Slug,
		ConditionID:  m.ConditionID,
		Category:     m.Category,
		Active:       bool(m.Active),
		Closed:       bool(m.Closed),
		Archived:     bool(m.Archived),
		Funded:       bool(m.Funded),
		OutcomesJSON: m.Outcomes.Text,
		PricesJSON:   m.OutcomePrices.Text,
		TokenIDsJSON: m.ClobTokenIDs.Text,
		EndDate:      m.EndDate,
		EndDateISO:   m.EndDateISO,
		Volume:       m.Volume.Value,
		Volume24h:    m.Volume24hr.Value,
		Spread:       m.Spread.Value,
		CreatedAt:    m.CreatedAt,
	}
	if !m.Volume.Set {
		rec.Volume = m.VolumeClob.Value
	}

	// liquidityClob is preferred; a zero value falls through like a missing one.
	switch {
	case m.LiquidityClob.Set && m.LiquidityClob.Value > 0:
		v := m.LiquidityClob.Value
		rec.Liquidity = &v
	case m.Liquidity.Set && m.Liquidity.Value > 0:
		v := m.Liquidity.Value
		rec.Liquidity = &v
	}

	for _, t := range m.Tags {
		switch {
		case t.Slug != "":
			rec.Tags = append(rec.Tags, t.Slug)
		case t.Label != "":
			rec.Tags = append(rec.Tags, t.Label)
		}
	}
	return rec
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIOrder represents an order as returned by the Polymarket CLOB API.
type APIOrder struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	MarketID     string `json:"market"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"` // "BUY" or "SELL"
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	Price        string `json:"price"`
	Owner        string `json:"owner"`
}

// APIOrderResult is the response from placing an order via the CLOB API.
type APIOrderResult struct {
	Success     bool   `json:"success"`
	ErrorMsg    string `json:"errorMsg,omitempty"`
	OrderID     string `json:"orderID,omitempty"`
	Status      string `json:"status,omitempty"`
	ShouldRetry bool   `json:"shouldRetry,omitempty"`
}

// APIBook is the order book snapshot returned by GET /book.
type APIBook struct {
	Market    string          `json:"market"`
	AssetID   string          `json:"asset_id"`
	Bids      []APIPriceLevel `json:"bids"`
	Asks      []APIPriceLevel `json:"asks"`
	Timestamp string          `json:"timestamp"`
	Hash      string          `json:"hash"`
}

// APIPriceLevel is a single bid/ask level.
type APIPriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// --------------------------------------------------------------------------
// Conversion helpers: API types -> domain types
// --------------------------------------------------------------------------

// mapOrderStatus maps CLOB status strings onto domain statuses.
func mapOrderStatus(s string) domain.OrderStatus {
	switch strings.ToLower(s) {
	case "live", "open":
		return domain.OrderStatusOpen
	case "matched", "filled", "mined", "confirmed":
		return domain.OrderStatusMatched
	case "cancelled", "canceled", "unmatched":
		return domain.OrderStatusCancelled
	case "failed":
		return domain.OrderStatusFailed
	default:
		return domain.OrderStatusPending
	}
}

// ToDomainAck converts an APIOrderResult to a domain.OrderAck.
func (r *APIOrderResult) ToDomainAck() domain.OrderAck {
	ack := domain.OrderAck{
		OrderID: r.OrderID,
		Status:  mapOrderStatus(r.Status),
		Message: r.ErrorMsg,
	}
	if !r.Success {
		ack.Status = domain.OrderStatusFailed
	}
	return ack
}

// ToDomainAck converts an APIOrder to a domain.OrderAck.
func (a *APIOrder) ToDomainAck() domain.OrderAck {
	return domain.OrderAck{
		OrderID: a.ID,
		Status:  mapOrderStatus(a.Status),
	}
}

// ToDomainBook converts an APIBook to a domain.OrderBook with bids sorted
// highest first and asks lowest first. Unparseable levels are dropped.
func (b *APIBook) ToDomainBook() domain.OrderBook {
	book := domain.OrderBook{TokenID: b.AssetID}
	book.Bids = parseLevels(b.Bids)
	book.Asks = parseLevels(b.Asks)
	sort.Slice(book.Bids, func(i, j int) bool { return book.Bids[i].Price > book.Bids[j].Price })
	sort.Slice(book.Asks, func(i, j int) bool { return book.Asks[i].Price < book.Asks[j].Price })

	if ms, err := strconv.ParseInt(b.Timestamp, 10, 64); err == nil {
		book.Timestamp = time.UnixMilli(ms).UTC()
	} else if t, err := time.Parse(time.RFC3339, b.Timestamp); err == nil {
		book.Timestamp = t
	} else {
		book.Timestamp = time.Now().UTC()
	}
	return book
}

func parseLevels(in []APIPriceLevel) []domain.PriceLevel {
	out := make([]domain.PriceLevel, 0, len(in))
	for _, lvl := range in {
		p, err1 := strconv.ParseFloat(lvl.Price, 64)
		s, err2 := strconv.ParseFloat(lvl.Size, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, domain.PriceLevel{Price: p, Size: s})
	}
	return out
}
