package scanner

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyarb/internal/config"
	"github.com/alanyoungcy/polyarb/internal/domain"
)

const (
	// priceSumTolerance bounds how far outcome prices may sum away from 1.
	priceSumTolerance = 0.05
	// bookDepthLevels is how many levels per side count toward estimated
	// liquidity.
	bookDepthLevels = 10
)

// Criterion names reported by Details.
const (
	CriterionActive      = "active"
	CriterionOpen        = "open"
	CriterionFunded      = "funded"
	CriterionTimeWindow  = "time_window"
	CriterionPrices      = "prices_valid"
	CriterionProbability = "probability_in_range"
	CriterionLiquidity   = "liquidity"
	CriterionBlacklist   = "not_blacklisted"
)

// evaluation carries a record through the filter stages.
type evaluation struct {
	rec       domain.MarketRecord
	candidate domain.MarketCandidate
	rejection *domain.Rejection
}

func (e *evaluation) reject(reason string, malformed bool) {
	e.rejection = &domain.Rejection{
		MarketID:  e.rec.ID,
		Question:  e.rec.Question,
		Reason:    reason,
		Malformed: malformed,
	}
}

// needsBook reports whether the record passed the pre-filter but carries no
// authoritative liquidity.
func (e *evaluation) needsBook() bool {
	return e.rejection == nil && e.rec.Liquidity == nil
}

// prefilter runs the status, end-time and price stages.
func prefilter(rec domain.MarketRecord, p domain.ScanParams, now time.Time) *evaluation {
	ev := &evaluation{rec: rec}

	if rec.DecodeError != "" {
		ev.reject("malformed record: "+rec.DecodeError, true)
		return ev
	}
	if reason := statusReason(rec); reason != "" {
		ev.reject(reason, false)
		return ev
	}

	end, err := parseEndTime(rec)
	if err != nil {
		ev.reject(err.Error(), true)
		return ev
	}
	hours := end.Sub(now).Hours()
	if hours <= 0 {
		ev.reject("market has already ended", false)
		return ev
	}
	if hours > p.TimeWindowHours {
		ev.reject(fmt.Sprintf("resolution too far: %.1fh > %gh", hours, p.TimeWindowHours), false)
		return ev
	}

	outcomes, prices, tokens, err := parseOutcomes(rec)
	if err != nil {
		ev.reject(err.Error(), true)
		return ev
	}
	idx := leadingIndex(prices)
	prob := prices[idx]
	if prob < p.MinProb || prob > p.MaxProb {
		ev.reject(fmt.Sprintf("probability %.2f%% outside range [%.2f%%, %.2f%%]",
			prob*100, p.MinProb*100, p.MaxProb*100), false)
		return ev
	}

	ev.candidate = newCandidate(rec, outcomes, prices, tokens, end, now)
	return ev
}

// newCandidate builds the candidate view of a parsed record. Liquidity is
// set from the record when it carries an authoritative figure.
func newCandidate(rec domain.MarketRecord, outcomes []string, prices []float64, tokens []string, end, now time.Time) domain.MarketCandidate {
	idx := leadingIndex(prices)
	c := domain.MarketCandidate{
		ID:                   rec.ID,
		Question:             rec.Question,
		Description:          rec.Description,
		Slug:                 rec.Slug,
		ConditionID:          rec.ConditionID,
		Outcomes:             outcomes,
		OutcomePrices:        prices,
		TokenIDs:             tokens,
		WinningIndex:         idx,
		WinningProbability:   prices[idx],
		Volume:               rec.Volume,
		Volume24h:            rec.Volume24h,
		Spread:               rec.Spread,
		Category:             Categorize(rec.Category, rec.Question, rec.Description, rec.Tags),
		Active:               rec.Active,
		Closed:               rec.Closed,
		Funded:               rec.Funded,
		EndTime:              end,
		HoursUntilResolution: end.Sub(now).Hours(),
		ScannedAt:            now,
	}
	if rec.Liquidity != nil {
		c.Liquidity = domain.Liquidity{USD: *rec.Liquidity, Source: domain.LiquidityAuthoritative}
	}
	return c
}

// finish runs the liquidity and blacklist stages. The candidate's liquidity
// must already be set.
func finish(ev *evaluation, p domain.ScanParams, bl *config.Blacklist) {
	if ev.rejection != nil {
		return
	}
	if liq := ev.candidate.Liquidity.USD; liq < p.LiquidityFloor {
		ev.reject(fmt.Sprintf("insufficient liquidity: $%.2f < $%.2f", liq, p.LiquidityFloor), false)
		return
	}
	if hit, reason := bl.Match(ev.rec.Question, ev.rec.Description, string(ev.candidate.Category)); hit {
		ev.reject(reason, false)
	}
}

func statusReason(rec domain.MarketRecord) string {
	switch {
	case !rec.Active:
		return "market is not active"
	case rec.Closed:
		return "market is closed"
	case rec.Archived:
		return "market is archived"
	case !rec.Funded:
		return "market is not funded"
	}
	return ""
}

// parseEndTime reads endDate, falling back to endDateIso. Date-only values
// resolve at UTC midnight.
func parseEndTime(rec domain.MarketRecord) (time.Time, error) {
	raw := strings.TrimSpace(rec.EndDate)
	if raw == "" {
		raw = strings.TrimSpace(rec.EndDateISO)
	}
	if raw == "" {
		return time.Time{}, errors.New("missing end date")
	}
	if strings.Contains(raw, "T") {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t.UTC(), nil
		}
	} else if t, err := time.ParseInLocation(time.DateOnly, raw, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid end date format: %s", raw)
}

// parseOutcomes decodes the JSON-encoded outcome, price and token lists.
func parseOutcomes(rec domain.MarketRecord) ([]string, []float64, []string, error) {
	var outcomes []string
	if err := json.Unmarshal([]byte(rec.OutcomesJSON), &outcomes); err != nil {
		return nil, nil, nil, errors.New("could not parse outcomes")
	}

	// Prices arrive as strings ("0.95") or numbers.
	var rawPrices []json.RawMessage
	if err := json.Unmarshal([]byte(rec.PricesJSON), &rawPrices); err != nil {
		return nil, nil, nil, errors.New("could not parse outcome prices")
	}
	prices := make([]float64, 0, len(rawPrices))
	for _, raw := range rawPrices {
		v, err := parsePrice(raw)
		if err != nil {
			return nil, nil, nil, errors.New("could not parse outcome prices")
		}
		prices = append(prices, v)
	}

	if len(prices) < 2 {
		return nil, nil, nil, errors.New("invalid outcome prices")
	}
	if len(outcomes) != len(prices) {
		return nil, nil, nil, fmt.Errorf("outcome count mismatch: %d outcomes, %d prices", len(outcomes), len(prices))
	}
	sum := 0.0
	for _, v := range prices {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return nil, nil, nil, fmt.Errorf("outcome price %g outside [0,1]", v)
		}
		sum += v
	}
	if math.Abs(sum-1) > priceSumTolerance {
		return nil, nil, nil, fmt.Errorf("outcome prices sum to %.3f", sum)
	}

	var tokens []string
	if rec.TokenIDsJSON != "" {
		if err := json.Unmarshal([]byte(rec.TokenIDsJSON), &tokens); err != nil || len(tokens) != len(outcomes) {
			return nil, nil, nil, errors.New("could not parse clob token ids")
		}
	}
	return outcomes, prices, tokens, nil
}

func parsePrice(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(strings.TrimSpace(s), 64)
	}
	var f float64
	err := json.Unmarshal(raw, &f)
	return f, err
}

// leadingIndex returns the index of the highest price; ties go to the first.
func leadingIndex(prices []float64) int {
	idx := 0
	for i, v := range prices {
		if v > prices[idx] {
			idx = i
		}
	}
	return idx
}
