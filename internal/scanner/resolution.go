package scanner

import "github.com/alanyoungcy/polyarb/internal/domain"

// resolvedPrice is the price at or above which a closed market's outcome is
// treated as the winner.
const resolvedPrice = 0.99

// Resolution reports the winning outcome index of a closed market. ok is
// false while the market is open or its prices have not settled.
func Resolution(rec domain.MarketRecord) (winner int, ok bool) {
	if !rec.Closed {
		return -1, false
	}
	_, prices, _, err := parseOutcomes(rec)
	if err != nil {
		return -1, false
	}
	idx := leadingIndex(prices)
	if prices[idx] < resolvedPrice {
		return -1, false
	}
	return idx, true
}
