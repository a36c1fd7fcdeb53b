package notify

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// CandidatesMessage renders up to n candidates, one per line, in the order
// given.
func CandidatesMessage(cands []domain.MarketCandidate, n int) (string, string) {
	if n <= 0 || n > len(cands) {
		n = len(cands)
	}
	title := fmt.Sprintf("%d near-certain market(s) found", len(cands))
	var b strings.Builder
	for i, c := range cands[:n] {
		fmt.Fprintf(&b, "%d. %s\n   %s @ %.1f%% | liquidity $%.0f | %.1fh left\n",
			i+1, c.Question, c.WinningOutcome(), c.WinningProbability*100,
			c.Liquidity.USD, c.HoursUntilResolution)
	}
	if rest := len(cands) - n; rest > 0 {
		fmt.Fprintf(&b, "... and %d more", rest)
	}
	return title, strings.TrimRight(b.String(), "\n")
}

// TradeMessage renders an executed (or simulated) order.
func TradeMessage(pos domain.Position, res domain.OrderResult) (string, string) {
	var title string
	switch {
	case res.Success && res.DryRun:
		title = "Simulated trade"
	case res.Success:
		title = "Trade executed"
	default:
		title = "Trade failed"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", pos.Question)
	fmt.Fprintf(&b, "Outcome: %s @ %.1f%%\n", pos.Outcome, pos.Probability*100)
	fmt.Fprintf(&b, "Size: $%s | expected ROI %.2f%%\n", pos.Size.StringFixed(2), pos.ExpectedROIPercent)
	if res.OrderID != "" {
		fmt.Fprintf(&b, "Order: %s (%s)\n", res.OrderID, res.Status)
	}
	if res.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", res.Error)
	}
	return title, strings.TrimRight(b.String(), "\n")
}
