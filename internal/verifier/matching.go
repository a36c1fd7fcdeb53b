package verifier

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// prediction is what the market's leading outcome claims: Subject wins
// (Affirmative) or does not. Opponent is empty when the question names only
// one side.
type prediction struct {
	Subject     string
	Opponent    string
	Affirmative bool
}

var (
	beatRe = regexp.MustCompile(`(?i)^will (?:the )?(.+?) (?:beat|defeat|win against|win over|win vs\.?) (?:the )?(.+?)(?:\s+(?:on|in|at|by|tonight|today|this)\b.*)?\?*$`)
	winRe  = regexp.MustCompile(`(?i)^will (?:the )?(.+?) win\b`)
)

// predict derives the claimed result from the candidate. Markets whose
// outcomes are team or person names predict the leading label directly.
func predict(c domain.MarketCandidate) (prediction, bool) {
	lead := strings.TrimSpace(c.WinningOutcome())
	if lead == "" {
		return prediction{}, false
	}

	switch strings.ToLower(lead) {
	case "yes", "no":
		affirmative := strings.EqualFold(lead, "yes")
		q := strings.TrimSpace(c.Question)
		if m := beatRe.FindStringSubmatch(q); m != nil {
			return prediction{Subject: m[1], Opponent: m[2], Affirmative: affirmative}, true
		}
		if m := winRe.FindStringSubmatch(q); m != nil {
			return prediction{Subject: m[1], Affirmative: affirmative}, true
		}
		return prediction{}, false
	case "draw", "tie", "over", "under":
		return prediction{}, false
	}

	p := prediction{Subject: lead, Affirmative: true}
	if len(c.Outcomes) == 2 {
		p.Opponent = c.Outcomes[1-c.WinningIndex]
	}
	return p, true
}

// normalize lowercases s and reduces punctuation to single spaces.
func normalize(s string) string {
	var b strings.Builder
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// containsPhrase reports whether the normalized phrase occurs in the
// normalized text on word boundaries.
func containsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}

// teamMatches reports whether a team named in a question refers to a
// competitor known by any of names.
func teamMatches(team string, names ...string) bool {
	t := normalize(team)
	if t == "" {
		return false
	}
	for _, n := range names {
		n = normalize(n)
		if n != "" && (containsPhrase(n, t) || containsPhrase(t, n)) {
			return true
		}
	}
	return false
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "at": true, "be": true,
	"before": true, "after": true, "by": true, "do": true, "does": true,
	"end": true, "for": true, "from": true, "has": true, "have": true,
	"in": true, "is": true, "it": true, "of": true, "on": true, "or": true,
	"than": true, "that": true, "the": true, "this": true, "to": true,
	"will": true, "with": true, "what": true, "who": true, "which": true,
	"yes": true, "no": true,
}

// keywords extracts up to limit search terms from a question, in order.
func keywords(question string, limit int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, w := range strings.Fields(normalize(question)) {
		if stopwords[w] || seen[w] || len(w) < 2 {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == limit {
			break
		}
	}
	return out
}

var (
	affirmWords = []string{
		"wins", "won", "win", "victory", "confirmed", "confirms", "approved",
		"approves", "passes", "passed", "signed", "announced", "elected",
		"clinches", "clinched", "secures", "secured", "record high", "surges",
	}
	denyWords = []string{
		"loses", "lost", "loss", "defeated", "rejected", "rejects", "fails",
		"failed", "denied", "denies", "cancelled", "canceled", "postponed",
		"delayed", "withdraws", "withdrew", "blocked", "plunges", "drops",
	}
)

// signalCounts counts affirming and denying terms in text.
func signalCounts(text string) (affirm, deny int) {
	t := normalize(text)
	for _, w := range affirmWords {
		if containsPhrase(t, w) {
			affirm++
		}
	}
	for _, w := range denyWords {
		if containsPhrase(t, w) {
			deny++
		}
	}
	return affirm, deny
}

// scoreConfidence maps a game's state and margin to a confidence. A final
// result is near certain; a live lead grows more reliable with the margin.
func scoreConfidence(completed bool, margin int) float64 {
	if completed {
		return 0.99
	}
	return min(0.6+0.05*float64(margin), 0.9)
}
