package scanner

import (
	"regexp"
	"strings"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// categoryKeywords are checked in order; the first category with a hit wins.
var categoryKeywords = []struct {
	category domain.Category
	words    []string
}{
	{domain.CategorySports, []string{
		"sport", "game", "match", "team", "player", "nfl", "nba", "mlb",
		"nhl", "soccer", "football", "basketball", "baseball", "hockey",
		"championship", "tournament", "playoff", "super bowl", "world cup",
	}},
	{domain.CategoryPolitics, []string{
		"election", "president", "senate", "congress", "vote", "candidate",
		"democrat", "republican", "trump", "biden", "political", "policy",
	}},
	{domain.CategoryCrypto, []string{
		"bitcoin", "btc", "ethereum", "eth", "crypto", "cryptocurrency",
		"blockchain", "defi", "nft", "token", "coin", "price", "market cap",
	}},
	{domain.CategoryEconomics, []string{
		"gdp", "inflation", "unemployment", "fed", "federal reserve",
		"interest rate", "economy", "economic", "recession",
	}},
	{domain.CategoryEntertainment, []string{
		"movie", "film", "oscar", "grammy", "award", "celebrity",
		"actor", "actress", "music", "album", "tv show", "television",
	}},
}

type categoryMatcher struct {
	category domain.Category
	re       *regexp.Regexp
}

// categoryMatchers hold one regexp per category. Keywords must start at a
// word boundary so "eth" does not match "whether"; trailing letters are
// allowed so "election" also matches "elections".
var categoryMatchers = func() []categoryMatcher {
	out := make([]categoryMatcher, 0, len(categoryKeywords))
	for _, ck := range categoryKeywords {
		quoted := make([]string, len(ck.words))
		for i, w := range ck.words {
			quoted[i] = regexp.QuoteMeta(w)
		}
		re := regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)`)
		out = append(out, categoryMatcher{category: ck.category, re: re})
	}
	return out
}()

// Categorize classifies a market by keyword over its question, description
// and tags. A source-provided category is used when it names a known bucket.
func Categorize(sourceCategory, question, description string, tags []string) domain.Category {
	if c := domain.ParseCategory(sourceCategory); c != domain.CategoryOther {
		return c
	}
	text := strings.ToLower(question + " " + description + " " + strings.Join(tags, " "))
	for _, m := range categoryMatchers {
		if m.re.MatchString(text) {
			return m.category
		}
	}
	return domain.CategoryOther
}
