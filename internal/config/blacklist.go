package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Blacklist is the compiled form of BlacklistConfig.
type Blacklist struct {
	question    []*regexp.Regexp
	description []*regexp.Regexp
	categories  map[string]bool
}

// Compile compiles every pattern. It reports the first invalid pattern.
func (b BlacklistConfig) Compile() (*Blacklist, error) {
	out := &Blacklist{categories: make(map[string]bool, len(b.Categories))}
	for _, p := range b.QuestionPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("blacklist: invalid question pattern %q: %w", p, err)
		}
		out.question = append(out.question, re)
	}
	for _, p := range b.DescriptionPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("blacklist: invalid description pattern %q: %w", p, err)
		}
		out.description = append(out.description, re)
	}
	for _, c := range b.Categories {
		out.categories[strings.ToLower(strings.TrimSpace(c))] = true
	}
	return out, nil
}

// Match reports whether a market is blacklisted and why. A nil Blacklist
// matches nothing.
func (b *Blacklist) Match(question, description, category string) (bool, string) {
	if b == nil {
		return false, ""
	}
	for _, re := range b.question {
		if re.MatchString(question) {
			return true, fmt.Sprintf("question matches blacklist pattern: %s", trimFlags(re))
		}
	}
	if description != "" {
		for _, re := range b.description {
			if re.MatchString(description) {
				return true, fmt.Sprintf("description matches blacklist pattern: %s", trimFlags(re))
			}
		}
	}
	if category != "" && b.categories[strings.ToLower(category)] {
		return true, fmt.Sprintf("category %q is blacklisted", category)
	}
	return false, ""
}

func trimFlags(re *regexp.Regexp) string {
	return strings.TrimPrefix(re.String(), "(?i)")
}
