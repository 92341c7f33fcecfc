package matcher

import (
	"strings"

	"HeadlineRadar/internal/domain"
)

type compiledGroup struct {
	include []string
	exclude []string
}

// Matcher classifies headlines against the configured keyword groups.
// It holds no mutable state after construction.
type Matcher struct {
	groups   []domain.KeywordGroup
	compiled []compiledGroup
}

// New lower-cases and deduplicates the terms of every group once.
func New(groups []domain.KeywordGroup) *Matcher {
	m := &Matcher{
		groups:   append([]domain.KeywordGroup(nil), groups...),
		compiled: make([]compiledGroup, len(groups)),
	}
	for i, g := range groups {
		m.compiled[i] = compiledGroup{
			include: normalizeTerms(g.IncludeTerms),
			exclude: normalizeTerms(g.ExcludeTerms),
		}
	}
	return m
}

// Groups returns the groups in configuration order.
func (m *Matcher) Groups() []domain.KeywordGroup {
	return m.groups
}

// Match returns the indices, in configuration order, of every group whose
// include terms hit the title and whose exclude terms do not.
func (m *Matcher) Match(title string) []int {
	text := strings.ToLower(title)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var matched []int
	for i, g := range m.compiled {
		if containsAny(text, g.include) && !containsAny(text, g.exclude) {
			matched = append(matched, i)
		}
	}
	return matched
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func normalizeTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
