// Package textmatch finds whole-word keyword occurrences in free text.
package textmatch

import (
	"regexp"
	"sort"
	"strings"
)

// Matcher holds a compiled set of keywords. A keyword matches when it is
// surrounded by non-alphanumeric characters (or the text boundary), so
// "api" matches "REST API," but not "rapid". Matching is case-insensitive.
type Matcher struct {
	words    []string
	patterns []*regexp.Regexp
}

// Compile builds a Matcher from keywords. Blank and duplicate keywords are dropped.
func Compile(keywords []string) *Matcher {
	m := &Matcher{}
	seen := make(map[string]bool)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		m.words = append(m.words, kw)
		m.patterns = append(m.patterns, regexp.MustCompile(`(?i)(^|[^a-z0-9])`+regexp.QuoteMeta(kw)+`([^a-z0-9]|$)`))
	}
	return m
}

// Find returns the distinct keywords present in text, sorted.
func (m *Matcher) Find(text string) []string {
	if m == nil || text == "" {
		return nil
	}
	var found []string
	for i, re := range m.patterns {
		if re.MatchString(text) {
			found = append(found, m.words[i])
		}
	}
	sort.Strings(found)
	return found
}
