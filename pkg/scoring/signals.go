package scoring

import (
	"sort"

	"github.com/storysize/storysize/internal/textmatch"
)

// SignalKeywords configures context detection from requirement text.
type SignalKeywords struct {
	Legacy  []string            `json:"legacy" yaml:"legacy" toml:"legacy"`
	Traffic []string            `json:"traffic" yaml:"traffic" toml:"traffic"`
	Risk    map[string][]string `json:"risk" yaml:"risk" toml:"risk"` // category → keywords
}

// Signals are the context keywords found in requirement text.
type Signals struct {
	Legacy  []string            `json:"legacy,omitempty"`
	Traffic []string            `json:"traffic,omitempty"`
	Risk    map[string][]string `json:"risk,omitempty"` // only categories with matches
}

// RiskCategories returns the risk categories with at least one match, sorted.
func (s Signals) RiskCategories() []string {
	cats := make([]string, 0, len(s.Risk))
	for c, words := range s.Risk {
		if len(words) > 0 {
			cats = append(cats, c)
		}
	}
	sort.Strings(cats)
	return cats
}

// DetectSignals scans text for legacy, traffic and risk keywords. Matching
// is whole-word and case-insensitive.
func DetectSignals(text string, kw SignalKeywords) Signals {
	s := Signals{
		Legacy:  textmatch.Compile(kw.Legacy).Find(text),
		Traffic: textmatch.Compile(kw.Traffic).Find(text),
	}
	for cat, words := range kw.Risk {
		if found := textmatch.Compile(words).Find(text); len(found) > 0 {
			if s.Risk == nil {
				s.Risk = make(map[string][]string)
			}
			s.Risk[cat] = found
		}
	}
	return s
}
