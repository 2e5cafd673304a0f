// Package platform decides which delivery platforms a work item touches.
// Detection combines keyword evidence from requirement text with the presence
// of platform code directories and never fails: when nothing is found the
// result is the single-platform floor {backend}.
package platform

import (
	"fmt"
	"strings"
)

// Platform is an independently scored slice of a work item.
type Platform string

const (
	Frontend Platform = "frontend"
	Backend  Platform = "backend"
	Mobile   Platform = "mobile"
	DevOps   Platform = "devops"
)

// All returns every platform in canonical order.
func All() []Platform {
	return []Platform{Frontend, Backend, Mobile, DevOps}
}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case Frontend, Backend, Mobile, DevOps:
		return true
	}
	return false
}

func (p Platform) String() string { return string(p) }

var aliases = map[string]Platform{
	"frontend":  Frontend,
	"front-end": Frontend,
	"fe":        Frontend,
	"web":       Frontend,
	"ui":        Frontend,
	"backend":   Backend,
	"back-end":  Backend,
	"be":        Backend,
	"api":       Backend,
	"server":    Backend,
	"mobile":    Mobile,
	"app":       Mobile,
	"devops":    DevOps,
	"ops":       DevOps,
	"infra":     DevOps,
}

// Parse converts a platform name or alias into a Platform.
func Parse(s string) (Platform, error) {
	p, ok := aliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown platform %q (valid: frontend, backend, mobile, devops)", s)
	}
	return p, nil
}

// ParseList parses a comma-separated platform list such as "fe,backend".
// Duplicates are dropped and the caller's order is kept.
func ParseList(s string) ([]Platform, error) {
	var out []Platform
	seen := make(map[Platform]bool)
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		p, err := Parse(part)
		if err != nil {
			return nil, err
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}

// Scope is a coarse label for how much evidence backs a platform.
type Scope string

const (
	ScopeLow    Scope = "low"
	ScopeMedium Scope = "medium"
	ScopeHigh   Scope = "high"
)

// ScopeFromCount maps a count of distinct technology keywords to a Scope.
func ScopeFromCount(n int) Scope {
	switch {
	case n >= 4:
		return ScopeHigh
	case n >= 2:
		return ScopeMedium
	default:
		return ScopeLow
	}
}

// Source names the evidence that put a platform in scope.
type Source string

const (
	SourceText      Source = "text"
	SourceDirectory Source = "directory"
	SourceForced    Source = "forced"
	SourceDefault   Source = "default"
)

// Requirement is one detected platform with its evidence.
type Requirement struct {
	Platform     Platform `json:"platform"`
	Scope        Scope    `json:"scope"`
	Technologies []string `json:"technologies"` // sorted, distinct
	Sources      []Source `json:"sources"`
	Directory    string   `json:"directory,omitempty"`
}

// Detection is the ordered, non-empty set of required platforms.
type Detection struct {
	Requirements []Requirement `json:"requirements"`
	Reason       string        `json:"reason"`
}

// Platforms returns the detected platforms in detection order.
func (d Detection) Platforms() []Platform {
	out := make([]Platform, 0, len(d.Requirements))
	for _, r := range d.Requirements {
		out = append(out, r.Platform)
	}
	return out
}

// Lookup returns the requirement for p.
func (d Detection) Lookup(p Platform) (Requirement, bool) {
	for _, r := range d.Requirements {
		if r.Platform == p {
			return r, true
		}
	}
	return Requirement{}, false
}
