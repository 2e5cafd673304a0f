// Package scoring implements the storysize complexity mapper. It turns five
// per-platform complexity factors into an explainable raw score, applies the
// impact-scope tax and maps the result onto the story point scale.
package scoring

import (
	"errors"
	"fmt"
	"strings"
)

// ErrFactorOutOfRange is returned when a factor value is outside [MinFactor, MaxFactor].
var ErrFactorOutOfRange = errors.New("factor out of range")

const (
	MinFactor = 1
	MaxFactor = 5
)

// Factor names one of the five complexity dimensions.
type Factor string

const (
	DomainComplexity         Factor = "domain_complexity"
	ImplementationComplexity Factor = "implementation_complexity"
	IntegrationBreadth       Factor = "integration_breadth"
	DataSchemaImpact         Factor = "data_schema_impact"
	NonFunctionalRisk        Factor = "non_functional_risk"
)

// AllFactors returns the factors in their canonical order.
func AllFactors() []Factor {
	return []Factor{DomainComplexity, ImplementationComplexity, IntegrationBreadth, DataSchemaImpact, NonFunctionalRisk}
}

var factorAliases = map[string]Factor{
	"dc": DomainComplexity,
	"ic": ImplementationComplexity,
	"ib": IntegrationBreadth,
	"ds": DataSchemaImpact,
	"nr": NonFunctionalRisk,
}

// ParseFactor accepts a full factor name or its short alias (DC, IC, IB, DS, NR).
func ParseFactor(s string) (Factor, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if f, ok := factorAliases[s]; ok {
		return f, true
	}
	for _, f := range AllFactors() {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// Short returns the two-letter abbreviation of the factor.
func (f Factor) Short() string {
	for k, v := range factorAliases {
		if v == f {
			return strings.ToUpper(k)
		}
	}
	return string(f)
}

// Title returns the human-readable factor name.
func (f Factor) Title() string {
	switch f {
	case DomainComplexity:
		return "Domain Complexity"
	case ImplementationComplexity:
		return "Implementation Complexity"
	case IntegrationBreadth:
		return "Integration Breadth"
	case DataSchemaImpact:
		return "Data/Schema Impact"
	case NonFunctionalRisk:
		return "Non-Functional & Risk"
	}
	return string(f)
}

// Factors is the five-dimension complexity assessment of one platform.
// Values are immutable once produced by a scorer.
type Factors struct {
	DomainComplexity         int `json:"domain_complexity"`
	ImplementationComplexity int `json:"implementation_complexity"`
	IntegrationBreadth       int `json:"integration_breadth"`
	DataSchemaImpact         int `json:"data_schema_impact"`
	NonFunctionalRisk        int `json:"non_functional_risk"`
}

// Value returns the value of one factor.
func (f Factors) Value(name Factor) int {
	switch name {
	case DomainComplexity:
		return f.DomainComplexity
	case ImplementationComplexity:
		return f.ImplementationComplexity
	case IntegrationBreadth:
		return f.IntegrationBreadth
	case DataSchemaImpact:
		return f.DataSchemaImpact
	case NonFunctionalRisk:
		return f.NonFunctionalRisk
	}
	return 0
}

// With returns a copy of f with one factor replaced.
func (f Factors) With(name Factor, v int) Factors {
	switch name {
	case DomainComplexity:
		f.DomainComplexity = v
	case ImplementationComplexity:
		f.ImplementationComplexity = v
	case IntegrationBreadth:
		f.IntegrationBreadth = v
	case DataSchemaImpact:
		f.DataSchemaImpact = v
	case NonFunctionalRisk:
		f.NonFunctionalRisk = v
	}
	return f
}

// Validate checks every factor is within [1,5].
func (f Factors) Validate() error {
	for _, name := range AllFactors() {
		v := f.Value(name)
		if v < MinFactor || v > MaxFactor {
			return fmt.Errorf("%w: %s=%d (want %d-%d)", ErrFactorOutOfRange, name, v, MinFactor, MaxFactor)
		}
	}
	return nil
}

// ImpactScope is the breadth of change a unit of work touches.
type ImpactScope string

const (
	ScopeLocal    ImpactScope = "LOCAL"
	ScopeModule   ImpactScope = "MODULE"
	ScopeSystem   ImpactScope = "SYSTEM"
	ScopeCritical ImpactScope = "CRITICAL"
)

// Multiplier returns the impact tax applied to a raw score.
func (s ImpactScope) Multiplier() float64 {
	switch s {
	case ScopeLocal:
		return 1.0
	case ScopeModule:
		return 1.2
	case ScopeSystem:
		return 1.5
	case ScopeCritical:
		return 2.0
	}
	return 0
}

// Rank orders scopes by severity, LOCAL=1 through CRITICAL=4. Unknown scopes rank 0.
func (s ImpactScope) Rank() int {
	switch s {
	case ScopeLocal:
		return 1
	case ScopeModule:
		return 2
	case ScopeSystem:
		return 3
	case ScopeCritical:
		return 4
	}
	return 0
}

// Valid reports whether s is a known scope.
func (s ImpactScope) Valid() bool { return s.Rank() > 0 }

// ParseImpactScope parses a scope label case-insensitively.
func ParseImpactScope(s string) (ImpactScope, error) {
	scope := ImpactScope(strings.ToUpper(strings.TrimSpace(s)))
	if !scope.Valid() {
		return "", fmt.Errorf("unknown impact scope %q", s)
	}
	return scope, nil
}

// Contribution explains how one factor fed into a raw score.
type Contribution struct {
	Factor       Factor  `json:"factor"`
	Value        int     `json:"value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"` // value × weight
}

// PlatformScore is the mapped result for one platform. Never mutated after creation.
type PlatformScore struct {
	Platform      string         `json:"platform"`
	Factors       Factors        `json:"factors"`
	ImpactScope   ImpactScope    `json:"impact_scope"`
	RawScore      float64        `json:"raw_score"`
	AdjustedScore float64        `json:"adjusted_score"`
	StoryPoints   int            `json:"story_points"`
	Breakdown     []Contribution `json:"breakdown"`
}

// Overall is the aggregated result across platforms.
type Overall struct {
	FinalRaw    float64 `json:"final_raw"`
	FinalScore  float64 `json:"final_score"`
	StoryPoints int     `json:"story_points"`
}
