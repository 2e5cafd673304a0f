package estimation

import (
	"fmt"
	"math"

	"github.com/storysize/storysize/pkg/platform"
	"github.com/storysize/storysize/pkg/scoring"
)

// ConfidencePolicy starts from a baseline and subtracts a penalty per
// CRITICAL platform, per weakly evidenced platform and per unavailable
// platform. The result never drops below Floor.
type ConfidencePolicy struct {
	Baseline           float64 `json:"baseline" yaml:"baseline" toml:"baseline"`
	CriticalPenalty    float64 `json:"critical_penalty" yaml:"critical_penalty" toml:"critical_penalty"`
	LowScopePenalty    float64 `json:"low_scope_penalty" yaml:"low_scope_penalty" toml:"low_scope_penalty"`
	UnavailablePenalty float64 `json:"unavailable_penalty" yaml:"unavailable_penalty" toml:"unavailable_penalty"`
	Floor              float64 `json:"floor" yaml:"floor" toml:"floor"`
}

// DefaultConfidencePolicy returns 0.95 baseline, 0.5 floor.
func DefaultConfidencePolicy() ConfidencePolicy {
	return ConfidencePolicy{
		Baseline:           0.95,
		CriticalPenalty:    0.10,
		LowScopePenalty:    0.05,
		UnavailablePenalty: 0.10,
		Floor:              0.5,
	}
}

// Validate checks 0 ≤ floor ≤ baseline ≤ 1 and finite, non-negative penalties.
func (c ConfidencePolicy) Validate() error {
	for _, v := range []float64{c.Baseline, c.Floor, c.CriticalPenalty, c.LowScopePenalty, c.UnavailablePenalty} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("confidence values must be finite, got %v", v)
		}
	}
	if c.Baseline <= 0 || c.Baseline > 1 {
		return fmt.Errorf("confidence baseline must be in (0, 1], got %v", c.Baseline)
	}
	if c.Floor < 0 || c.Floor > c.Baseline {
		return fmt.Errorf("confidence floor must be in [0, baseline], got %v", c.Floor)
	}
	if c.CriticalPenalty < 0 || c.LowScopePenalty < 0 || c.UnavailablePenalty < 0 {
		return fmt.Errorf("confidence penalties must not be negative")
	}
	return nil
}

// Score computes the confidence for the scored platforms plus the number of
// platforms that could not be scored.
func (c ConfidencePolicy) Score(scored []PlatformEstimate, unavailable int) float64 {
	v := c.Baseline
	for _, pe := range scored {
		if pe.ImpactScope == scoring.ScopeCritical {
			v -= c.CriticalPenalty
		}
		if pe.Scope == platform.ScopeLow {
			v -= c.LowScopePenalty
		}
	}
	v -= c.UnavailablePenalty * float64(unavailable)
	v = math.Max(v, c.Floor)
	return math.Round(v*100) / 100
}
