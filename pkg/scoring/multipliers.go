package scoring

import (
	"fmt"
	"math"
	"strings"
)

// Multiplier is a derived scalar applied to the aggregated raw score,
// together with the parts it was built from.
type Multiplier struct {
	Value      float64     `json:"value"`
	Components []Component `json:"components"`
	Rationale  string      `json:"rationale"`
}

// Component is one additive part of a Multiplier.
type Component struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// IntegrationMultiplier reflects cross-platform and legacy coordination
// overhead: 1.0 + min(step × (platforms − 1), platform_cap), plus fixed bumps
// for legacy and high-traffic signals, capped at the ceiling.
func IntegrationMultiplier(platformCount int, signals Signals, p IntegrationParams) Multiplier {
	if platformCount < 1 {
		platformCount = 1
	}
	m := Multiplier{Value: 1.0}
	var why []string

	if platformCount > 1 {
		part := math.Min(p.Step*float64(platformCount-1), p.PlatformCap)
		m.Value += part
		m.Components = append(m.Components, Component{Name: "platforms", Value: part})
		why = append(why, fmt.Sprintf("%d platforms (+%.2f)", platformCount, part))
	}
	if len(signals.Legacy) > 0 && p.LegacyBump > 0 {
		m.Value += p.LegacyBump
		m.Components = append(m.Components, Component{Name: "legacy", Value: p.LegacyBump})
		why = append(why, fmt.Sprintf("legacy integration: %s (+%.2f)", strings.Join(signals.Legacy, ", "), p.LegacyBump))
	}
	if len(signals.Traffic) > 0 && p.TrafficBump > 0 {
		m.Value += p.TrafficBump
		m.Components = append(m.Components, Component{Name: "traffic", Value: p.TrafficBump})
		why = append(why, fmt.Sprintf("high traffic: %s (+%.2f)", strings.Join(signals.Traffic, ", "), p.TrafficBump))
	}
	if m.Value > p.Ceiling {
		m.Value = p.Ceiling
		why = append(why, fmt.Sprintf("capped at %.2f", p.Ceiling))
	}

	if len(why) == 0 {
		m.Rationale = "single platform, no legacy or traffic signals"
	} else {
		m.Rationale = strings.Join(why, "; ")
	}
	return m
}

// RiskMultiplier reflects non-functional exposure: 1.0 + per_level ×
// (max_nr − 1), plus keyword_bump per risk category found (capped at
// keyword_cap), clamped to [1.0, max].
func RiskMultiplier(maxNonFunctionalRisk int, signals Signals, p RiskParams) Multiplier {
	nr := min(max(maxNonFunctionalRisk, MinFactor), MaxFactor)
	m := Multiplier{Value: 1.0}
	var why []string

	if nr > 1 {
		part := p.PerLevel * float64(nr-1)
		m.Value += part
		m.Components = append(m.Components, Component{Name: "non_functional_risk", Value: part})
		why = append(why, fmt.Sprintf("max non-functional risk %d (+%.2f)", nr, part))
	}
	if cats := signals.RiskCategories(); len(cats) > 0 && p.KeywordBump > 0 {
		part := math.Min(p.KeywordBump*float64(len(cats)), p.KeywordCap)
		m.Value += part
		m.Components = append(m.Components, Component{Name: "risk_keywords", Value: part})
		why = append(why, fmt.Sprintf("risk keywords in %s (+%.2f)", strings.Join(cats, ", "), part))
	}
	if limit := math.Min(p.Max, MaxRiskMultiplier); m.Value > limit {
		m.Value = limit
		why = append(why, fmt.Sprintf("capped at %.2f", limit))
	}
	if m.Value < 1.0 {
		m.Value = 1.0
	}

	if len(why) == 0 {
		m.Rationale = "low non-functional risk, no risk keywords"
	} else {
		m.Rationale = strings.Join(why, "; ")
	}
	return m
}
