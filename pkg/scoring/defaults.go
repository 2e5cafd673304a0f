package scoring

import "fmt"

// IntegrationParams tunes the integration multiplier.
type IntegrationParams struct {
	// Added per required platform beyond the first.
	Step float64 `json:"step" yaml:"step" toml:"step"`
	// Upper bound on the platform-count part.
	PlatformCap float64 `json:"platform_cap" yaml:"platform_cap" toml:"platform_cap"`
	LegacyBump  float64 `json:"legacy_bump" yaml:"legacy_bump" toml:"legacy_bump"`
	TrafficBump float64 `json:"traffic_bump" yaml:"traffic_bump" toml:"traffic_bump"`
	// Overall cap on the multiplier.
	Ceiling float64 `json:"ceiling" yaml:"ceiling" toml:"ceiling"`
}

// DefaultIntegrationParams returns the default integration tuning.
func DefaultIntegrationParams() IntegrationParams {
	return IntegrationParams{
		Step:        0.15,
		PlatformCap: 0.45,
		LegacyBump:  0.10,
		TrafficBump: 0.10,
		Ceiling:     2.0,
	}
}

// Validate rejects non-finite values, negative increments and a ceiling below 1.
func (p IntegrationParams) Validate() error {
	switch {
	case !finite(p.Step), !finite(p.PlatformCap), !finite(p.LegacyBump), !finite(p.TrafficBump), !finite(p.Ceiling):
		return fmt.Errorf("%w: integration parameters must be finite", ErrInvalidConfig)
	case p.Step < 0, p.PlatformCap < 0, p.LegacyBump < 0, p.TrafficBump < 0:
		return fmt.Errorf("%w: integration increments must not be negative", ErrInvalidConfig)
	case p.Ceiling < 1:
		return fmt.Errorf("%w: integration ceiling must be at least 1.0, got %g", ErrInvalidConfig, p.Ceiling)
	}
	return nil
}

// RiskParams tunes the risk multiplier.
type RiskParams struct {
	// Added per non_functional_risk level above 1.
	PerLevel float64 `json:"per_level" yaml:"per_level" toml:"per_level"`
	// Added per risk keyword category found in the requirements.
	KeywordBump float64 `json:"keyword_bump" yaml:"keyword_bump" toml:"keyword_bump"`
	KeywordCap  float64 `json:"keyword_cap" yaml:"keyword_cap" toml:"keyword_cap"`
	Max         float64 `json:"max" yaml:"max" toml:"max"`
}

// DefaultRiskParams returns the default risk tuning.
func DefaultRiskParams() RiskParams {
	return RiskParams{
		PerLevel:    0.25,
		KeywordBump: 0.05,
		KeywordCap:  0.25,
		Max:         2.0,
	}
}

// MaxRiskMultiplier is the upper bound of the risk multiplier range.
const MaxRiskMultiplier = 2.0

// Validate rejects non-finite values, negative increments and a maximum
// outside [1.0, MaxRiskMultiplier].
func (p RiskParams) Validate() error {
	switch {
	case !finite(p.PerLevel), !finite(p.KeywordBump), !finite(p.KeywordCap), !finite(p.Max):
		return fmt.Errorf("%w: risk parameters must be finite", ErrInvalidConfig)
	case p.PerLevel < 0, p.KeywordBump < 0, p.KeywordCap < 0:
		return fmt.Errorf("%w: risk increments must not be negative", ErrInvalidConfig)
	case p.Max < 1 || p.Max > MaxRiskMultiplier:
		return fmt.Errorf("%w: risk max must be in [1.0, %.1f], got %g", ErrInvalidConfig, MaxRiskMultiplier, p.Max)
	}
	return nil
}

// DefaultSignalKeywords returns the built-in context keyword lists.
func DefaultSignalKeywords() SignalKeywords {
	return SignalKeywords{
		Legacy: []string{
			"legacy", "legacy system", "mainframe", "cobol", "monolith",
			"backward compatibility", "backwards compatible", "soap", "old system",
		},
		Traffic: []string{
			"high traffic", "high volume", "load balancer", "cache", "caching", "cdn",
			"autoscaling", "auto-scaling", "rate limit", "rate limiting",
			"millions of users", "concurrent users", "peak load", "kubernetes",
		},
		Risk: map[string][]string{
			"legacy":         {"legacy", "migration", "migrate", "refactor", "rewrite"},
			"performance":    {"performance", "scalability", "optimize", "slow", "latency", "throughput"},
			"security":       {"security", "authentication", "authorization", "encryption", "vulnerability", "compliance"},
			"integration":    {"integration", "api", "third-party", "external", "webhook", "callback"},
			"data_migration": {"data migration", "schema change", "database", "migration", "rollback"},
			"uncertainty":    {"tbd", "to be defined", "pending", "clarify", "discuss", "investigate"},
		},
	}
}
