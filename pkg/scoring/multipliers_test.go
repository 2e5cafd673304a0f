package scoring_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storysize/storysize/pkg/scoring"
)

func TestIntegrationMultiplier(t *testing.T) {
	p := scoring.DefaultIntegrationParams()
	legacy := scoring.Signals{Legacy: []string{"mainframe"}}
	traffic := scoring.Signals{Traffic: []string{"cdn"}}
	both := scoring.Signals{Legacy: []string{"mainframe"}, Traffic: []string{"cdn"}}

	tests := []struct {
		name      string
		platforms int
		signals   scoring.Signals
		want      float64
	}{
		{"one platform", 1, scoring.Signals{}, 1.0},
		{"zero treated as one", 0, scoring.Signals{}, 1.0},
		{"two platforms", 2, scoring.Signals{}, 1.15},
		{"four platforms hits cap", 4, scoring.Signals{}, 1.45},
		{"ten platforms still capped", 10, scoring.Signals{}, 1.45},
		{"legacy bump", 1, legacy, 1.10},
		{"traffic bump", 1, traffic, 1.10},
		{"everything", 4, both, 1.65},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := scoring.IntegrationMultiplier(tt.platforms, tt.signals, p)
			assert.InDelta(t, tt.want, m.Value, 1e-9)
			assert.NotEmpty(t, m.Rationale)
		})
	}

	p.Ceiling = 1.3
	m := scoring.IntegrationMultiplier(4, both, p)
	assert.InDelta(t, 1.3, m.Value, 1e-9)
	assert.Contains(t, m.Rationale, "capped")
}

func TestRiskMultiplier(t *testing.T) {
	p := scoring.DefaultRiskParams()
	tests := []struct {
		name    string
		maxNR   int
		signals scoring.Signals
		want    float64
	}{
		{"lowest risk", 1, scoring.Signals{}, 1.0},
		{"nr 3", 3, scoring.Signals{}, 1.5},
		{"nr 5", 5, scoring.Signals{}, 2.0},
		{"out of range clamps", 9, scoring.Signals{}, 2.0},
		{"zero clamps to one", 0, scoring.Signals{}, 1.0},
		{"two keyword categories", 1, scoring.Signals{Risk: map[string][]string{"security": {"encryption"}, "uncertainty": {"tbd"}}}, 1.10},
		{"nr 5 plus keywords stays clamped", 5, scoring.Signals{Risk: map[string][]string{"security": {"encryption"}}}, 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := scoring.RiskMultiplier(tt.maxNR, tt.signals, p)
			assert.InDelta(t, tt.want, m.Value, 1e-9)
			assert.GreaterOrEqual(t, m.Value, 1.0)
			assert.LessOrEqual(t, m.Value, 2.0)
		})
	}
}

func TestRiskKeywordCap(t *testing.T) {
	s := scoring.Signals{Risk: map[string][]string{}}
	for _, c := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		s.Risk[c] = []string{c}
	}
	m := scoring.RiskMultiplier(1, s, scoring.DefaultRiskParams())
	assert.InDelta(t, 1.25, m.Value, 1e-9)
}

func TestDetectSignals(t *testing.T) {
	text := "Migrate the legacy mainframe billing flow behind the CDN. Authentication rules are TBD; expect high traffic."
	s := scoring.DetectSignals(text, scoring.DefaultSignalKeywords())

	assert.Equal(t, []string{"legacy", "mainframe"}, s.Legacy)
	assert.Equal(t, []string{"cdn", "high traffic"}, s.Traffic)
	require.NotNil(t, s.Risk)
	assert.Equal(t, []string{"legacy", "migrate"}, s.Risk["legacy"])
	assert.Equal(t, []string{"authentication"}, s.Risk["security"])
	assert.Equal(t, []string{"tbd"}, s.Risk["uncertainty"])
	assert.Equal(t, []string{"legacy", "security", "uncertainty"}, s.RiskCategories())

	empty := scoring.DetectSignals("", scoring.DefaultSignalKeywords())
	assert.Empty(t, empty.Legacy)
	assert.Empty(t, empty.RiskCategories())
}

func TestParamsValidate(t *testing.T) {
	assert.NoError(t, scoring.DefaultIntegrationParams().Validate())
	assert.NoError(t, scoring.DefaultRiskParams().Validate())

	integration := []struct {
		name   string
		mutate func(*scoring.IntegrationParams)
	}{
		{"ceiling below one", func(p *scoring.IntegrationParams) { p.Ceiling = 0.9 }},
		{"negative step", func(p *scoring.IntegrationParams) { p.Step = -0.1 }},
		{"NaN step", func(p *scoring.IntegrationParams) { p.Step = math.NaN() }},
		{"infinite ceiling", func(p *scoring.IntegrationParams) { p.Ceiling = math.Inf(1) }},
	}
	for _, tt := range integration {
		t.Run("integration "+tt.name, func(t *testing.T) {
			p := scoring.DefaultIntegrationParams()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), scoring.ErrInvalidConfig)
		})
	}

	risk := []struct {
		name   string
		mutate func(*scoring.RiskParams)
	}{
		{"negative per level", func(p *scoring.RiskParams) { p.PerLevel = -1 }},
		{"max below one", func(p *scoring.RiskParams) { p.Max = 0.5 }},
		{"max above two", func(p *scoring.RiskParams) { p.Max = 3 }},
		{"NaN per level", func(p *scoring.RiskParams) { p.PerLevel = math.NaN() }},
		{"infinite max", func(p *scoring.RiskParams) { p.Max = math.Inf(1) }},
	}
	for _, tt := range risk {
		t.Run("risk "+tt.name, func(t *testing.T) {
			p := scoring.DefaultRiskParams()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), scoring.ErrInvalidConfig)
		})
	}
}

func TestRiskMultiplierNeverExceedsTwo(t *testing.T) {
	p := scoring.DefaultRiskParams()
	p.Max = 3
	s := scoring.Signals{Risk: map[string][]string{"security": {"encryption"}}}

	m := scoring.RiskMultiplier(5, s, p)
	assert.InDelta(t, scoring.MaxRiskMultiplier, m.Value, 1e-9)
	assert.Contains(t, m.Rationale, "capped at 2.00")
}
