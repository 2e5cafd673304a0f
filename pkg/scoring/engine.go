package scoring

import (
	"fmt"
)

// Mapper converts factor sets into PlatformScores and aggregates them into an
// overall point value. It is immutable after construction and safe for
// concurrent use.
type Mapper struct {
	weights Weights
	scale   Scale
	// per-platform scale overrides; aggregation always uses scale
	platformScales map[string]Scale
}

// NewMapper validates weights and scale and returns a Mapper.
func NewMapper(weights Weights, scale Scale) (*Mapper, error) {
	if weights == nil {
		weights = DefaultWeights()
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if err := scale.Validate(); err != nil {
		return nil, err
	}
	w := make(Weights, len(weights))
	for k, v := range weights {
		w[k] = v
	}
	return &Mapper{weights: w, scale: scale}, nil
}

// WithPlatformScale returns a copy of m that maps scores for platform with
// its own breakpoints.
func (m *Mapper) WithPlatformScale(platform string, scale Scale) (*Mapper, error) {
	if err := scale.Validate(); err != nil {
		return nil, fmt.Errorf("%s scale: %w", platform, err)
	}
	next := &Mapper{
		weights:        m.weights,
		scale:          m.scale,
		platformScales: make(map[string]Scale, len(m.platformScales)+1),
	}
	for k, v := range m.platformScales {
		next.platformScales[k] = v
	}
	next.platformScales[platform] = scale
	return next, nil
}

// Scale returns the base scale.
func (m *Mapper) Scale() Scale { return m.scale }

// ScaleFor returns the scale used for platform.
func (m *Mapper) ScaleFor(platform string) Scale {
	if s, ok := m.platformScales[platform]; ok {
		return s
	}
	return m.scale
}

// Score computes the PlatformScore for one platform:
// raw = Σ factor × weight, adjusted = raw × scope multiplier,
// points = scale(adjusted).
func (m *Mapper) Score(platform string, factors Factors, scope ImpactScope) (PlatformScore, error) {
	if err := factors.Validate(); err != nil {
		return PlatformScore{}, fmt.Errorf("scoring %s: %w", platform, err)
	}
	if !scope.Valid() {
		return PlatformScore{}, fmt.Errorf("scoring %s: unknown impact scope %q", platform, scope)
	}

	ps := PlatformScore{
		Platform:    platform,
		Factors:     factors,
		ImpactScope: scope,
	}
	for _, f := range AllFactors() {
		c := Contribution{
			Factor: f,
			Value:  factors.Value(f),
			Weight: m.weights.Of(f),
		}
		c.Contribution = float64(c.Value) * c.Weight
		ps.Breakdown = append(ps.Breakdown, c)
		ps.RawScore += c.Contribution
	}
	ps.AdjustedScore = ps.RawScore * scope.Multiplier()
	ps.StoryPoints = m.ScaleFor(platform).Map(ps.AdjustedScore)
	return ps, nil
}

// Aggregate combines platform scores: final_raw = Σ raw, final_score =
// final_raw × integration × risk, points = base scale(final_score).
func (m *Mapper) Aggregate(scores []PlatformScore, integration, risk Multiplier) Overall {
	var o Overall
	for _, s := range scores {
		o.FinalRaw += s.RawScore
	}
	o.FinalScore = o.FinalRaw * integration.Value * risk.Value
	o.StoryPoints = m.scale.Map(o.FinalScore)
	return o
}
