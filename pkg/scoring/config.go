package scoring

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrInvalidConfig is wrapped by every weight and scale validation error.
var ErrInvalidConfig = errors.New("invalid scoring configuration")

// Weights maps each factor to a positive multiplier.
type Weights map[Factor]float64

// DefaultWeights returns weight 1.0 for every factor.
func DefaultWeights() Weights {
	w := make(Weights, 5)
	for _, f := range AllFactors() {
		w[f] = 1.0
	}
	return w
}

// Of returns the weight of f, treating a missing entry as 1.0.
func (w Weights) Of(f Factor) float64 {
	if v, ok := w[f]; ok {
		return v
	}
	return 1.0
}

// finite reports whether v is neither NaN nor infinite.
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Validate rejects unknown factor names and non-positive or non-finite weights.
func (w Weights) Validate() error {
	keys := make([]string, 0, len(w))
	for f := range w {
		keys = append(keys, string(f))
	}
	sort.Strings(keys)
	for _, k := range keys {
		f := Factor(k)
		if canonical, ok := ParseFactor(k); !ok || canonical != f {
			return fmt.Errorf("%w: unknown factor %q in weights", ErrInvalidConfig, k)
		}
		if !finite(w[f]) || w[f] <= 0 {
			return fmt.Errorf("%w: weight for %s must be a positive finite number, got %g", ErrInvalidConfig, f, w[f])
		}
	}
	return nil
}

// scaleValues is the fixed story point scale.
var scaleValues = [...]int{1, 2, 3, 5, 8, 13, 21, 34, 55}

// ScaleValues returns the fixed story point scale in ascending order.
func ScaleValues() []int {
	out := make([]int, len(scaleValues))
	copy(out, scaleValues[:])
	return out
}

// IsScaleValue reports whether p is on the story point scale.
func IsScaleValue(p int) bool {
	for _, v := range scaleValues {
		if v == p {
			return true
		}
	}
	return false
}

// Scale holds the inclusive upper score bound for each point value below 55.
type Scale struct {
	SP1Max  float64 `json:"sp1_max" yaml:"sp1_max" toml:"sp1_max"`
	SP2Max  float64 `json:"sp2_max" yaml:"sp2_max" toml:"sp2_max"`
	SP3Max  float64 `json:"sp3_max" yaml:"sp3_max" toml:"sp3_max"`
	SP5Max  float64 `json:"sp5_max" yaml:"sp5_max" toml:"sp5_max"`
	SP8Max  float64 `json:"sp8_max" yaml:"sp8_max" toml:"sp8_max"`
	SP13Max float64 `json:"sp13_max" yaml:"sp13_max" toml:"sp13_max"`
	SP21Max float64 `json:"sp21_max" yaml:"sp21_max" toml:"sp21_max"`
	SP34Max float64 `json:"sp34_max" yaml:"sp34_max" toml:"sp34_max"`
}

// DefaultScale returns the default breakpoints: ≤5→1, ≤8→2, ≤12→3, ≤16→5,
// ≤20→8, ≤25→13, ≤35→21, ≤50→34, else 55.
func DefaultScale() Scale {
	return Scale{
		SP1Max:  5,
		SP2Max:  8,
		SP3Max:  12,
		SP5Max:  16,
		SP8Max:  20,
		SP13Max: 25,
		SP21Max: 35,
		SP34Max: 50,
	}
}

func (s Scale) breakpoints() [8]float64 {
	return [8]float64{s.SP1Max, s.SP2Max, s.SP3Max, s.SP5Max, s.SP8Max, s.SP13Max, s.SP21Max, s.SP34Max}
}

// Validate requires finite, positive, strictly increasing breakpoints.
func (s Scale) Validate() error {
	bp := s.breakpoints()
	for i, v := range bp {
		if !finite(v) {
			return fmt.Errorf("%w: sp%d_max must be finite, got %g", ErrInvalidConfig, scaleValues[i], v)
		}
	}
	if bp[0] <= 0 {
		return fmt.Errorf("%w: sp1_max must be positive, got %g", ErrInvalidConfig, bp[0])
	}
	for i := 1; i < len(bp); i++ {
		if bp[i] <= bp[i-1] {
			return fmt.Errorf("%w: sp%d_max (%g) must be greater than sp%d_max (%g)",
				ErrInvalidConfig, scaleValues[i], bp[i], scaleValues[i-1], bp[i-1])
		}
	}
	return nil
}

// Map converts a score to story points. Thresholds are inclusive upper
// bounds, so a score equal to a breakpoint maps to the lower value.
func (s Scale) Map(score float64) int {
	for i, max := range s.breakpoints() {
		if score <= max {
			return scaleValues[i]
		}
	}
	return scaleValues[len(scaleValues)-1]
}

// Representative returns a score inside the bucket of point value p: the
// bucket's inclusive upper bound, or sp34_max+1 for 55. It returns false when
// p is not on the scale.
func (s Scale) Representative(p int) (float64, bool) {
	bp := s.breakpoints()
	for i, v := range scaleValues {
		if v != p {
			continue
		}
		if i < len(bp) {
			return bp[i], true
		}
		return bp[len(bp)-1] + 1, true
	}
	return 0, false
}
