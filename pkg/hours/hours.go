// Package hours converts story points into hours ranges using a registry of
// pure estimation models.
package hours

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/storysize/storysize/pkg/scoring"
)

var (
	// ErrOutOfScale is wrapped by DomainError.
	ErrOutOfScale = errors.New("story points not on the scale")
	// ErrUnknownModel is returned for a model name missing from the registry.
	ErrUnknownModel = errors.New("unknown hours model")
	// ErrInvalidParams is wrapped by every Params validation error.
	ErrInvalidParams = errors.New("invalid hours parameters")
)

// DomainError reports a points value outside the fixed scale.
type DomainError struct {
	Points int
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("story points %d not on the scale %v", e.Points, scoring.ScaleValues())
}

func (e *DomainError) Unwrap() error { return ErrOutOfScale }

// HoursRange is a non-negative (min, expected, max) triple with min ≤ expected ≤ max.
type HoursRange struct {
	Min      float64 `json:"min_hours"`
	Expected float64 `json:"expected_hours"`
	Max      float64 `json:"max_hours"`
}

// Valid reports whether the range is ordered and non-negative.
func (r HoursRange) Valid() bool {
	return r.Min >= 0 && r.Min <= r.Expected && r.Expected <= r.Max
}

// Scale multiplies every bound by f.
func (r HoursRange) Scale(f float64) HoursRange {
	return HoursRange{Min: r.Min * f, Expected: r.Expected * f, Max: r.Max * f}
}

// Params holds the tunables shared by all models.
type Params struct {
	BaseHoursPerPoint    float64
	UncertaintyFactorMin float64
	UncertaintyFactorMax float64
	ExponentialK         float64
	PowerA               float64
	PowerB               float64
	// Pre-agreed ranges per scale value, expressed for a 4 hours-per-point team.
	FibonacciRanges map[int]HoursRange
}

// ReferenceHoursPerPoint is the velocity the fibonacci table is expressed in.
const ReferenceHoursPerPoint = 4.0

// DefaultParams returns the default model parameters.
func DefaultParams() Params {
	return Params{
		BaseHoursPerPoint:    4.0,
		UncertaintyFactorMin: 0.6,
		UncertaintyFactorMax: 1.8,
		ExponentialK:         0.3,
		PowerA:               3.0,
		PowerB:               1.2,
		FibonacciRanges:      DefaultFibonacciRanges(),
	}
}

// DefaultFibonacciRanges returns the default pre-agreed ranges.
func DefaultFibonacciRanges() map[int]HoursRange {
	return map[int]HoursRange{
		1:  {3, 4, 5},
		2:  {5, 6, 8},
		3:  {8, 10, 13},
		5:  {13, 17, 21},
		8:  {21, 27, 34},
		13: {34, 44, 55},
		21: {55, 72, 89},
		34: {89, 116, 144},
		55: {144, 188, 233},
	}
}

// Validate checks the parameters. power_b must exceed 1: at or below it the
// power model stops growing faster than linear.
func (p Params) Validate() error {
	for name, v := range map[string]float64{
		"base_hours_per_point":   p.BaseHoursPerPoint,
		"uncertainty_factor_min": p.UncertaintyFactorMin,
		"uncertainty_factor_max": p.UncertaintyFactorMax,
		"exponential_k":          p.ExponentialK,
		"power_a":                p.PowerA,
		"power_b":                p.PowerB,
	} {
		if !finite(v) {
			return fmt.Errorf("%w: %s must be finite, got %g", ErrInvalidParams, name, v)
		}
	}
	switch {
	case p.BaseHoursPerPoint <= 0:
		return fmt.Errorf("%w: base_hours_per_point must be positive, got %g", ErrInvalidParams, p.BaseHoursPerPoint)
	case p.UncertaintyFactorMin <= 0 || p.UncertaintyFactorMin > 1:
		return fmt.Errorf("%w: uncertainty_factor_min must be in (0, 1], got %g", ErrInvalidParams, p.UncertaintyFactorMin)
	case p.UncertaintyFactorMax < 1:
		return fmt.Errorf("%w: uncertainty_factor_max must be at least 1, got %g", ErrInvalidParams, p.UncertaintyFactorMax)
	case p.ExponentialK <= 0:
		return fmt.Errorf("%w: exponential_k must be positive, got %g", ErrInvalidParams, p.ExponentialK)
	case p.PowerA <= 0:
		return fmt.Errorf("%w: power_a must be positive, got %g", ErrInvalidParams, p.PowerA)
	case p.PowerB <= 1:
		return fmt.Errorf("%w: power_b must be greater than 1, got %g", ErrInvalidParams, p.PowerB)
	}

	var missing []int
	for _, sp := range scoring.ScaleValues() {
		r, ok := p.FibonacciRanges[sp]
		if !ok {
			missing = append(missing, sp)
			continue
		}
		if !finite(r.Min) || !finite(r.Expected) || !finite(r.Max) {
			return fmt.Errorf("%w: fibonacci range for %d points must be finite: %v", ErrInvalidParams, sp, r)
		}
		if !r.Valid() {
			return fmt.Errorf("%w: fibonacci range for %d points is not ordered: %v", ErrInvalidParams, sp, r)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: fibonacci ranges missing for %v", ErrInvalidParams, missing)
	}
	var extra []int
	for sp := range p.FibonacciRanges {
		if !scoring.IsScaleValue(sp) {
			extra = append(extra, sp)
		}
	}
	if len(extra) > 0 {
		sort.Ints(extra)
		return fmt.Errorf("%w: fibonacci ranges for values off the scale: %v", ErrInvalidParams, extra)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
