package hours

import (
	"fmt"
	"math"
)

// Func computes a range for a points value already known to be on the scale.
type Func func(points int, p Params) HoursRange

// Model is one named estimation model.
type Model struct {
	Name string
	// Linear models are excluded from the recommended consensus range.
	Linear   bool
	Describe func(p Params) string
	Compute  Func
}

const (
	ModelLinear      = "linear"
	ModelExponential = "exponential"
	ModelPower       = "power"
	ModelFibonacci   = "fibonacci"
)

// registry is ordered: it drives comparison output. Adding a model means
// adding an entry here.
var registry = []Model{
	{
		Name:   ModelLinear,
		Linear: true,
		Describe: func(p Params) string {
			return fmt.Sprintf("Hours = SP × %g", p.BaseHoursPerPoint)
		},
		Compute: func(points int, p Params) HoursRange {
			return withUncertainty(float64(points)*p.BaseHoursPerPoint, p)
		},
	},
	{
		Name: ModelExponential,
		Describe: func(p Params) string {
			return fmt.Sprintf("Hours = %g × e^(%g × (SP − 1))", p.BaseHoursPerPoint, p.ExponentialK)
		},
		Compute: func(points int, p Params) HoursRange {
			return withUncertainty(p.BaseHoursPerPoint*math.Exp(p.ExponentialK*float64(points-1)), p)
		},
	},
	{
		Name: ModelPower,
		Describe: func(p Params) string {
			return fmt.Sprintf("Hours = %g × SP^%g", p.PowerA, p.PowerB)
		},
		Compute: func(points int, p Params) HoursRange {
			return withUncertainty(p.PowerA*math.Pow(float64(points), p.PowerB), p)
		},
	},
	{
		Name: ModelFibonacci,
		Describe: func(p Params) string {
			return fmt.Sprintf("pre-agreed ranges scaled to %g hours per point", p.BaseHoursPerPoint)
		},
		Compute: func(points int, p Params) HoursRange {
			return p.FibonacciRanges[points].Scale(p.BaseHoursPerPoint / ReferenceHoursPerPoint)
		},
	},
}

func withUncertainty(expected float64, p Params) HoursRange {
	return HoursRange{
		Min:      expected * p.UncertaintyFactorMin,
		Expected: expected,
		Max:      expected * p.UncertaintyFactorMax,
	}
}

// Models returns the registered models in comparison order.
func Models() []Model {
	out := make([]Model, len(registry))
	copy(out, registry)
	return out
}

// ModelNames returns the registered model names.
func ModelNames() []string {
	names := make([]string, 0, len(registry))
	for _, m := range registry {
		names = append(names, m.Name)
	}
	return names
}

// Lookup finds a model by name.
func Lookup(name string) (Model, bool) {
	for _, m := range registry {
		if m.Name == name {
			return m, true
		}
	}
	return Model{}, false
}
