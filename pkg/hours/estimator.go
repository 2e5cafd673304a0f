package hours

import (
	"fmt"
	"math"

	"github.com/storysize/storysize/pkg/scoring"
)

// ModelEstimate is the output of one model for one points value.
type ModelEstimate struct {
	Model       string `json:"model"`
	Description string `json:"description"`
	HoursRange
}

// Estimator evaluates models against validated parameters.
type Estimator struct {
	params Params
}

// NewEstimator validates p and returns an Estimator.
func NewEstimator(p Params) (*Estimator, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	ranges := make(map[int]HoursRange, len(p.FibonacciRanges))
	for k, v := range p.FibonacciRanges {
		ranges[k] = v
	}
	p.FibonacciRanges = ranges
	return &Estimator{params: p}, nil
}

// Params returns the estimator's parameters.
func (e *Estimator) Params() Params { return e.params }

// Estimate returns the range for points under the named model.
func (e *Estimator) Estimate(points int, model string) (HoursRange, error) {
	m, ok := Lookup(model)
	if !ok {
		return HoursRange{}, fmt.Errorf("%w: %q (available: %v)", ErrUnknownModel, model, ModelNames())
	}
	if !scoring.IsScaleValue(points) {
		return HoursRange{}, &DomainError{Points: points}
	}
	return m.Compute(points, e.params), nil
}

// EstimateAll evaluates every registered model for points.
func (e *Estimator) EstimateAll(points int) ([]ModelEstimate, error) {
	if !scoring.IsScaleValue(points) {
		return nil, &DomainError{Points: points}
	}
	out := make([]ModelEstimate, 0, len(registry))
	for _, m := range registry {
		out = append(out, ModelEstimate{
			Model:       m.Name,
			Description: m.Describe(e.params),
			HoursRange:  m.Compute(points, e.params),
		})
	}
	return out, nil
}

// Recommended returns the consensus range of the non-linear models: the
// smallest minimum, the mean expected value and the largest maximum.
func (e *Estimator) Recommended(points int) (HoursRange, error) {
	all, err := e.EstimateAll(points)
	if err != nil {
		return HoursRange{}, err
	}
	r := HoursRange{Min: math.Inf(1), Max: math.Inf(-1)}
	n := 0
	for _, est := range all {
		if m, _ := Lookup(est.Model); m.Linear {
			continue
		}
		r.Min = math.Min(r.Min, est.Min)
		r.Max = math.Max(r.Max, est.Max)
		r.Expected += est.Expected
		n++
	}
	if n == 0 {
		return HoursRange{}, fmt.Errorf("no non-linear hours models registered")
	}
	r.Expected /= float64(n)
	return r, nil
}
