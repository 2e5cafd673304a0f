package estimation

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/storysize/storysize/pkg/hours"
	"github.com/storysize/storysize/pkg/impact"
	"github.com/storysize/storysize/pkg/platform"
	"github.com/storysize/storysize/pkg/scorer"
	"github.com/storysize/storysize/pkg/scoring"
)

// Input is everything gathered for one run.
type Input struct {
	Detection platform.Detection
	// Responses and Failures are keyed by platform. Every detected platform
	// must appear in exactly one of them.
	Responses map[platform.Platform]*scorer.Response
	Failures  map[platform.Platform]error
	Impact    map[platform.Platform]*impact.Analysis
	Signals   scoring.Signals
}

// Settings configures an Assembler.
type Settings struct {
	Mapper      *scoring.Mapper
	Hours       *hours.Estimator
	Integration scoring.IntegrationParams
	Risk        scoring.RiskParams
	Confidence  ConfidencePolicy
}

// Assembler turns an Input into an Estimation.
type Assembler struct {
	s     Settings
	now   func() time.Time
	newID func() string
}

// Option customizes an Assembler.
type Option func(*Assembler)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// WithIDs overrides the estimation id generator.
func WithIDs(newID func() string) Option {
	return func(a *Assembler) { a.newID = newID }
}

// NewAssembler validates settings and returns an Assembler.
func NewAssembler(s Settings, opts ...Option) (*Assembler, error) {
	if s.Mapper == nil {
		return nil, errors.New("assembler: mapper is required")
	}
	if s.Hours == nil {
		return nil, errors.New("assembler: hours estimator is required")
	}
	if err := s.Integration.Validate(); err != nil {
		return nil, fmt.Errorf("assembler: %w", err)
	}
	if err := s.Risk.Validate(); err != nil {
		return nil, fmt.Errorf("assembler: %w", err)
	}
	if err := s.Confidence.Validate(); err != nil {
		return nil, fmt.Errorf("assembler: %w", err)
	}
	a := &Assembler{s: s, now: time.Now, newID: uuid.NewString}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

// Assemble builds the Estimation. Platforms keep detection order. Failed
// platforms are listed as unavailable; if none could be scored the result
// is ErrNoPlatformScored.
func (a *Assembler) Assemble(in Input) (*Estimation, error) {
	for p := range in.Responses {
		if _, ok := in.Detection.Lookup(p); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedPlatform, p)
		}
	}
	for p := range in.Failures {
		if _, ok := in.Detection.Lookup(p); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedPlatform, p)
		}
	}

	est := &Estimation{
		ID:              a.newID(),
		CreatedAt:       a.now().UTC(),
		Signals:         in.Signals,
		DetectionReason: in.Detection.Reason,
	}

	var scores []scoring.PlatformScore
	maxNR := scoring.MinFactor
	for _, req := range in.Detection.Requirements {
		resp, ok := in.Responses[req.Platform]
		if !ok || resp == nil {
			if err, failed := in.Failures[req.Platform]; failed {
				est.Unavailable = append(est.Unavailable, newFailure(req.Platform, err))
				continue
			}
			return nil, &MissingScoreError{Platform: req.Platform}
		}

		ps, err := a.s.Mapper.Score(string(req.Platform), resp.Factors, resp.ImpactScope)
		if err != nil {
			est.Unavailable = append(est.Unavailable, newFailure(req.Platform, err))
			continue
		}
		perModel, err := a.s.Hours.EstimateAll(ps.StoryPoints)
		if err != nil {
			return nil, fmt.Errorf("hours for %s: %w", req.Platform, err)
		}

		est.Platforms = append(est.Platforms, PlatformEstimate{
			PlatformScore:       ps,
			Scope:               req.Scope,
			Technologies:        req.Technologies,
			Sources:             req.Sources,
			Rationale:           resp.Rationale,
			KeyComponents:       resp.KeyComponents,
			Challenges:          resp.Challenges,
			RecommendedApproach: resp.RecommendedApproach,
			Hours:               perModel,
			Impact:              in.Impact[req.Platform],
		})
		scores = append(scores, ps)
		maxNR = max(maxNR, resp.Factors.NonFunctionalRisk)
	}

	if len(scores) == 0 {
		return nil, ErrNoPlatformScored
	}
	est.PartialFailure = len(est.Unavailable) > 0

	est.Integration = scoring.IntegrationMultiplier(len(in.Detection.Requirements), in.Signals, a.s.Integration)
	est.Risk = scoring.RiskMultiplier(maxNR, in.Signals, a.s.Risk)
	overall := a.s.Mapper.Aggregate(scores, est.Integration, est.Risk)
	est.FinalRaw = overall.FinalRaw
	est.FinalScore = overall.FinalScore
	est.StoryPoints = overall.StoryPoints

	var err error
	if est.Hours, err = a.s.Hours.EstimateAll(est.StoryPoints); err != nil {
		return nil, fmt.Errorf("overall hours: %w", err)
	}
	if est.Recommended, err = a.s.Hours.Recommended(est.StoryPoints); err != nil {
		return nil, fmt.Errorf("overall hours: %w", err)
	}

	est.Confidence = a.s.Confidence.Score(est.Platforms, len(est.Unavailable))
	est.Rationale = rationale(est)
	return est, nil
}

func newFailure(p platform.Platform, err error) PlatformFailure {
	f := PlatformFailure{Platform: p, Reason: "scorer error", Error: err.Error()}
	var sf *scorer.Failure
	switch {
	case errors.As(err, &sf):
		f.Reason = sf.Reason()
		f.Attempts = sf.Attempts
	case errors.Is(err, scoring.ErrFactorOutOfRange):
		f.Reason = "factor out of range"
	}
	return f
}

func rationale(est *Estimation) []string {
	var lines []string
	for _, pe := range est.Platforms {
		lines = append(lines, fmt.Sprintf("%s: raw %.1f × %s %.1f = %.1f → %d SP",
			pe.Platform, pe.RawScore, pe.ImpactScope, pe.ImpactScope.Multiplier(), pe.AdjustedScore, pe.StoryPoints))
	}
	for _, u := range est.Unavailable {
		lines = append(lines, fmt.Sprintf("%s: unavailable (%s), excluded from the total", u.Platform, u.Reason))
	}
	lines = append(lines,
		fmt.Sprintf("integration ×%.2f: %s", est.Integration.Value, est.Integration.Rationale),
		fmt.Sprintf("risk ×%.2f: %s", est.Risk.Value, est.Risk.Rationale),
		fmt.Sprintf("final %.1f × %.2f × %.2f = %.1f → %d SP",
			est.FinalRaw, est.Integration.Value, est.Risk.Value, est.FinalScore, est.StoryPoints),
	)
	return lines
}
