package estimation_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storysize/storysize/pkg/estimation"
	"github.com/storysize/storysize/pkg/hours"
	"github.com/storysize/storysize/pkg/platform"
	"github.com/storysize/storysize/pkg/scorer"
	"github.com/storysize/storysize/pkg/scoring"
)

func newAssembler(t *testing.T) *estimation.Assembler {
	t.Helper()
	mapper, err := scoring.NewMapper(nil, scoring.DefaultScale())
	require.NoError(t, err)
	est, err := hours.NewEstimator(hours.DefaultParams())
	require.NoError(t, err)
	a, err := estimation.NewAssembler(estimation.Settings{
		Mapper:      mapper,
		Hours:       est,
		Integration: scoring.DefaultIntegrationParams(),
		Risk:        scoring.DefaultRiskParams(),
		Confidence:  estimation.DefaultConfidencePolicy(),
	},
		estimation.WithClock(func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }),
		estimation.WithIDs(func() string { return "run-1" }),
	)
	require.NoError(t, err)
	return a
}

func detection(scope platform.Scope, ps ...platform.Platform) platform.Detection {
	d := platform.Detection{Reason: "test"}
	for _, p := range ps {
		d.Requirements = append(d.Requirements, platform.Requirement{Platform: p, Scope: scope})
	}
	return d
}

func response(dc, ic, ib, ds, nr int, scope scoring.ImpactScope) *scorer.Response {
	return &scorer.Response{
		Factors: scoring.Factors{
			DomainComplexity:         dc,
			ImplementationComplexity: ic,
			IntegrationBreadth:       ib,
			DataSchemaImpact:         ds,
			NonFunctionalRisk:        nr,
		},
		ImpactScope: scope,
		Rationale:   "because",
	}
}

func TestAssembleTwoPlatforms(t *testing.T) {
	a := newAssembler(t)
	est, err := a.Assemble(estimation.Input{
		Detection: detection(platform.ScopeMedium, platform.Frontend, platform.Backend),
		Responses: map[platform.Platform]*scorer.Response{
			platform.Frontend: response(2, 3, 2, 2, 1, scoring.ScopeLocal), // raw 10
			platform.Backend:  response(1, 2, 1, 1, 1, scoring.ScopeLocal), // raw 6
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", est.ID)
	assert.Equal(t, 2026, est.CreatedAt.Year())
	assert.InDelta(t, 16.0, est.FinalRaw, 1e-9)
	assert.InDelta(t, 1.15, est.Integration.Value, 1e-9)
	assert.InDelta(t, 1.0, est.Risk.Value, 1e-9)
	assert.InDelta(t, 18.4, est.FinalScore, 1e-9)
	assert.Equal(t, 8, est.StoryPoints)
	assert.False(t, est.PartialFailure)
	assert.InDelta(t, 0.95, est.Confidence, 1e-9)

	require.Len(t, est.Platforms, 2)
	assert.Equal(t, "frontend", est.Platforms[0].Platform)
	assert.Equal(t, "backend", est.Platforms[1].Platform)
	assert.Equal(t, 3, est.Platforms[0].StoryPoints)
	assert.Equal(t, 2, est.Platforms[1].StoryPoints)
	assert.Len(t, est.Platforms[0].Hours, len(hours.Models()))

	assert.Len(t, est.Hours, len(hours.Models()))
	exp, ok := est.HoursFor(hours.ModelExponential)
	require.True(t, ok)
	assert.True(t, exp.Valid())
	assert.True(t, est.Recommended.Valid())
	assert.Contains(t, est.Rationale[len(est.Rationale)-1], "→ 8 SP")
}

func TestAssembleCriticalMaxScenario(t *testing.T) {
	a := newAssembler(t)
	est, err := a.Assemble(estimation.Input{
		Detection: detection(platform.ScopeHigh, platform.Backend),
		Responses: map[platform.Platform]*scorer.Response{
			platform.Backend: response(5, 5, 5, 5, 5, scoring.ScopeCritical),
		},
	})
	require.NoError(t, err)
	pe, ok := est.Platform(platform.Backend)
	require.True(t, ok)
	assert.InDelta(t, 25.0, pe.RawScore, 1e-9)
	assert.InDelta(t, 50.0, pe.AdjustedScore, 1e-9)
	assert.Equal(t, 34, pe.StoryPoints)
	// one CRITICAL platform
	assert.InDelta(t, 0.85, est.Confidence, 1e-9)
	// risk 1 + 0.25 × 4 = 2.0
	assert.InDelta(t, 2.0, est.Risk.Value, 1e-9)
}

func TestAssemblePartialFailure(t *testing.T) {
	a := newAssembler(t)
	timeout := &scorer.Failure{Platform: platform.Mobile, Attempts: 2, Err: context.DeadlineExceeded}
	est, err := a.Assemble(estimation.Input{
		Detection: detection(platform.ScopeMedium, platform.Frontend, platform.Mobile),
		Responses: map[platform.Platform]*scorer.Response{
			platform.Frontend: response(3, 3, 3, 3, 3, scoring.ScopeModule),
		},
		Failures: map[platform.Platform]error{
			platform.Mobile: fmt.Errorf("scoring: %w", timeout),
		},
	})
	require.NoError(t, err)

	assert.True(t, est.PartialFailure)
	require.Len(t, est.Platforms, 1)
	want := []estimation.PlatformFailure{{Platform: platform.Mobile, Reason: "timeout", Attempts: 2}}
	if diff := cmp.Diff(want, est.Unavailable, cmpopts.IgnoreFields(estimation.PlatformFailure{}, "Error")); diff != "" {
		t.Errorf("Unavailable mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, est.Unavailable[0].Error, "deadline exceeded")
	// both detected platforms count toward coordination overhead
	assert.InDelta(t, 1.15, est.Integration.Value, 1e-9)
	assert.Contains(t, est.Integration.Rationale, "2 platforms")
	assert.InDelta(t, 0.85, est.Confidence, 1e-9)
}

func TestAssembleInvalidFactorsBecomeUnavailable(t *testing.T) {
	a := newAssembler(t)
	est, err := a.Assemble(estimation.Input{
		Detection: detection(platform.ScopeMedium, platform.Frontend, platform.Backend),
		Responses: map[platform.Platform]*scorer.Response{
			platform.Frontend: response(3, 3, 3, 3, 3, scoring.ScopeModule),
			platform.Backend:  response(9, 3, 3, 3, 3, scoring.ScopeModule),
		},
	})
	require.NoError(t, err)
	require.Len(t, est.Unavailable, 1)
	assert.Equal(t, "factor out of range", est.Unavailable[0].Reason)
}

func TestAssembleErrors(t *testing.T) {
	a := newAssembler(t)

	_, err := a.Assemble(estimation.Input{
		Detection: detection(platform.ScopeLow, platform.Frontend, platform.Backend),
		Responses: map[platform.Platform]*scorer.Response{
			platform.Frontend: response(1, 1, 1, 1, 1, scoring.ScopeLocal),
		},
	})
	var missing *estimation.MissingScoreError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, platform.Backend, missing.Platform)
	assert.ErrorIs(t, err, estimation.ErrMissingScore)

	_, err = a.Assemble(estimation.Input{
		Detection: detection(platform.ScopeLow, platform.Frontend),
		Responses: map[platform.Platform]*scorer.Response{
			platform.Frontend: response(1, 1, 1, 1, 1, scoring.ScopeLocal),
			platform.DevOps:   response(1, 1, 1, 1, 1, scoring.ScopeLocal),
		},
	})
	assert.ErrorIs(t, err, estimation.ErrUnexpectedPlatform)

	_, err = a.Assemble(estimation.Input{
		Detection: detection(platform.ScopeLow, platform.Frontend),
		Failures:  map[platform.Platform]error{platform.Frontend: errors.New("boom")},
	})
	assert.ErrorIs(t, err, estimation.ErrNoPlatformScored)
}

func TestConfidencePolicy(t *testing.T) {
	c := estimation.DefaultConfidencePolicy()
	require.NoError(t, c.Validate())

	low := estimation.PlatformEstimate{Scope: platform.ScopeLow}
	low.ImpactScope = scoring.ScopeCritical

	many := make([]estimation.PlatformEstimate, 4)
	for i := range many {
		many[i] = low
	}
	got := c.Score(many, 3)
	assert.Equal(t, c.Floor, got)

	for n := 0; n < 4; n++ {
		v := c.Score(many[:n], 0)
		assert.GreaterOrEqual(t, v, c.Floor)
		assert.LessOrEqual(t, v, c.Baseline)
	}
	assert.InDelta(t, 0.80, c.Score(many[:1], 0), 1e-9)

	bad := c
	bad.Floor = 0.99
	assert.Error(t, bad.Validate())
	bad = c
	bad.Baseline = 1.5
	assert.Error(t, bad.Validate())
	assert.False(t, math.IsNaN(c.Score(nil, 0)))
}

func TestNewAssemblerValidates(t *testing.T) {
	_, err := estimation.NewAssembler(estimation.Settings{})
	assert.Error(t, err)

	mapper, _ := scoring.NewMapper(nil, scoring.DefaultScale())
	est, _ := hours.NewEstimator(hours.DefaultParams())
	bad := scoring.DefaultRiskParams()
	bad.Max = 0.5
	_, err = estimation.NewAssembler(estimation.Settings{
		Mapper:      mapper,
		Hours:       est,
		Integration: scoring.DefaultIntegrationParams(),
		Risk:        bad,
		Confidence:  estimation.DefaultConfidencePolicy(),
	})
	assert.Error(t, err)
}
