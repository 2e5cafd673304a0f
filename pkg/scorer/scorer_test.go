package scorer

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/storysize/storysize/pkg/extract"
	"github.com/storysize/storysize/pkg/platform"
	"github.com/storysize/storysize/pkg/scoring"
)

const validJSON = `{
  "factors": {"domain_complexity": 3, "implementation_complexity": 4, "integration_breadth": 2, "data_schema_impact": 1, "non_functional_risk": 2},
  "impact_scope": "module",
  "rationale": "moderate change",
  "key_components": ["CheckoutForm"],
  "key_challenges": ["validation"],
  "recommended_approach": "extend the form"
}`

func TestParseResponseFormats(t *testing.T) {
	want := scoring.Factors{
		DomainComplexity:         3,
		ImplementationComplexity: 4,
		IntegrationBreadth:       2,
		DataSchemaImpact:         1,
		NonFunctionalRisk:        2,
	}
	inputs := map[string]string{
		"bare":   validJSON,
		"fenced": "Here you go:\n```json\n" + validJSON + "\n```\nThanks",
		"prose":  "Sure. " + validJSON + " Let me know.",
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			resp, err := ParseResponse(in)
			require.NoError(t, err)
			assert.Equal(t, want, resp.Factors)
			assert.Equal(t, scoring.ScopeModule, resp.ImpactScope)
			assert.Equal(t, "moderate change", resp.Rationale)
			assert.Equal(t, []string{"CheckoutForm"}, resp.KeyComponents)
			assert.Equal(t, []string{"validation"}, resp.Challenges)
			assert.Equal(t, "extend the form", resp.RecommendedApproach)
		})
	}
}

func TestParseResponseShortKeys(t *testing.T) {
	resp, err := ParseResponse(`{"factors": {"DC": 1, "IC": 2, "IB": 3, "DS": 4, "NR": 5}, "impact_scope": "CRITICAL", "explanation": "legacy"}`)
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Factors.NonFunctionalRisk)
	assert.Equal(t, "legacy", resp.Rationale)
}

func TestParseResponseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want error
	}{
		{"no json", "I cannot answer that", ErrMalformedResponse},
		{"broken json", `{"factors": {`, ErrMalformedResponse},
		{"missing factor", `{"factors": {"DC": 1, "IC": 2, "IB": 3, "DS": 4}, "impact_scope": "LOCAL"}`, ErrMalformedResponse},
		{"missing scope", `{"factors": {"DC": 1, "IC": 2, "IB": 3, "DS": 4, "NR": 1}}`, ErrMalformedResponse},
		{"fractional", `{"factors": {"DC": 1.5, "IC": 2, "IB": 3, "DS": 4, "NR": 1}, "impact_scope": "LOCAL"}`, ErrMalformedResponse},
		{"out of range", `{"factors": {"DC": 7, "IC": 2, "IB": 3, "DS": 4, "NR": 1}, "impact_scope": "LOCAL"}`, ErrFactorOutOfRange},
		{"zero", `{"factors": {"DC": 0, "IC": 2, "IB": 3, "DS": 4, "NR": 1}, "impact_scope": "LOCAL"}`, ErrFactorOutOfRange},
		{"alias and full name", `{"factors": {"DC": 2, "domain_complexity": 4, "IC": 2, "IB": 3, "DS": 4, "NR": 1}, "impact_scope": "LOCAL"}`, ErrMalformedResponse},
		{"same factor in two cases", `{"factors": {"DC": 2, "dc": 2, "IC": 2, "IB": 3, "DS": 4, "NR": 1}, "impact_scope": "LOCAL"}`, ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse(tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 100))
	assert.Equal(t, "anything", Truncate("anything", 0))

	long := strings.Repeat("é", 100) // 200 bytes
	got := Truncate(long, 50)
	assert.LessOrEqual(t, len(got), 50)
	assert.True(t, strings.HasSuffix(got, truncatedMarker))
	assert.True(t, strings.HasPrefix(long, strings.TrimSuffix(got, truncatedMarker)))
}

func TestBuildPrompt(t *testing.T) {
	req := Request{
		Platform:     platform.Mobile,
		Scope:        platform.ScopeMedium,
		Technologies: []string{"flutter", "ios"},
		DocumentText: "Add offline mode to the orders screen.",
		Code: &extract.CodeSummary{
			Files:           10,
			Lines:           900,
			FilesByLanguage: map[string]int{"dart": 10},
			LinesByLanguage: map[string]int{"dart": 900},
			KeyFiles:        []string{"pubspec.yaml"},
		},
		Images: extract.ImageSummary{Total: 2, Diagrams: 1},
	}
	p := BuildPrompt(req)

	for _, want := range []string{
		"MOBILE FOCUS AREAS",
		"Offline support",
		"Add offline mode to the orders screen.",
		"technologies: flutter, ios",
		"dart: 10 files, 900 lines",
		"pubspec.yaml",
		"diagrams 1",
		"non_functional_risk (NR)",
		`"impact_scope"`,
	} {
		assert.Contains(t, p, want)
	}
}

type fakeGenerator struct {
	answers []string
	errs    []error
	calls   int
}

func (f *fakeGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	return f.answers[i], nil
}

func TestLLMScorer(t *testing.T) {
	gen := &fakeGenerator{answers: []string{"```json\n" + validJSON + "\n```"}}
	s := NewLLMScorer(gen, nil)
	resp, err := s.Score(context.Background(), Request{Platform: platform.Frontend})
	require.NoError(t, err)
	assert.Equal(t, platform.Frontend, resp.Platform)
	assert.Equal(t, 1, gen.calls)
}

func TestHeuristicScorerIsDeterministicAndValid(t *testing.T) {
	h := NewHeuristicScorer()
	req := Request{
		Platform:     platform.Backend,
		Scope:        platform.ScopeHigh,
		Technologies: []string{"api", "postgres"},
		DocumentText: "Add a billing workflow with approval rules, a payment API webhook, a schema migration with backfill, and strict security and latency targets.",
		Code:         &extract.CodeSummary{LargeFiles: []extract.FileStat{{Path: "billing.go", Lines: 900}}},
	}
	a, err := h.Score(context.Background(), req)
	require.NoError(t, err)
	b, err := h.Score(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	require.NoError(t, Validate(a))
	assert.Equal(t, 5, a.Factors.ImplementationComplexity)
	assert.GreaterOrEqual(t, a.Factors.IntegrationBreadth, 3)
	assert.GreaterOrEqual(t, a.Factors.DataSchemaImpact, 3)
	assert.Equal(t, []string{"large file billing.go (900 lines)"}, a.Challenges)

	empty, err := h.Score(context.Background(), Request{Platform: platform.Backend})
	require.NoError(t, err)
	assert.Equal(t, scoring.ScopeLocal, empty.ImpactScope)
}

// scriptedScorer runs one scripted step per call.
type scriptedScorer struct {
	script []func(ctx context.Context) (*Response, error)
	calls  atomic.Int32
}

func (s *scriptedScorer) Score(ctx context.Context, req Request) (*Response, error) {
	i := int(s.calls.Add(1)) - 1
	return s.script[i](ctx)
}

func hang(ctx context.Context) (*Response, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func ok(ctx context.Context) (*Response, error) {
	return &Response{
		Factors:     scoring.Factors{DomainComplexity: 2, ImplementationComplexity: 2, IntegrationBreadth: 2, DataSchemaImpact: 2, NonFunctionalRisk: 2},
		ImpactScope: scoring.ScopeLocal,
	}, nil
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		Timeout:       20 * time.Millisecond,
		MaxAttempts:   2,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2,
	}
}

func TestResilientRetriesOnceThenSucceeds(t *testing.T) {
	next := &scriptedScorer{script: []func(context.Context) (*Response, error){hang, ok}}
	r := NewResilient(next, fastPolicy(), nil, nil)

	resp, err := r.Score(context.Background(), Request{Platform: platform.Frontend})
	require.NoError(t, err)
	assert.Equal(t, platform.Frontend, resp.Platform)
	assert.EqualValues(t, 2, next.calls.Load())
}

func TestResilientTimeoutTwiceIsFailure(t *testing.T) {
	next := &scriptedScorer{script: []func(context.Context) (*Response, error){hang, hang}}
	r := NewResilient(next, fastPolicy(), nil, nil)

	_, err := r.Score(context.Background(), Request{Platform: platform.Mobile})
	require.Error(t, err)

	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, platform.Mobile, f.Platform)
	assert.Equal(t, 2, f.Attempts)
	assert.Equal(t, "timeout", f.Reason())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResilientRejectsOutOfRangeFactors(t *testing.T) {
	bad := func(ctx context.Context) (*Response, error) {
		resp, _ := ok(ctx)
		resp.Factors.NonFunctionalRisk = 9
		return resp, nil
	}
	next := &scriptedScorer{script: []func(context.Context) (*Response, error){bad, bad}}
	r := NewResilient(next, fastPolicy(), nil, nil)

	_, err := r.Score(context.Background(), Request{Platform: platform.Backend})
	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "factor out of range", f.Reason())
	assert.ErrorIs(t, err, ErrFactorOutOfRange)
}

func TestResilientWrapsGeneratorTimeouts(t *testing.T) {
	// a client that ignores ctx errors and returns its own error
	opaque := func(ctx context.Context) (*Response, error) {
		<-ctx.Done()
		return nil, errors.New("transport closed")
	}
	next := &scriptedScorer{script: []func(context.Context) (*Response, error){opaque}}
	p := fastPolicy()
	p.MaxAttempts = 1
	_, err := NewResilient(next, p, nil, nil).Score(context.Background(), Request{Platform: platform.Backend})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResilientStopsWhenParentCancelled(t *testing.T) {
	next := &scriptedScorer{script: []func(context.Context) (*Response, error){ok}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewResilient(next, fastPolicy(), nil, nil).Score(ctx, Request{Platform: platform.Backend})
	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, 0, f.Attempts)
	assert.Equal(t, "cancelled", f.Reason())
	assert.EqualValues(t, 0, next.calls.Load())
}

func TestResilientUsesLimiter(t *testing.T) {
	next := &scriptedScorer{script: []func(context.Context) (*Response, error){ok, ok}}
	limiter := rate.NewLimiter(rate.Inf, 1)
	r := NewResilient(next, fastPolicy(), limiter, nil)

	for i := 0; i < 2; i++ {
		_, err := r.Score(context.Background(), Request{Platform: platform.Backend})
		require.NoError(t, err)
	}
	assert.EqualValues(t, 2, next.calls.Load())
}
