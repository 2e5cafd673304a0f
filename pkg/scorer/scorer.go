// Package scorer defines the factor scoring capability: given requirement
// text and code metrics for one platform, produce five complexity factors,
// an impact scope and rationale. Implementations are interchangeable; the
// mapper and estimator only see validated Responses.
package scorer

import (
	"context"
	"errors"
	"fmt"

	"github.com/storysize/storysize/pkg/extract"
	"github.com/storysize/storysize/pkg/platform"
	"github.com/storysize/storysize/pkg/scoring"
)

var (
	// ErrMalformedResponse means the scorer output could not be read as a
	// complete assessment.
	ErrMalformedResponse = errors.New("malformed scorer response")
	// ErrFactorOutOfRange means a factor value fell outside [1,5].
	ErrFactorOutOfRange = scoring.ErrFactorOutOfRange
)

// Scorer produces a factor assessment for one platform.
type Scorer interface {
	Score(ctx context.Context, req Request) (*Response, error)
}

// Request is everything a scorer may look at for one platform.
type Request struct {
	Platform     platform.Platform
	Scope        platform.Scope
	Technologies []string
	// Already bounded to the configured prompt ceiling.
	DocumentText string
	Code         *extract.CodeSummary
	Images       extract.ImageSummary
	Factors      []FactorDefinition
}

// Response is a scorer's assessment of one platform.
type Response struct {
	Platform            platform.Platform   `json:"platform"`
	Factors             scoring.Factors     `json:"factors"`
	ImpactScope         scoring.ImpactScope `json:"impact_scope"`
	Rationale           string              `json:"rationale"`
	KeyComponents       []string            `json:"key_components,omitempty"`
	Challenges          []string            `json:"challenges,omitempty"`
	RecommendedApproach string              `json:"recommended_approach,omitempty"`
}

// Validate checks a response is complete and in range.
func Validate(resp *Response) error {
	if resp == nil {
		return fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	if !resp.ImpactScope.Valid() {
		return fmt.Errorf("%w: impact scope %q", ErrMalformedResponse, resp.ImpactScope)
	}
	return resp.Factors.Validate()
}

// FactorDefinition explains one factor and its scale to a scorer.
type FactorDefinition struct {
	Factor      scoring.Factor
	Description string
	Low         string // meaning of 1
	High        string // meaning of 5
}

// DefaultFactorDefinitions returns the five factors with their 1-5 semantics.
func DefaultFactorDefinitions() []FactorDefinition {
	return []FactorDefinition{
		{
			Factor:      scoring.DomainComplexity,
			Description: "How intricate the business rules and domain concepts are",
			Low:         "well understood, no new business rules",
			High:        "novel domain, many interacting rules or regulatory constraints",
		},
		{
			Factor:      scoring.ImplementationComplexity,
			Description: "How hard the code change itself is",
			Low:         "configuration or copy change in one place",
			High:        "new architecture, algorithms or large refactors across modules",
		},
		{
			Factor:      scoring.IntegrationBreadth,
			Description: "How many systems, services and teams the change touches",
			Low:         "self-contained",
			High:        "many internal and external systems must change together",
		},
		{
			Factor:      scoring.DataSchemaImpact,
			Description: "How much stored data or schema has to change",
			Low:         "no data changes",
			High:        "breaking schema changes with data migration and backfill",
		},
		{
			Factor:      scoring.NonFunctionalRisk,
			Description: "Performance, security, compliance and delivery uncertainty",
			Low:         "no notable non-functional concerns",
			High:        "strict performance, security or compliance demands, or unclear requirements",
		},
	}
}
