// Package estimation assembles per-platform scores, multipliers and hours
// ranges into a single Estimation.
package estimation

import (
	"errors"
	"fmt"
	"time"

	"github.com/storysize/storysize/pkg/hours"
	"github.com/storysize/storysize/pkg/impact"
	"github.com/storysize/storysize/pkg/platform"
	"github.com/storysize/storysize/pkg/scoring"
)

var (
	// ErrMissingScore is wrapped by *MissingScoreError.
	ErrMissingScore = errors.New("detected platform has no score")
	// ErrUnexpectedPlatform is returned for a score whose platform was not detected.
	ErrUnexpectedPlatform = errors.New("score for undetected platform")
	// ErrNoPlatformScored means every detected platform failed.
	ErrNoPlatformScored = errors.New("no platform could be scored")
)

// MissingScoreError names a detected platform that has neither a score nor
// a recorded failure.
type MissingScoreError struct {
	Platform platform.Platform
}

func (e *MissingScoreError) Error() string {
	return fmt.Sprintf("platform %s: %v", e.Platform, ErrMissingScore)
}

func (e *MissingScoreError) Unwrap() error { return ErrMissingScore }

// PlatformEstimate is the scored result for one platform.
type PlatformEstimate struct {
	scoring.PlatformScore
	Scope               platform.Scope        `json:"scope"`
	Technologies        []string              `json:"technologies,omitempty"`
	Sources             []platform.Source     `json:"sources,omitempty"`
	Rationale           string                `json:"rationale,omitempty"`
	KeyComponents       []string              `json:"key_components,omitempty"`
	Challenges          []string              `json:"challenges,omitempty"`
	RecommendedApproach string                `json:"recommended_approach,omitempty"`
	Hours               []hours.ModelEstimate `json:"hours"`
	Impact              *impact.Analysis      `json:"impact,omitempty"`
}

// PlatformFailure records a detected platform that could not be scored.
type PlatformFailure struct {
	Platform platform.Platform `json:"platform"`
	Reason   string            `json:"reason"`
	Attempts int               `json:"attempts"`
	Error    string            `json:"error"`
}

// Estimation is the final output of one run.
type Estimation struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	StoryPoints int       `json:"story_points"`
	Confidence  float64   `json:"confidence"`

	Platforms      []PlatformEstimate `json:"platforms"`
	Unavailable    []PlatformFailure  `json:"unavailable,omitempty"`
	PartialFailure bool               `json:"partial_failure"`

	Integration scoring.Multiplier `json:"integration_multiplier"`
	Risk        scoring.Multiplier `json:"risk_multiplier"`
	FinalRaw    float64            `json:"final_raw"`
	FinalScore  float64            `json:"final_score"`

	Hours       []hours.ModelEstimate `json:"hours"`
	Recommended hours.HoursRange      `json:"recommended_hours"`

	Rationale       []string        `json:"rationale"`
	Signals         scoring.Signals `json:"signals"`
	DetectionReason string          `json:"detection_reason,omitempty"`
}

// Platform returns the estimate for p, if it was scored.
func (e *Estimation) Platform(p platform.Platform) (PlatformEstimate, bool) {
	for _, pe := range e.Platforms {
		if pe.Platform == string(p) {
			return pe, true
		}
	}
	return PlatformEstimate{}, false
}

// HoursFor returns the overall hours range for the named model.
func (e *Estimation) HoursFor(model string) (hours.HoursRange, bool) {
	for _, m := range e.Hours {
		if m.Model == model {
			return m.HoursRange, true
		}
	}
	return hours.HoursRange{}, false
}
