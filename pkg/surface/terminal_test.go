package surface_test

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/storysize/storysize/pkg/estimation"
	"github.com/storysize/storysize/pkg/hours"
	"github.com/storysize/storysize/pkg/impact"
	"github.com/storysize/storysize/pkg/platform"
	"github.com/storysize/storysize/pkg/scoring"
	"github.com/storysize/storysize/pkg/surface"
)

func sampleEstimation() *estimation.Estimation {
	return &estimation.Estimation{
		ID:          "abc",
		StoryPoints: 8,
		Confidence:  0.85,
		Platforms: []estimation.PlatformEstimate{
			{
				PlatformScore: scoring.PlatformScore{
					Platform: "frontend",
					Factors: scoring.Factors{
						DomainComplexity:         2,
						ImplementationComplexity: 3,
						IntegrationBreadth:       2,
						DataSchemaImpact:         2,
						NonFunctionalRisk:        1,
					},
					ImpactScope:   scoring.ScopeLocal,
					RawScore:      10,
					AdjustedScore: 10,
					StoryPoints:   3,
				},
				Scope:        platform.ScopeMedium,
				Technologies: []string{"dashboard", "react"},
				Rationale:    "A new dashboard page with two charts.",
				Challenges:   []string{"chart library choice"},
				Impact:       &impact.Analysis{AffectedFiles: []string{"Dashboard.tsx"}, TotalFiles: 40, ImpactRatio: 0.025},
			},
		},
		Unavailable: []estimation.PlatformFailure{
			{Platform: platform.Mobile, Reason: "timeout", Attempts: 2},
		},
		PartialFailure: true,
		Integration:    scoring.Multiplier{Value: 1.15, Rationale: "2 platforms (+0.15)"},
		Risk:           scoring.Multiplier{Value: 1.0, Rationale: "no elevated risk"},
		FinalRaw:       16,
		FinalScore:     18.4,
		Hours: []hours.ModelEstimate{
			{Model: "linear", HoursRange: hours.HoursRange{Min: 19.2, Expected: 32, Max: 57.6}},
			{Model: "exponential", HoursRange: hours.HoursRange{Min: 19.7, Expected: 32.8, Max: 59.1}},
		},
		Recommended: hours.HoursRange{Min: 18, Expected: 30, Max: 60},
	}
}

func TestTerminalRenderer_BasicOutput(t *testing.T) {
	// Set NO_COLOR to avoid ANSI codes in test comparison
	t.Setenv("NO_COLOR", "1")

	r := &surface.TerminalRenderer{}
	var buf bytes.Buffer

	if err := r.Render(&buf, sampleEstimation()); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"8 story points",
		"(confidence 85%)",
		"Partial estimate",
		"frontend",
		"DC 2  IC 3  IB 2  DS 2  NR 1",
		"medium scope: dashboard, react",
		"impact: 1 of 40 files",
		"unavailable (timeout after 2 attempts)",
		"integration ×1.15",
		"16.0 × 1.15 × 1.00 = 18.4",
		"recommended 30.0 h",
		"A new dashboard page",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
	if strings.Contains(output, "\033[") {
		t.Error("expected no ANSI escape codes with NO_COLOR set")
	}
}

func TestTerminalRenderer_ColorRespected(t *testing.T) {
	// Without NO_COLOR, output should have ANSI codes
	t.Setenv("NO_COLOR", "")
	os.Unsetenv("NO_COLOR")

	r := &surface.TerminalRenderer{}
	var buf bytes.Buffer

	if err := r.Render(&buf, sampleEstimation()); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if !strings.Contains(buf.String(), "\033[") {
		t.Error("expected ANSI escape codes when NO_COLOR is not set")
	}
}

func TestMarkdownRenderer(t *testing.T) {
	var buf bytes.Buffer
	if err := (&surface.MarkdownRenderer{}).Render(&buf, sampleEstimation()); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	md := buf.String()
	for _, want := range []string{
		"## storysize: 8 story points (confidence 85%)",
		"**Partial estimate:**",
		"| frontend | medium | 2 | 3 | 2 | 2 | 1 | LOCAL | 10.0 | 10.0 | **3** |",
		"| mobile | - |",
		"_DC = Domain Complexity; IC = Implementation Complexity;",
		"NR = Non-Functional & Risk_",
		"| exponential | 19.7 | 32.8 | 59.1 |",
		"→ **8 SP**",
		"- chart library choice",
		"_Impact:_ 1 of 40 files",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("expected %q in markdown:\n%s", want, md)
		}
	}
}

func TestHTMLRenderer(t *testing.T) {
	var buf bytes.Buffer
	if err := (&surface.HTMLRenderer{}).Render(&buf, sampleEstimation()); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"<!DOCTYPE html>", "<table>", "<h2>storysize: 8 story points", "<title>storysize: 8 story points (confidence 85%)</title>"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in html", want)
		}
	}
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	if err := (&surface.JSONRenderer{}).Render(&buf, sampleEstimation()); err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got["story_points"] != float64(8) {
		t.Errorf("story_points = %v, want 8", got["story_points"])
	}
	if got["partial_failure"] != true {
		t.Errorf("partial_failure = %v, want true", got["partial_failure"])
	}
	platforms := got["platforms"].([]any)
	first := platforms[0].(map[string]any)
	if first["platform"] != "frontend" || first["story_points"] != float64(3) {
		t.Errorf("embedded platform score not flattened: %v", first)
	}
}

func TestForFormat(t *testing.T) {
	for _, name := range []string{"terminal", "json", "markdown", "md", "html"} {
		if _, err := surface.ForFormat(name); err != nil {
			t.Errorf("ForFormat(%q): %v", name, err)
		}
	}
	if _, err := surface.ForFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestRenderHoursAndDetection(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	est := sampleEstimation()
	surface.RenderHours(&buf, 5, est.Hours, est.Recommended)
	if !strings.Contains(buf.String(), "5 story points") || !strings.Contains(buf.String(), "exponential") {
		t.Errorf("unexpected hours output:\n%s", buf.String())
	}

	buf.Reset()
	surface.RenderDetection(&buf, platform.Detection{
		Reason: "inferred from text",
		Requirements: []platform.Requirement{
			{Platform: platform.Backend, Scope: platform.ScopeLow, Sources: []platform.Source{platform.SourceDefault}},
		},
	})
	if !strings.Contains(buf.String(), "backend   low    [default]") {
		t.Errorf("unexpected detection output:\n%s", buf.String())
	}
}
