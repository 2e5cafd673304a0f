package surface

import (
	"fmt"
	"io"
	"strings"

	"github.com/storysize/storysize/pkg/estimation"
	"github.com/storysize/storysize/pkg/hours"
	"github.com/storysize/storysize/pkg/scoring"
)

// MarkdownRenderer writes a Markdown report suitable for a ticket comment.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(w io.Writer, est *estimation.Estimation) error {
	_, err := io.WriteString(w, BuildMarkdown(est))
	return err
}

// BuildMarkdown renders the estimation as a Markdown document.
func BuildMarkdown(est *estimation.Estimation) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## %s\n\n", Title(est))
	if est.PartialFailure {
		sb.WriteString("> **Partial estimate:** some platforms could not be scored and are excluded from the total.\n\n")
	}

	sb.WriteString("### Platforms\n\n")
	sb.WriteString("| Platform | Scope | DC | IC | IB | DS | NR | Impact | Raw | Adjusted | SP |\n")
	sb.WriteString("|----------|-------|----|----|----|----|----|--------|-----|----------|----|\n")
	for _, pe := range est.Platforms {
		f := pe.Factors
		fmt.Fprintf(&sb, "| %s | %s | %d | %d | %d | %d | %d | %s | %.1f | %.1f | **%d** |\n",
			pe.Platform, pe.Scope,
			f.DomainComplexity, f.ImplementationComplexity, f.IntegrationBreadth, f.DataSchemaImpact, f.NonFunctionalRisk,
			pe.ImpactScope, pe.RawScore, pe.AdjustedScore, pe.StoryPoints)
	}
	for _, u := range est.Unavailable {
		fmt.Fprintf(&sb, "| %s | - | | | | | | | | | unavailable (%s) |\n", u.Platform, u.Reason)
	}
	legend := make([]string, 0, len(scoring.AllFactors()))
	for _, f := range scoring.AllFactors() {
		legend = append(legend, fmt.Sprintf("%s = %s", f.Short(), f.Title()))
	}
	fmt.Fprintf(&sb, "\n_%s_\n\n", strings.Join(legend, "; "))

	sb.WriteString("### Multipliers\n\n")
	fmt.Fprintf(&sb, "- **Integration** ×%.2f: %s\n", est.Integration.Value, est.Integration.Rationale)
	fmt.Fprintf(&sb, "- **Risk** ×%.2f: %s\n", est.Risk.Value, est.Risk.Rationale)
	fmt.Fprintf(&sb, "- **Final score** %.1f × %.2f × %.2f = %.1f → **%d SP**\n\n",
		est.FinalRaw, est.Integration.Value, est.Risk.Value, est.FinalScore, est.StoryPoints)

	if len(est.Hours) > 0 {
		sb.WriteString("### Hours\n\n")
		writeHoursTable(&sb, est.Hours)
		fmt.Fprintf(&sb, "\nRecommended: **%.1f h** (%.1f to %.1f h)\n\n",
			est.Recommended.Expected, est.Recommended.Min, est.Recommended.Max)
	}

	var details []estimation.PlatformEstimate
	for _, pe := range est.Platforms {
		if pe.Rationale != "" || len(pe.Challenges) > 0 || pe.RecommendedApproach != "" {
			details = append(details, pe)
		}
	}
	if len(details) > 0 {
		sb.WriteString("### Notes\n\n")
		for _, pe := range details {
			fmt.Fprintf(&sb, "#### %s\n\n", pe.Platform)
			if pe.Rationale != "" {
				fmt.Fprintf(&sb, "%s\n\n", pe.Rationale)
			}
			// top 3 challenges
			for i, c := range pe.Challenges {
				if i == 3 {
					fmt.Fprintf(&sb, "- _... and %d more_\n", len(pe.Challenges)-3)
					break
				}
				fmt.Fprintf(&sb, "- %s\n", c)
			}
			if pe.RecommendedApproach != "" {
				fmt.Fprintf(&sb, "\n_Approach:_ %s\n", pe.RecommendedApproach)
			}
			if pe.Impact != nil && len(pe.Impact.AffectedFiles) > 0 {
				fmt.Fprintf(&sb, "\n_Impact:_ %d of %d files (%.0f%%)\n",
					len(pe.Impact.AffectedFiles), pe.Impact.TotalFiles, pe.Impact.ImpactRatio*100)
			}
			sb.WriteString("\n")
		}
	}

	if cats := est.Signals.RiskCategories(); len(cats) > 0 {
		fmt.Fprintf(&sb, "Risk signals: %s\n", strings.Join(cats, ", "))
	}
	return sb.String()
}

func writeHoursTable(sb *strings.Builder, estimates []hours.ModelEstimate) {
	sb.WriteString("| Model | Min | Expected | Max |\n|-------|-----|----------|-----|\n")
	for _, m := range estimates {
		fmt.Fprintf(sb, "| %s | %.1f | %.1f | %.1f |\n", m.Model, m.Min, m.Expected, m.Max)
	}
}
