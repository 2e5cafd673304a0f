package surface

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/storysize/storysize/pkg/estimation"
	"github.com/storysize/storysize/pkg/hours"
	"github.com/storysize/storysize/pkg/platform"
)

// TerminalRenderer renders an Estimation as colored terminal output.
type TerminalRenderer struct{}

type palette struct {
	bold, dim, green, yellow, red, cyan *color.Color
}

func newPalette() palette {
	p := palette{
		bold:   color.New(color.Bold),
		dim:    color.New(color.Faint),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		red:    color.New(color.FgRed),
		cyan:   color.New(color.FgCyan, color.Bold),
	}
	for _, c := range []*color.Color{p.bold, p.dim, p.green, p.yellow, p.red, p.cyan} {
		if noColor() {
			c.DisableColor()
		} else {
			c.EnableColor()
		}
	}
	return p
}

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

// points picks green for small items, yellow for medium and red for
// anything that should probably be split.
func (p palette) points(sp int) *color.Color {
	switch {
	case sp <= 3:
		return p.green
	case sp <= 13:
		return p.yellow
	default:
		return p.red
	}
}

func (p palette) confidence(c float64) *color.Color {
	switch {
	case c >= 0.85:
		return p.green
	case c >= 0.7:
		return p.yellow
	default:
		return p.red
	}
}

func (r *TerminalRenderer) Render(w io.Writer, est *estimation.Estimation) error {
	c := newPalette()

	// Header
	fmt.Fprintf(w, "%s %s %s\n\n",
		c.bold.Sprint("storysize:"),
		c.points(est.StoryPoints).Sprintf("%d story points", est.StoryPoints),
		c.confidence(est.Confidence).Sprintf("(confidence %.0f%%)", est.Confidence*100))

	if est.PartialFailure {
		fmt.Fprintf(w, "%s\n\n", c.red.Sprint("Partial estimate: some platforms could not be scored."))
	}

	fmt.Fprintln(w, "Platforms:")
	for _, pe := range est.Platforms {
		f := pe.Factors
		fmt.Fprintf(w, "  %-9s %s  DC %d  IC %d  IB %d  DS %d  NR %d  %-8s raw %5.1f  adj %5.1f\n",
			pe.Platform,
			c.points(pe.StoryPoints).Sprintf("%2d SP", pe.StoryPoints),
			f.DomainComplexity, f.ImplementationComplexity, f.IntegrationBreadth, f.DataSchemaImpact, f.NonFunctionalRisk,
			pe.ImpactScope, pe.RawScore, pe.AdjustedScore)
		if len(pe.Technologies) > 0 {
			fmt.Fprintf(w, "            %s\n", c.dim.Sprintf("%s scope: %s", pe.Scope, strings.Join(pe.Technologies, ", ")))
		}
		if pe.Impact != nil && pe.Impact.TotalFiles > 0 {
			fmt.Fprintf(w, "            %s\n", c.dim.Sprintf("impact: %d of %d files", len(pe.Impact.AffectedFiles), pe.Impact.TotalFiles))
		}
	}
	for _, u := range est.Unavailable {
		fmt.Fprintf(w, "  %-9s %s\n", u.Platform, c.red.Sprintf("unavailable (%s after %d attempts)", u.Reason, u.Attempts))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Multipliers:")
	fmt.Fprintf(w, "  integration ×%.2f  %s\n", est.Integration.Value, c.dim.Sprint(est.Integration.Rationale))
	fmt.Fprintf(w, "  risk        ×%.2f  %s\n", est.Risk.Value, c.dim.Sprint(est.Risk.Rationale))
	fmt.Fprintf(w, "  final       %.1f × %.2f × %.2f = %.1f\n\n",
		est.FinalRaw, est.Integration.Value, est.Risk.Value, est.FinalScore)

	if len(est.Hours) > 0 {
		fmt.Fprintln(w, "Hours:")
		writeHours(w, est.Hours)
		fmt.Fprintf(w, "  %s %.1f h (%.1f to %.1f)\n\n", c.cyan.Sprint("recommended"),
			est.Recommended.Expected, est.Recommended.Min, est.Recommended.Max)
	}

	for _, pe := range est.Platforms {
		if pe.Rationale == "" {
			continue
		}
		fmt.Fprintf(w, "%s\n", c.bold.Sprint(pe.Platform))
		for _, line := range wrapText(pe.Rationale, 70) {
			fmt.Fprintf(w, "  %s\n", c.dim.Sprint(line))
		}
	}
	return nil
}

func writeHours(w io.Writer, estimates []hours.ModelEstimate) {
	for _, m := range estimates {
		fmt.Fprintf(w, "  %-12s %7.1f %7.1f %7.1f\n", m.Model, m.Min, m.Expected, m.Max)
	}
}

// RenderHours prints the per-model hours table for a point value.
func RenderHours(w io.Writer, points int, estimates []hours.ModelEstimate, recommended hours.HoursRange) {
	c := newPalette()
	fmt.Fprintf(w, "%s\n\n", c.bold.Sprintf("%d story points", points))
	fmt.Fprintf(w, "  %-12s %7s %7s %7s\n", "model", "min", "exp", "max")
	writeHours(w, estimates)
	fmt.Fprintf(w, "\n  %s %.1f h (%.1f to %.1f)\n", c.cyan.Sprint("recommended"),
		recommended.Expected, recommended.Min, recommended.Max)
	for _, m := range estimates {
		fmt.Fprintf(w, "  %s\n", c.dim.Sprintf("%s: %s", m.Model, m.Description))
	}
}

// RenderDetection prints detected platforms with their evidence.
func RenderDetection(w io.Writer, d platform.Detection) {
	c := newPalette()
	fmt.Fprintf(w, "%s %s\n", c.bold.Sprint("Platforms:"), c.dim.Sprint(d.Reason))
	for _, r := range d.Requirements {
		sources := make([]string, len(r.Sources))
		for i, s := range r.Sources {
			sources[i] = string(s)
		}
		fmt.Fprintf(w, "  %-9s %-6s [%s]", r.Platform, r.Scope, strings.Join(sources, ", "))
		if len(r.Technologies) > 0 {
			fmt.Fprintf(w, "  %s", strings.Join(r.Technologies, ", "))
		}
		if r.Directory != "" {
			fmt.Fprintf(w, "  %s", c.dim.Sprint(r.Directory))
		}
		fmt.Fprintln(w)
	}
}

// wrapText wraps a string at the given width, returning lines.
func wrapText(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]

	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			lines = append(lines, current)
			current = word
		} else {
			current += " " + word
		}
	}
	lines = append(lines, current)
	return lines
}
