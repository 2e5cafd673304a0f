package scorer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/storysize/storysize/pkg/platform"
)

// SystemInstruction frames every scoring prompt.
const SystemInstruction = "You are an expert software architect estimating delivery effort. " +
	"Return ONLY valid JSON without any additional text or formatting."

const truncatedMarker = "\n[... truncated]"

var focusAreas = map[platform.Platform][]string{
	platform.Frontend: {
		"UI complexity: component complexity, state management, visual design",
		"User interaction: forms, validation, user flows, accessibility",
		"Performance: rendering optimization, lazy loading, bundle size",
		"Integration: API integration, third-party services, routing",
		"Testing: unit, integration and end-to-end testing needs",
	},
	platform.Backend: {
		"Business logic: domain complexity, validation rules, workflows",
		"Database impact: schema changes, migrations, query complexity",
		"API design: endpoint complexity, request/response models, documentation",
		"Integration: external services, message queues, caching",
		"Security and performance: authentication, authorization, optimization",
	},
	platform.Mobile: {
		"Platform complexity: native features, platform-specific UI/UX",
		"Offline support: local storage, sync, conflict resolution",
		"Device integration: camera, GPS, push notifications, biometrics",
		"App store requirements: submission and review considerations",
		"Cross-platform: framework complexity, platform differences",
	},
	platform.DevOps: {
		"Infrastructure: servers, networking, load balancing",
		"Automation: CI/CD pipelines, automated testing, deployment scripts",
		"Deployment: containerization, orchestration, environments",
		"Monitoring: logging, metrics, alerting, health checks",
		"Security: access control, secrets management, compliance",
	},
}

// Truncate bounds text to at most limit bytes without splitting a rune.
// A non-positive limit disables truncation.
func Truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return text
	}
	cut := limit - len(truncatedMarker)
	if cut < 0 {
		cut = 0
	}
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + truncatedMarker
}

// BuildPrompt renders the user prompt for one platform.
func BuildPrompt(req Request) string {
	var b strings.Builder
	p := req.Platform

	fmt.Fprintf(&b, "Assess the %s work for the following work item.\n\n", p)

	fmt.Fprintf(&b, "%s FOCUS AREAS:\n", strings.ToUpper(string(p)))
	for _, area := range focusAreas[p] {
		fmt.Fprintf(&b, "- %s\n", area)
	}

	b.WriteString("\nWORK ITEM:\n")
	if strings.TrimSpace(req.DocumentText) == "" {
		b.WriteString("(no requirement text supplied)\n")
	} else {
		b.WriteString(req.DocumentText)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "\nDETECTED SCOPE: %s", req.Scope)
	if len(req.Technologies) > 0 {
		fmt.Fprintf(&b, " (technologies: %s)", strings.Join(req.Technologies, ", "))
	}
	b.WriteString("\n")

	if c := req.Code; c != nil && c.Files > 0 {
		fmt.Fprintf(&b, "\n%s CODEBASE CONTEXT:\n", strings.ToUpper(string(p)))
		fmt.Fprintf(&b, "- %d files, %d lines\n", c.Files, c.Lines)
		for _, lang := range c.Languages() {
			fmt.Fprintf(&b, "- %s: %d files, %d lines\n", lang, c.FilesByLanguage[lang], c.LinesByLanguage[lang])
		}
		if n := len(c.LargeFiles); n > 0 {
			fmt.Fprintf(&b, "- %d files over the large-file threshold, largest %s (%d lines)\n",
				n, c.LargeFiles[0].Path, c.LargeFiles[0].Lines)
		}
		if len(c.KeyFiles) > 0 {
			fmt.Fprintf(&b, "- key files: %s\n", strings.Join(c.KeyFiles, ", "))
		}
	}

	if img := req.Images; img.Total > 0 || img.Tables > 0 {
		b.WriteString("\nVISUAL ELEMENTS:\n")
		fmt.Fprintf(&b, "- images: %d (diagrams %d, forms %d, screenshots %d), tables: %d\n",
			img.Total, img.Diagrams, img.Forms, img.Screenshots, img.Tables)
		b.WriteString("- diagrams and workflows suggest business logic, forms suggest validation work\n")
	}

	b.WriteString("\nFACTORS (integer 1-5 each):\n")
	defs := req.Factors
	if len(defs) == 0 {
		defs = DefaultFactorDefinitions()
	}
	for _, d := range defs {
		fmt.Fprintf(&b, "- %s (%s): %s. 1 = %s; 5 = %s\n", d.Factor, d.Factor.Short(), d.Description, d.Low, d.High)
	}

	b.WriteString("\nIMPACT SCOPE (one of): LOCAL (single file or component), MODULE (one module), " +
		"SYSTEM (several modules or services), CRITICAL (core flows, data integrity or security at stake)\n")

	b.WriteString(`
Respond with JSON:
{
  "factors": {"domain_complexity": 3, "implementation_complexity": 3, "integration_breadth": 2, "data_schema_impact": 2, "non_functional_risk": 2},
  "impact_scope": "MODULE",
  "rationale": "why these values",
  "key_components": ["Component1"],
  "challenges": ["Challenge1"],
  "recommended_approach": "technical approach"
}
`)
	return b.String()
}
