package scorer

import (
	"context"
	"fmt"
	"strings"

	"github.com/storysize/storysize/internal/textmatch"
	"github.com/storysize/storysize/pkg/platform"
	"github.com/storysize/storysize/pkg/scoring"
)

// HeuristicScorer scores from keyword density and code metrics without any
// network calls. The same request always yields the same response.
type HeuristicScorer struct {
	integration *textmatch.Matcher
	data        *textmatch.Matcher
	risk        *textmatch.Matcher
	domain      *textmatch.Matcher
}

// NewHeuristicScorer returns the rule-based scorer.
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{
		integration: textmatch.Compile([]string{
			"api", "webhook", "third-party", "external", "integration", "sso", "oauth",
			"payment", "queue", "event", "callback", "partner", "sync",
		}),
		data: textmatch.Compile([]string{
			"database", "schema", "migration", "table", "column", "index", "data model",
			"backfill", "storage", "persist", "report",
		}),
		risk: textmatch.Compile([]string{
			"security", "performance", "compliance", "latency", "encryption", "scalability",
			"gdpr", "pci", "audit", "tbd", "unclear", "investigate", "availability",
		}),
		domain: textmatch.Compile([]string{
			"workflow", "approval", "rule", "rules", "policy", "pricing", "billing",
			"calculation", "permission", "role", "state machine", "validation",
		}),
	}
}

var _ Scorer = (*HeuristicScorer)(nil)

// Score implements Scorer.
func (h *HeuristicScorer) Score(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text := req.DocumentText

	domainHits := h.domain.Find(text)
	integrationHits := h.integration.Find(text)
	dataHits := h.data.Find(text)
	riskHits := h.risk.Find(text)

	f := scoring.Factors{
		DomainComplexity:         clamp(lengthLevel(len(text)) + len(domainHits)/2 + diagramBonus(req)),
		ImplementationComplexity: clamp(scopeLevel(req.Scope) + codeBonus(req)),
		IntegrationBreadth:       clamp(1 + len(integrationHits)),
		DataSchemaImpact:         clamp(1 + len(dataHits)),
		NonFunctionalRisk:        clamp(1 + len(riskHits)),
	}

	resp := &Response{
		Platform:    req.Platform,
		Factors:     f,
		ImpactScope: scopeFromTotal(f),
		Rationale: fmt.Sprintf("rule-based assessment from %d characters of requirements: domain terms [%s], integration terms [%s], data terms [%s], risk terms [%s]",
			len(text), strings.Join(domainHits, ", "), strings.Join(integrationHits, ", "),
			strings.Join(dataHits, ", "), strings.Join(riskHits, ", ")),
		KeyComponents: req.Technologies,
	}
	if req.Code != nil {
		for _, lf := range req.Code.LargeFiles {
			resp.Challenges = append(resp.Challenges, fmt.Sprintf("large file %s (%d lines)", lf.Path, lf.Lines))
			if len(resp.Challenges) == 3 {
				break
			}
		}
	}
	return resp, nil
}

func clamp(v int) int {
	return min(max(v, scoring.MinFactor), scoring.MaxFactor)
}

func lengthLevel(n int) int {
	switch {
	case n < 500:
		return 1
	case n < 2000:
		return 2
	case n < 5000:
		return 3
	case n < 10000:
		return 4
	default:
		return 5
	}
}

func diagramBonus(req Request) int {
	if req.Images.Diagrams > 0 {
		return 1
	}
	return 0
}

func scopeLevel(s platform.Scope) int {
	switch s {
	case platform.ScopeHigh:
		return 4
	case platform.ScopeMedium:
		return 3
	default:
		return 2
	}
}

func codeBonus(req Request) int {
	if req.Code != nil && len(req.Code.LargeFiles) > 0 {
		return 1
	}
	return 0
}

func scopeFromTotal(f scoring.Factors) scoring.ImpactScope {
	total := 0
	for _, name := range scoring.AllFactors() {
		total += f.Value(name)
	}
	switch {
	case total <= 8:
		return scoring.ScopeLocal
	case total <= 13:
		return scoring.ScopeModule
	case total <= 18:
		return scoring.ScopeSystem
	default:
		return scoring.ScopeCritical
	}
}
