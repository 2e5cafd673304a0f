// Package impact estimates which source files a requirement touches by
// matching entities named in the requirement against a summarized code tree.
package impact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/storysize/storysize/pkg/extract"
)

// Analysis is the impact estimate for one code tree.
type Analysis struct {
	Platform      string   `json:"platform"`
	Entities      []string `json:"entities"`
	AffectedFiles []string `json:"affected_files"`
	TotalFiles    int      `json:"total_files"`
	ImpactRatio   float64  `json:"impact_ratio"` // affected / total, 0-1
	Confidence    float64  `json:"confidence"`
}

const maxScanBytes = 1 << 20

var (
	capitalized = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?\b`)
	verbObject  = regexp.MustCompile(`\b(?i:add|update|delete|modify|create|implement|refactor)\s+([A-Z][a-zA-Z]+)`)
	nounSuffix  = regexp.MustCompile(`\b([A-Z][a-zA-Z]+)\s+(?:page|screen|form|component|service|controller|module)\b`)
)

var excluded = map[string]bool{
	"Api": true, "Jwt": true, "Json": true, "Sql": true, "Ui": true, "Ux": true, "Http": true, "Https": true,
	"Gdpr": true, "Ssl": true, "Tls": true, "Rest": true, "Soap": true, "Graphql": true,
	"The": true, "This": true, "That": true, "It": true, "User": true, "All": true, "Some": true, "Any": true,
	"First": true, "Last": true, "Next": true, "Previous": true, "New": true, "Old": true,
	"Please": true, "Note": true, "See": true, "Also": true, "And": true, "Or": true, "But": true, "For": true,
	"With": true, "From": true, "Into": true, "When": true, "If": true, "As": true, "We": true, "Our": true,
	"System": true, "Application": true, "Platform": true, "Feature": true, "Function": true,
	"Code": true, "File": true, "Test": true, "Build": true, "Deploy": true, "Release": true,
	"Issue": true, "Bug": true, "Fix": true, "Error": true, "Exception": true, "Problem": true,
	"Add": true, "Update": true, "Delete": true, "Modify": true, "Create": true, "Implement": true,
	"Refactor": true, "Replace": true, "Remove": true, "Ensure": true, "Allow": true, "Make": true,
	"Users": true, "Should": true, "Must": true, "Acceptance": true, "Criteria": true, "Story": true,
}

// Analyzer matches requirement entities against code.
type Analyzer struct {
	logger *zap.Logger
}

// NewAnalyzer returns an analyzer. A nil logger disables logging.
func NewAnalyzer(logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{logger: logger}
}

// ExtractEntities returns candidate domain entities named in text, as
// CamelCase identifiers, sorted.
func (a *Analyzer) ExtractEntities(text string) []string {
	set := make(map[string]bool)
	add := func(raw string) {
		words := strings.Fields(raw)
		var kept []string
		for _, w := range words {
			w = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
			if !excluded[w] {
				kept = append(kept, w)
			}
		}
		name := strings.Join(kept, "")
		if len(name) >= 3 {
			set[name] = true
		}
	}
	for _, m := range verbObject.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range nounSuffix.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}
	for _, m := range capitalized.FindAllString(text, -1) {
		add(m)
	}

	out := make([]string, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Analyze matches the entities in requirement against every file of sum.
// It stops early when ctx is done.
func (a *Analyzer) Analyze(ctx context.Context, platform, requirement string, sum *extract.CodeSummary) (*Analysis, error) {
	res := &Analysis{Platform: platform, Entities: a.ExtractEntities(requirement)}
	if sum == nil {
		res.Confidence = 0.3
		return res, nil
	}
	res.TotalFiles = len(sum.Paths)

	variants := make([][][]byte, len(res.Entities))
	for i, e := range res.Entities {
		for _, v := range entityVariants(e) {
			variants[i] = append(variants[i], []byte(v))
		}
	}

	matchedEntities := make(map[int]bool)
	for _, rel := range sum.Paths {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("impact analysis for %s: %w", platform, err)
		}
		stem := strings.ToLower(strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel)))
		var content []byte
		loaded := false
		hit := false
		for i, vs := range variants {
			for _, v := range vs {
				if strings.Contains(stem, string(v)) {
					hit, matchedEntities[i] = true, true
					break
				}
				if !loaded {
					content = readLower(filepath.Join(sum.Root, filepath.FromSlash(rel)))
					loaded = true
				}
				if containsWord(content, v) {
					hit, matchedEntities[i] = true, true
					break
				}
			}
		}
		if hit {
			res.AffectedFiles = append(res.AffectedFiles, rel)
		}
	}

	if res.TotalFiles > 0 {
		res.ImpactRatio = float64(len(res.AffectedFiles)) / float64(res.TotalFiles)
	}
	res.Confidence = confidence(len(matchedEntities), res.ImpactRatio)
	a.logger.Debug("impact analysis",
		zap.String("platform", platform),
		zap.Int("entities", len(res.Entities)),
		zap.Int("affected", len(res.AffectedFiles)),
		zap.Float64("ratio", res.ImpactRatio),
	)
	return res, nil
}

func confidence(matched int, ratio float64) float64 {
	if matched == 0 {
		return 0.3
	}
	c := 0.5 + min(float64(matched)*0.05, 0.3)
	switch {
	case ratio >= 0.01 && ratio <= 0.5:
		c += 0.2
	case ratio > 0.5 && ratio <= 0.8:
		c += 0.1
	}
	return min(c, 1.0)
}

// entityVariants returns lower-case spellings of a CamelCase entity.
func entityVariants(entity string) []string {
	var snake strings.Builder
	for i, r := range entity {
		if i > 0 && r >= 'A' && r <= 'Z' {
			snake.WriteByte('_')
		}
		snake.WriteRune(r)
	}
	s := strings.ToLower(snake.String())
	out := []string{strings.ToLower(entity)}
	if s != out[0] {
		out = append(out, s, strings.ReplaceAll(s, "_", "-"))
	}
	return out
}

func readLower(path string) []byte {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	content, _ := io.ReadAll(io.LimitReader(f, maxScanBytes))
	return bytes.ToLower(content)
}

func containsWord(content, word []byte) bool {
	for off := 0; ; {
		i := bytes.Index(content[off:], word)
		if i < 0 {
			return false
		}
		start := off + i
		// Only the left edge is checked so "checkout" also matches "checkoutservice".
		if start == 0 || !isIdent(content[start-1]) {
			return true
		}
		off = start + 1
	}
}

func isIdent(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
