package scorer

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/storysize/storysize/pkg/scoring"
)

var fence = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// wireResponse is the JSON shape scorers are asked to return. Older prompts
// used "explanation" and "key_challenges"; both are accepted.
type wireResponse struct {
	Factors             map[string]json.Number `json:"factors"`
	ImpactScope         string                 `json:"impact_scope"`
	Rationale           string                 `json:"rationale"`
	Explanation         string                 `json:"explanation"`
	KeyComponents       []string               `json:"key_components"`
	Challenges          []string               `json:"challenges"`
	KeyChallenges       []string               `json:"key_challenges"`
	RecommendedApproach string                 `json:"recommended_approach"`
}

// ParseResponse reads a scorer's JSON answer. The JSON may be bare, fenced
// in a ``` block or embedded in prose. Factor keys may be full names or
// the short aliases DC, IC, IB, DS and NR. The result is validated.
func ParseResponse(text string) (*Response, error) {
	raw, ok := extractJSON(text)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
	}

	var w wireResponse
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	factors, err := parseFactors(w.Factors)
	if err != nil {
		return nil, err
	}
	scope, err := scoring.ParseImpactScope(w.ImpactScope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	resp := &Response{
		Factors:             factors,
		ImpactScope:         scope,
		Rationale:           firstNonEmpty(w.Rationale, w.Explanation),
		KeyComponents:       w.KeyComponents,
		Challenges:          w.Challenges,
		RecommendedApproach: w.RecommendedApproach,
	}
	if len(resp.Challenges) == 0 {
		resp.Challenges = w.KeyChallenges
	}
	if err := Validate(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func parseFactors(in map[string]json.Number) (scoring.Factors, error) {
	var f scoring.Factors
	seen := make(map[scoring.Factor]bool)
	for key, num := range in {
		name, ok := scoring.ParseFactor(key)
		if !ok {
			continue
		}
		if seen[name] {
			return f, fmt.Errorf("%w: factor %s is given more than once", ErrMalformedResponse, name)
		}
		v, err := num.Float64()
		if err != nil || v != math.Trunc(v) {
			return f, fmt.Errorf("%w: factor %s is not an integer: %s", ErrMalformedResponse, key, num)
		}
		f = f.With(name, int(v))
		seen[name] = true
	}

	var missing []string
	for _, name := range scoring.AllFactors() {
		if !seen[name] {
			missing = append(missing, string(name))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return f, fmt.Errorf("%w: missing factors %s", ErrMalformedResponse, strings.Join(missing, ", "))
	}
	return f, nil
}

// extractJSON finds the JSON object in a model answer.
func extractJSON(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if m := fence.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
