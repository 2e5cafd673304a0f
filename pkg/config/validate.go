package config

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/storysize/storysize/pkg/hours"
	"github.com/storysize/storysize/pkg/platform"
	"github.com/storysize/storysize/pkg/scoring"
)

// Error is a single configuration problem.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Validate checks the whole configuration and returns every problem found,
// joined with errors.Join. Each joined error is a *Error.
func (c *Config) Validate() error {
	var errs []error
	add := func(field string, format string, args ...any) {
		errs = append(errs, &Error{Field: field, Message: fmt.Sprintf(format, args...)})
	}
	wrap := func(field string, err error) {
		if err != nil {
			errs = append(errs, &Error{Field: field, Message: err.Error()})
		}
	}

	dups := append([]string(nil), c.duplicates...)
	sort.Strings(dups)
	for _, d := range dups {
		add("keys", "%q is given more than once (aliases count as the same key)", d)
	}

	switch c.LLM.Provider {
	case ProviderGemini:
		if c.LLM.APIKeyEnv == "" {
			add("llm.api_key_env", "must name the environment variable holding the API key")
		}
	case ProviderHeuristic:
	default:
		add("llm.provider", "unknown provider %q (valid: %s, %s)", c.LLM.Provider, ProviderGemini, ProviderHeuristic)
	}
	if c.LLM.Timeout <= 0 {
		add("llm.timeout", "must be positive, got %d", c.LLM.Timeout)
	}
	if c.LLM.MaxAttempts < 1 {
		add("llm.max_attempts", "must be at least 1, got %d", c.LLM.MaxAttempts)
	}
	if c.LLM.RetryDelayMs < 0 {
		add("llm.retry_delay_ms", "must not be negative, got %d", c.LLM.RetryDelayMs)
	}
	if math.IsNaN(float64(c.LLM.Temperature)) || c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		add("llm.temperature", "must be in [0, 2], got %g", c.LLM.Temperature)
	}
	if math.IsNaN(c.LLM.RequestsPerMinute) || math.IsInf(c.LLM.RequestsPerMinute, 0) || c.LLM.RequestsPerMinute < 0 {
		add("llm.requests_per_minute", "must be a finite non-negative number, got %g", c.LLM.RequestsPerMinute)
	}

	for _, k := range sortedKeys(c.FactorWeights) {
		if _, ok := scoring.ParseFactor(k); !ok {
			add("weights."+k, "unknown factor")
		}
	}
	wrap("weights", c.Weights().Validate())
	wrap("mapping", c.Mapping.Validate())
	for _, k := range sortedKeys(c.PlatformMapping) {
		if _, err := platform.Parse(k); err != nil {
			add("platform_mapping."+k, "unknown platform")
			continue
		}
		wrap("platform_mapping."+k, c.PlatformMapping[k].Validate())
	}
	wrap("integration", c.Integration.Validate())
	wrap("risk", c.Risk.Validate())
	wrap("confidence", c.Confidence.Validate())

	if _, ok := hours.Lookup(c.Hours.DefaultModel); !ok {
		add("hours_estimation.default_model", "unknown model %q (available: %v)", c.Hours.DefaultModel, hours.ModelNames())
	}
	for _, k := range sortedKeys(c.Hours.FibonacciRanges) {
		if _, err := strconv.Atoi(k); err != nil {
			add("hours_estimation.fibonacci_ranges."+k, "key must be a story point value")
		}
	}
	wrap("hours_estimation", c.HoursParams().Validate())

	for _, k := range sortedKeys(c.Detection.Keywords) {
		if _, err := platform.Parse(k); err != nil {
			add("detection.keywords."+k, "unknown platform")
		}
	}
	for _, k := range sortedKeys(c.Detection.DirectoryPatterns) {
		if _, err := platform.Parse(k); err != nil {
			add("detection.directory_patterns."+k, "unknown platform")
		}
	}
	if c.Detection.MinDirectoryFiles < 0 {
		add("detection.min_directory_files", "must not be negative, got %d", c.Detection.MinDirectoryFiles)
	}

	if c.Pipeline.Concurrency < 1 {
		add("pipeline.concurrency", "must be at least 1, got %d", c.Pipeline.Concurrency)
	}
	if c.Pipeline.SoftDeadline <= 0 {
		add("pipeline.soft_deadline", "must be positive, got %d", c.Pipeline.SoftDeadline)
	}
	if c.Pipeline.MaxPromptChars < 1000 {
		add("pipeline.max_prompt_chars", "must be at least 1000, got %d", c.Pipeline.MaxPromptChars)
	}

	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
