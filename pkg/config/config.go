// Package config handles loading and validating storysize configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/storysize/storysize/pkg/estimation"
	"github.com/storysize/storysize/pkg/hours"
	"github.com/storysize/storysize/pkg/platform"
	"github.com/storysize/storysize/pkg/scoring"
)

// Config is the top-level configuration. It is built once at startup and
// treated as read-only afterwards.
type Config struct {
	LLM             LLMConfig                   `yaml:"llm" toml:"llm"`
	FactorWeights   map[string]float64          `yaml:"weights" toml:"weights"`
	Mapping         scoring.Scale               `yaml:"mapping" toml:"mapping"`
	PlatformMapping map[string]scoring.Scale    `yaml:"platform_mapping,omitempty" toml:"platform_mapping,omitempty"`
	Integration     scoring.IntegrationParams   `yaml:"integration" toml:"integration"`
	Risk            scoring.RiskParams          `yaml:"risk" toml:"risk"`
	Confidence      estimation.ConfidencePolicy `yaml:"confidence" toml:"confidence"`
	Hours           HoursConfig                 `yaml:"hours_estimation" toml:"hours_estimation"`
	Detection       DetectionConfig             `yaml:"detection" toml:"detection"`
	Signals         scoring.SignalKeywords      `yaml:"signals" toml:"signals"`
	Pipeline        PipelineConfig              `yaml:"pipeline" toml:"pipeline"`
	Archive         ArchiveConfig               `yaml:"archive" toml:"archive"`

	// keys that named the same factor or platform twice
	duplicates []string
}

// LLMConfig selects and tunes the factor scorer.
type LLMConfig struct {
	Provider          string  `yaml:"provider" toml:"provider"` // gemini or heuristic
	Model             string  `yaml:"model" toml:"model"`
	APIKeyEnv         string  `yaml:"api_key_env" toml:"api_key_env"`
	Temperature       float32 `yaml:"temperature" toml:"temperature"`
	MaxOutputTokens   int32   `yaml:"max_output_tokens" toml:"max_output_tokens"`
	Timeout           int     `yaml:"timeout" toml:"timeout"` // seconds per call
	MaxAttempts       int     `yaml:"max_attempts" toml:"max_attempts"`
	RetryDelayMs      int     `yaml:"retry_delay_ms" toml:"retry_delay_ms"`
	RequestsPerMinute float64 `yaml:"requests_per_minute" toml:"requests_per_minute"` // 0 = unlimited
}

const (
	ProviderGemini    = "gemini"
	ProviderHeuristic = "heuristic"
)

// HoursConfig holds the hours model parameters.
type HoursConfig struct {
	DefaultModel         string                 `yaml:"default_model" toml:"default_model"`
	BaseHoursPerPoint    float64                `yaml:"base_hours_per_point" toml:"base_hours_per_point"`
	UncertaintyFactorMin float64                `yaml:"uncertainty_factor_min" toml:"uncertainty_factor_min"`
	UncertaintyFactorMax float64                `yaml:"uncertainty_factor_max" toml:"uncertainty_factor_max"`
	ExponentialK         float64                `yaml:"exponential_k" toml:"exponential_k"`
	PowerA               float64                `yaml:"power_a" toml:"power_a"`
	PowerB               float64                `yaml:"power_b" toml:"power_b"`
	FibonacciRanges      map[string]HoursTriple `yaml:"fibonacci_ranges" toml:"fibonacci_ranges"`
}

// HoursTriple is a configured (min, expected, max) range.
type HoursTriple struct {
	Min      float64 `yaml:"min" toml:"min"`
	Expected float64 `yaml:"expected" toml:"expected"`
	Max      float64 `yaml:"max" toml:"max"`
}

// DetectionConfig holds platform keyword families and directory patterns.
type DetectionConfig struct {
	Keywords          map[string][]string `yaml:"keywords" toml:"keywords"`
	DirectoryPatterns map[string][]string `yaml:"directory_patterns" toml:"directory_patterns"`
	MinDirectoryFiles int                 `yaml:"min_directory_files" toml:"min_directory_files"`
}

// PipelineConfig controls run orchestration.
type PipelineConfig struct {
	Concurrency    int  `yaml:"concurrency" toml:"concurrency"`
	SoftDeadline   int  `yaml:"soft_deadline" toml:"soft_deadline"` // seconds
	MaxPromptChars int  `yaml:"max_prompt_chars" toml:"max_prompt_chars"`
	ImpactAnalysis bool `yaml:"impact_analysis" toml:"impact_analysis"`
}

// ArchiveConfig controls where finished estimations are written.
type ArchiveConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	URL      string `yaml:"url" toml:"url"` // directory, s3://bucket/prefix or gs://bucket/prefix
	Compress bool   `yaml:"compress" toml:"compress"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	hp := hours.DefaultParams()
	return &Config{
		LLM: LLMConfig{
			Provider:        ProviderGemini,
			Model:           "gemini-2.5-flash",
			APIKeyEnv:       "GEMINI_API_KEY",
			Temperature:     0.2,
			MaxOutputTokens: 2048,
			Timeout:         30,
			MaxAttempts:     2,
			RetryDelayMs:    500,
		},
		FactorWeights: weightsToConfig(scoring.DefaultWeights()),
		Mapping:       scoring.DefaultScale(),
		Integration:   scoring.DefaultIntegrationParams(),
		Risk:          scoring.DefaultRiskParams(),
		Confidence:    estimation.DefaultConfidencePolicy(),
		Hours: HoursConfig{
			DefaultModel:         hours.ModelExponential,
			BaseHoursPerPoint:    hp.BaseHoursPerPoint,
			UncertaintyFactorMin: hp.UncertaintyFactorMin,
			UncertaintyFactorMax: hp.UncertaintyFactorMax,
			ExponentialK:         hp.ExponentialK,
			PowerA:               hp.PowerA,
			PowerB:               hp.PowerB,
			FibonacciRanges:      rangesToConfig(hp.FibonacciRanges),
		},
		Detection: DetectionConfig{
			Keywords:          keywordsToConfig(platform.DefaultKeywords()),
			DirectoryPatterns: patternsToConfig(platform.DefaultDirectoryPatterns()),
			MinDirectoryFiles: 3,
		},
		Signals: scoring.DefaultSignalKeywords(),
		Pipeline: PipelineConfig{
			Concurrency:    4,
			SoftDeadline:   45,
			MaxPromptChars: 30000,
			ImpactAnalysis: true,
		},
	}
}

// Load reads a config file from the given path. Files ending in .toml are
// parsed as TOML, everything else as YAML. If the file does not exist, it
// returns the default config. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Maps keyed by factor or platform are replaced, not merged, so that
	// aliases in the file cannot collide with default keys.
	cfg.FactorWeights = nil
	cfg.Detection.Keywords = nil
	cfg.Detection.DirectoryPatterns = nil

	if isTOML(path) {
		err = toml.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// normalize canonicalizes factor and platform keys and fills in defaults
// for anything the file left out. Unknown keys are kept for Validate.
func (c *Config) normalize() {
	def := DefaultConfig()
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Hours.DefaultModel = strings.ToLower(strings.TrimSpace(c.Hours.DefaultModel))

	c.FactorWeights = canonical(c.FactorWeights, def.FactorWeights, func(k string) (string, bool) {
		f, ok := scoring.ParseFactor(k)
		return string(f), ok
	}, &c.duplicates)
	c.Detection.Keywords = canonical(c.Detection.Keywords, def.Detection.Keywords, platformKey, &c.duplicates)
	c.Detection.DirectoryPatterns = canonical(c.Detection.DirectoryPatterns, def.Detection.DirectoryPatterns, platformKey, &c.duplicates)
	if c.PlatformMapping != nil {
		c.PlatformMapping = canonical(c.PlatformMapping, nil, platformKey, &c.duplicates)
	}
}

func platformKey(k string) (string, bool) {
	p, err := platform.Parse(k)
	return string(p), err == nil
}

// canonical rewrites the keys of in through parse and adds every default
// key that is still missing.
func canonical[V any](in, defaults map[string]V, parse func(string) (string, bool), dups *[]string) map[string]V {
	out := make(map[string]V, len(in)+len(defaults))
	for k, v := range in {
		key := strings.ToLower(strings.TrimSpace(k))
		if name, ok := parse(key); ok {
			key = name
		}
		if _, seen := out[key]; seen {
			*dups = append(*dups, key)
		}
		out[key] = v
	}
	for k, v := range defaults {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}

// sampleHeader is written at the top of YAML samples.
const sampleHeader = `# storysize configuration.
# The API key is read from the environment variable named by llm.api_key_env.
`

// WriteSample writes the default configuration to path, as TOML when the
// path ends in .toml and YAML otherwise. An existing file is only replaced
// when overwrite is set.
func WriteSample(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(DefaultConfig())
	} else {
		data, err = yaml.Marshal(DefaultConfig())
		data = append([]byte(sampleHeader), data...)
	}
	if err != nil {
		return fmt.Errorf("encoding sample config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// configNames are checked in order inside each .storysize directory.
var configNames = []string{"config.yaml", "config.yml", "config.toml"}

// FindConfigFile looks for .storysize/config.{yaml,yml,toml} in the given
// directory and its parents, returning the path if found, or "" if not.
func FindConfigFile(dir string) string {
	for {
		for _, name := range configNames {
			candidate := filepath.Join(dir, ".storysize", name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// CacheDir returns the cache directory for a given workspace path.
// Uses ~/.cache/storysize/<slug>/ to avoid polluting the repo.
func CacheDir(workspacePath string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".cache", "storysize", repoSlug(workspacePath))
}

// EstimatesDir is the default local archive location for a workspace.
func EstimatesDir(workspacePath string) string {
	return filepath.Join(CacheDir(workspacePath), "estimates")
}

// repoSlug creates a filesystem-safe identifier from the last two
// components of a workspace path.
func repoSlug(workspacePath string) string {
	abs, err := filepath.Abs(workspacePath)
	if err != nil {
		abs = workspacePath
	}
	return filepath.Base(filepath.Dir(abs)) + "_" + filepath.Base(abs)
}

// ArchiveURL returns the configured archive destination, falling back to
// the workspace cache directory.
func (c *Config) ArchiveURL(workspacePath string) string {
	if c.Archive.URL != "" {
		return c.Archive.URL
	}
	return EstimatesDir(workspacePath)
}

// Duration helpers.

func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.LLM.Timeout) * time.Second
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.LLM.RetryDelayMs) * time.Millisecond
}

func (c *Config) SoftDeadline() time.Duration {
	return time.Duration(c.Pipeline.SoftDeadline) * time.Second
}

// Converters. They assume Validate has passed; unknown names are skipped.

// Weights returns the factor weights keyed by canonical factor.
func (c *Config) Weights() scoring.Weights {
	w := make(scoring.Weights, len(c.FactorWeights))
	for k, v := range c.FactorWeights {
		if f, ok := scoring.ParseFactor(k); ok {
			w[f] = v
		}
	}
	return w
}

// Scale returns the base story point breakpoints.
func (c *Config) Scale() scoring.Scale { return c.Mapping }

// PlatformScales returns per-platform breakpoint overrides.
func (c *Config) PlatformScales() map[platform.Platform]scoring.Scale {
	out := make(map[platform.Platform]scoring.Scale, len(c.PlatformMapping))
	for k, v := range c.PlatformMapping {
		if p, err := platform.Parse(k); err == nil {
			out[p] = v
		}
	}
	return out
}

// Mapper builds the story point mapper including platform overrides.
func (c *Config) Mapper() (*scoring.Mapper, error) {
	m, err := scoring.NewMapper(c.Weights(), c.Scale())
	if err != nil {
		return nil, err
	}
	for p, s := range c.PlatformScales() {
		if m, err = m.WithPlatformScale(string(p), s); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// HoursParams returns the hours model parameters.
func (c *Config) HoursParams() hours.Params {
	h := c.Hours
	p := hours.Params{
		BaseHoursPerPoint:    h.BaseHoursPerPoint,
		UncertaintyFactorMin: h.UncertaintyFactorMin,
		UncertaintyFactorMax: h.UncertaintyFactorMax,
		ExponentialK:         h.ExponentialK,
		PowerA:               h.PowerA,
		PowerB:               h.PowerB,
		FibonacciRanges:      make(map[int]hours.HoursRange, len(h.FibonacciRanges)),
	}
	for k, r := range h.FibonacciRanges {
		sp, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			continue
		}
		p.FibonacciRanges[sp] = hours.HoursRange{Min: r.Min, Expected: r.Expected, Max: r.Max}
	}
	return p
}

// IntegrationParams returns the integration multiplier tuning.
func (c *Config) IntegrationParams() scoring.IntegrationParams { return c.Integration }

// RiskParams returns the risk multiplier tuning.
func (c *Config) RiskParams() scoring.RiskParams { return c.Risk }

// ConfidencePolicy returns the confidence policy.
func (c *Config) ConfidencePolicy() estimation.ConfidencePolicy { return c.Confidence }

// SignalKeywords returns the context signal keyword lists.
func (c *Config) SignalKeywords() scoring.SignalKeywords { return c.Signals }

// Keywords returns the platform keyword families.
func (c *Config) Keywords() platform.Keywords {
	out := make(platform.Keywords, len(c.Detection.Keywords))
	for k, v := range c.Detection.Keywords {
		if p, err := platform.Parse(k); err == nil {
			out[p] = v
		}
	}
	return out
}

// DirectoryPatterns returns the per-platform directory candidates.
func (c *Config) DirectoryPatterns() map[platform.Platform][]string {
	out := make(map[platform.Platform][]string, len(c.Detection.DirectoryPatterns))
	for k, v := range c.Detection.DirectoryPatterns {
		if p, err := platform.Parse(k); err == nil {
			out[p] = v
		}
	}
	return out
}

func weightsToConfig(w scoring.Weights) map[string]float64 {
	out := make(map[string]float64, len(w))
	for f, v := range w {
		out[string(f)] = v
	}
	return out
}

func rangesToConfig(in map[int]hours.HoursRange) map[string]HoursTriple {
	out := make(map[string]HoursTriple, len(in))
	for sp, r := range in {
		out[strconv.Itoa(sp)] = HoursTriple{Min: r.Min, Expected: r.Expected, Max: r.Max}
	}
	return out
}

func keywordsToConfig(kw platform.Keywords) map[string][]string {
	out := make(map[string][]string, len(kw))
	for p, v := range kw {
		out[string(p)] = v
	}
	return out
}

func patternsToConfig(in map[platform.Platform][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for p, v := range in {
		out[string(p)] = v
	}
	return out
}
