// Package app builds a ready-to-run estimation service from configuration.
// The CLI and the daemon share it.
package app

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/storysize/storysize/internal/archive"
	"github.com/storysize/storysize/internal/pipeline"
	"github.com/storysize/storysize/pkg/config"
	"github.com/storysize/storysize/pkg/estimation"
	"github.com/storysize/storysize/pkg/extract/code"
	"github.com/storysize/storysize/pkg/extract/docs"
	"github.com/storysize/storysize/pkg/hours"
	"github.com/storysize/storysize/pkg/impact"
	"github.com/storysize/storysize/pkg/platform"
	"github.com/storysize/storysize/pkg/scorer"
)

// Options adjust how components are built.
type Options struct {
	// Offline forces the heuristic scorer regardless of configuration.
	Offline bool
	// ArchiveURL overrides the configured archive destination. Archiving
	// is enabled when either this or the config enables it.
	ArchiveURL string
	// Workspace anchors the default local archive directory.
	Workspace string
	// CodePaths and Languages narrow code summaries to subpaths of each
	// code dir and to the named languages.
	CodePaths []string
	Languages []string
	Logger    *zap.Logger
}

// Components are the long-lived collaborators of a process.
type Components struct {
	Service  *pipeline.Service
	Detector *platform.Detector
	Hours    *hours.Estimator
	Config   *config.Config
}

// Build validates cfg and wires every component.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Components, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	summarizer := code.NewSummarizer(logger, code.WithPaths(opts.CodePaths...), code.WithLanguages(opts.Languages...))
	if err := summarizer.Validate(); err != nil {
		return nil, err
	}

	sc, err := NewScorer(ctx, cfg, opts.Offline, logger)
	if err != nil {
		return nil, err
	}

	mapper, err := cfg.Mapper()
	if err != nil {
		return nil, fmt.Errorf("build mapper: %w", err)
	}
	est, err := hours.NewEstimator(cfg.HoursParams())
	if err != nil {
		return nil, fmt.Errorf("build hours estimator: %w", err)
	}
	asm, err := estimation.NewAssembler(estimation.Settings{
		Mapper:      mapper,
		Hours:       est,
		Integration: cfg.IntegrationParams(),
		Risk:        cfg.RiskParams(),
		Confidence:  cfg.ConfidencePolicy(),
	})
	if err != nil {
		return nil, fmt.Errorf("build assembler: %w", err)
	}

	det := platform.NewDetector(cfg.Keywords())
	pc := pipeline.Config{
		Detector:          det,
		Scorer:            sc,
		Assembler:         asm,
		Documents:         docs.NewCollector(logger),
		Code:              summarizer,
		SignalKeywords:    cfg.SignalKeywords(),
		DirectoryPatterns: cfg.DirectoryPatterns(),
		MinDirectoryFiles: cfg.Detection.MinDirectoryFiles,
		Concurrency:       cfg.Pipeline.Concurrency,
		SoftDeadline:      cfg.SoftDeadline(),
		MaxPromptChars:    cfg.Pipeline.MaxPromptChars,
		Logger:            logger,
	}
	if cfg.Pipeline.ImpactAnalysis {
		pc.Impact = impact.NewAnalyzer(logger)
	}

	if opts.ArchiveURL != "" || cfg.Archive.Enabled {
		dest := opts.ArchiveURL
		if dest == "" {
			dest = cfg.ArchiveURL(opts.Workspace)
		}
		store, err := archive.Open(ctx, dest)
		if err != nil {
			return nil, err
		}
		pc.Archive = archive.New(store,
			archive.WithCompression(cfg.Archive.Compress),
			archive.WithLogger(logger),
		)
	}

	svc, err := pipeline.New(pc)
	if err != nil {
		return nil, err
	}
	return &Components{Service: svc, Detector: det, Hours: est, Config: cfg}, nil
}

// NewScorer returns the configured factor scorer wrapped with timeouts,
// retries and the optional rate limit.
func NewScorer(ctx context.Context, cfg *config.Config, offline bool, logger *zap.Logger) (scorer.Scorer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var base scorer.Scorer
	switch {
	case offline || cfg.LLM.Provider == config.ProviderHeuristic:
		logger.Debug("using heuristic scorer")
		base = scorer.NewHeuristicScorer()
	case cfg.LLM.Provider == config.ProviderGemini:
		key := os.Getenv(cfg.LLM.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("%s is not set (use --offline for the heuristic scorer)", cfg.LLM.APIKeyEnv)
		}
		gen, err := scorer.NewGenAIGenerator(ctx, scorer.GenAIConfig{
			APIKey:          key,
			Model:           cfg.LLM.Model,
			Temperature:     cfg.LLM.Temperature,
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		})
		if err != nil {
			return nil, err
		}
		logger.Debug("using gemini scorer", zap.String("model", cfg.LLM.Model))
		base = scorer.NewLLMScorer(gen, logger)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}

	policy := scorer.DefaultRetryPolicy()
	policy.Timeout = cfg.CallTimeout()
	policy.MaxAttempts = cfg.LLM.MaxAttempts
	policy.InitialDelay = cfg.RetryDelay()

	var limiter *rate.Limiter
	if rpm := cfg.LLM.RequestsPerMinute; rpm > 0 {
		limiter = rate.NewLimiter(rate.Limit(rpm/60), 1)
	}
	return scorer.NewResilient(base, policy, limiter, logger), nil
}
