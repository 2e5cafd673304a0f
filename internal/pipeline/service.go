// Package pipeline runs one estimation: collect inputs, detect platforms,
// score each platform concurrently, then assemble the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/storysize/storysize/pkg/estimation"
	"github.com/storysize/storysize/pkg/extract"
	"github.com/storysize/storysize/pkg/impact"
	"github.com/storysize/storysize/pkg/platform"
	"github.com/storysize/storysize/pkg/scorer"
	"github.com/storysize/storysize/pkg/scoring"
)

const (
	DefaultConcurrency    = 4
	DefaultSoftDeadline   = 45 * time.Second
	DefaultMaxPromptChars = 30000
)

// Archiver stores a finished estimation and returns where it was written.
type Archiver interface {
	Save(ctx context.Context, est *estimation.Estimation) (string, error)
}

// ImpactAnalyzer estimates which parts of a platform's code a requirement
// touches. Implementations should return promptly once ctx is done; Run
// stops waiting for them at the soft deadline either way.
type ImpactAnalyzer interface {
	Analyze(ctx context.Context, platform, requirement string, sum *extract.CodeSummary) (*impact.Analysis, error)
}

// Config wires the collaborators of a Service. Detector, Scorer and
// Assembler are required; the rest are optional.
type Config struct {
	Detector  *platform.Detector
	Scorer    scorer.Scorer
	Assembler *estimation.Assembler

	Documents extract.DocumentCollector
	Code      extract.CodeSummarizer
	Impact    ImpactAnalyzer
	Archive   Archiver

	SignalKeywords    scoring.SignalKeywords
	DirectoryPatterns map[platform.Platform][]string
	MinDirectoryFiles int
	Factors           []scorer.FactorDefinition

	Concurrency    int
	SoftDeadline   time.Duration
	MaxPromptChars int

	Logger *zap.Logger
}

// Validate reports missing collaborators and out-of-range limits.
func (c Config) Validate() error {
	var errs []error
	if c.Detector == nil {
		errs = append(errs, errors.New("detector is required"))
	}
	if c.Scorer == nil {
		errs = append(errs, errors.New("scorer is required"))
	}
	if c.Assembler == nil {
		errs = append(errs, errors.New("assembler is required"))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency))
	}
	if c.SoftDeadline < 0 {
		errs = append(errs, fmt.Errorf("soft deadline must not be negative, got %s", c.SoftDeadline))
	}
	if c.MaxPromptChars < 0 {
		errs = append(errs, fmt.Errorf("max prompt chars must not be negative, got %d", c.MaxPromptChars))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}
	return nil
}

// Service orchestrates estimation runs. It holds no per-run state and is
// safe for concurrent use.
type Service struct {
	cfg    Config
	logger *zap.Logger
}

// New validates cfg and returns a Service.
func New(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.SoftDeadline == 0 {
		cfg.SoftDeadline = DefaultSoftDeadline
	}
	if cfg.MaxPromptChars == 0 {
		cfg.MaxPromptChars = DefaultMaxPromptChars
	}
	if len(cfg.Factors) == 0 {
		cfg.Factors = scorer.DefaultFactorDefinitions()
	}
	if cfg.DirectoryPatterns == nil {
		cfg.DirectoryPatterns = platform.DefaultDirectoryPatterns()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg, logger: logger}, nil
}

// Request describes one run.
type Request struct {
	// Text is requirement text supplied inline. It is prepended to any
	// documents collected from DocsDir.
	Text    string
	DocsDir string
	CodeDir string
	// Directories maps platforms to their code roots. With AutoDetectDirs
	// and no explicit entries, they are resolved below CodeDir.
	Directories    map[platform.Platform]string
	AutoDetectDirs bool
	Force          []platform.Platform
	// SkipImpact disables the deep impact analysis for this run.
	SkipImpact bool
}

// Inputs are the read-only values shared by every platform task.
type Inputs struct {
	Text        string
	Documents   *extract.Documents
	Code        *extract.CodeSummary
	Directories map[platform.Platform]string
	PerPlatform map[platform.Platform]*extract.CodeSummary
}

// Collect gathers documents and code summaries for req.
func (s *Service) Collect(ctx context.Context, req Request) (*Inputs, error) {
	in := &Inputs{
		Directories: req.Directories,
		PerPlatform: make(map[platform.Platform]*extract.CodeSummary),
	}
	parts := []string{strings.TrimSpace(req.Text)}

	if req.DocsDir != "" {
		if s.cfg.Documents == nil {
			return nil, errors.New("no document collector configured")
		}
		docs, err := s.cfg.Documents.Collect(ctx, req.DocsDir)
		if err != nil {
			return nil, fmt.Errorf("collect documents: %w", err)
		}
		in.Documents = docs
		parts = append(parts, docs.Text)
	}
	in.Text = strings.TrimSpace(strings.Join(parts, "\n\n"))

	if req.CodeDir != "" && req.AutoDetectDirs && len(in.Directories) == 0 {
		dirs, err := platform.ResolveDirectories(req.CodeDir, s.cfg.DirectoryPatterns, s.cfg.MinDirectoryFiles)
		if err != nil {
			return nil, fmt.Errorf("resolve platform directories: %w", err)
		}
		in.Directories = dirs
		for p, d := range dirs {
			s.logger.Debug("resolved platform directory", zap.String("platform", string(p)), zap.String("dir", d))
		}
	}

	if s.cfg.Code == nil {
		return in, nil
	}
	if req.CodeDir != "" {
		sum, err := s.cfg.Code.Summarize(ctx, req.CodeDir)
		if err != nil {
			return nil, fmt.Errorf("summarize code: %w", err)
		}
		in.Code = sum
	}
	for p, dir := range in.Directories {
		if dir == "" {
			continue
		}
		sum, err := s.cfg.Code.Summarize(ctx, dir)
		if err != nil {
			return nil, fmt.Errorf("summarize %s code: %w", p, err)
		}
		in.PerPlatform[p] = sum
	}
	return in, nil
}

// codeFor returns the summary a platform's scorer should see.
func (in *Inputs) codeFor(p platform.Platform) *extract.CodeSummary {
	if sum, ok := in.PerPlatform[p]; ok {
		return sum
	}
	return in.Code
}

func (in *Inputs) images() extract.ImageSummary {
	if in.Documents == nil {
		return extract.ImageSummary{}
	}
	return in.Documents.Images
}

// Detect runs platform detection over collected inputs.
func (s *Service) Detect(in *Inputs, force []platform.Platform) platform.Detection {
	return s.cfg.Detector.Detect(platform.Request{
		Text:        in.Text,
		Directories: in.Directories,
		Force:       force,
	})
}

// Run performs a full estimation.
func (s *Service) Run(ctx context.Context, req Request) (*estimation.Estimation, error) {
	start := time.Now()

	in, err := s.Collect(ctx, req)
	if err != nil {
		return nil, err
	}
	det := s.Detect(in, req.Force)
	signals := scoring.DetectSignals(in.Text, s.cfg.SignalKeywords)
	s.logger.Info("platforms detected",
		zap.Strings("platforms", platformNames(det.Platforms())),
		zap.String("reason", det.Reason),
	)

	// Impact analysis runs alongside scoring, bounded by the soft deadline.
	var softDone <-chan struct{}
	impactc := make(chan map[platform.Platform]*impact.Analysis, 1)
	if s.cfg.Impact != nil && !req.SkipImpact {
		softCtx, cancel := context.WithTimeout(ctx, s.cfg.SoftDeadline)
		defer cancel()
		softDone = softCtx.Done()
		go func() {
			impactc <- s.analyzeImpact(softCtx, det, in)
		}()
	}

	responses, failures := s.scoreAll(ctx, det, in)

	var impacts map[platform.Platform]*impact.Analysis
	if softDone != nil {
		select {
		case impacts = <-impactc:
		case <-softDone:
			select {
			case impacts = <-impactc:
			default:
				s.logger.Info("impact analysis abandoned at soft deadline", zap.Duration("soft_deadline", s.cfg.SoftDeadline))
			}
		}
	}

	est, err := s.cfg.Assembler.Assemble(estimation.Input{
		Detection: det,
		Responses: responses,
		Failures:  failures,
		Impact:    impacts,
		Signals:   signals,
	})
	if err != nil {
		return nil, fmt.Errorf("assemble estimation: %w", err)
	}

	s.logger.Info("estimation complete",
		zap.String("id", est.ID),
		zap.Int("points", est.StoryPoints),
		zap.Float64("confidence", est.Confidence),
		zap.Bool("partial", est.PartialFailure),
		zap.Duration("elapsed", time.Since(start)),
	)

	if s.cfg.Archive != nil {
		loc, err := s.cfg.Archive.Save(ctx, est)
		if err != nil {
			s.logger.Warn("archiving estimation failed", zap.String("id", est.ID), zap.Error(err))
		} else {
			s.logger.Info("estimation archived", zap.String("id", est.ID), zap.String("location", loc))
		}
	}
	return est, nil
}

type slot struct {
	resp *scorer.Response
	err  error
}

// scoreAll scores every detected platform concurrently. A failing platform
// never cancels its siblings; every result is recorded in its own slot.
func (s *Service) scoreAll(ctx context.Context, det platform.Detection, in *Inputs) (map[platform.Platform]*scorer.Response, map[platform.Platform]error) {
	slots := make([]slot, len(det.Requirements))
	text := scorer.Truncate(in.Text, s.cfg.MaxPromptChars)

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for i, r := range det.Requirements {
		g.Go(func() error {
			req := scorer.Request{
				Platform:     r.Platform,
				Scope:        r.Scope,
				Technologies: r.Technologies,
				DocumentText: text,
				Code:         in.codeFor(r.Platform),
				Images:       in.images(),
				Factors:      s.cfg.Factors,
			}
			resp, err := s.cfg.Scorer.Score(ctx, req)
			if err != nil {
				s.logger.Warn("platform unavailable", zap.String("platform", string(r.Platform)), zap.Error(err))
			}
			slots[i] = slot{resp: resp, err: err}
			return nil
		})
	}
	_ = g.Wait()

	responses := make(map[platform.Platform]*scorer.Response)
	failures := make(map[platform.Platform]error)
	for i, r := range det.Requirements {
		if slots[i].err != nil {
			failures[r.Platform] = slots[i].err
			continue
		}
		responses[r.Platform] = slots[i].resp
	}
	return responses, failures
}

func (s *Service) analyzeImpact(ctx context.Context, det platform.Detection, in *Inputs) map[platform.Platform]*impact.Analysis {
	out := make(map[platform.Platform]*impact.Analysis)
	for _, r := range det.Requirements {
		sum := in.codeFor(r.Platform)
		if sum == nil || sum.Files == 0 {
			continue
		}
		a, err := s.cfg.Impact.Analyze(ctx, string(r.Platform), in.Text, sum)
		if err != nil {
			s.logger.Info("impact analysis skipped", zap.String("platform", string(r.Platform)), zap.Error(err))
			if ctx.Err() != nil {
				break
			}
			continue
		}
		out[r.Platform] = a
	}
	return out
}

func platformNames(ps []platform.Platform) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}
