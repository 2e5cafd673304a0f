package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/storysize/storysize/internal/app"
	"github.com/storysize/storysize/internal/pipeline"
	"github.com/storysize/storysize/pkg/estimation"
	"github.com/storysize/storysize/pkg/platform"
	"github.com/storysize/storysize/pkg/surface"
)

type estimateOpts struct {
	text      string
	textFile  string
	docsDir   string
	codeDir   string
	codePaths []string
	languages []string
	dirs      map[string]string
	autoDirs  bool
	platforms string
	offline   bool
	noImpact  bool
	format    string
	output    string
	archive   string
}

func newEstimateCmd() *cobra.Command {
	var opts estimateOpts

	cmd := &cobra.Command{
		Use:   "estimate [text]",
		Short: "Estimate story points and hours for a work item",
		Long: `Collects requirement text, documents and code, detects the affected
platforms, scores each platform concurrently and prints the combined estimate.
A platform whose scorer fails twice is reported as unavailable and the
estimate is marked partial.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.text = firstNonEmpty(opts.text, args[0])
			}
			return runEstimate(cmd.Context(), cmd.OutOrStdout(), cmd.InOrStdin(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.text, "text", "", "Requirement text")
	f.StringVarP(&opts.textFile, "file", "f", "", "Read requirement text from a file (- for stdin)")
	f.StringVar(&opts.docsDir, "docs", "", "Directory of requirement documents (.md, .txt)")
	f.StringVar(&opts.codeDir, "code", "", "Code base root for metrics and impact analysis")
	f.StringSliceVar(&opts.codePaths, "paths", nil, "Comma-separated subpaths of each code directory to summarize")
	f.StringSliceVar(&opts.languages, "languages", nil, "Comma-separated languages to count, e.g. csharp,typescript")
	f.StringToStringVar(&opts.dirs, "dir", nil, "Platform code directory, e.g. --dir frontend=web/ (repeatable)")
	f.BoolVar(&opts.autoDirs, "auto-dirs", false, "Resolve platform directories below --code")
	f.StringVarP(&opts.platforms, "platforms", "p", "", "Comma-separated platforms to estimate, skipping detection")
	f.BoolVar(&opts.offline, "offline", false, "Use the heuristic scorer instead of the LLM")
	f.BoolVar(&opts.noImpact, "no-impact", false, "Skip the deep impact analysis")
	f.StringVarP(&opts.format, "format", "o", surface.FormatTerminal, "Output format: "+strings.Join(surface.Formats(), ", "))
	f.StringVar(&opts.output, "output", "", "Write the report to a file instead of stdout")
	f.StringVar(&opts.archive, "archive", "", "Also archive JSON and Markdown reports to a directory, s3:// or gs:// URL")

	return cmd
}

func (o estimateOpts) request(stdin io.Reader) (pipeline.Request, error) {
	text := o.text
	if o.textFile != "" {
		var data []byte
		var err error
		if o.textFile == "-" {
			data, err = io.ReadAll(stdin)
		} else {
			data, err = os.ReadFile(o.textFile)
		}
		if err != nil {
			return pipeline.Request{}, fmt.Errorf("reading requirement text: %w", err)
		}
		text = strings.TrimSpace(text + "\n\n" + string(data))
	}
	if strings.TrimSpace(text) == "" && o.docsDir == "" {
		return pipeline.Request{}, errors.New("no requirement given: pass text, --file or --docs")
	}

	force, err := platform.ParseList(o.platforms)
	if err != nil {
		return pipeline.Request{}, err
	}
	dirs := make(map[platform.Platform]string, len(o.dirs))
	for k, v := range o.dirs {
		p, err := platform.Parse(k)
		if err != nil {
			return pipeline.Request{}, fmt.Errorf("--dir %s: %w", k, err)
		}
		dirs[p] = v
	}
	if o.autoDirs && o.codeDir == "" {
		return pipeline.Request{}, errors.New("--auto-dirs requires --code")
	}

	return pipeline.Request{
		Text:           text,
		DocsDir:        o.docsDir,
		CodeDir:        o.codeDir,
		Directories:    dirs,
		AutoDetectDirs: o.autoDirs,
		Force:          force,
		SkipImpact:     o.noImpact,
	}, nil
}

func runEstimate(ctx context.Context, stdout io.Writer, stdin io.Reader, opts estimateOpts) error {
	renderer, err := surface.ForFormat(opts.format)
	if err != nil {
		return err
	}
	req, err := opts.request(stdin)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	workspace, _ := os.Getwd()
	c, err := app.Build(ctx, cfg, app.Options{
		Offline:    opts.offline,
		ArchiveURL: opts.archive,
		Workspace:  workspace,
		CodePaths:  opts.codePaths,
		Languages:  opts.languages,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Estimating...\n")
	est, err := c.Service.Run(ctx, req)
	if err != nil {
		if errors.Is(err, estimation.ErrNoPlatformScored) {
			return fmt.Errorf("no platform could be scored; check the scorer configuration or retry with --offline: %w", err)
		}
		return err
	}
	if est.PartialFailure {
		fmt.Fprintf(os.Stderr, "Warning: %d platform(s) unavailable, estimate is partial\n", len(est.Unavailable))
	}

	if opts.output == "" {
		return renderer.Render(stdout, est)
	}
	out, err := os.Create(opts.output)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	if err := renderer.Render(out, est); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Report written: %s\n", opts.output)
	return nil
}
