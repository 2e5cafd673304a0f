package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/storysize/storysize/pkg/platform"
	"github.com/storysize/storysize/pkg/surface"
)

func newDetectCmd() *cobra.Command {
	var (
		dirs     map[string]string
		codeDir  string
		autoDirs bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "detect [text]",
		Short: "Show which platforms a requirement touches",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := ""
			if len(args) == 1 {
				text = args[0]
			}
			return runDetect(cmd.OutOrStdout(), text, dirs, codeDir, autoDirs, asJSON)
		},
	}

	cmd.Flags().StringToStringVar(&dirs, "dir", nil, "Platform code directory, e.g. --dir mobile=app/ (repeatable)")
	cmd.Flags().StringVar(&codeDir, "code", "", "Code base root for --auto-dirs")
	cmd.Flags().BoolVar(&autoDirs, "auto-dirs", false, "Resolve platform directories below --code")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}

func runDetect(w io.Writer, text string, dirFlags map[string]string, codeDir string, autoDirs, asJSON bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	dirs := make(map[platform.Platform]string, len(dirFlags))
	for k, v := range dirFlags {
		p, err := platform.Parse(k)
		if err != nil {
			return fmt.Errorf("--dir %s: %w", k, err)
		}
		dirs[p] = v
	}
	if autoDirs && codeDir != "" && len(dirs) == 0 {
		if dirs, err = platform.ResolveDirectories(codeDir, cfg.DirectoryPatterns(), cfg.Detection.MinDirectoryFiles); err != nil {
			return fmt.Errorf("resolve platform directories: %w", err)
		}
	}

	det := platform.NewDetector(cfg.Keywords()).Detect(platform.Request{Text: text, Directories: dirs})
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(det)
	}
	surface.RenderDetection(w, det)
	return nil
}
