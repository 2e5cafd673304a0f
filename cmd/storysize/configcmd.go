package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/storysize/storysize/pkg/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or check configuration",
	}

	var (
		force  bool
		asTOML bool
	)
	initCmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a sample .storysize/config.yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			name := "config.yaml"
			if asTOML {
				name = "config.toml"
			}
			path := filepath.Join(dir, ".storysize", name)
			if err := config.WriteSample(path, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config written: %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	initCmd.Flags().BoolVar(&asTOML, "toml", false, "Write TOML instead of YAML")

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load the config and report every problem",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}

func runValidate(w io.Writer) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Fprintln(w, "config OK")
	return nil
}
