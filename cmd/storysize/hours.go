package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/storysize/storysize/pkg/hours"
	"github.com/storysize/storysize/pkg/surface"
)

func newHoursCmd() *cobra.Command {
	var (
		model  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "hours <points>",
		Short: "Convert story points to hour ranges",
		Long: `Prints the hour range for a Fibonacci story point value under every model
(linear, exponential, power, fibonacci), plus the recommended consensus range.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid story points %q", args[0])
			}
			return runHours(cmd.OutOrStdout(), points, model, asJSON)
		},
	}

	cmd.Flags().StringVarP(&model, "model", "m", "", "Only show this model (default: all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	return cmd
}

func runHours(w io.Writer, points int, model string, asJSON bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	est, err := hours.NewEstimator(cfg.HoursParams())
	if err != nil {
		return err
	}

	all, err := est.EstimateAll(points)
	if err != nil {
		return err
	}
	if model != "" {
		if _, err := est.Estimate(points, model); err != nil {
			return err
		}
		for _, m := range all {
			if m.Model == model {
				all = []hours.ModelEstimate{m}
				break
			}
		}
	}
	rec, err := est.Recommended(points)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"points": points, "models": all, "recommended": rec})
	}
	surface.RenderHours(w, points, all, rec)
	return nil
}
