package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/sounding-graphs/internal/config"
	"github.com/couchcryptid/sounding-graphs/internal/observability"
)

var (
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics

	daysBackFlag int
	outputFlag   string
)

var rootCmd = &cobra.Command{
	Use:   "graphs",
	Short: "Plot fire weather parameters from archived model soundings",
	Long: `Loads model soundings from the archive or from files, derives hot-dry-windy
and energy parameters for every profile, merges each site's runs into a best
estimate series, and writes text products and plots.

Settings come from the environment; see the README for the variables.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().IntVar(&daysBackFlag, "days-back", 0, "days of history before the reference time (overrides DAYS_BACK)")
	rootCmd.PersistentFlags().StringVar(&outputFlag, "output", "", "output mode, files or gnuplot (overrides OUTPUT_MODE)")
}

func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.Load()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("days-back") {
		c.DaysBack = daysBackFlag
	}
	if cmd.Flags().Changed("output") {
		c.OutputMode = outputFlag
	}

	cfg = c
	logger = observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics = observability.NewMetrics()
	return nil
}
