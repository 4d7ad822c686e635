package main

import (
	"github.com/spf13/cobra"

	"github.com/couchcryptid/sounding-graphs/internal/config"
	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/source"
)

var planCmd = &cobra.Command{
	Use:   "plan <file>",
	Short: "Process the archive and file jobs of a run plan",
	Long: `Processes a TOML or YAML run plan. Archive jobs share the plan's reference
time, so a past event can be replayed; file jobs read soundings from disk.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	plan, err := config.LoadPlan(args[0])
	if err != nil {
		return err
	}
	loaders, err := planLoaders(plan, archive())
	if err != nil {
		return err
	}
	logger.Info("running plan", "path", args[0], "archive_jobs", len(plan.Archive), "file_jobs", len(plan.Files))
	return runOnce(cmd, loaders...)
}

func planLoaders(plan *config.Plan, connect source.ConnectFunc) ([]source.Loader, error) {
	ref := plan.Reference
	if ref.IsZero() {
		ref = domain.Clock().Now()
	}
	daysBack := cfg.DaysBack
	if plan.DaysBack != nil {
		daysBack = *plan.DaysBack
	}

	loaders := make([]source.Loader, 0, len(plan.Archive)+len(plan.Files))
	for _, job := range plan.Archive {
		model, err := domain.ParseModel(job.Model)
		if err != nil {
			return nil, err
		}
		loaders = append(loaders, source.RangeLoader{
			Connect:  connect,
			SiteID:   job.Site,
			Model:    model,
			Ref:      ref,
			DaysBack: daysBack,
			Logger:   logger,
		})
	}
	for _, job := range plan.Files {
		loaders = append(loaders, source.FileLoader{
			Site:  domain.Site{ID: job.Site},
			Model: job.Model,
			Start: job.Start,
			End:   job.End,
			Paths: job.Paths,
		})
	}
	return loaders, nil
}
