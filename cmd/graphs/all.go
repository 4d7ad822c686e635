package main

import (
	"github.com/spf13/cobra"

	"github.com/couchcryptid/sounding-graphs/internal/domain"
	"github.com/couchcryptid/sounding-graphs/internal/source"
)

var allModels []string

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Process the current runs of every archived site",
	Long: `Processes every site in the archive for each model, with the current
time as the reference.`,
	Args: cobra.NoArgs,
	RunE: runAll,
}

func init() {
	allCmd.Flags().StringSliceVar(&allModels, "models", nil, "models to process (default all)")
	rootCmd.AddCommand(allCmd)
}

func runAll(cmd *cobra.Command, _ []string) error {
	models, err := parseModels(allModels)
	if err != nil {
		return err
	}
	return runOnce(cmd, source.AllSitesLoader{
		Connect:  archive(),
		Models:   models,
		DaysBack: cfg.DaysBack,
		Logger:   logger,
	})
}

func parseModels(names []string) ([]domain.Model, error) {
	models := make([]domain.Model, 0, len(names))
	for _, name := range names {
		m, err := domain.ParseModel(name)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, nil
}
