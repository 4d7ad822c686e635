package main

import (
	"github.com/spf13/cobra"

	"github.com/couchcryptid/sounding-graphs/internal/source"
)

var siteCmd = &cobra.Command{
	Use:   "site <site-id> <model>...",
	Short: "Process the current runs of one site",
	Example: `  graphs site kmso gfs
  graphs site kmso nam nam4km --days-back 4`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSite,
}

func init() {
	rootCmd.AddCommand(siteCmd)
}

func runSite(cmd *cobra.Command, args []string) error {
	models, err := parseModels(args[1:])
	if err != nil {
		return err
	}

	connect := archive()
	loaders := make([]source.Loader, 0, len(models))
	for _, m := range models {
		loaders = append(loaders, source.SiteLoader{
			Connect:  connect,
			SiteID:   args[0],
			Model:    m,
			DaysBack: cfg.DaysBack,
			Logger:   logger,
		})
	}
	return runOnce(cmd, loaders...)
}
