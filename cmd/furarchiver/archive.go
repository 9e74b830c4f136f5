package main

import (
	"github.com/spf13/cobra"

	"furarchiver/pkg/logger"
)

// archiveCmd runs the full pipeline end to end
var archiveCmd = &cobra.Command{
	Use:   "archive [username...]",
	Short: "Walk, harvest, download and reconcile in one run",
	Long: `Run the complete pipeline for the given usernames: discover submission
links from gallery, scraps and favorites pages, harvest metadata for every
new submission, download content files and thumbnails, then move the files
into their per-account layout.

With no usernames the registered owned accounts are archived.`,
	Example: `  # Archive one creator
  furarchiver archive somecreator

  # Archive every registered owned account
  furarchiver archive`,
	Args: cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newArchiver()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		logger.GetLogger().WithField("version", version).Info("furarchiver starting")
		return a.Run(ctx, args)
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
}
