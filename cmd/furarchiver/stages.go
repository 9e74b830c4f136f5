package main

import (
	"github.com/spf13/cobra"
)

// walkCmd discovers submission links without harvesting or downloading
var walkCmd = &cobra.Command{
	Use:   "walk [username...]",
	Short: "Discover submission links from gallery, scraps and favorites pages",
	Args:  cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newArchiver()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()
		return a.Walk(ctx, args)
	},
}

// harvestCmd fills in metadata for discovered submissions
var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest metadata and comments for discovered submissions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newArchiver()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()
		return a.Harvest(ctx)
	},
}

// downloadCmd runs the content and thumbnail workers
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download content files and thumbnails for harvested submissions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newArchiver()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()
		return a.Download(ctx)
	},
}

// reconcileCmd moves downloaded files into the per-account layout
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Move downloaded files into their per-account directories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newArchiver()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()
		return a.Reconcile(ctx)
	},
}

func init() {
	rootCmd.AddCommand(walkCmd)
	rootCmd.AddCommand(harvestCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(reconcileCmd)
}
