package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/indexer"
)

var refreshMode string

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Compute missing embeddings and wait for the run to finish",
	RunE: func(cmd *cobra.Command, args []string) error {
		mode, err := indexer.ParseMode(refreshMode)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		stats, err := a.indexer.Refresh(cmd.Context(), mode)
		if stats != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "mode: %s\npending: %d\nembedded: %d\nskipped: %d\nretries: %d\nduration: %v\n",
				stats.Mode, stats.Pending, stats.Embedded, stats.Skipped, stats.Retries, stats.Duration)
			for _, id := range stats.SkippedIDs {
				fmt.Fprintf(cmd.OutOrStdout(), "skipped: %s\n", id)
			}
		}
		return err
	},
}

func init() {
	refreshCmd.Flags().StringVarP(&refreshMode, "mode", "m", string(indexer.ModeIncremental), "bulk, incremental or skip")
}
