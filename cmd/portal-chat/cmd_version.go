package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/storage"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "portal-chat\n")
		fmt.Fprintf(out, "Version: %s\n", version)
		fmt.Fprintf(out, "Build Time: %s\n", buildTime)
		fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
		fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
		fmt.Fprintf(out, "Schema Version: %s\n", storage.CurrentSchemaVersion)
	},
}
