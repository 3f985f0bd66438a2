package main

import (
	"github.com/spf13/cobra"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve retrieval tools over the Model Context Protocol on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		server := mcp.NewServer(a.searcher, a.indexer, a.store, mcp.WithLogger(logger))
		return server.Serve(cmd.Context())
	},
}
