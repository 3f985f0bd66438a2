package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/searcher"
)

var retrieveLimit int

var retrieveCmd = &cobra.Command{
	Use:   "retrieve <query>",
	Short: "Print the stored content most relevant to a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		resp, err := a.searcher.Search(cmd.Context(), searcher.SearchRequest{
			Query:     strings.Join(args, " "),
			CharLimit: retrieveLimit,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for i, r := range resp.Results {
			fmt.Fprintf(out, "--- %d. %s (%.4f)\n%s\n", i+1, r.ID, r.Similarity, r.Content)
		}
		fmt.Fprintf(out, "%d of %d candidates in %v\n", len(resp.Results), resp.Candidates, resp.Duration)
		return nil
	},
}

func init() {
	retrieveCmd.Flags().IntVarP(&retrieveLimit, "limit", "l", searcher.DefaultCharLimit, "character budget for returned content")
}
