package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/pkg/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.json>",
	Short: "Load catalog entities from a JSON array of {id, content} objects",
	Long: `Load catalog entities into the store. Use "-" to read from stdin.

Changed content clears the stored embedding so the next refresh recomputes it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}

		entities, err := readEntities(r)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		for _, e := range entities {
			if err := a.store.UpsertEntity(cmd.Context(), e); err != nil {
				return fmt.Errorf("failed to ingest %s: %w", e.ID, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ingested %d entities\n", len(entities))
		return nil
	},
}

type entityRecord struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// readEntities decodes a JSON array of entity records
func readEntities(r io.Reader) ([]types.Entity, error) {
	var records []entityRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode entities: %w", err)
	}

	entities := make([]types.Entity, len(records))
	for i, rec := range records {
		if rec.ID == "" {
			return nil, fmt.Errorf("entity %d: %w", i, types.ErrInvalidEntityID)
		}
		entities[i] = types.Entity{ID: rec.ID, Content: rec.Content}
	}
	return entities, nil
}
