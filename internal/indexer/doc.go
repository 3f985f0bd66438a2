// Package indexer keeps stored embeddings in step with entity content.
//
// A refresh fetches every entity whose content has no embedding yet,
// computes the missing vectors and writes them back. Only one refresh runs at
// a time; a second caller gets ErrRefreshInProgress instead of waiting.
//
// # Basic Usage
//
//	source := embedder.NewSource(emb, embedder.WithLogger(logger))
//	idx := indexer.New(source, store, indexer.Config{Logger: logger})
//	defer idx.Close()
//
//	stats, err := idx.Refresh(ctx, indexer.ModeIncremental)
//	fmt.Printf("embedded %d, skipped %d in %v\n", stats.Embedded, stats.Skipped, stats.Duration)
//
// # Modes
//
// ModeBulk computes all pending embeddings concurrently and writes them with
// one WriteBatch call. Any failure aborts the run before anything is written.
//
// ModeIncremental walks the pending entities in order and writes each vector
// as soon as it is computed. Content that is too long (or empty) is skipped.
// A remote failure waits RetryPolicy.Interval, two minutes by default, and
// tries the same entity again:
//
//	idx := indexer.New(source, store, indexer.Config{
//	    Retry: indexer.RetryPolicy{Interval: 30 * time.Second, MaxAttempts: 5},
//	})
//
// ModeSkip does nothing.
//
// # Background Runs
//
// RefreshAsync starts a run on the indexer's own context and returns at once.
// Close cancels that context and waits for the run to return. The outcome of
// the latest run is available from LastRun.
package indexer
