package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/config"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/embedder"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/indexer"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/searcher"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/storage"
)

// app holds the components shared by every command
type app struct {
	logger   *zap.Logger
	store    storage.Store
	embedder embedder.Embedder
	source   *embedder.Source
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
}

// newApp opens the store and builds the embedding pipeline on top of it.
// A single embedder, and with it a single cache, is shared by indexing and retrieval.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	store, err := storage.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	emb, err := embedder.New(embedder.Config{
		Provider:  cfg.Embedding.Provider,
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		CacheSize: cfg.Embedding.CacheSize,
		Timeout:   cfg.Embedding.Timeout,
		RateLimit: cfg.Embedding.RateLimit,
		RateBurst: cfg.Embedding.RateBurst,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	source := embedder.NewSource(emb, embedder.WithLogger(logger))
	logger.Info("embedding provider ready",
		zap.String("provider", emb.Provider()),
		zap.String("model", source.Model()),
		zap.String("storage", storage.BuildMode))

	return &app{
		logger:   logger,
		store:    store,
		embedder: emb,
		source:   source,
		indexer: indexer.New(source, store, indexer.Config{
			Workers: cfg.Indexer.Workers,
			Retry:   cfg.Indexer.RetryPolicy(),
			Logger:  logger,
		}),
		searcher: searcher.NewSearcher(source, store, searcher.WithLogger(logger)),
	}, nil
}

// Close stops background refreshes before releasing the store
func (a *app) Close() error {
	return errors.Join(
		a.indexer.Close(),
		a.embedder.Close(),
		a.store.Close(),
	)
}
