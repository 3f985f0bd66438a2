// Package embedder computes vector embeddings for catalog content.
//
// Providers implement the Embedder interface. The HTTP provider talks to any
// OpenAI-compatible embeddings endpoint (OpenAI itself, Jina AI, or a proxy)
// and the local provider derives deterministic vectors from a content hash
// for offline development and tests.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  "openai",
//	    APIKey:    os.Getenv("OPENAI_API_KEY"),
//	    CacheSize: 10000,
//	})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	source := embedder.NewSource(emb, embedder.WithLogger(logger))
//	embedding, err := source.Compute(ctx, types.Entity{ID: id, Content: content})
//
// # Failure Classification
//
// Source.Compute is the entry point used by the indexer and the searcher. It
// never retries. Instead, a failed provider call is classified so the caller
// can decide:
//
//	switch {
//	case errors.Is(err, types.ErrContentTooLong):
//	    // content above MaxContentLength characters, retrying will not help
//	case errors.Is(err, types.ErrRemoteCompute):
//	    // transient provider failure, safe to retry later
//	}
//
// # Provider Selection
//
// Config.Provider picks the provider explicitly. When it is empty, a
// configured API key selects openai and the local provider is used
// otherwise.
//
// # Caching and Rate Limiting
//
// Providers share an LRU cache keyed by model and SHA-256 of the text, so
// repeated queries do not hit the API. Config.RateLimit wraps the provider in
// a token bucket limiter; callers block until a token is available or their
// context ends.
package embedder
