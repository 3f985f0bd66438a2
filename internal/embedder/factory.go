package embedder

import (
	"fmt"
	"strings"
	"time"
)

// Config holds embedder configuration
type Config struct {
	Provider  string // openai, jina or local; empty auto-detects
	APIKey    string
	BaseURL   string // empty uses the provider default
	Model     string // empty uses the provider default
	CacheSize int    // 0 disables the cache
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	RateBurst int
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	var (
		emb Embedder
		err error
	)
	switch provider := DetectProvider(cfg); provider {
	case ProviderOpenAI:
		emb, err = NewHTTPProvider(HTTPProviderConfig{
			Name:    ProviderOpenAI,
			APIKey:  cfg.APIKey,
			BaseURL: orDefault(cfg.BaseURL, DefaultOpenAIBaseURL),
			Model:   orDefault(cfg.Model, DefaultOpenAIModel),
			Timeout: cfg.Timeout,
			Cache:   cache,
		})
	case ProviderJina:
		emb, err = NewHTTPProvider(HTTPProviderConfig{
			Name:    ProviderJina,
			APIKey:  cfg.APIKey,
			BaseURL: orDefault(cfg.BaseURL, DefaultJinaBaseURL),
			Model:   orDefault(cfg.Model, DefaultJinaModel),
			Timeout: cfg.Timeout,
			Cache:   cache,
		})
	case ProviderLocal:
		emb, err = NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewRateLimited(emb, cfg.RateLimit, cfg.RateBurst), nil
}

// DetectProvider returns the provider New would use for cfg.
// Without an explicit provider an API key selects openai, otherwise local.
func DetectProvider(cfg Config) string {
	if cfg.Provider != "" {
		return strings.ToLower(cfg.Provider)
	}
	if cfg.APIKey != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
