package embedder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "empty string",
			text: "",
			want: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
		{
			name: "simple text",
			text: "hello world",
			want: "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeHash(tt.text))
		})
	}
}

func TestValidateBatchRequest(t *testing.T) {
	tooMany := make([]string, MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = "text"
	}

	tests := []struct {
		name    string
		req     BatchEmbeddingRequest
		wantErr error
	}{
		{name: "valid batch", req: BatchEmbeddingRequest{Texts: []string{"a", "b"}}},
		{name: "empty batch", req: BatchEmbeddingRequest{}, wantErr: ErrInvalidInput},
		{name: "contains empty text", req: BatchEmbeddingRequest{Texts: []string{"a", ""}}, wantErr: ErrInvalidInput},
		{name: "too large", req: BatchEmbeddingRequest{Texts: tooMany}, wantErr: ErrBatchTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchRequest(tt.req)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCache(t *testing.T) {
	t.Run("get returns a copy", func(t *testing.T) {
		cache := NewCache(10)
		cache.Set("k", &Embedding{Vector: []float32{1, 2, 3}, Dimension: 3})

		got, ok := cache.Get("k")
		require.True(t, ok)
		got.Vector[0] = 99

		again, ok := cache.Get("k")
		require.True(t, ok)
		assert.Equal(t, float32(1), again.Vector[0])
	})

	t.Run("set stores a copy", func(t *testing.T) {
		cache := NewCache(10)
		emb := &Embedding{Vector: []float32{1}}
		cache.Set("k", emb)
		emb.Vector[0] = 42

		got, _ := cache.Get("k")
		assert.Equal(t, float32(1), got.Vector[0])
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		cache := NewCache(2)
		cache.Set("a", &Embedding{})
		cache.Set("b", &Embedding{})
		_, _ = cache.Get("a")
		cache.Set("c", &Embedding{})

		assert.Equal(t, 2, cache.Size())
		_, ok := cache.Get("b")
		assert.False(t, ok)
		_, ok = cache.Get("a")
		assert.True(t, ok)
	})

	t.Run("clear", func(t *testing.T) {
		cache := NewCache(0)
		cache.Set("a", &Embedding{})
		cache.Clear()
		assert.Equal(t, 0, cache.Size())
	})
}

func TestLocalProvider(t *testing.T) {
	ctx := context.Background()
	provider, err := NewLocalProvider(NewCache(10))
	require.NoError(t, err)
	defer provider.Close()

	assert.Equal(t, ProviderLocal, provider.Provider())
	assert.Equal(t, LocalDimension, provider.Dimension())

	t.Run("deterministic and normalized", func(t *testing.T) {
		a, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "payments api"})
		require.NoError(t, err)
		b, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "payments api"})
		require.NoError(t, err)

		assert.Equal(t, a.Vector, b.Vector)
		require.Len(t, a.Vector, LocalDimension)

		var sum float64
		for _, v := range a.Vector {
			sum += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, sum, 1e-4)
	})

	t.Run("different texts differ", func(t *testing.T) {
		a, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "alpha"})
		require.NoError(t, err)
		b, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: "beta"})
		require.NoError(t, err)
		assert.NotEqual(t, a.Vector, b.Vector)
	})

	t.Run("empty text", func(t *testing.T) {
		_, err := provider.GenerateEmbedding(ctx, EmbeddingRequest{})
		assert.ErrorIs(t, err, ErrEmptyText)
	})

	t.Run("batch", func(t *testing.T) {
		resp, err := provider.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a", "b", "c"}})
		require.NoError(t, err)
		assert.Len(t, resp.Embeddings, 3)
		assert.Equal(t, ProviderLocal, resp.Provider)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := provider.GenerateEmbedding(cctx, EmbeddingRequest{Text: "uncached text"})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNormalizeVector(t *testing.T) {
	assert.Equal(t, []float32{0.6, 0.8}, NormalizeVector([]float32{3, 4}))
	assert.Equal(t, []float32{0, 0}, NormalizeVector([]float32{0, 0}))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantProvider string
		wantModel    string
		wantErr      error
	}{
		{name: "local by default", cfg: Config{}, wantProvider: ProviderLocal, wantModel: LocalModel},
		{name: "api key selects openai", cfg: Config{APIKey: "k"}, wantProvider: ProviderOpenAI, wantModel: DefaultOpenAIModel},
		{name: "explicit jina", cfg: Config{Provider: "JINA", APIKey: "k"}, wantProvider: ProviderJina, wantModel: DefaultJinaModel},
		{name: "model override", cfg: Config{Provider: "openai", APIKey: "k", Model: "text-embedding-3-small"}, wantProvider: ProviderOpenAI, wantModel: "text-embedding-3-small"},
		{name: "openai without key", cfg: Config{Provider: "openai"}, wantErr: ErrNoProviderEnabled},
		{name: "unknown provider", cfg: Config{Provider: "cohere"}, wantErr: ErrUnsupportedModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb, err := New(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer emb.Close()

			assert.Equal(t, tt.wantProvider, emb.Provider())
			assert.Equal(t, tt.wantModel, emb.Model())
		})
	}
}

func TestNewWithRateLimit(t *testing.T) {
	emb, err := New(Config{RateLimit: 5, RateBurst: 2})
	require.NoError(t, err)

	_, ok := emb.(*RateLimited)
	assert.True(t, ok)
	assert.Equal(t, ProviderLocal, emb.Provider())
}
