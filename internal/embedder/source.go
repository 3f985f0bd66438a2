package embedder

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/similarity"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/pkg/types"
)

const (
	// MaxContentLength is the character count above which a failed
	// embedding is attributed to the content rather than the provider.
	MaxContentLength = 4000

	// QueryID identifies embeddings computed for search queries rather than entities
	QueryID = "QUERY_PLACEHOLDER_ID"
)

// Computer computes the embedding of an entity's content
type Computer interface {
	Compute(ctx context.Context, entity types.Entity) (types.Embedding, error)
}

// Source turns entities into embeddings and classifies provider failures
type Source struct {
	embedder Embedder
	model    string
	logger   *zap.Logger
}

// SourceOption configures a Source
type SourceOption func(*Source)

// WithModel overrides the provider's default model
func WithModel(model string) SourceOption {
	return func(s *Source) {
		s.model = model
	}
}

// WithLogger sets the logger used for failure diagnostics
func WithLogger(logger *zap.Logger) SourceOption {
	return func(s *Source) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSource creates a Source on top of an embedding provider
func NewSource(emb Embedder, opts ...SourceOption) *Source {
	s := &Source{
		embedder: emb,
		model:    emb.Model(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Compute embeds entity.Content. A failed call returns
// *types.ContentTooLongError when the content exceeds MaxContentLength and
// *types.RemoteComputeError otherwise. An empty or all-zero vector, or one whose
// length differs from the provider's known dimension, is a provider failure.
// Context cancellation is returned as is.
func (s *Source) Compute(ctx context.Context, entity types.Entity) (types.Embedding, error) {
	if err := entity.Validate(); err != nil {
		return types.Embedding{}, err
	}

	emb, err := s.embedder.GenerateEmbedding(ctx, EmbeddingRequest{
		Text:  entity.Content,
		Model: s.model,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.Embedding{}, ctxErr
		}

		if n := entity.Length(); n > MaxContentLength {
			s.logger.Warn("embedding failed for oversized content",
				zap.String("entity_id", entity.ID),
				zap.Int("length", n),
				zap.Error(err))
			return types.Embedding{}, &types.ContentTooLongError{
				EntityID: entity.ID,
				Length:   n,
				Limit:    MaxContentLength,
				Err:      err,
			}
		}

		s.logger.Warn("embedding request failed",
			zap.String("entity_id", entity.ID),
			zap.Error(err))
		return types.Embedding{}, &types.RemoteComputeError{EntityID: entity.ID, Err: err}
	}

	if err := s.checkVector(emb.Vector); err != nil {
		s.logger.Warn("embedding provider returned an unusable vector",
			zap.String("entity_id", entity.ID),
			zap.Int("dimension", len(emb.Vector)),
			zap.Error(err))
		return types.Embedding{}, &types.RemoteComputeError{EntityID: entity.ID, Err: err}
	}

	return types.Embedding{ID: entity.ID, Vector: emb.Vector}, nil
}

func (s *Source) checkVector(vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector", ErrProviderFailed)
	}
	if dim := s.embedder.Dimension(); dim > 0 && len(vector) != dim {
		return fmt.Errorf("%w: got %d dimensions, want %d", ErrProviderFailed, len(vector), dim)
	}
	if similarity.IsDegenerate(vector) {
		return fmt.Errorf("%w: zero vector", ErrProviderFailed)
	}
	return nil
}

// Model returns the model used for embedding requests
func (s *Source) Model() string {
	return s.model
}

// Dimension returns the provider's expected vector dimension, or 0 if unknown
func (s *Source) Dimension() int {
	return s.embedder.Dimension()
}
