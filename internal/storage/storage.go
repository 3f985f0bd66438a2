package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/pkg/types"
)

// ErrNotFound is returned when a requested entity doesn't exist
var ErrNotFound = types.ErrNotFound

// Store persists catalog entities and their embeddings
type Store interface {
	// FetchPending returns entities that have content but no embedding, ordered by id
	FetchPending(ctx context.Context) ([]types.Entity, error)

	// WriteOne sets the embedding of one entity. A missing entity is not an error.
	WriteOne(ctx context.Context, embedding types.Embedding) error

	// WriteBatch sets all embeddings in one transaction, or none of them
	WriteBatch(ctx context.Context, embeddings []types.Embedding) error

	// LoadEmbedded returns every entity that has both content and an embedding
	LoadEmbedded(ctx context.Context) ([]EmbeddedContent, error)

	// UpsertEntity creates or replaces an entity's content.
	// Changing the content clears the stored embedding.
	UpsertEntity(ctx context.Context, entity types.Entity) error

	// GetEntity returns one row or ErrNotFound
	GetEntity(ctx context.Context, id string) (*EntityRow, error)

	// Status reports row counts
	Status(ctx context.Context) (*Status, error)

	Close() error
}

// EntityRow is the persisted form of an entity
type EntityRow struct {
	ID         string
	Content    sql.NullString
	Embedding  []float32 // nil when not computed
	EmbeddedAt sql.NullTime
	UpdatedAt  time.Time
}

// HasEmbedding reports whether the row carries an embedding
func (r *EntityRow) HasEmbedding() bool {
	return r.Embedding != nil
}

// EmbeddedContent is an entity loaded for similarity ranking
type EmbeddedContent struct {
	ID      string
	Content string
	Vector  []float32
}

// Status contains row statistics of the entity table
type Status struct {
	Backend       string
	SchemaVersion string
	Entities      int
	Embedded      int
	Pending       int
}
