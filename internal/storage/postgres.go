package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/pkg/types"
)

// PostgresStorage implements Store on PostgreSQL with the pgvector extension
type PostgresStorage struct {
	db *sqlx.DB
}

// Typed rows scanned by sqlx

type pendingRecord struct {
	ID      string `db:"entity_id"`
	Content string `db:"final_entity"`
}

type embeddedRecord struct {
	ID        string          `db:"entity_id"`
	Content   string          `db:"final_entity"`
	Embedding pgvector.Vector `db:"embedding"`
}

type entityRecord struct {
	ID         string           `db:"entity_id"`
	Content    sql.NullString   `db:"final_entity"`
	Embedding  *pgvector.Vector `db:"embedding"`
	EmbeddedAt sql.NullTime     `db:"embedded_at"`
	UpdatedAt  time.Time        `db:"updated_at"`
}

type statusRecord struct {
	Entities int `db:"entities"`
	Embedded int `db:"embedded"`
	Pending  int `db:"pending"`
}

// NewPostgresStorage connects to dsn and applies migrations
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := ApplyMigrations(ctx, db, DialectPostgres); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return newPostgresStorage(db), nil
}

// newPostgresStorage wraps an open connection without running migrations
func newPostgresStorage(db *sqlx.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

func (p *PostgresStorage) Close() error {
	return p.db.Close()
}

func (p *PostgresStorage) FetchPending(ctx context.Context) ([]types.Entity, error) {
	query := `
		SELECT entity_id, final_entity
		FROM final_entities
		WHERE embedding IS NULL AND final_entity IS NOT NULL
		ORDER BY entity_id
	`
	var records []pendingRecord
	if err := p.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("failed to query pending entities: %w", err)
	}

	entities := make([]types.Entity, len(records))
	for i, r := range records {
		entities[i] = types.Entity{ID: r.ID, Content: r.Content}
	}
	return entities, nil
}

// writeOneWithExecer is shared by WriteOne and the batch transaction
func (p *PostgresStorage) writeOneWithExecer(ctx context.Context, e sqlx.ExecerContext, embedding types.Embedding) error {
	query := `
		UPDATE final_entities
		SET embedding = $1, embedded_at = $2
		WHERE entity_id = $3
	`
	var vector, embeddedAt any
	if len(embedding.Vector) > 0 {
		vector, embeddedAt = pgvector.NewVector(embedding.Vector), time.Now().UTC()
	}
	_, err := e.ExecContext(ctx, query, vector, embeddedAt, embedding.ID)
	if err != nil {
		return fmt.Errorf("failed to write embedding for %s: %w", embedding.ID, err)
	}
	return nil
}

func (p *PostgresStorage) WriteOne(ctx context.Context, embedding types.Embedding) error {
	return p.writeOneWithExecer(ctx, p.db, embedding)
}

func (p *PostgresStorage) WriteBatch(ctx context.Context, embeddings []types.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchWriteConcurrency)
	for _, embedding := range embeddings {
		g.Go(func() error {
			return p.writeOneWithExecer(gctx, tx, embedding)
		})
	}

	if err := g.Wait(); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("batch write failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

func (p *PostgresStorage) LoadEmbedded(ctx context.Context) ([]EmbeddedContent, error) {
	query := `
		SELECT entity_id, final_entity, embedding
		FROM final_entities
		WHERE embedding IS NOT NULL AND final_entity IS NOT NULL
		ORDER BY entity_id
	`
	var records []embeddedRecord
	if err := p.db.SelectContext(ctx, &records, query); err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}

	results := make([]EmbeddedContent, len(records))
	for i, r := range records {
		results[i] = EmbeddedContent{ID: r.ID, Content: r.Content, Vector: r.Embedding.Slice()}
	}
	return results, nil
}

func (p *PostgresStorage) UpsertEntity(ctx context.Context, entity types.Entity) error {
	if entity.ID == "" {
		return types.ErrInvalidEntityID
	}

	query := `
		INSERT INTO final_entities (entity_id, final_entity, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_id) DO UPDATE SET
			embedding = CASE WHEN final_entities.final_entity IS NOT DISTINCT FROM EXCLUDED.final_entity
				THEN final_entities.embedding ELSE NULL END,
			embedded_at = CASE WHEN final_entities.final_entity IS NOT DISTINCT FROM EXCLUDED.final_entity
				THEN final_entities.embedded_at ELSE NULL END,
			final_entity = EXCLUDED.final_entity,
			updated_at = EXCLUDED.updated_at
	`
	_, err := p.db.ExecContext(ctx, query, entity.ID, nullableContent(entity.Content), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert entity %s: %w", entity.ID, err)
	}
	return nil
}

func (p *PostgresStorage) GetEntity(ctx context.Context, id string) (*EntityRow, error) {
	query := `
		SELECT entity_id, final_entity, embedding, embedded_at, updated_at
		FROM final_entities
		WHERE entity_id = $1
	`
	var record entityRecord
	err := p.db.GetContext(ctx, &record, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %s: %w", id, err)
	}

	row := &EntityRow{
		ID:         record.ID,
		Content:    record.Content,
		EmbeddedAt: record.EmbeddedAt,
		UpdatedAt:  record.UpdatedAt,
	}
	if record.Embedding != nil {
		row.Embedding = record.Embedding.Slice()
	}
	return row, nil
}

func (p *PostgresStorage) Status(ctx context.Context) (*Status, error) {
	query := `
		SELECT
			COUNT(*) AS entities,
			COUNT(embedding) AS embedded,
			COUNT(*) FILTER (WHERE embedding IS NULL AND final_entity IS NOT NULL) AS pending
		FROM final_entities
	`
	var record statusRecord
	if err := p.db.GetContext(ctx, &record, query); err != nil {
		return nil, fmt.Errorf("failed to read status: %w", err)
	}

	version, err := SchemaVersion(ctx, p.db)
	if err != nil {
		return nil, err
	}

	return &Status{
		Backend:       "postgres",
		SchemaVersion: version,
		Entities:      record.Entities,
		Embedded:      record.Embedded,
		Pending:       record.Pending,
	}, nil
}
