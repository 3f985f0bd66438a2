package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/pkg/types"
)

// batchWriteConcurrency bounds the per-row updates in flight inside one batch transaction
const batchWriteConcurrency = 8

// SQLiteStorage implements Store using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; this also keeps :memory: databases alive
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db, DialectSQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

func (s *SQLiteStorage) FetchPending(ctx context.Context) ([]types.Entity, error) {
	query := `
		SELECT entity_id, final_entity
		FROM final_entities
		WHERE embedding IS NULL AND final_entity IS NOT NULL
		ORDER BY entity_id
	`
	rows, err := s.querier().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending entities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entities []types.Entity
	for rows.Next() {
		var entity types.Entity
		if err := rows.Scan(&entity.ID, &entity.Content); err != nil {
			return nil, fmt.Errorf("failed to scan pending entity: %w", err)
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// nullableContent stores empty content as NULL so it is never picked up for embedding
func nullableContent(content string) sql.NullString {
	return sql.NullString{String: content, Valid: content != ""}
}

// writeOneWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) writeOneWithQuerier(ctx context.Context, q querier, embedding types.Embedding) error {
	query := `
		UPDATE final_entities
		SET embedding = ?, embedded_at = ?
		WHERE entity_id = ?
	`
	// An empty vector clears the embedding and leaves the entity pending
	var blob, embeddedAt any
	if len(embedding.Vector) > 0 {
		blob, embeddedAt = serializeVector(embedding.Vector), time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, query, blob, embeddedAt, embedding.ID)
	if err != nil {
		return fmt.Errorf("failed to write embedding for %s: %w", embedding.ID, err)
	}
	return nil
}

func (s *SQLiteStorage) WriteOne(ctx context.Context, embedding types.Embedding) error {
	return s.writeOneWithQuerier(ctx, s.querier(), embedding)
}

func (s *SQLiteStorage) WriteBatch(ctx context.Context, embeddings []types.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchWriteConcurrency)
	for _, embedding := range embeddings {
		g.Go(func() error {
			return s.writeOneWithQuerier(gctx, tx, embedding)
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

func (s *SQLiteStorage) LoadEmbedded(ctx context.Context) ([]EmbeddedContent, error) {
	query := `
		SELECT entity_id, final_entity, embedding
		FROM final_entities
		WHERE embedding IS NOT NULL AND final_entity IS NOT NULL
		ORDER BY entity_id
	`
	rows, err := s.querier().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []EmbeddedContent
	for rows.Next() {
		var (
			item EmbeddedContent
			blob []byte
		)
		if err := rows.Scan(&item.ID, &item.Content, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		if item.Vector, err = deserializeVector(blob); err != nil {
			return nil, fmt.Errorf("entity %s: %w", item.ID, err)
		}
		if item.Vector == nil {
			item.Vector = []float32{}
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

func (s *SQLiteStorage) UpsertEntity(ctx context.Context, entity types.Entity) error {
	if entity.ID == "" {
		return types.ErrInvalidEntityID
	}

	// The embedding survives only when the content is unchanged
	query := `
		INSERT INTO final_entities (entity_id, final_entity, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			embedding = CASE WHEN final_entities.final_entity IS excluded.final_entity
				THEN final_entities.embedding ELSE NULL END,
			embedded_at = CASE WHEN final_entities.final_entity IS excluded.final_entity
				THEN final_entities.embedded_at ELSE NULL END,
			final_entity = excluded.final_entity,
			updated_at = excluded.updated_at
	`
	_, err := s.querier().ExecContext(ctx, query, entity.ID, nullableContent(entity.Content), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert entity %s: %w", entity.ID, err)
	}
	return nil
}

func (s *SQLiteStorage) GetEntity(ctx context.Context, id string) (*EntityRow, error) {
	query := `
		SELECT entity_id, final_entity, embedding, embedded_at, updated_at
		FROM final_entities
		WHERE entity_id = ?
	`
	var (
		row  EntityRow
		blob []byte
	)
	err := s.querier().QueryRowContext(ctx, query, id).Scan(
		&row.ID, &row.Content, &blob, &row.EmbeddedAt, &row.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entity %s: %w", id, err)
	}

	if row.Embedding, err = deserializeVector(blob); err != nil {
		return nil, fmt.Errorf("entity %s: %w", id, err)
	}
	return &row, nil
}

func (s *SQLiteStorage) Status(ctx context.Context) (*Status, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(embedding),
			COALESCE(SUM(CASE WHEN embedding IS NULL AND final_entity IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM final_entities
	`
	status := &Status{Backend: "sqlite/" + BuildMode}
	if err := s.querier().QueryRowContext(ctx, query).Scan(
		&status.Entities, &status.Embedded, &status.Pending,
	); err != nil {
		return nil, fmt.Errorf("failed to read status: %w", err)
	}

	version, err := SchemaVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version
	return status, nil
}
