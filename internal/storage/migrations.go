package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/jmoiron/sqlx"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.1.0"
)

// Dialect selects the SQL flavour of a migration
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// bindType maps a dialect to the sqlx placeholder style
func (d Dialect) bindType() int {
	if d == DialectPostgres {
		return sqlx.DOLLAR
	}
	return sqlx.QUESTION
}

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      map[Dialect]string
	Down    map[Dialect]string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up: map[Dialect]string{
			DialectSQLite:   migrationV1SQLiteUp,
			DialectPostgres: migrationV1PostgresUp,
		},
		Down: map[Dialect]string{
			DialectSQLite:   migrationV1Down,
			DialectPostgres: migrationV1Down,
		},
	},
	{
		Version: "1.1.0",
		Up: map[Dialect]string{
			DialectSQLite:   migrationV11SQLiteUp,
			DialectPostgres: migrationV11PostgresUp,
		},
		Down: map[Dialect]string{
			DialectSQLite:   migrationV11Down,
			DialectPostgres: migrationV11Down,
		},
	},
}

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`

const migrationV1SQLiteUp = `
CREATE TABLE IF NOT EXISTS final_entities (
    entity_id TEXT PRIMARY KEY,
    final_entity TEXT,
    embedding BLOB,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);
`

const migrationV1PostgresUp = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS final_entities (
    entity_id TEXT PRIMARY KEY,
    final_entity TEXT,
    embedding vector,
    updated_at TIMESTAMPTZ DEFAULT now()
);
`

const migrationV1Down = `
DROP TABLE IF EXISTS final_entities;
`

// 1.1.0 records when an embedding was written and indexes the pending scan
const migrationV11SQLiteUp = `
ALTER TABLE final_entities ADD COLUMN embedded_at TIMESTAMP;
CREATE INDEX IF NOT EXISTS idx_final_entities_pending ON final_entities(entity_id) WHERE embedding IS NULL;
`

const migrationV11PostgresUp = `
ALTER TABLE final_entities ADD COLUMN IF NOT EXISTS embedded_at TIMESTAMPTZ;
CREATE INDEX IF NOT EXISTS idx_final_entities_pending ON final_entities(entity_id) WHERE embedding IS NULL;
`

const migrationV11Down = `
DROP INDEX IF EXISTS idx_final_entities_pending;
ALTER TABLE final_entities DROP COLUMN embedded_at;
`

// migrationDB is the subset of *sql.DB and *sqlx.DB used by migrations
type migrationDB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// currentVersion returns the highest applied schema version, 0.0.0 when none
func currentVersion(ctx context.Context, db migrationDB) (*semver.Version, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_version")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema_version: %w", err)
	}
	defer func() { _ = rows.Close() }()

	current := semver.MustParse("0.0.0")
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan schema_version: %w", err)
		}
		v, err := semver.NewVersion(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid schema version %s: %w", raw, err)
		}
		if v.GreaterThan(current) {
			current = v
		}
	}
	return current, rows.Err()
}

// ApplyMigrations runs all pending migrations for the dialect
func ApplyMigrations(ctx context.Context, db migrationDB, dialect Dialect) error {
	if _, err := db.ExecContext(ctx, schemaVersionTable); err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}

	record := sqlx.Rebind(dialect.bindType(), "INSERT INTO schema_version (version) VALUES (?)")

	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !current.LessThan(migrationVersion) {
			continue // Already applied
		}

		up, ok := migration.Up[dialect]
		if !ok {
			return fmt.Errorf("migration %s has no %s variant", migration.Version, dialect)
		}

		if _, err := db.ExecContext(ctx, up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		if _, err := db.ExecContext(ctx, record, migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		current = migrationVersion
	}

	return nil
}

// RollbackMigration rolls back the most recent migration
func RollbackMigration(ctx context.Context, db migrationDB, dialect Dialect) error {
	current, err := currentVersion(ctx, db)
	if err != nil {
		return err
	}
	if current.Equal(semver.MustParse("0.0.0")) {
		return fmt.Errorf("no migrations to rollback")
	}

	var migration *Migration
	for i := range AllMigrations {
		if semver.MustParse(AllMigrations[i].Version).Equal(current) {
			migration = &AllMigrations[i]
			break
		}
	}
	if migration == nil {
		return fmt.Errorf("migration %s not found", current)
	}

	if _, err := db.ExecContext(ctx, migration.Down[dialect]); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", migration.Version, err)
	}

	remove := sqlx.Rebind(dialect.bindType(), "DELETE FROM schema_version WHERE version = ?")
	if _, err := db.ExecContext(ctx, remove, migration.Version); err != nil {
		return fmt.Errorf("failed to remove migration record %s: %w", migration.Version, err)
	}

	return nil
}

// SchemaVersion returns the applied schema version as a string
func SchemaVersion(ctx context.Context, db migrationDB) (string, error) {
	v, err := currentVersion(ctx, db)
	if err != nil {
		return "", err
	}
	return v.String(), nil
}
