package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func seedEntities(t *testing.T, s Store, entities ...types.Entity) {
	t.Helper()
	for _, e := range entities {
		require.NoError(t, s.UpsertEntity(context.Background(), e))
	}
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	assert.NotNil(t, storage.db)

	version, err := SchemaVersion(context.Background(), storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestFetchPending(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	seedEntities(t, storage,
		types.Entity{ID: "c", Content: "gamma"},
		types.Entity{ID: "a", Content: "alpha"},
		types.Entity{ID: "b", Content: "beta"},
		types.Entity{ID: "empty", Content: ""},
	)
	require.NoError(t, storage.WriteOne(ctx, types.Embedding{ID: "b", Vector: []float32{1, 2}}))

	pending, err := storage.FetchPending(ctx)
	require.NoError(t, err)

	want := []types.Entity{
		{ID: "a", Content: "alpha"},
		{ID: "c", Content: "gamma"},
	}
	if diff := cmp.Diff(want, pending); diff != "" {
		t.Errorf("FetchPending mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteOne(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	seedEntities(t, storage, types.Entity{ID: "a", Content: "alpha"})

	t.Run("round trip", func(t *testing.T) {
		vector := []float32{0.25, -1.5, 3}
		require.NoError(t, storage.WriteOne(ctx, types.Embedding{ID: "a", Vector: vector}))

		row, err := storage.GetEntity(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, vector, row.Embedding)
		assert.True(t, row.HasEmbedding())
		assert.True(t, row.EmbeddedAt.Valid)
	})

	t.Run("replaces previous vector", func(t *testing.T) {
		require.NoError(t, storage.WriteOne(ctx, types.Embedding{ID: "a", Vector: []float32{9}}))

		row, err := storage.GetEntity(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []float32{9}, row.Embedding)
	})

	t.Run("missing row is a no-op", func(t *testing.T) {
		require.NoError(t, storage.WriteOne(ctx, types.Embedding{ID: "ghost", Vector: []float32{1}}))

		_, err := storage.GetEntity(ctx, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)

		status, err := storage.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, status.Entities)
	})
}

func TestWriteBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("writes all rows", func(t *testing.T) {
		storage := setupTestDB(t)
		batch := make([]types.Embedding, 0, 20)
		for i := 0; i < 20; i++ {
			id := fmt.Sprintf("e%02d", i)
			seedEntities(t, storage, types.Entity{ID: id, Content: "content " + id})
			batch = append(batch, types.Embedding{ID: id, Vector: []float32{float32(i), 1}})
		}

		require.NoError(t, storage.WriteBatch(ctx, batch))

		pending, err := storage.FetchPending(ctx)
		require.NoError(t, err)
		assert.Empty(t, pending)

		row, err := storage.GetEntity(ctx, "e07")
		require.NoError(t, err)
		assert.Equal(t, []float32{7, 1}, row.Embedding)
	})

	t.Run("empty batch", func(t *testing.T) {
		storage := setupTestDB(t)
		assert.NoError(t, storage.WriteBatch(ctx, nil))
	})

	t.Run("cancelled context writes nothing", func(t *testing.T) {
		storage := setupTestDB(t)
		seedEntities(t, storage, types.Entity{ID: "a", Content: "alpha"})

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := storage.WriteBatch(cctx, []types.Embedding{{ID: "a", Vector: []float32{1}}})
		assert.Error(t, err)

		row, err := storage.GetEntity(ctx, "a")
		require.NoError(t, err)
		assert.False(t, row.HasEmbedding())
	})

	t.Run("failing row rolls back the whole batch", func(t *testing.T) {
		storage := setupTestDB(t)
		batch := make([]types.Embedding, 0, 10)
		for i := 0; i < 10; i++ {
			id := fmt.Sprintf("e%02d", i)
			seedEntities(t, storage, types.Entity{ID: id, Content: "content " + id})
			batch = append(batch, types.Embedding{ID: id, Vector: []float32{float32(i), 1}})
		}

		_, err := storage.db.ExecContext(ctx, `
			CREATE TRIGGER reject_e05 BEFORE UPDATE OF embedding ON final_entities
			WHEN NEW.entity_id = 'e05'
			BEGIN
				SELECT RAISE(ABORT, 'rejected e05');
			END`)
		require.NoError(t, err)

		err = storage.WriteBatch(ctx, batch)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "batch write failed")

		pending, err := storage.FetchPending(ctx)
		require.NoError(t, err)
		assert.Len(t, pending, len(batch))

		status, err := storage.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, status.Embedded)
	})
}

func TestWriteEmptyVector(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	seedEntities(t, storage, types.Entity{ID: "a", Content: "alpha"})

	require.NoError(t, storage.WriteOne(ctx, types.Embedding{ID: "a", Vector: []float32{1}}))
	require.NoError(t, storage.WriteOne(ctx, types.Embedding{ID: "a", Vector: []float32{}}))

	row, err := storage.GetEntity(ctx, "a")
	require.NoError(t, err)
	assert.False(t, row.HasEmbedding())
	assert.False(t, row.EmbeddedAt.Valid)

	pending, err := storage.FetchPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.Entity{{ID: "a", Content: "alpha"}}, pending)

	status, err := storage.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Embedded)
	assert.Equal(t, 1, status.Pending)
}

func TestLoadEmbedded(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	seedEntities(t, storage,
		types.Entity{ID: "a", Content: "alpha"},
		types.Entity{ID: "b", Content: "beta"},
	)
	require.NoError(t, storage.WriteOne(ctx, types.Embedding{ID: "b", Vector: []float32{1, 0}}))

	got, err := storage.LoadEmbedded(ctx)
	require.NoError(t, err)

	want := []EmbeddedContent{{ID: "b", Content: "beta", Vector: []float32{1, 0}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LoadEmbedded mismatch (-want +got):\n%s", diff)
	}
}

func TestUpsertEntity(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	seedEntities(t, storage, types.Entity{ID: "a", Content: "v1"})
	require.NoError(t, storage.WriteOne(ctx, types.Embedding{ID: "a", Vector: []float32{1}}))

	t.Run("same content keeps embedding", func(t *testing.T) {
		seedEntities(t, storage, types.Entity{ID: "a", Content: "v1"})

		row, err := storage.GetEntity(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []float32{1}, row.Embedding)
	})

	t.Run("changed content clears embedding", func(t *testing.T) {
		seedEntities(t, storage, types.Entity{ID: "a", Content: "v2"})

		row, err := storage.GetEntity(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "v2", row.Content.String)
		assert.Nil(t, row.Embedding)
		assert.False(t, row.EmbeddedAt.Valid)
	})

	t.Run("empty content is stored as null", func(t *testing.T) {
		seedEntities(t, storage, types.Entity{ID: "n", Content: ""})

		row, err := storage.GetEntity(ctx, "n")
		require.NoError(t, err)
		assert.False(t, row.Content.Valid)
	})

	t.Run("missing id", func(t *testing.T) {
		err := storage.UpsertEntity(ctx, types.Entity{Content: "x"})
		assert.ErrorIs(t, err, types.ErrInvalidEntityID)
	})
}

func TestStatus(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	status, err := storage.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Entities)
	assert.Equal(t, 0, status.Pending)
	assert.True(t, strings.HasPrefix(status.Backend, "sqlite/"))

	seedEntities(t, storage,
		types.Entity{ID: "a", Content: "alpha"},
		types.Entity{ID: "b", Content: "beta"},
		types.Entity{ID: "c"},
	)
	require.NoError(t, storage.WriteOne(ctx, types.Embedding{ID: "a", Vector: []float32{1}}))

	status, err = storage.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.Entities)
	assert.Equal(t, 1, status.Embedded)
	assert.Equal(t, 1, status.Pending)
	assert.Equal(t, CurrentSchemaVersion, status.SchemaVersion)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "portal.db")

	store, err := Open(ctx, "sqlite://"+path)
	require.NoError(t, err)
	seedEntities(t, store, types.Entity{ID: "a", Content: "alpha"})
	require.NoError(t, store.Close())

	// Reopening keeps data and does not re-run migrations
	store, err = Open(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	row, err := store.GetEntity(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "alpha", row.Content.String)

	assert.True(t, IsPostgresDSN("postgresql://localhost/db"))
	assert.False(t, IsPostgresDSN(path))
}

func TestMigrationRollback(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, RollbackMigration(ctx, storage.db, DialectSQLite))
	version, err := SchemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", version)

	require.NoError(t, ApplyMigrations(ctx, storage.db, DialectSQLite))
	version, err = SchemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
}

func TestDeserializeVector(t *testing.T) {
	vector, err := deserializeVector(serializeVector([]float32{1.5, -2}))
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, -2}, vector)

	vector, err = deserializeVector(nil)
	require.NoError(t, err)
	assert.Nil(t, vector)

	assert.Nil(t, serializeVector(nil))
	assert.Nil(t, serializeVector([]float32{}))

	_, err = deserializeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
