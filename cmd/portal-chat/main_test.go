package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/pkg/types"
)

// execute runs the root command with args and returns its stdout
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		cfg, logger = nil, nil
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// localEnv points the commands at a fresh SQLite file and the local provider
func localEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("PORTAL_CHAT_EMBEDDING_PROVIDER", "local")
	t.Setenv("PORTAL_CHAT_DATABASE_DSN", filepath.Join(dir, "test.db"))
	t.Setenv("PORTAL_CHAT_LOG_LEVEL", "error")
	return dir
}

func TestReadEntities(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []types.Entity
		wantErr error
	}{
		{
			name:  "array of records",
			input: `[{"id":"component:default/a","content":"kind: Component"},{"id":"api:default/b","content":""}]`,
			want: []types.Entity{
				{ID: "component:default/a", Content: "kind: Component"},
				{ID: "api:default/b", Content: ""},
			},
		},
		{
			name:  "empty array",
			input: `[]`,
			want:  []types.Entity{},
		},
		{
			name:    "missing id",
			input:   `[{"content":"orphan"}]`,
			wantErr: types.ErrInvalidEntityID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readEntities(strings.NewReader(tt.input))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		_, err := readEntities(strings.NewReader(`{"id":`))
		assert.Error(t, err)
	})
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: dev")
	assert.Contains(t, out, "Build Mode:")
	assert.Contains(t, out, "Schema Version:")
}

func TestIngestRefreshRetrieve(t *testing.T) {
	dir := localEnv(t)

	input := filepath.Join(dir, "entities.json")
	require.NoError(t, os.WriteFile(input, []byte(`[
		{"id":"component:default/payments","content":"payments service handles card transactions"},
		{"id":"component:default/search","content":"search service indexes the catalog"},
		{"id":"group:default/empty","content":""}
	]`), 0o600))

	out, err := execute(t, "ingest", input)
	require.NoError(t, err)
	assert.Contains(t, out, "ingested 3 entities")

	// Empty content is stored without a value and never becomes pending
	out, err = execute(t, "refresh", "--mode", "incremental")
	require.NoError(t, err)
	assert.Contains(t, out, "pending: 2")
	assert.Contains(t, out, "embedded: 2")

	out, err = execute(t, "refresh", "--mode", "bulk")
	require.NoError(t, err)
	assert.Contains(t, out, "pending: 0")

	out, err = execute(t, "retrieve", "--limit", "4000", "payments service handles card transactions")
	require.NoError(t, err)
	first := strings.Index(out, "component:default/payments")
	second := strings.Index(out, "component:default/search")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second, "exact match ranks first")
	assert.Contains(t, out, "2 of 2 candidates")
}

func TestRefreshRejectsUnknownMode(t *testing.T) {
	localEnv(t)
	_, err := execute(t, "refresh", "--mode", "sometimes")
	assert.Error(t, err)
}
