package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/indexer"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/searcher"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/storage"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/pkg/types"
)

type mockRetriever struct {
	req  searcher.SearchRequest
	resp *searcher.SearchResponse
	err  error
}

func (m *mockRetriever) Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error) {
	m.req = req
	return m.resp, m.err
}

type mockRefresher struct {
	asyncModes []indexer.Mode
	syncModes  []indexer.Mode
	stats      *indexer.Statistics
	err        error
	running    bool
	last       *indexer.RunSummary
}

func (m *mockRefresher) Refresh(ctx context.Context, mode indexer.Mode) (*indexer.Statistics, error) {
	m.syncModes = append(m.syncModes, mode)
	return m.stats, m.err
}

func (m *mockRefresher) RefreshAsync(mode indexer.Mode) bool {
	m.asyncModes = append(m.asyncModes, mode)
	return true
}

func (m *mockRefresher) Running() bool                { return m.running }
func (m *mockRefresher) LastRun() *indexer.RunSummary { return m.last }

type mockStatus struct {
	status *storage.Status
	err    error
}

func (m *mockStatus) Status(ctx context.Context) (*storage.Status, error) {
	return m.status, m.err
}

func newTestServer() (*Server, *mockRetriever, *mockRefresher, *mockStatus) {
	retriever := &mockRetriever{resp: &searcher.SearchResponse{}}
	refresher := &mockRefresher{}
	status := &mockStatus{status: &storage.Status{}}
	return NewServer(retriever, refresher, status), retriever, refresher, status
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultJSON decodes the text content of a tool result
func resultJSON(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func requireMCPError(t *testing.T, err error, code int) {
	t.Helper()
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
}

func TestNewServer(t *testing.T) {
	server, _, _, _ := newTestServer()
	assert.NotNil(t, server.mcp)
	assert.NotNil(t, server.logger)
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		tool     mcp.Tool
		name     string
		required []string
	}{
		{tool: retrieveContextTool(), name: "retrieve_context", required: []string{"query"}},
		{tool: refreshEmbeddingsTool(), name: "refresh_embeddings"},
		{tool: getStatusTool(), name: "get_status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.tool.Name)
			assert.NotEmpty(t, tt.tool.Description)
			assert.Equal(t, "object", tt.tool.InputSchema.Type)
			assert.Equal(t, tt.required, tt.tool.InputSchema.Required)
		})
	}
}

func TestRetrieveContext(t *testing.T) {
	server, retriever, _, _ := newTestServer()
	retriever.resp = &searcher.SearchResponse{
		Results: []types.ScoredContent{
			{ID: "component:billing", Content: "kind: Component", Similarity: 0.9},
			{ID: "group:payments", Content: "kind: Group", Similarity: 0.8},
		},
		Candidates: 10,
		Skipped:    1,
		Duration:   20 * time.Millisecond,
	}

	result, err := server.handleRetrieveContext(context.Background(), callRequest("retrieve_context", map[string]interface{}{
		"query":      "who owns billing",
		"char_limit": float64(500),
	}))
	require.NoError(t, err)

	assert.Equal(t, searcher.SearchRequest{Query: "who owns billing", CharLimit: 500}, retriever.req)

	out := resultJSON(t, result)
	assert.Equal(t, float64(2), out["count"])
	assert.Equal(t, float64(10), out["candidates"])
	assert.Equal(t, float64(1), out["skipped"])
	results := out["results"].([]interface{})
	first := results[0].(map[string]interface{})
	assert.Equal(t, "component:billing", first["id"])
	assert.Equal(t, 0.9, first["similarity"])
}

func TestRetrieveContext_DefaultLimit(t *testing.T) {
	server, retriever, _, _ := newTestServer()

	_, err := server.handleRetrieveContext(context.Background(), callRequest("retrieve_context", map[string]interface{}{
		"query": "q",
	}))
	require.NoError(t, err)
	assert.Equal(t, searcher.DefaultCharLimit, retriever.req.CharLimit)
}

func TestRetrieveContext_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     map[string]interface{}
		err      error
		wantCode int
	}{
		{name: "missing query", args: map[string]interface{}{}, wantCode: ErrorCodeEmptyQuery},
		{name: "blank query", args: map[string]interface{}{"query": "   "}, wantCode: ErrorCodeEmptyQuery},
		{name: "bad limit", args: map[string]interface{}{"query": "q", "char_limit": float64(0)}, wantCode: ErrorCodeInvalidParams},
		{
			name:     "query too long",
			args:     map[string]interface{}{"query": "q"},
			err:      &types.ContentTooLongError{EntityID: "QUERY_PLACEHOLDER_ID", Length: 5000, Limit: 4000},
			wantCode: ErrorCodeInvalidParams,
		},
		{
			name:     "provider failure",
			args:     map[string]interface{}{"query": "q"},
			err:      &types.RemoteComputeError{EntityID: "QUERY_PLACEHOLDER_ID", Err: errors.New("503")},
			wantCode: ErrorCodeEmbeddingFailed,
		},
		{
			name:     "store failure",
			args:     map[string]interface{}{"query": "q"},
			err:      errors.New("database is locked"),
			wantCode: ErrorCodeInternalError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, retriever, _, _ := newTestServer()
			retriever.err = tt.err

			_, err := server.handleRetrieveContext(context.Background(), callRequest("retrieve_context", tt.args))
			requireMCPError(t, err, tt.wantCode)
		})
	}
}

func TestRefreshEmbeddings(t *testing.T) {
	t.Run("starts a background run by default", func(t *testing.T) {
		server, _, refresher, _ := newTestServer()

		result, err := server.handleRefreshEmbeddings(context.Background(), callRequest("refresh_embeddings", nil))
		require.NoError(t, err)

		out := resultJSON(t, result)
		assert.Equal(t, true, out["started"])
		assert.Equal(t, "incremental", out["mode"])
		assert.Equal(t, []indexer.Mode{indexer.ModeIncremental}, refresher.asyncModes)
		assert.Empty(t, refresher.syncModes)
	})

	t.Run("waits when asked", func(t *testing.T) {
		server, _, refresher, _ := newTestServer()
		refresher.stats = &indexer.Statistics{Mode: indexer.ModeBulk, Pending: 3, Embedded: 3}

		result, err := server.handleRefreshEmbeddings(context.Background(), callRequest("refresh_embeddings", map[string]interface{}{
			"mode": "bulk",
			"wait": true,
		}))
		require.NoError(t, err)

		out := resultJSON(t, result)
		assert.Equal(t, true, out["completed"])
		stats := out["statistics"].(map[string]interface{})
		assert.Equal(t, float64(3), stats["embedded"])
		assert.Equal(t, []indexer.Mode{indexer.ModeBulk}, refresher.syncModes)
	})

	t.Run("reports a failed run with its progress", func(t *testing.T) {
		server, _, refresher, _ := newTestServer()
		refresher.stats = &indexer.Statistics{Mode: indexer.ModeIncremental, Embedded: 1}
		refresher.err = errors.New("giving up on b")

		result, err := server.handleRefreshEmbeddings(context.Background(), callRequest("refresh_embeddings", map[string]interface{}{
			"wait": true,
		}))
		require.NoError(t, err)

		out := resultJSON(t, result)
		assert.Equal(t, false, out["completed"])
		assert.Equal(t, "giving up on b", out["error"])
	})

	t.Run("refresh in progress", func(t *testing.T) {
		server, _, refresher, _ := newTestServer()
		refresher.err = indexer.ErrRefreshInProgress

		_, err := server.handleRefreshEmbeddings(context.Background(), callRequest("refresh_embeddings", map[string]interface{}{
			"wait": true,
		}))
		requireMCPError(t, err, ErrorCodeRefreshInProgress)
	})

	t.Run("invalid mode", func(t *testing.T) {
		server, _, refresher, _ := newTestServer()

		_, err := server.handleRefreshEmbeddings(context.Background(), callRequest("refresh_embeddings", map[string]interface{}{
			"mode": "full",
		}))
		requireMCPError(t, err, ErrorCodeInvalidParams)
		assert.Empty(t, refresher.asyncModes)
	})
}

func TestGetStatus(t *testing.T) {
	server, _, refresher, status := newTestServer()
	status.status = &storage.Status{Backend: "postgres", SchemaVersion: "1.1.0", Entities: 4, Embedded: 3, Pending: 1}
	refresher.running = true
	refresher.last = &indexer.RunSummary{
		Stats:      indexer.Statistics{Mode: indexer.ModeIncremental, Skipped: 1, SkippedIDs: []string{"big"}},
		FinishedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	result, err := server.handleGetStatus(context.Background(), callRequest("get_status", nil))
	require.NoError(t, err)

	out := resultJSON(t, result)
	stats := out["statistics"].(map[string]interface{})
	assert.Equal(t, float64(4), stats["entities"])
	assert.Equal(t, float64(1), stats["pending"])

	refresh := out["refresh"].(map[string]interface{})
	assert.Equal(t, true, refresh["running"])
	lastRun := refresh["last_run"].(map[string]interface{})
	assert.Equal(t, "2024-05-01T12:00:00Z", lastRun["finished_at"])
	assert.Equal(t, []interface{}{"big"}, lastRun["skipped_ids"])
	assert.NotContains(t, lastRun, "error")
}

func TestGetStatus_StoreError(t *testing.T) {
	server, _, _, status := newTestServer()
	status.err = errors.New("closed")

	_, err := server.handleGetStatus(context.Background(), callRequest("get_status", nil))
	requireMCPError(t, err, ErrorCodeInternalError)
}

func TestMCPError(t *testing.T) {
	err := newMCPError(ErrorCodeEmptyQuery, "query parameter is required", nil)
	assert.Equal(t, "MCP error -32004: query parameter is required", err.Error())
}
