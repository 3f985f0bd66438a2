package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/indexer"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/searcher"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams     = -32602 // Invalid method parameters
	ErrorCodeInternalError     = -32603 // Internal JSON-RPC error
	ErrorCodeRefreshInProgress = -32002 // Another refresh is already running
	ErrorCodeEmptyQuery        = -32004 // Query parameter is empty
	ErrorCodeEmbeddingFailed   = -32005 // The embedding provider could not embed the query
)

// handleRetrieveContext handles the retrieve_context tool invocation
func (s *Server) handleRetrieveContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	charLimit := getIntDefault(args, "char_limit", searcher.DefaultCharLimit)
	if charLimit < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "char_limit must be positive", map[string]interface{}{
			"param": "char_limit",
			"value": charLimit,
		})
	}

	resp, err := s.retriever.Search(ctx, searcher.SearchRequest{Query: query, CharLimit: charLimit})
	switch {
	case err == nil:
	case errors.Is(err, types.ErrContentTooLong):
		return nil, newMCPError(ErrorCodeInvalidParams, "query is too long to embed", map[string]interface{}{
			"param": "query",
			"error": err.Error(),
		})
	case errors.Is(err, types.ErrRemoteCompute):
		return nil, newMCPError(ErrorCodeEmbeddingFailed, "failed to embed query", map[string]interface{}{
			"error": err.Error(),
		})
	default:
		s.logger.Error("retrieve_context failed", zap.Error(err))
		return nil, newMCPError(ErrorCodeInternalError, "retrieval failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = map[string]interface{}{
			"id":         r.ID,
			"similarity": r.Similarity,
			"content":    r.Content,
		}
	}

	response := map[string]interface{}{
		"results":     results,
		"count":       len(results),
		"candidates":  resp.Candidates,
		"skipped":     resp.Skipped,
		"duration_ms": resp.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRefreshEmbeddings handles the refresh_embeddings tool invocation
func (s *Server) handleRefreshEmbeddings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok && request.Params.Arguments != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	mode, err := indexer.ParseMode(getStringDefault(args, "mode", string(indexer.ModeIncremental)))
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid mode", map[string]interface{}{
			"param":   "mode",
			"reason":  err.Error(),
			"allowed": []string{"bulk", "incremental", "skip"},
		})
	}

	if !getBoolDefault(args, "wait", false) {
		started := s.refresher.RefreshAsync(mode)
		return mcp.NewToolResultText(formatJSON(map[string]interface{}{
			"started": started,
			"mode":    mode.String(),
		})), nil
	}

	stats, err := s.refresher.Refresh(ctx, mode)
	if errors.Is(err, indexer.ErrRefreshInProgress) {
		return nil, newMCPError(ErrorCodeRefreshInProgress, "a refresh is already running", nil)
	}

	response := map[string]interface{}{
		"mode":      mode.String(),
		"completed": err == nil,
	}
	if stats != nil {
		response["statistics"] = statisticsJSON(*stats)
	}
	if err != nil {
		response["error"] = err.Error()
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.status.Status(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	refresh := map[string]interface{}{
		"running": s.refresher.Running(),
	}
	if last := s.refresher.LastRun(); last != nil {
		lastRun := statisticsJSON(last.Stats)
		lastRun["finished_at"] = last.FinishedAt.Format(time.RFC3339)
		if last.Err != nil {
			lastRun["error"] = last.Err.Error()
		}
		refresh["last_run"] = lastRun
	}

	response := map[string]interface{}{
		"storage": map[string]interface{}{
			"backend":        status.Backend,
			"schema_version": status.SchemaVersion,
		},
		"statistics": map[string]interface{}{
			"entities": status.Entities,
			"embedded": status.Embedded,
			"pending":  status.Pending,
		},
		"refresh": refresh,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

func statisticsJSON(stats indexer.Statistics) map[string]interface{} {
	out := map[string]interface{}{
		"mode":        stats.Mode.String(),
		"pending":     stats.Pending,
		"embedded":    stats.Embedded,
		"skipped":     stats.Skipped,
		"retries":     stats.Retries,
		"duration_ms": stats.Duration.Milliseconds(),
	}
	if len(stats.SkippedIDs) > 0 {
		out["skipped_ids"] = stats.SkippedIDs
	}
	return out
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
