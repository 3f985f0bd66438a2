package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/searcher"
)

// retrieveContextTool returns the tool definition for retrieve_context
func retrieveContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "retrieve_context",
		Description: "Find the catalog entities most relevant to a question, best match first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language question or keywords",
				},
				"char_limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum total characters of returned content",
					"default":     searcher.DefaultCharLimit,
					"minimum":     1,
				},
			},
			Required: []string{"query"},
		},
	}
}

// refreshEmbeddingsTool returns the tool definition for refresh_embeddings
func refreshEmbeddingsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "refresh_embeddings",
		Description: "Compute embeddings for entities whose content has none yet",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "bulk computes everything at once and writes in one transaction; incremental writes one by one and retries transient failures",
					"enum":        []string{"bulk", "incremental", "skip"},
					"default":     "incremental",
				},
				"wait": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, block until the refresh finishes and return its statistics",
					"default":     false,
				},
			},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report stored entity and embedding counts and the last refresh run",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
