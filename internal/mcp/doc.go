// Package mcp implements the Model Context Protocol (MCP) server for portal-chat.
//
// The MCP server exposes three tools to AI assistants:
//   - retrieve_context: Rank stored catalog content against a question
//   - refresh_embeddings: Compute missing embeddings
//   - get_status: Report entity and embedding counts
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is started with:
//
//	portal-chat mcp
//
// Logs go to stderr so they never mix with protocol messages on stdout.
//
// # Tool: retrieve_context
//
//	Request:
//	{
//	  "name": "retrieve_context",
//	  "arguments": {"query": "Who owns the billing API?", "char_limit": 4000}
//	}
//
//	Response:
//	{
//	  "count": 2,
//	  "candidates": 312,
//	  "skipped": 0,
//	  "duration_ms": 184,
//	  "results": [
//	    {"id": "component:default/billing-api", "similarity": 0.87, "content": "kind: Component ..."},
//	    {"id": "group:default/payments", "similarity": 0.81, "content": "kind: Group ..."}
//	  ]
//	}
//
// The budget counts characters of content. Results stop at the first entry
// that would exceed it.
//
// # Tool: refresh_embeddings
//
//	Request:
//	{
//	  "name": "refresh_embeddings",
//	  "arguments": {"mode": "incremental", "wait": false}
//	}
//
//	Response:
//	{"started": true, "mode": "incremental"}
//
// With "wait": true the call blocks and returns the run statistics instead.
//
// # Tool: get_status
//
//	Response:
//	{
//	  "storage": {"backend": "sqlite/purego", "schema_version": "1.1.0"},
//	  "statistics": {"entities": 312, "embedded": 310, "pending": 2},
//	  "refresh": {"running": false}
//	}
//
// # Error Codes
//
//	-32602  Invalid parameters
//	-32603  Internal error
//	-32002  Refresh already in progress
//	-32004  Empty query
//	-32005  Embedding provider failed
package mcp
