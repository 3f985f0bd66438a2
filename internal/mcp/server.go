package mcp

import (
	"context"
	"io"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/indexer"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/searcher"
	"github.com/Wojciech-Przybylski/Software-Developer-Portal/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "portal-chat"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Retriever ranks stored content against a query
type Retriever interface {
	Search(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error)
}

// Refresher runs embedding refreshes
type Refresher interface {
	Refresh(ctx context.Context, mode indexer.Mode) (*indexer.Statistics, error)
	RefreshAsync(mode indexer.Mode) bool
	Running() bool
	LastRun() *indexer.RunSummary
}

// StatusSource reports store statistics
type StatusSource interface {
	Status(ctx context.Context) (*storage.Status, error)
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	retriever Retriever
	refresher Refresher
	status    StatusSource
	logger    *zap.Logger
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP server instance
func NewServer(retriever Retriever, refresher Refresher, status StatusSource, opts ...Option) *Server {
	s := &Server{
		mcp:       server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		retriever: retriever,
		refresher: refresher,
		status:    status,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()
	return s
}

// Serve runs the MCP protocol on stdin/stdout until ctx is cancelled or
// stdin is closed
func (s *Server) Serve(ctx context.Context) error {
	return s.Listen(ctx, os.Stdin, os.Stdout)
}

// Listen is Serve on arbitrary streams
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	s.logger.Info("mcp server listening on stdio", zap.String("name", ServerName))
	return stdio.Listen(ctx, in, out)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(retrieveContextTool(), s.handleRetrieveContext)
	s.mcp.AddTool(refreshEmbeddingsTool(), s.handleRefreshEmbeddings)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
