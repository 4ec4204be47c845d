// Package mcp exposes the name service as Model Context Protocol tools.
package mcp

import (
	"context"
	"io"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/magus-names/magus/pkg/models"
)

// NameService is the generation surface the tools call into.
type NameService interface {
	GenerateNames(ctx context.Context, req models.GenerationRequest) (*models.GenerationResponse, error)
	RandomName(ctx context.Context, culture string, gender models.Gender) (*models.GenerationResponse, error)
	ValidateName(ctx context.Context, name, culture string) (*models.NameValidation, error)
	Cultures() []models.CultureInfo
	CacheStats(ctx context.Context) models.CacheStats
}

// Historian provides stored name history. It is optional.
type Historian interface {
	History(ctx context.Context, filter models.HistoryFilter) ([]models.NameRecord, error)
	Summary(ctx context.Context) ([]models.CultureSummary, error)
}

// Server wraps an MCP server with the magus tools registered.
type Server struct {
	svc     NameService
	history Historian
	logger  *zap.Logger
	mcp     *server.MCPServer
}

// New creates a Server. history may be nil, in which case the history tool
// is not registered.
func New(svc NameService, history Historian, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		svc:     svc,
		history: history,
		logger:  logger,
		mcp: server.NewMCPServer(
			"magus",
			version,
			server.WithRecovery(),
			server.WithToolCapabilities(false),
		),
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// Run serves JSON-RPC over r and w until r is closed or ctx is cancelled.
func (s *Server) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	s.logger.Info("mcp server listening on stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, r, w)
}
