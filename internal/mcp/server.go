package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kindfund/kindfund/internal/policy"
)

// DocumentReader is the read side of the document store. *config.Store
// satisfies it.
type DocumentReader interface {
	ListDocuments(ctx context.Context, collection string, limit, offset int) ([]json.RawMessage, int64, error)
	GetDocument(ctx context.Context, collection, id string, dst any) error
}

// MCPServer wraps the mcp-go server with kindfund's catalogue tools and
// resources. Only collections whose list or get operation is open in the
// access policy are reachable, so nothing here needs a session token.
type MCPServer struct {
	store   DocumentReader
	policy  policy.Table
	logger  *slog.Logger
	server  *server.MCPServer
	version string
}

// NewMCPServer creates an MCPServer with all tools and resources registered.
// The returned server is ready to serve over stdio or HTTP.
func NewMCPServer(store DocumentReader, table policy.Table, version string, logger *slog.Logger) *MCPServer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &MCPServer{
		store:   store,
		policy:  table,
		logger:  logger,
		version: version,
	}

	mcpServer := server.NewMCPServer(
		"kindfund catalogue",
		version,
		server.WithResourceCapabilities(true, false),
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)
	s.registerResources(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode, for clients that launch
// kindfund as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// HTTPHandler returns a Streamable HTTP handler that can be mounted on the
// main router.
func (s *MCPServer) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.server)
}

// listable reports whether collection may be listed without a token.
func (s *MCPServer) listable(collection string) bool {
	return s.policy.Lookup(collection, policy.List) == policy.Open
}

// readable reports whether single documents of collection may be fetched
// without a token.
func (s *MCPServer) readable(collection string) bool {
	return s.policy.Lookup(collection, policy.Get) == policy.Open
}

// publicCollections returns the collections reachable through MCP.
func (s *MCPServer) publicCollections() []string {
	var out []string
	for _, name := range s.policy.Resources() {
		if s.listable(name) || s.readable(name) {
			out = append(out, name)
		}
	}
	return out
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
