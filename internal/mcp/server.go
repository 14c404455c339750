package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/casechat/casechat/internal/chat"
	"github.com/casechat/casechat/internal/vectordb"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Answerer is the retrieval chain the tools run against. *chat.Chain
// implements it.
type Answerer interface {
	Retrieve(ctx context.Context, query string, k int) ([]vectordb.SearchResult, error)
	Call(ctx context.Context, q chat.Query, onToken func(string)) (*chat.Result, error)
}

// Server wraps an MCP server that exposes document search tools.
type Server struct {
	chain Answerer
	mcp   *server.MCPServer
}

// NewServer creates a new MCP server backed by chain.
func NewServer(chain Answerer) *Server {
	s := &Server{chain: chain}

	s.mcp = server.NewMCPServer(
		"casechat",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchDocumentsTool, s.handleSearchDocuments)
	s.mcp.AddTool(askDocumentsTool, s.handleAskDocuments)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
