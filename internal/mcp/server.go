// ABOUTME: MCP server implementation for maillog
// ABOUTME: Exposes read-only tools, resources, and prompts over the entry log and run journal

package mcp

import (
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/harper/maillog/internal/db"
	"github.com/harper/maillog/internal/storage"
)

// Server wraps the MCP server with maillog-specific context.
// Nothing exposed here writes: the ingest run owns every mutation.
type Server struct {
	mcpServer *server.MCPServer
	store     storage.Store
	journal   *db.Journal
	now       func() time.Time
}

// NewServer creates a new MCP server instance. journal may be nil.
func NewServer(store storage.Store, journal *db.Journal, version string) *Server {
	s := &Server{
		store:   store,
		journal: journal,
		now:     time.Now,
	}

	s.mcpServer = server.NewMCPServer(
		"maillog",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
