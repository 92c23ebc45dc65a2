package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/boardsync/internal/mcp/handlers"
)

// SyncRouter is the part of the router the tools read from.
type SyncRouter interface {
	handlers.SyncState
	handlers.CountRefresher
}

// Deps holds shared dependencies injected into MCP handlers.
type Deps struct {
	Router SyncRouter

	// Inbox is nil when the local history is disabled.
	Inbox   handlers.Inbox
	Version string
}

// NewServer creates and configures the MCP server with all tools registered.
func NewServer(deps *Deps) *server.MCPServer {
	s := server.NewMCPServer(
		"boardsync",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	registerTools(s, deps)

	return s
}
