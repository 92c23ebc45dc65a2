package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/boardsync/internal/mcp/handlers"
)

func registerTools(s *server.MCPServer, deps *Deps) {
	// sync_status: connection state, unread count, last notification
	s.AddTool(
		mcp.NewTool("sync_status",
			mcp.WithDescription("Show the realtime board connection state, the unread notification count and the most recent notification."),
		),
		handlers.SyncStatus(deps.Router),
	)

	// refresh_unread_count: re-read the count from the backend
	s.AddTool(
		mcp.NewTool("refresh_unread_count",
			mcp.WithDescription("Re-read the authoritative unread notification count from the backend and publish it."),
		),
		handlers.RefreshUnreadCount(deps.Router),
	)

	// list_notifications: local inbox
	s.AddTool(
		mcp.NewTool("list_notifications",
			mcp.WithDescription("List notifications received over the realtime connection, newest first."),
			mcp.WithBoolean("unread_only",
				mcp.Description("Only return notifications not yet marked read"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of notifications to return (default: 20)"),
			),
		),
		handlers.ListNotifications(deps.Inbox),
	)

	// list_task_events: local task event history
	s.AddTool(
		mcp.NewTool("list_task_events",
			mcp.WithDescription("List task lifecycle events received over the realtime connection, newest first."),
			mcp.WithNumber("task_id",
				mcp.Description("Only events for this task"),
			),
			mcp.WithString("kind",
				mcp.Description("Only events of this kind"),
				mcp.Enum("created", "moved", "updated", "deleted"),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of events to return (default: 20)"),
			),
		),
		handlers.ListTaskEvents(deps.Inbox),
	)
}
