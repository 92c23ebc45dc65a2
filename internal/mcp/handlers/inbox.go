package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/boardsync/internal/event"
	"github.com/btouchard/boardsync/internal/notify"
	"github.com/btouchard/boardsync/internal/store"
)

// Inbox is the read side of the local history.
type Inbox interface {
	ListNotifications(f store.NotificationFilter) ([]store.Notification, error)
	GetEvents(f store.EventFilter) ([]store.TaskEventRecord, error)
}

const defaultListLimit = 20

// ListNotifications returns a handler that lists recorded notifications.
func ListNotifications(inbox Inbox) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if inbox == nil {
			return mcp.NewToolResultError("The local inbox is disabled (inbox.enabled: false)."), nil
		}
		args := req.GetArguments()

		filter := store.NotificationFilter{Limit: defaultListLimit}
		if unread, ok := args["unread_only"].(bool); ok {
			filter.UnreadOnly = unread
		}
		if limit, ok := args["limit"].(float64); ok && limit > 0 {
			filter.Limit = int(limit)
		}

		notifications, err := inbox.ListNotifications(filter)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Reading inbox failed: %s", err)), nil
		}
		if len(notifications) == 0 {
			return mcp.NewToolResultText("No notifications recorded."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "🔔 Notifications (%d)\n\n", len(notifications))
		for _, n := range notifications {
			writeNotification(&sb, n.NotificationRecord)
			sb.WriteString("\n")
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// ListTaskEvents returns a handler that lists recorded task events.
func ListTaskEvents(inbox Inbox) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if inbox == nil {
			return mcp.NewToolResultError("The local inbox is disabled (inbox.enabled: false)."), nil
		}
		args := req.GetArguments()

		filter := store.EventFilter{Limit: defaultListLimit}
		if id, ok := args["task_id"].(float64); ok && id > 0 {
			filter.TaskID = int64(id)
		}
		if kind, ok := args["kind"].(string); ok && kind != "" {
			filter.Kind = event.Kind(strings.ToUpper(kind))
			if !filter.Kind.IsTask() {
				return mcp.NewToolResultError(fmt.Sprintf("Unknown event kind %q", kind)), nil
			}
		}
		if limit, ok := args["limit"].(float64); ok && limit > 0 {
			filter.Limit = int(limit)
		}

		events, err := inbox.GetEvents(filter)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Reading task events failed: %s", err)), nil
		}
		if len(events) == 0 {
			return mcp.NewToolResultText("No task events recorded matching the given filters."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "📋 Task events (%d)\n\n", len(events))
		for _, e := range events {
			rendered := notify.FromTaskEvent(e.Event)
			fmt.Fprintf(&sb, "%s  %s\n", e.ReceivedAt.Local().Format("2006-01-02 15:04:05"), rendered.Message)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
