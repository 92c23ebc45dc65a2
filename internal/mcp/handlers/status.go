package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/boardsync/internal/event"
	"github.com/btouchard/boardsync/internal/router"
)

// SyncState is the read side of the router.
type SyncState interface {
	State() router.State
	UnreadCount() int
	LastNotification() *event.NotificationRecord
}

// CountRefresher re-reads the authoritative unread count.
type CountRefresher interface {
	RefreshUnreadCount(ctx context.Context) (int, error)
}

// SyncStatus returns a handler that reports the realtime connection state.
func SyncStatus(s SyncState) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var sb strings.Builder

		state := s.State()
		fmt.Fprintf(&sb, "%s Realtime: %s\n", stateIcon(state), state)
		fmt.Fprintf(&sb, "📬 Unread notifications: %d\n", s.UnreadCount())

		if last := s.LastNotification(); last != nil {
			sb.WriteString("\nLast notification:\n")
			writeNotification(&sb, *last)
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

// RefreshUnreadCount returns a handler that re-reads the unread count from
// the backend and applies it.
func RefreshUnreadCount(r CountRefresher) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		n, err := r.RefreshUnreadCount(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Refreshing unread count failed: %s", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("📬 %d unread notifications", n)), nil
	}
}

func stateIcon(s router.State) string {
	switch s {
	case router.Connected:
		return "🟢"
	case router.Connecting:
		return "🟡"
	default:
		return "🔴"
	}
}

func writeNotification(sb *strings.Builder, n event.NotificationRecord) {
	marker := "•"
	if !n.Read {
		marker = "🔵"
	}
	fmt.Fprintf(sb, "%s **%s** [%s] #%d\n", marker, n.Title, n.Kind, n.ID)
	if n.Message != "" {
		fmt.Fprintf(sb, "  %s\n", n.Message)
	}
	if n.Sender != nil {
		fmt.Fprintf(sb, "  From: %s\n", n.Sender.Name)
	}
	if n.RelatedTaskID != nil {
		fmt.Fprintf(sb, "  Task: #%d %s\n", *n.RelatedTaskID, n.RelatedTaskTitle)
	}
	if !n.Timestamp.IsZero() {
		fmt.Fprintf(sb, "  At: %s\n", n.Timestamp.Format("2006-01-02 15:04"))
	}
}
