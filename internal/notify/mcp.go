package notify

import (
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// MCPSender abstracts the mcp-go server notification methods.
// Defined consumer-side per Go convention.
type MCPSender interface {
	SendNotificationToSpecificClient(sessionID string, method string, params map[string]any) error
	SendNotificationToAllClients(method string, params map[string]any)
}

// MCPNotifier pushes realtime changes to MCP clients. Bursty events
// (task updates, unread count changes) are debounced per key; deletions
// and notifications are always sent.
type MCPNotifier struct {
	sender   MCPSender
	debounce time.Duration

	mu       sync.Mutex
	lastSent map[string]time.Time // debounce key → last send time
}

// NewMCPNotifier creates an MCPNotifier with the given debounce interval.
func NewMCPNotifier(sender MCPSender, debounce time.Duration) *MCPNotifier {
	if debounce <= 0 {
		debounce = 3 * time.Second
	}
	return &MCPNotifier{
		sender:   sender,
		debounce: debounce,
		lastSent: make(map[string]time.Time),
	}
}

// Notify sends an MCP notification for the given event.
func (n *MCPNotifier) Notify(event Event) {
	switch event.Type {
	case TypeTaskUpdated:
		if n.debounced(taskKey(event.TaskID)) {
			return
		}
		n.sendMessage(event, "info")
	case TypeTaskCreated, TypeTaskMoved:
		n.sendMessage(event, "info")
	case TypeTaskDeleted:
		n.clearDebounce(taskKey(event.TaskID))
		n.sendMessage(event, "warning")
	case TypeNotification:
		n.sendMessage(event, "notice")
	case TypeUnreadCount:
		if n.debounced(TypeUnreadCount) {
			return
		}
		n.sendMessage(event, "info")
	default:
		slog.Debug("mcp notifier: unknown event type", "type", event.Type)
	}
}

// debounced records a send for key and reports whether it should be
// skipped because the previous one was too recent.
func (n *MCPNotifier) debounced(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	last, ok := n.lastSent[key]
	if ok && time.Since(last) < n.debounce {
		return true
	}
	n.lastSent[key] = time.Now()
	return false
}

func (n *MCPNotifier) sendMessage(event Event, level string) {
	data := map[string]any{
		"type":    event.Type,
		"message": event.Message,
	}
	if event.TaskID != 0 {
		data["task_id"] = event.TaskID
	}
	if event.Title != "" {
		data["title"] = event.Title
	}
	if event.Type == TypeUnreadCount {
		data["count"] = event.Count
	}

	params := map[string]any{
		"level":  level,
		"logger": "boardsync",
		"data":   data,
	}

	n.send(event.MCPSessionID, "notifications/message", params)
}

// send dispatches to a specific client or broadcasts.
func (n *MCPNotifier) send(mcpSessionID, method string, params map[string]any) {
	if mcpSessionID != "" {
		if err := n.sender.SendNotificationToSpecificClient(mcpSessionID, method, params); err != nil {
			slog.Debug("mcp notification failed, falling back to broadcast",
				"session_id", mcpSessionID,
				"method", method,
				"error", err)
			n.sender.SendNotificationToAllClients(method, params)
		}
		return
	}
	n.sender.SendNotificationToAllClients(method, params)
}

func (n *MCPNotifier) clearDebounce(key string) {
	n.mu.Lock()
	delete(n.lastSent, key)
	n.mu.Unlock()
}

func taskKey(id int64) string {
	return "task:" + strconv.FormatInt(id, 10)
}
