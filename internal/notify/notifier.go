package notify

import (
	"fmt"

	"github.com/btouchard/boardsync/internal/event"
)

// Event types emitted to notifiers.
const (
	TypeTaskCreated  = "task.created"
	TypeTaskMoved    = "task.moved"
	TypeTaskUpdated  = "task.updated"
	TypeTaskDeleted  = "task.deleted"
	TypeNotification = "notification"
	TypeUnreadCount  = "unread_count"
)

// Event is a realtime change rendered for delivery outside the process.
type Event struct {
	Type    string
	TaskID  int64
	Title   string
	Message string

	// Count is set for unread_count events.
	Count int

	// MCPSessionID targets a specific MCP client session.
	// Empty means broadcast to all.
	MCPSessionID string
}

// Notifier receives events.
type Notifier interface {
	Notify(event Event)
}

// Hub dispatches events to multiple notifiers, in order, on the caller's
// goroutine.
type Hub struct {
	notifiers []Notifier
}

// NewHub creates a Hub with the given notifiers.
func NewHub(notifiers ...Notifier) *Hub {
	return &Hub{notifiers: notifiers}
}

// Notify sends an event to all registered notifiers.
func (h *Hub) Notify(event Event) {
	for _, n := range h.notifiers {
		n.Notify(event)
	}
}

// Source is the subset of the router a Hub is fed from.
type Source interface {
	Subscribe(fn func(event.TaskEvent)) func()
	SubscribeNotifications(fn func(event.NotificationRecord)) func()
	SubscribeUnreadCount(fn func(int)) func()
}

// Attach subscribes n to every stream of src and returns the func that
// detaches it again.
func Attach(src Source, n Notifier) (detach func()) {
	unsubs := []func(){
		src.Subscribe(func(ev event.TaskEvent) { n.Notify(FromTaskEvent(ev)) }),
		src.SubscribeNotifications(func(rec event.NotificationRecord) { n.Notify(FromNotification(rec)) }),
		src.SubscribeUnreadCount(func(count int) { n.Notify(UnreadCount(count)) }),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// FromTaskEvent renders a task lifecycle event.
func FromTaskEvent(ev event.TaskEvent) Event {
	out := Event{TaskID: ev.TaskID}
	switch ev.Kind {
	case event.KindCreated:
		out.Type = TypeTaskCreated
		out.Message = fmt.Sprintf("task %d created", ev.TaskID)
	case event.KindMoved:
		out.Type = TypeTaskMoved
		out.Message = movedMessage(ev)
	case event.KindUpdated:
		out.Type = TypeTaskUpdated
		out.Message = fmt.Sprintf("task %d updated", ev.TaskID)
	case event.KindDeleted:
		out.Type = TypeTaskDeleted
		out.Message = fmt.Sprintf("task %d deleted", ev.TaskID)
	default:
		out.Type = string(ev.Kind)
	}
	return out
}

func movedMessage(ev event.TaskEvent) string {
	msg := fmt.Sprintf("task %d moved", ev.TaskID)
	if ev.OriginListID != nil && ev.ListID != nil {
		msg += fmt.Sprintf(" from list %d to list %d", *ev.OriginListID, *ev.ListID)
	} else if ev.ListID != nil {
		msg += fmt.Sprintf(" to list %d", *ev.ListID)
	}
	if ev.NewPosition != nil {
		msg += fmt.Sprintf(" at position %d", *ev.NewPosition)
	}
	return msg
}

// FromNotification renders a notification record.
func FromNotification(rec event.NotificationRecord) Event {
	out := Event{
		Type:    TypeNotification,
		Title:   rec.Title,
		Message: rec.Message,
	}
	if rec.RelatedTaskID != nil {
		out.TaskID = *rec.RelatedTaskID
	}
	if rec.Sender != nil && rec.Sender.Name != "" {
		out.Message = rec.Sender.Name + ": " + rec.Message
	}
	return out
}

// UnreadCount renders an unread count change.
func UnreadCount(n int) Event {
	return Event{
		Type:    TypeUnreadCount,
		Count:   n,
		Message: fmt.Sprintf("%d unread", n),
	}
}
