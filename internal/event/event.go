package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// Kind tags a TaskEvent. Consumers dispatch on Kind, never on which
// optional fields happen to be set.
type Kind string

const (
	KindCreated      Kind = "CREATED"
	KindMoved        Kind = "MOVED"
	KindUpdated      Kind = "UPDATED"
	KindDeleted      Kind = "DELETED"
	KindNotification Kind = "NOTIFICATION"
)

// IsTask reports whether k describes a task lifecycle change.
func (k Kind) IsTask() bool {
	switch k {
	case KindCreated, KindMoved, KindUpdated, KindDeleted:
		return true
	default:
		return false
	}
}

// ErrMalformed is returned by Decode for payloads that are valid JSON
// but do not describe a usable event.
var ErrMalformed = errors.New("malformed event")

// TaskEvent is one decoded message from the board topic.
type TaskEvent struct {
	Kind   Kind  `json:"type"`
	TaskID int64 `json:"taskId,omitempty"`

	ListID       *int64 `json:"listId,omitempty"`
	OriginListID *int64 `json:"originListId,omitempty"`
	NewPosition  *int   `json:"newPosition,omitempty"`

	// Task is the full task snapshot sent with UPDATED events. It is kept
	// opaque: the board schema belongs to the REST layer.
	Task json.RawMessage `json:"task,omitempty"`

	Notification *NotificationRecord `json:"notification,omitempty"`

	// UnreadCount is the server-computed unread total. When present it
	// replaces whatever the client has counted locally.
	UnreadCount *int `json:"unreadCount,omitempty"`
}

// Decode parses one message body into a TaskEvent and checks that the
// kind-specific fields required by that kind are present. A notification
// of an unknown type is dropped when the event also carries an unread
// count, so the count still applies.
func Decode(data []byte) (TaskEvent, error) {
	var ev TaskEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return TaskEvent{}, fmt.Errorf("decoding event: %w", err)
	}
	if ev.Kind == KindNotification && ev.UnreadCount != nil &&
		ev.Notification != nil && !ev.Notification.Kind.Valid() {
		slog.Warn("dropping notification of unknown type",
			"type", ev.Notification.Kind, "id", ev.Notification.ID, "unread_count", *ev.UnreadCount)
		ev.Notification = nil
	}
	if err := ev.Validate(); err != nil {
		return TaskEvent{}, err
	}
	return ev, nil
}

// Validate checks the per-kind invariants of the event.
func (e TaskEvent) Validate() error {
	switch {
	case e.Kind == "":
		return fmt.Errorf("%w: missing type", ErrMalformed)
	case e.Kind.IsTask():
		if e.TaskID == 0 {
			return fmt.Errorf("%w: %s event without taskId", ErrMalformed, e.Kind)
		}
	case e.Kind == KindNotification:
		if e.Notification == nil && e.UnreadCount == nil {
			return fmt.Errorf("%w: notification event without notification or unreadCount", ErrMalformed)
		}
		if e.UnreadCount != nil && *e.UnreadCount < 0 {
			return fmt.Errorf("%w: negative unreadCount %d", ErrMalformed, *e.UnreadCount)
		}
		if e.Notification != nil && !e.Notification.Kind.Valid() {
			return fmt.Errorf("%w: unknown notification type %q", ErrMalformed, e.Notification.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformed, e.Kind)
	}
	return nil
}

// Encode marshals the event in its wire form.
func Encode(e TaskEvent) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encoding event: %w", err)
	}
	return data, nil
}
