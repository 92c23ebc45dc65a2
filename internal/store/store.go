package store

import (
	"errors"
	"time"

	"github.com/btouchard/boardsync/internal/event"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Store is the local inbox: a history of what arrived over the realtime
// connection. Defined at the consumer side per Go conventions.
type Store interface {
	// Notifications
	SaveNotification(n *event.NotificationRecord, receivedAt time.Time) error
	GetNotification(id int64) (*Notification, error)
	ListNotifications(f NotificationFilter) ([]Notification, error)
	MarkNotificationRead(id int64) error
	MarkAllNotificationsRead() error
	DeleteNotification(id int64) error

	// Task events
	AddEvent(e *TaskEventRecord) error
	GetEvents(f EventFilter) ([]TaskEventRecord, error)

	// Maintenance
	Cleanup(before time.Time) (int64, error)
	Close() error
}

// Notification is a stored notification record.
type Notification struct {
	event.NotificationRecord
	ReceivedAt time.Time `json:"received_at"`
}

// NotificationFilter specifies criteria for listing notifications.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
}

// TaskEventRecord is one task lifecycle event as received.
type TaskEventRecord struct {
	ID         int64           `json:"id"`
	TaskID     int64           `json:"task_id"`
	Kind       event.Kind      `json:"kind"`
	Event      event.TaskEvent `json:"event"`
	ReceivedAt time.Time       `json:"received_at"`
}

// EventFilter specifies criteria for listing task events. Zero values
// match everything.
type EventFilter struct {
	TaskID int64
	Kind   event.Kind
	Limit  int
}
