package event

import "time"

// NotificationKind classifies a user-facing notification.
type NotificationKind string

const (
	NotificationMention     NotificationKind = "MENTION"
	NotificationAssignment  NotificationKind = "ASSIGNMENT"
	NotificationDeadline    NotificationKind = "DEADLINE"
	NotificationComment     NotificationKind = "COMMENT"
	NotificationTaskMoved   NotificationKind = "TASK_MOVED"
	NotificationTaskUpdated NotificationKind = "TASK_UPDATED"
)

// Valid reports whether k is one of the known notification kinds.
func (k NotificationKind) Valid() bool {
	switch k {
	case NotificationMention, NotificationAssignment, NotificationDeadline,
		NotificationComment, NotificationTaskMoved, NotificationTaskUpdated:
		return true
	default:
		return false
	}
}

// Sender identifies the user who triggered a notification.
type Sender struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// NotificationRecord is a persisted notification as delivered by the
// backend. The client only ever flips Read.
type NotificationRecord struct {
	ID               int64            `json:"id"`
	Kind             NotificationKind `json:"type"`
	Title            string           `json:"title"`
	Message          string           `json:"message"`
	RelatedTaskID    *int64           `json:"relatedTaskId,omitempty"`
	RelatedTaskTitle string           `json:"relatedTaskTitle,omitempty"`

	// Sender is nil for system-generated notifications.
	Sender *Sender `json:"sender,omitempty"`

	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Clone returns a deep copy so callers can hand records out without
// sharing pointers.
func (n *NotificationRecord) Clone() *NotificationRecord {
	if n == nil {
		return nil
	}
	c := *n
	if n.RelatedTaskID != nil {
		id := *n.RelatedTaskID
		c.RelatedTaskID = &id
	}
	if n.Sender != nil {
		s := *n.Sender
		c.Sender = &s
	}
	return &c
}

// IsSystem reports whether the notification has no human sender.
func (n *NotificationRecord) IsSystem() bool {
	return n.Sender == nil
}
