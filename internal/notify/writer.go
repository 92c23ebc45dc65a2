package notify

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// WriterNotifier prints one line per event, for `boardsync watch`.
type WriterNotifier struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

// NewWriterNotifier writes to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w, now: time.Now}
}

func (p *WriterNotifier) Notify(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ts := p.now().Format("15:04:05")
	switch event.Type {
	case TypeNotification:
		fmt.Fprintf(p.w, "%s  🔔 %s: %s\n", ts, event.Title, event.Message)
	case TypeUnreadCount:
		fmt.Fprintf(p.w, "%s  📬 %d unread\n", ts, event.Count)
	default:
		fmt.Fprintf(p.w, "%s  %s %s\n", ts, icon(event.Type), event.Message)
	}
}

func icon(eventType string) string {
	switch eventType {
	case TypeTaskCreated:
		return "🆕"
	case TypeTaskMoved:
		return "↔️"
	case TypeTaskUpdated:
		return "✏️"
	case TypeTaskDeleted:
		return "🗑️"
	default:
		return "❓"
	}
}
