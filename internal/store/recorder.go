package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/btouchard/boardsync/internal/event"
)

// Source is the part of the router the recorder listens to.
type Source interface {
	Subscribe(fn func(event.TaskEvent)) func()
	SubscribeNotifications(fn func(event.NotificationRecord)) func()
}

// Recorder writes everything delivered by a Source into a Store.
// Write failures are logged and never reach the router.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder creates a Recorder writing to s.
func NewRecorder(s Store) *Recorder {
	return &Recorder{store: s, now: time.Now}
}

// Attach subscribes the recorder to src and returns the func that
// detaches it again.
func (r *Recorder) Attach(src Source) (detach func()) {
	unsubTasks := src.Subscribe(r.recordEvent)
	unsubNotes := src.SubscribeNotifications(r.recordNotification)
	return func() {
		unsubTasks()
		unsubNotes()
	}
}

func (r *Recorder) recordEvent(ev event.TaskEvent) {
	rec := &TaskEventRecord{
		TaskID:     ev.TaskID,
		Kind:       ev.Kind,
		Event:      ev,
		ReceivedAt: r.now(),
	}
	if err := r.store.AddEvent(rec); err != nil {
		slog.Error("recording task event", "task_id", ev.TaskID, "kind", ev.Kind, "error", err)
	}
}

func (r *Recorder) recordNotification(n event.NotificationRecord) {
	if err := r.store.SaveNotification(&n, r.now()); err != nil {
		slog.Error("recording notification", "notification_id", n.ID, "error", err)
	}
}

// RunCleanup deletes records older than retention every interval until ctx
// is done. A non-positive retention disables cleanup.
func (r *Recorder) RunCleanup(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		r.cleanup(retention)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Recorder) cleanup(retention time.Duration) {
	n, err := r.store.Cleanup(r.now().Add(-retention))
	if err != nil {
		slog.Error("inbox cleanup failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("inbox cleanup", "deleted", n)
	}
}
