package store

// migrations are applied in order; index i is schema version i+1. One
// statement per entry.
var migrations = []string{
	`CREATE TABLE notifications (
		id INTEGER PRIMARY KEY,
		kind TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		message TEXT NOT NULL DEFAULT '',
		related_task_id INTEGER,
		related_task_title TEXT NOT NULL DEFAULT '',
		sender_id INTEGER,
		sender_name TEXT NOT NULL DEFAULT '',
		sender_avatar TEXT NOT NULL DEFAULT '',
		read INTEGER NOT NULL DEFAULT 0,
		timestamp TEXT NOT NULL DEFAULT '',
		received_at TEXT NOT NULL
	)`,
	`CREATE INDEX idx_notifications_received_at ON notifications(received_at)`,
	`CREATE TABLE task_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		payload TEXT NOT NULL,
		received_at TEXT NOT NULL
	)`,
	`CREATE INDEX idx_task_events_task_id ON task_events(task_id, received_at)`,
}
