package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/btouchard/boardsync/internal/event"
)

// Fixed-width UTC timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, zero CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
// The database file is created with 0600 permissions and its parent directory with 0700.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	// Pre-create the file with restrictive permissions if it doesn't exist
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("creating database file: %w", err)
		}
		_ = f.Close()
	} else if err := os.Chmod(path, 0600); err != nil {
		return nil, fmt.Errorf("securing database file: %w", err)
	}

	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		slog.Info("applying migration", "version", i+1)
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Notifications ---

// SaveNotification inserts n, or refreshes it when the backend delivers
// the same id again.
func (s *SQLiteStore) SaveNotification(n *event.NotificationRecord, receivedAt time.Time) error {
	var senderID sql.NullInt64
	var senderName, senderAvatar string
	if n.Sender != nil {
		senderID = sql.NullInt64{Int64: n.Sender.ID, Valid: true}
		senderName = n.Sender.Name
		senderAvatar = n.Sender.Avatar
	}

	_, err := s.db.Exec(`INSERT INTO notifications (id, kind, title, message, related_task_id,
		related_task_title, sender_id, sender_name, sender_avatar, read, timestamp, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
		kind = excluded.kind, title = excluded.title, message = excluded.message,
		related_task_id = excluded.related_task_id, related_task_title = excluded.related_task_title,
		sender_id = excluded.sender_id, sender_name = excluded.sender_name,
		sender_avatar = excluded.sender_avatar, read = excluded.read, timestamp = excluded.timestamp`,
		n.ID, string(n.Kind), n.Title, n.Message, nullInt64(n.RelatedTaskID),
		n.RelatedTaskTitle, senderID, senderName, senderAvatar, boolToInt(n.Read),
		formatTime(n.Timestamp), formatTime(receivedAt))
	if err != nil {
		return fmt.Errorf("saving notification %d: %w", n.ID, err)
	}
	return nil
}

const notificationColumns = `id, kind, title, message, related_task_id, related_task_title,
	sender_id, sender_name, sender_avatar, read, timestamp, received_at`

func (s *SQLiteStore) GetNotification(id int64) (*Notification, error) {
	row := s.db.QueryRow("SELECT "+notificationColumns+" FROM notifications WHERE id = ?", id)
	n, err := scanNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	return n, err
}

func (s *SQLiteStore) ListNotifications(f NotificationFilter) ([]Notification, error) {
	query := "SELECT " + notificationColumns + " FROM notifications WHERE 1=1"
	var args []any

	if f.UnreadOnly {
		query += " AND read = 0"
	}
	query += " ORDER BY received_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) MarkNotificationRead(id int64) error {
	res, err := s.db.Exec("UPDATE notifications SET read = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking notification %d read: %w", id, err)
	}
	return requireAffected(res, id)
}

func (s *SQLiteStore) MarkAllNotificationsRead() error {
	if _, err := s.db.Exec("UPDATE notifications SET read = 1 WHERE read = 0"); err != nil {
		return fmt.Errorf("marking notifications read: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteNotification(id int64) error {
	res, err := s.db.Exec("DELETE FROM notifications WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting notification %d: %w", id, err)
	}
	return requireAffected(res, id)
}

// --- Task Events ---

func (s *SQLiteStore) AddEvent(e *TaskEventRecord) error {
	payload, err := event.Encode(e.Event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	res, err := s.db.Exec(`INSERT INTO task_events (task_id, kind, payload, received_at) VALUES (?, ?, ?, ?)`,
		e.TaskID, string(e.Kind), string(payload), formatTime(e.ReceivedAt))
	if err != nil {
		return fmt.Errorf("adding event: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

func (s *SQLiteStore) GetEvents(f EventFilter) ([]TaskEventRecord, error) {
	query := "SELECT id, task_id, kind, payload, received_at FROM task_events WHERE 1=1"
	var args []any

	if f.TaskID != 0 {
		query += " AND task_id = ?"
		args = append(args, f.TaskID)
	}
	if f.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(f.Kind))
	}
	query += " ORDER BY received_at DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("getting events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []TaskEventRecord
	for rows.Next() {
		var e TaskEventRecord
		var kind, payload, receivedAt string
		if err := rows.Scan(&e.ID, &e.TaskID, &kind, &payload, &receivedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Kind = event.Kind(kind)
		e.ReceivedAt = parseTime(receivedAt)
		if err := json.Unmarshal([]byte(payload), &e.Event); err != nil {
			return nil, fmt.Errorf("decoding stored event %d: %w", e.ID, err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Maintenance ---

// Cleanup deletes everything received before the cutoff and returns the
// number of rows removed.
func (s *SQLiteStore) Cleanup(before time.Time) (int64, error) {
	cutoff := formatTime(before)

	res, err := s.db.Exec("DELETE FROM notifications WHERE received_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleaning notifications: %w", err)
	}
	notifications, _ := res.RowsAffected()

	res, err = s.db.Exec("DELETE FROM task_events WHERE received_at < ?", cutoff)
	if err != nil {
		return notifications, fmt.Errorf("cleaning task events: %w", err)
	}
	events, _ := res.RowsAffected()

	return notifications + events, nil
}

// --- Helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func scanNotification(row scanner) (*Notification, error) {
	var n Notification
	var kind, timestamp, receivedAt string
	var relatedTaskID, senderID sql.NullInt64
	var senderName, senderAvatar string
	var read int

	err := row.Scan(&n.ID, &kind, &n.Title, &n.Message, &relatedTaskID, &n.RelatedTaskTitle,
		&senderID, &senderName, &senderAvatar, &read, &timestamp, &receivedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning notification: %w", err)
	}

	n.Kind = event.NotificationKind(kind)
	n.Read = read != 0
	n.Timestamp = parseTime(timestamp)
	n.ReceivedAt = parseTime(receivedAt)
	if relatedTaskID.Valid {
		id := relatedTaskID.Int64
		n.RelatedTaskID = &id
	}
	if senderID.Valid {
		n.Sender = &event.Sender{ID: senderID.Int64, Name: senderName, Avatar: senderAvatar}
	}
	return &n, nil
}

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("notification %d: %w", id, ErrNotFound)
	}
	return nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeFormat, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
