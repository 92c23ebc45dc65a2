// Package statusapi exposes the sync core over a local JSON HTTP API.
package statusapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/btouchard/boardsync/internal/event"
	"github.com/btouchard/boardsync/internal/mcp/middleware"
	"github.com/btouchard/boardsync/internal/router"
	"github.com/btouchard/boardsync/internal/store"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// StatusSource is the read side of the router.
type StatusSource interface {
	State() router.State
	IsConnected() bool
	UnreadCount() int
	LastNotification() *event.NotificationRecord
}

// Inbox is the read side of the local history.
type Inbox interface {
	ListNotifications(f store.NotificationFilter) ([]store.Notification, error)
	GetEvents(f store.EventFilter) ([]store.TaskEventRecord, error)
}

// Deps wires the API to the running daemon.
type Deps struct {
	Status StatusSource

	// Inbox is nil when the local history is disabled.
	Inbox Inbox

	// Token is the bearer token required on every route but /health.
	Token string

	// MCP, when set, is mounted at /mcp behind the same token.
	MCP http.Handler
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Connected        bool                      `json:"connected"`
	State            string                    `json:"state"`
	UnreadCount      int                       `json:"unread_count"`
	LastNotification *event.NotificationRecord `json:"last_notification"`
}

type api struct {
	deps Deps
}

// NewHandler builds the chi router for the local API.
func NewHandler(deps Deps) http.Handler {
	a := &api{deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(deps.Token))
		r.Get("/status", a.status)
		r.Get("/notifications", a.notifications)
		r.Get("/events", a.events)
		if deps.MCP != nil {
			r.Handle("/mcp", deps.MCP)
		}
	})

	return r
}

func (a *api) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Connected:        a.deps.Status.IsConnected(),
		State:            a.deps.Status.State().String(),
		UnreadCount:      a.deps.Status.UnreadCount(),
		LastNotification: a.deps.Status.LastNotification(),
	})
}

func (a *api) notifications(w http.ResponseWriter, r *http.Request) {
	if a.deps.Inbox == nil {
		writeError(w, http.StatusServiceUnavailable, "inbox disabled")
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread_only"))

	list, err := a.deps.Inbox.ListNotifications(store.NotificationFilter{UnreadOnly: unread, Limit: limit})
	if err != nil {
		slog.Error("listing notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "listing notifications failed")
		return
	}
	if list == nil {
		list = []store.Notification{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *api) events(w http.ResponseWriter, r *http.Request) {
	if a.deps.Inbox == nil {
		writeError(w, http.StatusServiceUnavailable, "inbox disabled")
		return
	}
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	filter := store.EventFilter{Limit: limit}
	q := r.URL.Query()
	if v := q.Get("task_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "task_id must be a positive integer")
			return
		}
		filter.TaskID = id
	}
	if v := q.Get("kind"); v != "" {
		filter.Kind = event.Kind(strings.ToUpper(v))
		if !filter.Kind.IsTask() {
			writeError(w, http.StatusBadRequest, "unknown event kind")
			return
		}
	}

	list, err := a.deps.Inbox.GetEvents(filter)
	if err != nil {
		slog.Error("listing task events", "error", err)
		writeError(w, http.StatusInternalServerError, "listing task events failed")
		return
	}
	if list == nil {
		list = []store.TaskEventRecord{}
	}
	writeJSON(w, http.StatusOK, list)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return min(n, maxLimit), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
