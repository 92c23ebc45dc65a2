package statusapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btouchard/boardsync/internal/event"
	"github.com/btouchard/boardsync/internal/router"
	"github.com/btouchard/boardsync/internal/store"
)

const testToken = "local-token"

type mockStatus struct {
	state  router.State
	unread int
	last   *event.NotificationRecord
}

func (m *mockStatus) State() router.State { return m.state }

func (m *mockStatus) IsConnected() bool { return m.state == router.Connected }

func (m *mockStatus) UnreadCount() int { return m.unread }

func (m *mockStatus) LastNotification() *event.NotificationRecord { return m.last }

type mockInbox struct {
	notifications []store.Notification
	events        []store.TaskEventRecord
	err           error

	gotNotificationFilter store.NotificationFilter
	gotEventFilter        store.EventFilter
}

func (m *mockInbox) ListNotifications(f store.NotificationFilter) ([]store.Notification, error) {
	m.gotNotificationFilter = f
	return m.notifications, m.err
}

func (m *mockInbox) GetEvents(f store.EventFilter) ([]store.TaskEventRecord, error) {
	m.gotEventFilter = f
	return m.events, m.err
}

func do(t *testing.T, h http.Handler, path string, authorized bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorized {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth_NoAuthRequired(t *testing.T) {
	t.Parallel()

	h := NewHandler(Deps{Status: &mockStatus{}, Token: testToken})
	rec := do(t, h, "/health", false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestStatus_RequiresToken(t *testing.T) {
	t.Parallel()

	h := NewHandler(Deps{Status: &mockStatus{}, Token: testToken})
	assert.Equal(t, http.StatusUnauthorized, do(t, h, "/status", false).Code)
}

func TestStatus_ReportsRouterState(t *testing.T) {
	t.Parallel()

	h := NewHandler(Deps{
		Status: &mockStatus{
			state:  router.Connected,
			unread: 2,
			last:   &event.NotificationRecord{ID: 9, Kind: event.NotificationComment, Title: "New comment"},
		},
		Token: testToken,
	})

	rec := do(t, h, "/status", true)
	require.Equal(t, http.StatusOK, rec.Code)

	var got StatusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.True(t, got.Connected)
	assert.Equal(t, "connected", got.State)
	assert.Equal(t, 2, got.UnreadCount)
	require.NotNil(t, got.LastNotification)
	assert.Equal(t, int64(9), got.LastNotification.ID)
}

func TestStatus_NoNotificationIsNull(t *testing.T) {
	t.Parallel()

	h := NewHandler(Deps{Status: &mockStatus{state: router.Disconnected}, Token: testToken})
	rec := do(t, h, "/status", true)

	assert.JSONEq(t, `{"connected":false,"state":"disconnected","unread_count":0,"last_notification":null}`, rec.Body.String())
}

func TestNotifications_PassesFilters(t *testing.T) {
	t.Parallel()

	inbox := &mockInbox{notifications: []store.Notification{
		{NotificationRecord: event.NotificationRecord{ID: 1, Title: "a"}},
	}}
	h := NewHandler(Deps{Status: &mockStatus{}, Inbox: inbox, Token: testToken})

	rec := do(t, h, "/notifications?limit=5&unread_only=true", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.NotificationFilter{UnreadOnly: true, Limit: 5}, inbox.gotNotificationFilter)

	var got []store.Notification
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Title)
}

func TestNotifications_EmptyIsArray(t *testing.T) {
	t.Parallel()

	h := NewHandler(Deps{Status: &mockStatus{}, Inbox: &mockInbox{}, Token: testToken})
	rec := do(t, h, "/notifications", true)

	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestNotifications_LimitIsCapped(t *testing.T) {
	t.Parallel()

	inbox := &mockInbox{}
	h := NewHandler(Deps{Status: &mockStatus{}, Inbox: inbox, Token: testToken})
	do(t, h, "/notifications?limit=100000", true)

	assert.Equal(t, maxLimit, inbox.gotNotificationFilter.Limit)
}

func TestNotifications_BadLimit(t *testing.T) {
	t.Parallel()

	h := NewHandler(Deps{Status: &mockStatus{}, Inbox: &mockInbox{}, Token: testToken})
	assert.Equal(t, http.StatusBadRequest, do(t, h, "/notifications?limit=-1", true).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "/notifications?limit=abc", true).Code)
}

func TestNotifications_InboxDisabled(t *testing.T) {
	t.Parallel()

	h := NewHandler(Deps{Status: &mockStatus{}, Token: testToken})
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, "/notifications", true).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, "/events", true).Code)
}

func TestEvents_FiltersByTaskAndKind(t *testing.T) {
	t.Parallel()

	inbox := &mockInbox{events: []store.TaskEventRecord{{ID: 1, TaskID: 3, Kind: event.KindMoved}}}
	h := NewHandler(Deps{Status: &mockStatus{}, Inbox: inbox, Token: testToken})

	rec := do(t, h, "/events?task_id=3&kind=moved&limit=10", true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.EventFilter{TaskID: 3, Kind: event.KindMoved, Limit: 10}, inbox.gotEventFilter)
}

func TestEvents_BadQuery(t *testing.T) {
	t.Parallel()

	h := NewHandler(Deps{Status: &mockStatus{}, Inbox: &mockInbox{}, Token: testToken})
	assert.Equal(t, http.StatusBadRequest, do(t, h, "/events?task_id=x", true).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "/events?kind=notification", true).Code)
}

func TestEvents_StoreError(t *testing.T) {
	t.Parallel()

	h := NewHandler(Deps{Status: &mockStatus{}, Inbox: &mockInbox{err: errors.New("locked")}, Token: testToken})
	assert.Equal(t, http.StatusInternalServerError, do(t, h, "/events", true).Code)
}

func TestMCP_MountedBehindToken(t *testing.T) {
	t.Parallel()

	mcp := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) })
	h := NewHandler(Deps{Status: &mockStatus{}, Token: testToken, MCP: mcp})

	assert.Equal(t, http.StatusUnauthorized, do(t, h, "/mcp", false).Code)
	assert.Equal(t, http.StatusAccepted, do(t, h, "/mcp", true).Code)
}
