package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "boardsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaults_SetsExpectedValues(t *testing.T) {
	t.Parallel()

	cfg := Defaults()

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8421, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 5*time.Second, cfg.Transport.ReconnectDelay)
	assert.Equal(t, 4*time.Second, cfg.Transport.HeartbeatOutgoing)
	assert.Equal(t, 500*time.Millisecond, cfg.Router.SessionPollInterval)
	assert.Equal(t, 100*time.Millisecond, cfg.Router.ConnectPollInterval)
	assert.Equal(t, 100, cfg.Router.ConnectPollAttempts)
	assert.True(t, cfg.Router.TrackReconnects)
	assert.Equal(t, SessionBackendKeyring, cfg.Session.Backend)
	assert.True(t, cfg.Inbox.Enabled)
	assert.True(t, cfg.MCP.Enabled)
}

func TestLoadFromFile_ParsesYAML(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  port: 9000
  log_level: "debug"

backend:
  ws_url: "wss://board.example.com/ws"
  topic: "/topic/board-7"
  api_url: "https://board.example.com/api"
  request_timeout: 3s

transport:
  heartbeat_outgoing: 10s
  heartbeat_incoming: 0s
  reconnect_delay: 2s

router:
  session_poll_interval: 1s
  connect_poll_attempts: 50
  track_reconnects: false

session:
  backend: file
  file_path: "/tmp/boardsync-session.yaml"

inbox:
  enabled: false

mcp:
  debounce: 500ms
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "wss://board.example.com/ws", cfg.Backend.WSURL)
	assert.Equal(t, "/topic/board-7", cfg.Backend.Topic)
	assert.Equal(t, "https://board.example.com/api", cfg.Backend.APIURL)
	assert.Equal(t, 3*time.Second, cfg.Backend.RequestTimeout)
	assert.Equal(t, 10*time.Second, cfg.Transport.HeartbeatOutgoing)
	assert.Zero(t, cfg.Transport.HeartbeatIncoming)
	assert.Equal(t, 2*time.Second, cfg.Transport.ReconnectDelay)
	assert.Equal(t, time.Second, cfg.Router.SessionPollInterval)
	assert.Equal(t, 50, cfg.Router.ConnectPollAttempts)
	assert.False(t, cfg.Router.TrackReconnects)
	assert.Equal(t, SessionBackendFile, cfg.Session.Backend)
	assert.Equal(t, "/tmp/boardsync-session.yaml", cfg.Session.FilePath)
	assert.False(t, cfg.Inbox.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.MCP.Debounce)
}

func TestLoadFromFile_ExpandsEnvVars(t *testing.T) {
	t.Setenv("BOARDSYNC_TEST_TOPIC", "/topic/from-env")

	path := writeConfig(t, `
backend:
  topic: "${BOARDSYNC_TEST_TOPIC}"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "/topic/from-env", cfg.Backend.Topic)
}

func TestLoadFromFile_EnvOverridesBackendURLs(t *testing.T) {
	t.Setenv("BOARDSYNC_WS_URL", "wss://override.example.com/ws")
	t.Setenv("BOARDSYNC_API_URL", "https://override.example.com/api")

	path := writeConfig(t, `
backend:
  ws_url: "ws://localhost:1/ws"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "wss://override.example.com/ws", cfg.Backend.WSURL)
	assert.Equal(t, "https://override.example.com/api", cfg.Backend.APIURL)
}

func TestLoadFromFile_RejectsNonLoopbackBind(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  host: "0.0.0.0"
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loopback")
}

func TestLoadFromFile_RejectsInvalidPort(t *testing.T) {
	t.Parallel()

	for _, port := range []string{"0", "99999"} {
		path := writeConfig(t, "server:\n  port: "+port+"\n")
		_, err := LoadFromFile(path)
		require.Error(t, err, port)
		assert.Contains(t, err.Error(), "port")
	}
}

func TestLoadFromFile_RejectsHTTPWebsocketURL(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
backend:
  ws_url: "http://board.example.com/ws"
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ws or wss")
}

func TestLoadFromFile_RejectsBadAPIURL(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
backend:
  api_url: "ftp://board.example.com"
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_url")
}

func TestLoadFromFile_RejectsNonPositiveIntervals(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
router:
  connect_poll_attempts: 0
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "router.connect_poll_attempts")
}

func TestLoadFromFile_RejectsNegativeHeartbeat(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
transport:
  heartbeat_incoming: -1s
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "heartbeat")
}

func TestLoadFromFile_RejectsUnknownSessionBackend(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
session:
  backend: "vault"
`)

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session.backend")
}

func TestLoadFromFile_NonexistentFileReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8421, cfg.Server.Port)
	assert.Equal(t, "/topic/tasks", cfg.Backend.Topic)
}

func TestLoadFromFile_ExpandsHomePaths(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".config/boardsync/inbox.db"), cfg.Inbox.Path)
	assert.Equal(t, filepath.Join(home, ".config/boardsync/session.yaml"), cfg.Session.FilePath)
	assert.Equal(t, filepath.Join(home, ".config/boardsync"), cfg.Auth.ConfigDir)
}

func TestLoadFromFile_InvalidYAML_ReturnsError(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "{{invalid yaml:::")

	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing YAML")
}

func TestLoadFromFile_PartialOverride_KeepsDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server:
  port: 9999
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host, "default host should be preserved")
	assert.Equal(t, 100, cfg.Router.ConnectPollAttempts, "default attempts should be preserved")
}

func TestExpandHome_ReplacesLeadingTilde(t *testing.T) {
	t.Parallel()

	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "some/path"), ExpandHome("~/some/path"))
}

func TestExpandHome_LeavesAbsolutePathsUnchanged(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/absolute/path", ExpandHome("/absolute/path"))
}
