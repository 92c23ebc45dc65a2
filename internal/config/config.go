package config

import "time"

// Config is the root configuration for boardsync.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Transport TransportConfig `yaml:"transport"`
	Router    RouterConfig    `yaml:"router"`
	Session   SessionConfig   `yaml:"session"`
	Inbox     InboxConfig     `yaml:"inbox"`
	MCP       MCPConfig       `yaml:"mcp"`
	Auth      AuthConfig      `yaml:"auth"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// BackendConfig locates the board server. APIURL is optional; without it
// the unread count is only ever known from pushes.
type BackendConfig struct {
	WSURL          string        `yaml:"ws_url"`
	Topic          string        `yaml:"topic"`
	APIURL         string        `yaml:"api_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type TransportConfig struct {
	HeartbeatOutgoing time.Duration `yaml:"heartbeat_outgoing"`
	HeartbeatIncoming time.Duration `yaml:"heartbeat_incoming"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
}

type RouterConfig struct {
	SessionPollInterval time.Duration `yaml:"session_poll_interval"`
	ConnectPollInterval time.Duration `yaml:"connect_poll_interval"`
	ConnectPollAttempts int           `yaml:"connect_poll_attempts"`
	TrackReconnects     bool          `yaml:"track_reconnects"`
	CountTimeout        time.Duration `yaml:"count_timeout"`
}

// SessionConfig selects where the auth session is read from.
type SessionConfig struct {
	Backend        string `yaml:"backend"` // keyring | file
	FilePath       string `yaml:"file_path"`
	KeyringService string `yaml:"keyring_service"`
	KeyringDir     string `yaml:"keyring_dir"` // used by the encrypted-file keyring fallback
}

type InboxConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

type MCPConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

type AuthConfig struct {
	ConfigDir string `yaml:"config_dir"`
}

const (
	SessionBackendKeyring = "keyring"
	SessionBackendFile    = "file"
)

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     8421,
			LogLevel: "info",
		},
		Backend: BackendConfig{
			WSURL:          "ws://localhost:8080/ws",
			Topic:          "/topic/tasks",
			RequestTimeout: 10 * time.Second,
		},
		Transport: TransportConfig{
			HeartbeatOutgoing: 4 * time.Second,
			HeartbeatIncoming: 4 * time.Second,
			ReconnectDelay:    5 * time.Second,
			HandshakeTimeout:  10 * time.Second,
		},
		Router: RouterConfig{
			SessionPollInterval: 500 * time.Millisecond,
			ConnectPollInterval: 100 * time.Millisecond,
			ConnectPollAttempts: 100,
			TrackReconnects:     true,
			CountTimeout:        10 * time.Second,
		},
		Session: SessionConfig{
			Backend:        SessionBackendKeyring,
			FilePath:       "~/.config/boardsync/session.yaml",
			KeyringService: "boardsync",
			KeyringDir:     "~/.config/boardsync/keyring",
		},
		Inbox: InboxConfig{
			Enabled:       true,
			Path:          "~/.config/boardsync/inbox.db",
			RetentionDays: 30,
		},
		MCP: MCPConfig{
			Enabled:  true,
			Debounce: 3 * time.Second,
		},
		Auth: AuthConfig{
			ConfigDir: "~/.config/boardsync",
		},
	}
}
