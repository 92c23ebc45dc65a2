package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// searchPaths returns the ordered list of config file locations to try.
func searchPaths() []string {
	paths := []string{
		"/etc/boardsync/boardsync.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "boardsync", "boardsync.yaml"))
	}

	paths = append(paths, "boardsync.yaml")

	if envPath := os.Getenv("BOARDSYNC_CONFIG"); envPath != "" {
		paths = append(paths, envPath)
	}

	return paths
}

// Load reads configuration from YAML files and environment variables.
// Files are loaded in order (each overrides the previous):
// /etc/boardsync/boardsync.yaml < ~/.config/boardsync/boardsync.yaml < ./boardsync.yaml < $BOARDSYNC_CONFIG
func Load() (*Config, error) {
	cfg := Defaults()

	for _, path := range searchPaths() {
		if err := loadFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	return finish(cfg)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	cfg := Defaults()

	if err := loadFile(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	return finish(cfg)
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Session tokens are never read from the environment.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BOARDSYNC_WS_URL"); v != "" {
		cfg.Backend.WSURL = v
	}
	if v := os.Getenv("BOARDSYNC_API_URL"); v != "" {
		cfg.Backend.APIURL = v
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from trusted config search paths
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	slog.Debug("loading config file", "path", path)

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parsing YAML: %w", err)
	}

	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	switch cfg.Server.Host {
	case "0.0.0.0", "::", "[::]", "":
		return fmt.Errorf("server.host must be a loopback address, got %q", cfg.Server.Host)
	}

	if err := validateWSURL(cfg.Backend.WSURL); err != nil {
		return err
	}
	if cfg.Backend.Topic == "" {
		return errors.New("backend.topic is required")
	}
	if cfg.Backend.APIURL != "" {
		u, err := url.Parse(cfg.Backend.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("backend.api_url must be an http(s) URL, got %q", cfg.Backend.APIURL)
		}
	}

	positive := []struct {
		name  string
		value int64
	}{
		{"backend.request_timeout", int64(cfg.Backend.RequestTimeout)},
		{"transport.reconnect_delay", int64(cfg.Transport.ReconnectDelay)},
		{"transport.handshake_timeout", int64(cfg.Transport.HandshakeTimeout)},
		{"router.session_poll_interval", int64(cfg.Router.SessionPollInterval)},
		{"router.connect_poll_interval", int64(cfg.Router.ConnectPollInterval)},
		{"router.connect_poll_attempts", int64(cfg.Router.ConnectPollAttempts)},
		{"router.count_timeout", int64(cfg.Router.CountTimeout)},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive", p.name)
		}
	}
	// Zero disables one direction; both zero selects the transport defaults.
	if cfg.Transport.HeartbeatOutgoing < 0 || cfg.Transport.HeartbeatIncoming < 0 {
		return errors.New("transport heartbeats must not be negative")
	}

	switch cfg.Session.Backend {
	case SessionBackendKeyring:
		if cfg.Session.KeyringService == "" {
			return errors.New("session.keyring_service is required for the keyring backend")
		}
	case SessionBackendFile:
		if cfg.Session.FilePath == "" {
			return errors.New("session.file_path is required for the file backend")
		}
	default:
		return fmt.Errorf("session.backend must be %q or %q, got %q", SessionBackendKeyring, SessionBackendFile, cfg.Session.Backend)
	}

	if cfg.Inbox.Enabled && cfg.Inbox.RetentionDays < 0 {
		return errors.New("inbox.retention_days must not be negative")
	}

	cfg.Session.FilePath = ExpandHome(cfg.Session.FilePath)
	cfg.Session.KeyringDir = ExpandHome(cfg.Session.KeyringDir)
	cfg.Inbox.Path = ExpandHome(cfg.Inbox.Path)
	cfg.Auth.ConfigDir = ExpandHome(cfg.Auth.ConfigDir)
	if cfg.Server.LogFile != "" {
		cfg.Server.LogFile = ExpandHome(cfg.Server.LogFile)
	}

	return nil
}

func validateWSURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("backend.ws_url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("backend.ws_url must use ws or wss, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("backend.ws_url has no host: %q", raw)
	}
	return nil
}
