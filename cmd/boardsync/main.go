package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/btouchard/boardsync/internal/config"
	"github.com/btouchard/boardsync/internal/session"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "boardsync",
		Short: "Realtime board event sync",
		Long: `boardsync keeps a live connection to a task board's event stream while
a user session is present, and fans task events, notifications and the
unread count out to the terminal, a local inbox and MCP clients.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "path to config file")

	cmd.AddCommand(
		newWatchCmd(),
		newCheckCmd(),
		newVersionCmd(),
		newSessionCmd(),
		newNotificationsCmd(),
		newInboxCmd(),
	)

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "boardsync %s\n", version)
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "configuration is valid")
			fmt.Fprintf(out, "  websocket: %s (topic %s)\n", cfg.Backend.WSURL, cfg.Backend.Topic)
			if cfg.Backend.APIURL != "" {
				fmt.Fprintf(out, "  rest api:  %s\n", cfg.Backend.APIURL)
			}
			fmt.Fprintf(out, "  session:   %s\n", cfg.Session.Backend)
			fmt.Fprintf(out, "  listen:    %s:%d\n", cfg.Server.Host, cfg.Server.Port)
			return nil
		},
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, fmt.Errorf("getting config flag: %w", err)
	}
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch cfg.Server.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// stdout carries the event feed; logs go to stderr.
	handlers := []slog.Handler{
		slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	}

	if cfg.Server.LogFile != "" {
		f, err := os.OpenFile(cfg.Server.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			slog.Warn("failed to open log file, using stderr only", "path", cfg.Server.LogFile, "error", err)
		} else {
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}))
		}
	}

	logger := slog.New(slog.NewMultiHandler(handlers...))
	slog.SetDefault(logger)
}

// sessionStore is what the CLI needs from a session backend.
type sessionStore interface {
	session.Store
	session.Writer
}

func openSessionStore(cfg *config.Config) (sessionStore, error) {
	switch cfg.Session.Backend {
	case config.SessionBackendFile:
		return session.NewFileStore(cfg.Session.FilePath), nil
	default:
		return session.OpenKeyring(cfg.Session.KeyringService, cfg.Session.KeyringDir)
	}
}
