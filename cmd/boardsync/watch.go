package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/btouchard/boardsync/internal/api"
	"github.com/btouchard/boardsync/internal/auth"
	"github.com/btouchard/boardsync/internal/config"
	bsmcp "github.com/btouchard/boardsync/internal/mcp"
	"github.com/btouchard/boardsync/internal/notify"
	"github.com/btouchard/boardsync/internal/router"
	"github.com/btouchard/boardsync/internal/session"
	"github.com/btouchard/boardsync/internal/statusapi"
	"github.com/btouchard/boardsync/internal/stomp"
	"github.com/btouchard/boardsync/internal/store"
	"github.com/btouchard/boardsync/internal/transport"
)

const (
	shutdownTimeout = 10 * time.Second
	cleanupInterval = time.Hour
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow the board event stream until interrupted",
		Long: `Connects to the board's event stream whenever a session is present and
prints task events, notifications and unread count changes as they arrive.
Also serves the local status API and the MCP endpoint.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			setupLogging(cfg)

			slog.Info("starting boardsync",
				"version", version,
				"ws_url", cfg.Backend.WSURL,
				"topic", cfg.Backend.Topic)

			return runWatch(cmd, cfg)
		},
	}
}

func runWatch(cmd *cobra.Command, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions, err := openSessionStore(cfg)
	if err != nil {
		return err
	}

	apiToken, err := auth.LoadOrCreateToken(cfg.Auth.ConfigDir)
	if err != nil {
		return fmt.Errorf("loading api token: %w", err)
	}

	// --- Transport ---
	tr := transport.New(transport.Config{
		URL:   cfg.Backend.WSURL,
		Topic: cfg.Backend.Topic,
		Token: session.TokenFunc(sessions),
		HeartBeat: stomp.HeartBeat{
			Outgoing: cfg.Transport.HeartbeatOutgoing,
			Incoming: cfg.Transport.HeartbeatIncoming,
		},
		ReconnectDelay:   cfg.Transport.ReconnectDelay,
		HandshakeTimeout: cfg.Transport.HandshakeTimeout,
	})
	tr.OnError(func(err error) {
		slog.Warn("event stream error", "error", err)
	})

	// --- Router ---
	opts := router.Options{
		SessionPollInterval: cfg.Router.SessionPollInterval,
		ConnectPollInterval: cfg.Router.ConnectPollInterval,
		ConnectPollAttempts: cfg.Router.ConnectPollAttempts,
		TrackReconnects:     cfg.Router.TrackReconnects,
		CountTimeout:        cfg.Router.CountTimeout,
	}
	if cfg.Backend.APIURL != "" {
		opts.Counts = api.NewClient(cfg.Backend.APIURL, session.TokenFunc(sessions), cfg.Backend.RequestTimeout)
	}
	r := router.New(sessions, tr, opts)

	// --- Inbox ---
	var (
		inbox       *store.SQLiteStore
		inboxReader statusapi.Inbox
		recorder    *store.Recorder
	)
	detachInbox := func() {}
	if cfg.Inbox.Enabled {
		inbox, err = store.NewSQLiteStore(cfg.Inbox.Path)
		if err != nil {
			return fmt.Errorf("opening inbox: %w", err)
		}
		slog.Info("inbox opened", "path", cfg.Inbox.Path)
		inboxReader = inbox
		recorder = store.NewRecorder(inbox)
		detachInbox = recorder.Attach(r)
	}

	// --- Notifiers ---
	notifiers := []notify.Notifier{notify.NewWriterNotifier(cmd.OutOrStdout())}

	var mcpHTTP http.Handler
	if cfg.MCP.Enabled {
		deps := &bsmcp.Deps{Router: r, Version: version}
		if inbox != nil {
			deps.Inbox = inbox
		}
		mcpServer := bsmcp.NewServer(deps)
		mcpHTTP = server.NewStreamableHTTPServer(mcpServer)
		notifiers = append(notifiers, notify.NewMCPNotifier(mcpServer, cfg.MCP.Debounce))
	}
	detachNotify := notify.Attach(r, notify.NewHub(notifiers...))

	// --- HTTP Server ---
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: statusapi.NewHandler(statusapi.Deps{
			Status: r,
			Inbox:  inboxReader,
			Token:  apiToken,
			MCP:    mcpHTTP,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("status api listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if recorder != nil {
		retention := time.Duration(cfg.Inbox.RetentionDays) * 24 * time.Hour
		g.Go(func() error {
			recorder.RunCleanup(gctx, retention, cleanupInterval)
			return nil
		})
	}

	if err := r.Start(gctx); err != nil {
		return fmt.Errorf("starting router: %w", err)
	}

	ops := map[string]gfshutdown.Operation{
		"router": func(context.Context) error {
			r.Close()
			detachNotify()
			return nil
		},
		"http-server": func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	}
	if inbox != nil {
		ops["inbox"] = func(context.Context) error {
			detachInbox()
			return inbox.Close()
		}
	}

	failed := make(chan error, 1)
	go func() { failed <- g.Wait() }()

	wait := gfshutdown.GracefulShutdown(context.Background(), shutdownTimeout, ops)

	select {
	case code := <-wait:
		return stopped(cancel, code)
	case err := <-failed:
		if err == nil {
			// The server only returns cleanly once a signal has started
			// the shutdown; wait for it to finish.
			return stopped(cancel, <-wait)
		}
		slog.Error("background task failed, shutting down", "error", err)
		cancel()
		shutdownNow(ops)
		return err
	}
}

func stopped(cancel context.CancelFunc, code int) error {
	cancel()
	if code != 0 {
		return fmt.Errorf("shutdown finished with exit code %d", code)
	}
	slog.Info("boardsync stopped")
	return nil
}

// shutdownNow runs the shutdown operations directly, for exits that were
// not triggered by a signal.
func shutdownNow(ops map[string]gfshutdown.Operation) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for name, op := range ops {
		if err := op(ctx); err != nil {
			slog.Error("shutdown operation failed", "operation", name, "error", err)
		}
	}
}
