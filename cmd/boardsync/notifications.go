package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/btouchard/boardsync/internal/api"
	"github.com/btouchard/boardsync/internal/event"
	"github.com/btouchard/boardsync/internal/session"
)

func newNotificationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"n"},
		Short:   "Work with notifications on the board server",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List notifications",
			Args:  cobra.NoArgs,
			RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *api.Client, _ []string) error {
				list, err := c.List(ctx)
				if err != nil {
					return err
				}
				count, err := c.UnreadCount(ctx)
				if err != nil {
					return err
				}
				printNotifications(cmd.OutOrStdout(), list)
				fmt.Fprintf(cmd.OutOrStdout(), "\n%d unread\n", count)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "read <id>",
			Short: "Mark one notification read",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *api.Client, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := c.MarkRead(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "notification %d marked read\n", id)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "read-all",
			Short: "Mark every notification read",
			Args:  cobra.NoArgs,
			RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *api.Client, _ []string) error {
				if err := c.MarkAllRead(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "all notifications marked read")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete one notification",
			Args:  cobra.ExactArgs(1),
			RunE: withClient(func(ctx context.Context, cmd *cobra.Command, c *api.Client, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				if err := c.Delete(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "notification %d deleted\n", id)
				return nil
			}),
		},
	)
	return cmd
}

type clientFunc func(ctx context.Context, cmd *cobra.Command, c *api.Client, args []string) error

// withClient builds a REST client from config and the stored session.
func withClient(fn clientFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Backend.APIURL == "" {
			return errors.New("backend.api_url is not configured")
		}
		sessions, err := openSessionStore(cfg)
		if err != nil {
			return err
		}
		c := api.NewClient(cfg.Backend.APIURL, session.TokenFunc(sessions), cfg.Backend.RequestTimeout)

		err = fn(cmd.Context(), cmd, c, args)
		if errors.Is(err, api.ErrNoSession) || errors.Is(err, api.ErrUnauthorized) {
			return fmt.Errorf("%w (run `boardsync session set`)", err)
		}
		return err
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid notification id %q", s)
	}
	return id, nil
}

func printNotifications(w io.Writer, list []event.NotificationRecord) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no notifications")
		return
	}
	for _, n := range list {
		marker := " "
		if !n.Read {
			marker = "*"
		}
		from := "system"
		if n.Sender != nil {
			from = n.Sender.Name
		}
		fmt.Fprintf(w, "%s %6d  %-12s %-16s %s: %s\n",
			marker, n.ID, n.Kind, n.Timestamp.Local().Format("2006-01-02 15:04"), from, n.Title)
	}
}
