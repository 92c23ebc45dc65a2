package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/btouchard/boardsync/internal/event"
	"github.com/btouchard/boardsync/internal/notify"
	"github.com/btouchard/boardsync/internal/store"
)

func newInboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "Read the local history recorded by watch",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded notifications, or task events with --events",
		Args:  cobra.NoArgs,
		RunE:  runInboxList,
	}
	list.Flags().Bool("events", false, "list task events instead of notifications")
	list.Flags().Bool("unread", false, "only unread notifications")
	list.Flags().Int64("task", 0, "only events for this task id")
	list.Flags().Int("limit", 20, "maximum number of records")

	cmd.AddCommand(list)
	return cmd
}

func runInboxList(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if !cfg.Inbox.Enabled {
		return errors.New("inbox is disabled (inbox.enabled: false)")
	}

	events, _ := cmd.Flags().GetBool("events")
	unread, _ := cmd.Flags().GetBool("unread")
	taskID, _ := cmd.Flags().GetInt64("task")
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := store.NewSQLiteStore(cfg.Inbox.Path)
	if err != nil {
		return fmt.Errorf("opening inbox: %w", err)
	}
	defer func() { _ = s.Close() }()

	out := cmd.OutOrStdout()
	if events {
		list, err := s.GetEvents(store.EventFilter{TaskID: taskID, Limit: limit})
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(out, "no task events recorded")
			return nil
		}
		for _, e := range list {
			fmt.Fprintf(out, "%s  %s\n", e.ReceivedAt.Local().Format("2006-01-02 15:04:05"), notify.FromTaskEvent(e.Event).Message)
		}
		return nil
	}

	list, err := s.ListNotifications(store.NotificationFilter{UnreadOnly: unread, Limit: limit})
	if err != nil {
		return err
	}
	records := make([]event.NotificationRecord, len(list))
	for i, n := range list {
		records[i] = n.NotificationRecord
	}
	printNotifications(out, records)
	return nil
}
