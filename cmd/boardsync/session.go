package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/btouchard/boardsync/internal/session"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the stored board session",
	}
	cmd.AddCommand(newSessionSetCmd(), newSessionClearCmd(), newSessionShowCmd())
	return cmd
}

func newSessionSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store a session token (read from stdin when --token is omitted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			token, err := cmd.Flags().GetString("token")
			if err != nil {
				return fmt.Errorf("getting token flag: %w", err)
			}
			if token == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading token from stdin: %w", err)
				}
				token = line
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return errors.New("token is empty")
			}

			store, err := openSessionStore(cfg)
			if err != nil {
				return err
			}
			if err := store.Save(session.Session{Token: token, Authenticated: true}); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "session stored")
			return nil
		},
	}
	cmd.Flags().String("token", "", "bearer token for the board server")
	return cmd
}

func newSessionClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored session (logs out running watchers)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openSessionStore(cfg)
			if err != nil {
				return err
			}
			if err := store.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "session cleared")
			return nil
		},
	}
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show whether a session is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openSessionStore(cfg)
			if err != nil {
				return err
			}
			s, err := store.Load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !s.Present() {
				fmt.Fprintln(out, "no session")
				return nil
			}
			fmt.Fprintf(out, "session present (token %s)\n", maskToken(s.Token))
			return nil
		},
	}
}

func maskToken(token string) string {
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}
