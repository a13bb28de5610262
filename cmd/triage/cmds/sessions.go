package cmds

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-go-golems/triage/pkg/core"
	"github.com/go-go-golems/triage/pkg/ui"
	"github.com/spf13/cobra"
)

// NewSessionCommands returns the one-shot commands, one per backend operation.
func NewSessionCommands() []*cobra.Command {
	return []*cobra.Command{
		newSessionsCommand(),
		newHistoryCommand(),
		newNewCommand(),
		newSendCommand(),
		newClearCommand(),
		newClearAllCommand(),
		newRenameCommand(),
		newDeleteCommand(),
		newHealthCommand(),
		newMessagesCommand(),
	}
}

func setup() (*core.Core, *ui.Renderer, error) {
	s, err := LoadSettings()
	if err != nil {
		return nil, nil, err
	}
	c, _, err := NewCore(s)
	if err != nil {
		return nil, nil, err
	}
	return c, ui.NewRenderer(os.Stdout), nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newSessionsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List conversation sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, r, err := setup()
			if err != nil {
				return err
			}
			sessions, err := c.Refresh(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(sessions)
			}
			r.Sessions(sessions, "")
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print sessions as JSON")
	return cmd
}

func newHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history <session-id>",
		Short: "Show a session's messages and action items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, r, err := setup()
			if err != nil {
				return err
			}
			if err := c.SwitchSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			snap := c.Snapshot()
			r.Timeline(snap.Timeline)
			if len(snap.Checklist) > 0 {
				r.Checklist(snap.Checklist, snap.Progress)
			}
			return nil
		},
	}
}

func newNewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "new",
		Short: "Create an empty session with the selected model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := setup()
			if err != nil {
				return err
			}
			id, err := c.CreateSession(cmd.Context(), "")
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
}

func newSendCommand() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "send <text>...",
		Short: "Send one message and print the reply",
		Long:  "Send one message to a session, or to a new session when --session is not given.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := LoadSettings()
			if err != nil {
				return err
			}
			c, _, err := NewCore(s)
			if err != nil {
				return err
			}
			r := ui.NewRenderer(os.Stdout)

			if sessionID != "" {
				if err := c.SwitchSession(cmd.Context(), sessionID); err != nil {
					return err
				}
			}
			if err := c.SendMessage(cmd.Context(), strings.Join(args, " "), sendOptions(s)); err != nil {
				return err
			}

			snap := c.Snapshot()
			if last, ok := snap.Timeline.LastAssistant(); ok {
				r.Message(last)
			}
			if len(snap.Checklist) > 0 {
				r.Checklist(snap.Checklist, snap.Progress)
			}
			if snap.LastError != nil {
				r.Error(core.UserMessage(snap.LastError))
			}
			r.Info("session: %s", snap.ActiveSessionID)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "Session to continue")
	return cmd
}

func newClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear <session-id>",
		Short: "Remove all messages from a session, keeping the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, r, err := setup()
			if err != nil {
				return err
			}
			if err := c.SwitchSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			if err := c.ClearSession(cmd.Context()); err != nil {
				return err
			}
			r.Info("cleared %s", args[0])
			return nil
		},
	}
}

func newClearAllCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear-all",
		Short: "Delete every session on the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, r, err := setup()
			if err != nil {
				return err
			}
			if !yes {
				ok, err := ui.Confirm("Delete ALL sessions? This cannot be undone.", false)
				if err != nil {
					return err
				}
				if !ok {
					r.Info("aborted")
					return nil
				}
			}
			if err := c.ClearAllSessions(cmd.Context()); err != nil {
				return err
			}
			r.Info("all sessions cleared")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newRenameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <session-id> <title>...",
		Short: "Set a session's title",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, r, err := setup()
			if err != nil {
				return err
			}
			if err := c.RenameSession(cmd.Context(), args[0], strings.Join(args[1:], " ")); err != nil {
				return err
			}
			r.Info("renamed %s", args[0])
			return nil
		},
	}
}

func newDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, r, err := setup()
			if err != nil {
				return err
			}
			if err := c.DeleteSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			r.Info("deleted %s", args[0])
			return nil
		},
	}
}

func newHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := LoadSettings()
			if err != nil {
				return err
			}
			_, client, err := NewCore(s)
			if err != nil {
				return err
			}
			if err := client.Health(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("%s is healthy\n", client.BaseURL())
			return nil
		},
	}
}

func newMessagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "messages",
		Short: "Dump every message of every session as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := LoadSettings()
			if err != nil {
				return err
			}
			_, client, err := NewCore(s)
			if err != nil {
				return err
			}
			msgs, err := client.AllMessages(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(msgs)
		},
	}
}
