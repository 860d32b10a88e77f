package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/killallgit/foliochat/pkg/chat"
	"github.com/killallgit/foliochat/pkg/headless"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage chat sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(func(r *headless.Runner) error {
			printSessions(cmd.OutOrStdout(), r.Snapshot())
			return nil
		})
	},
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recently used first",
	RunE:  sessionsCmd.RunE,
}

var sessionsNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(func(r *headless.Runner) error {
			state := r.Dispatch(chat.CreateNewSession{})
			fmt.Fprintln(cmd.OutOrStdout(), "Started session", state.CurrentSessionID)
			return nil
		})
	},
}

var sessionsSwitchCmd = &cobra.Command{
	Use:   "switch <id>",
	Short: "Make a session active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(func(r *headless.Runner) error {
			if _, ok := r.Snapshot().Session(args[0]); !ok {
				return fmt.Errorf("no session %q", args[0])
			}
			r.Dispatch(chat.SwitchSession{ID: args[0]})
			return nil
		})
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(func(r *headless.Runner) error {
			if _, ok := r.Snapshot().Session(args[0]); !ok {
				return fmt.Errorf("no session %q", args[0])
			}
			state := r.Dispatch(chat.DeleteSession{ID: args[0]})
			if state.CurrentSessionID != "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Active session is now", state.CurrentSessionID)
			}
			return nil
		})
	},
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the messages of the active session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(func(r *headless.Runner) error {
			r.Dispatch(chat.ClearMessages{})
			return nil
		})
	},
}

var sessionsBackCmd = &cobra.Command{
	Use:   "back",
	Short: "Leave the active session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(func(r *headless.Runner) error {
			r.Dispatch(chat.GoBackToSessions{})
			return nil
		})
	},
}

func withRunner(fn func(r *headless.Runner) error) error {
	runner, err := openRunner(context.Background())
	if err != nil {
		return err
	}
	defer closeRunner(runner)
	return fn(runner)
}

func printSessions(w io.Writer, state chat.State) {
	sessions := state.SessionsByRecency()
	if len(sessions) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No sessions yet."))
		return
	}

	fmt.Fprintln(w, headerStyle.Render("Sessions"))
	for _, sess := range sessions {
		marker := "  "
		line := fmt.Sprintf("%s  %s  %s", sess.ID, sess.Title,
			dimStyle.Render(fmt.Sprintf("%d messages, %s", len(sess.Messages), formatMillis(sess.UpdatedAt))))
		if sess.ID == state.CurrentSessionID {
			marker = activeStyle.Render("* ")
		}
		fmt.Fprintln(w, marker+line)
	}
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsNewCmd, sessionsSwitchCmd,
		sessionsDeleteCmd, sessionsClearCmd, sessionsBackCmd)
	rootCmd.AddCommand(sessionsCmd)
}
