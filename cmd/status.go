package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/killallgit/foliochat/pkg/chat"
	"github.com/killallgit/foliochat/pkg/headless"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show unread replies, the active session and the last error",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(func(r *headless.Runner) error {
			printStatus(cmd.OutOrStdout(), r.Snapshot(), r.Badge())
			return nil
		})
	},
}

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Mark every reply as read",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRunner(func(r *headless.Runner) error {
			r.Dispatch(chat.MarkAsRead{})
			return nil
		})
	},
}

func printStatus(w io.Writer, state chat.State, badge string) {
	if badge != "" {
		fmt.Fprintln(w, badgeStyle.Render(badge+" unread"))
	} else {
		fmt.Fprintln(w, dimStyle.Render("No unread replies"))
	}

	if sess, ok := state.CurrentSession(); ok {
		fmt.Fprintf(w, "Session: %s (%s)\n", sess.Title, sess.ID)
	} else {
		fmt.Fprintln(w, "Session: none")
	}
	fmt.Fprintf(w, "Messages: %d\n", len(state.Messages))

	if state.HasError() {
		fmt.Fprintln(w, errorStyle.Render(state.Error))
	}
}

func init() {
	rootCmd.AddCommand(statusCmd, readCmd)
}
