package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/killallgit/foliochat/pkg/headless"
)

var askCmd = &cobra.Command{
	Use:   "ask <message>",
	Short: "Send one message and stream the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		closed, _ := cmd.Flags().GetBool("closed")
		newSession, _ := cmd.Flags().GetBool("new")

		// Ctrl-C stops the reply; the cancel policy decides what is kept.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		runner, err := openRunner(ctx)
		if err != nil {
			return err
		}
		defer closeRunner(runner)

		err = runner.Ask(ctx, strings.Join(args, " "), headless.AskOptions{
			Closed:     closed,
			NewSession: newSession,
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render(runner.Snapshot().Error))
			return err
		}
		if badge := runner.Badge(); badge != "" {
			fmt.Fprintln(os.Stderr, badgeStyle.Render(badge+" unread"))
		}
		return nil
	},
}

func init() {
	askCmd.Flags().Bool("closed", false, "send with the chat closed so the reply counts as unread")
	askCmd.Flags().Bool("new", false, "start a new session first")
	rootCmd.AddCommand(askCmd)
}
