package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat interactively, one message per line",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		runner, err := openRunner(ctx)
		if err != nil {
			return err
		}
		defer closeRunner(runner)

		fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("Type a message, /help for commands, /quit to leave."))
		return runner.Interactive(ctx, os.Stdin)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
