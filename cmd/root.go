package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/killallgit/foliochat/pkg/config"
	"github.com/killallgit/foliochat/pkg/headless"
	"github.com/killallgit/foliochat/pkg/logger"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "foliochat",
	Short: "Portfolio assistant chat",
	Long: `foliochat talks to the portfolio assistant from the terminal.

Conversations are kept as sessions between runs. Replies that finish while
the chat is closed ring the bell, update the terminal title and, when a
Telegram bot is configured, send a notification.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Close()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is .foliochat/settings.yaml)")

	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level")
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.PersistentFlags().String("provider", "", "model provider (ollama or openai)")
	viper.BindPFlag("provider", rootCmd.PersistentFlags().Lookup("provider"))
}

func initConfig() error {
	// API keys usually live in .env next to the project.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if _, err := config.Load(cfgFile); err != nil {
		return err
	}
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Debug("Using config file: %s", config.GetConfigFileUsed())
	return nil
}

// openRunner restores the saved chat state for a command.
func openRunner(ctx context.Context) (*headless.Runner, error) {
	runner, err := headless.NewRunner(ctx, config.Get())
	if err != nil {
		return nil, err
	}
	return runner, nil
}

// closeRunner persists the state, reporting failures on stderr.
func closeRunner(runner *headless.Runner) {
	if err := runner.Close(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("failed to save chat state: "+err.Error()))
	}
}
