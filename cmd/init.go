package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/killallgit/foliochat/pkg/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a settings file with the default configuration",
	// The target file does not exist yet, so only defaults and env apply.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.Load("")
		return err
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = filepath.Join(".foliochat", "settings.yaml")
		}
		if err := config.WriteDefaultConfig(path); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
