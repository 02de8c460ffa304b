// Package cmd wires the CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/perchbot/perch/config"
)

var rootCmd = &cobra.Command{
	Use:   "perch",
	Short: "Multi-channel chat ingress service",
	Long: `perch connects Slack and Mattermost to a single normalized message
queue, with per-thread wake/sleep handling, a prompt injection guard, and an
HMAC-verified webhook listener.`,
	SilenceUsage: true,
}

var rootConfigDir string

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigDir, "config-dir", "",
		"Config directory (default ~/.perch, or $PERCH_CONFIG_DIR)")
	rootCmd.PersistentPreRun = func(*cobra.Command, []string) {
		if rootConfigDir != "" {
			config.SetConfigDir(rootConfigDir)
		}
	}
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
