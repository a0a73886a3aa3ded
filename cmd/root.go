// Package cmd provides the titlekeep CLI: batch filename synchronization and
// a watch mode over a vault directory.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:   "titlekeep",
	Short: "Keep markdown filenames synchronized with their first line",
	Long: `Titlekeep derives each markdown note's filename from its first
meaningful content line and keeps the two synchronized, safely, under
concurrent edits, creations, and renames.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
