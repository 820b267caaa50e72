package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"costscope/internal/config"
	"costscope/internal/slogutil"
	"costscope/internal/version"
)

var (
	flagRoot     string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "costscope",
	Short: "Index a source tree for cost-relevant code",
	Long: `costscope indexes a workspace to find calls into paid external
services (LLM, payment, database, cloud, storage APIs) and flags costly
calls nested inside loops.

The index is incremental: unchanged files are never re-parsed or
re-classified.`,
	Version: version.Info(),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", ".", "Workspace root to operate on")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

// mustWorkspaceRoot resolves the --root flag to an absolute path.
func mustWorkspaceRoot() string {
	abs, err := filepath.Abs(flagRoot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid workspace root: %v\n", err)
		os.Exit(1)
	}
	if _, err := os.Stat(abs); err != nil {
		fmt.Fprintf(os.Stderr, "Error: workspace root not accessible: %v\n", err)
		os.Exit(1)
	}
	return abs
}

// mustLoadConfig loads the workspace config or exits.
func mustLoadConfig(root string) *config.Config {
	cfg, err := config.Load(root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// newLogger builds the CLI logger; --log-level overrides the config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.Logging.Level
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	return slogutil.NewStderrLogger(slogutil.LevelFromString(level))
}
