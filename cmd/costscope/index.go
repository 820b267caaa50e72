package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"costscope/internal/classify"
	"costscope/internal/indexer"
	"costscope/internal/scanner"
	"costscope/internal/telemetry"
	"costscope/internal/watcher"
)

var (
	indexMode          string
	indexScope         string
	indexForce         bool
	indexWatch         bool
	indexWatchInterval time.Duration
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or refresh the cost index for the workspace",
	Long: `Scans the workspace, extracts code units from changed files and
classifies them against known paid-service signatures.

Runs are incremental: only added, changed, or removed files are
reprocessed. Use --force to discard prior state and re-index from
scratch.

Examples:
  costscope index                       # Incremental, heuristic classification
  costscope index --mode remote         # Batched classification via the oracle
  costscope index --scope src/billing   # Restrict the run to one directory
  costscope index --force               # Full re-index
  costscope index --watch               # Keep re-indexing as files change`,
	Run: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexMode, "mode", "", "Classification mode (quick, remote); defaults to config")
	indexCmd.Flags().StringVar(&indexScope, "scope", "", "Restrict the run to a workspace-relative directory")
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "Discard prior state and re-index everything")
	indexCmd.Flags().BoolVar(&indexWatch, "watch", false, "Watch for changes and re-index automatically")
	indexCmd.Flags().DurationVar(&indexWatchInterval, "watch-interval", 30*time.Second,
		"Watch mode polling interval (min 5s, max 5m)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) {
	root := mustWorkspaceRoot()
	cfg := mustLoadConfig(root)
	logger := newLogger(cfg)

	if indexMode != "" && indexMode != string(classify.ModeQuick) && indexMode != string(classify.ModeRemote) {
		fmt.Fprintf(os.Stderr, "Error: unknown mode %q (expected quick or remote)\n", indexMode)
		os.Exit(1)
	}

	ix, err := indexer.New(root, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	runs, err := telemetry.Open(ix.Store().Dir(), logger)
	if err != nil {
		logger.Warn("Run history unavailable", "error", err.Error())
	} else {
		ix.SetTelemetry(runs)
		defer runs.Close()
	}

	ix.SetProgress(printProgress)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := indexer.Options{
		Mode:       classify.Mode(indexMode),
		Scope:      indexScope,
		ForceClean: indexForce,
	}

	if _, err := ix.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	printStats(ix.LastStats())

	if !indexWatch {
		return
	}

	interval := indexWatchInterval
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}
	if interval > 5*time.Minute {
		interval = 5 * time.Minute
	}

	sc := scanner.New(scanner.Config{
		Extensions: cfg.Scanner.Extensions,
		Excludes:   cfg.Scanner.Excludes,
		MaxWorkers: cfg.Scanner.MaxWorkers,
	}, logger)
	initial, err := ix.Store().LoadManifest()
	if err != nil {
		initial = nil
	}

	fmt.Printf("Watching %s (interval %s, Ctrl+C to stop)\n", root, interval)
	w := watcher.New(root, sc, initial, watcher.Config{
		Interval: interval,
		Debounce: 2 * time.Second,
	}, func(changes scanner.Changes) {
		fmt.Printf("Change detected: %d added, %d changed, %d removed\n",
			len(changes.Added), len(changes.Changed), len(changes.Removed))
		if _, err := ix.Run(ctx, indexer.Options{Mode: opts.Mode}); err != nil {
			if ctx.Err() != nil {
				return
			}
			fmt.Fprintf(os.Stderr, "Re-index failed: %v\n", err)
			return
		}
		printStats(ix.LastStats())
	}, logger)
	w.Start(ctx)
}

func printProgress(p indexer.Progress) {
	switch {
	case p.Total == 0:
		fmt.Printf("  %s...\n", p.Phase)
	case p.Done == p.Total:
		fmt.Printf("  %s: %d/%d\n", p.Phase, p.Done, p.Total)
	}
}

func printStats(stats indexer.Stats) {
	if stats.Unchanged {
		fmt.Println("Workspace unchanged. Nothing to do.")
		return
	}
	fmt.Printf("Indexed %d files (%d changed, %d removed) in %s\n",
		stats.FilesScanned, stats.FilesChanged, stats.FilesRemoved,
		stats.Duration.Round(time.Millisecond))
	fmt.Printf("  %d units classified", stats.UnitsIndexed)
	if stats.ChunksIssued > 0 {
		fmt.Printf(" in %d oracle chunks", stats.ChunksIssued)
	}
	fmt.Println()
	if stats.ErrorsContained > 0 {
		fmt.Printf("  %d files had parse or read errors (skipped)\n", stats.ErrorsContained)
	}
}
