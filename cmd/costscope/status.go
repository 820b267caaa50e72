package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"costscope/internal/store"
	"costscope/internal/telemetry"
)

var statusRuns int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index state and recent run history",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusRuns, "runs", 5, "Number of recent runs to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	root := mustWorkspaceRoot()
	cfg := mustLoadConfig(root)
	logger := newLogger(cfg)

	st := store.New(root, logger)
	g, err := st.LoadGraph()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: index unusable: %v\n", err)
		fmt.Fprintln(os.Stderr, "Run 'costscope index --force' to rebuild it.")
		os.Exit(1)
	}
	if g == nil {
		fmt.Println("No index found. Run 'costscope index' first.")
		return
	}

	summary := g.Summarize()
	fmt.Printf("Index of %s\n", root)
	fmt.Printf("  Generated: %s\n", g.GeneratedAt.Local().Format(time.RFC1123))
	fmt.Printf("  Files:     %d\n", summary.FileCount)
	fmt.Printf("  Units:     %d\n", summary.UnitCount)

	if len(summary.ByCategory) > 0 {
		fmt.Println("  Classified usage by category:")
		for _, cat := range sortedKeys(summary.ByCategory) {
			fmt.Printf("    %-10s %d\n", cat, summary.ByCategory[cat])
		}
	}
	if len(summary.ByProvider) > 0 {
		fmt.Println("  Classified usage by provider:")
		for _, p := range sortedKeys(summary.ByProvider) {
			fmt.Printf("    %-12s %d\n", p, summary.ByProvider[p])
		}
	}

	runs, err := telemetry.Open(st.Dir(), logger)
	if err != nil {
		return
	}
	defer runs.Close()

	recent, err := runs.RecentRuns(statusRuns)
	if err != nil || len(recent) == 0 {
		return
	}
	fmt.Println("Recent runs:")
	for _, r := range recent {
		fmt.Printf("  %s  %-6s  %4d files, %3d changed, %4d units, %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Mode, r.FilesScanned, r.FilesChanged, r.UnitsIndexed,
			time.Duration(r.DurationMs)*time.Millisecond)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
