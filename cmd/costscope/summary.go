package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"costscope/internal/store"
)

var summaryJSON bool

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Summarize paid API usage across the indexed workspace",
	Run:   runSummary,
}

func init() {
	summaryCmd.Flags().BoolVar(&summaryJSON, "json", false, "Emit machine-readable JSON")
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) {
	root := mustWorkspaceRoot()
	cfg := mustLoadConfig(root)
	logger := newLogger(cfg)

	g, err := store.New(root, logger).LoadGraph()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: index unusable: %v\n", err)
		os.Exit(1)
	}
	if g == nil {
		fmt.Fprintln(os.Stderr, "Error: no index found. Run 'costscope index' first.")
		os.Exit(1)
	}

	summary := g.Summarize()
	if summaryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	fmt.Printf("Files: %d, units: %d\n", summary.FileCount, summary.UnitCount)
	if len(summary.ByCategory) == 0 {
		fmt.Println("No external API usage detected.")
		return
	}
	fmt.Println("Classified usage by category:")
	for _, cat := range sortedKeys(summary.ByCategory) {
		fmt.Printf("  %-10s %d\n", cat, summary.ByCategory[cat])
	}
	fmt.Println("Classified usage by provider:")
	for _, p := range sortedKeys(summary.ByProvider) {
		fmt.Printf("  %-12s %d\n", p, summary.ByProvider[p])
	}
}
