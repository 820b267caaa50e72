package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"costscope/internal/classify"
	"costscope/internal/loopcost"
)

var detectCmd = &cobra.Command{
	Use:   "detect <file>",
	Short: "Find costly calls inside loops in a single file",
	Long: `Analyzes one source file for paid API calls that execute inside a
loop body. Each finding includes the loop location and a suggested fix
(batching or hoisting the call).

Examples:
  costscope detect src/sync.ts
  costscope detect scripts/backfill.py`,
	Args: cobra.ExactArgs(1),
	Run:  runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) {
	root := mustWorkspaceRoot()
	cfg := mustLoadConfig(root)
	logger := newLogger(cfg)

	path := args[0]
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	lang, ok := loopcost.LanguageForExtension(filepath.Ext(path))
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unsupported file type %q\n", filepath.Ext(path))
		os.Exit(1)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	table, err := classify.LoadSignatureTable(cfg.Classifier.SignaturesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}

	detector := loopcost.New(table.CostlyCalls, logger)
	suggestions, err := detector.Detect(filepath.ToSlash(rel), content, lang)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(suggestions) == 0 {
		fmt.Println("No costly calls inside loops.")
		return
	}
	for _, s := range suggestions {
		fmt.Printf("%s:%d:%d  [%s/%s]  %s\n",
			s.Location.File, s.Location.StartLine, s.Location.StartCol,
			s.Severity, s.CostImpact, s.Title)
		fmt.Printf("  %s\n", s.Description)
		fmt.Printf("  Suggestion: %s\n", s.Action)
	}
	fmt.Printf("%d finding(s)\n", len(suggestions))
}
