package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"costscope/internal/api"
	"costscope/internal/store"
)

var unitsCmd = &cobra.Command{
	Use:   "units <file>",
	Short: "List indexed code units and their classifications for a file",
	Args:  cobra.ExactArgs(1),
	Run:   runUnits,
}

func init() {
	rootCmd.AddCommand(unitsCmd)
}

func runUnits(cmd *cobra.Command, args []string) {
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

	path := filepath.ToSlash(args[0])
	svc := api.NewService(g, nil)
	units := svc.UnitsForFile(path)
	if len(units) == 0 {
		fmt.Printf("No units indexed for %s\n", path)
		return
	}

	for _, u := range units {
		fmt.Printf("%s  %-8s %s (line %d)\n", u.ID, u.Kind, u.Name, u.Location.StartLine)
		c, ok := svc.Classification(u.ID)
		if !ok {
			continue
		}
		paid := ""
		if c.IsPaid {
			paid = " PAID"
		}
		fmt.Printf("  role=%s category=%s provider=%s confidence=%.2f%s\n",
			c.Role, c.Category, c.Provider, c.Confidence, paid)
	}
}
