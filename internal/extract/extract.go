// Package extract turns source files into code units: function, class and
// method level spans with stable identity and file-level dependencies.
//
// Languages with a tree-sitter grammar get full-AST extraction; Python is
// handled by an indentation-tracking heuristic.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"

	"costscope/internal/graph"
	"costscope/internal/slogutil"
)

// strategy parses one file into code units. Implementations must be safe
// for concurrent use.
type strategy interface {
	Parse(ctx context.Context, path string, source []byte) ([]graph.CodeUnit, error)
}

// Extractor dispatches files to a language strategy by extension.
type Extractor struct {
	strategies map[string]strategy
	logger     *slog.Logger
}

// New creates an extractor with the built-in strategy table.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	js := newTreeSitterStrategy(dialectJavaScript)
	ts := newTreeSitterStrategy(dialectTypeScript)
	tsx := newTreeSitterStrategy(dialectTSX)
	py := &pythonStrategy{}

	return &Extractor{
		logger: logger,
		strategies: map[string]strategy{
			".js":  js,
			".jsx": js,
			".mjs": js,
			".cjs": js,
			".ts":  ts,
			".tsx": tsx,
			".py":  py,
		},
	}
}

// Supports reports whether a strategy exists for the file's extension.
func (e *Extractor) Supports(path string) bool {
	_, ok := e.strategies[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ParseFile extracts all code units from one file. The path is recorded
// verbatim in unit locations and ids, so callers should pass workspace
// relative paths. A parse failure returns an error and no units; it never
// aborts a batch.
func (e *Extractor) ParseFile(ctx context.Context, path string, source []byte) ([]graph.CodeUnit, error) {
	strat, ok := e.strategies[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, nil
	}
	units, err := strat.Parse(ctx, path, source)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	assignIDs(path, units)
	return units, nil
}

// UnitID derives the stable identity of a unit. Identical source yields
// identical ids across runs, and edits elsewhere in the file leave it
// untouched.
func UnitID(path string, startLine int, name string) string {
	sum := xxhash.Sum64String(fmt.Sprintf("%s:%d:%s", path, startLine, name))
	return fmt.Sprintf("%016x", sum)
}

// assignIDs fills in unit ids, disambiguating the rare case of two units
// with the same name starting on the same line.
func assignIDs(path string, units []graph.CodeUnit) {
	seen := make(map[string]int, len(units))
	for i := range units {
		key := fmt.Sprintf("%d:%s", units[i].Location.StartLine, units[i].Name)
		name := units[i].Name
		if n := seen[key]; n > 0 {
			name = fmt.Sprintf("%s#%d", name, n+1)
		}
		seen[key]++
		units[i].ID = UnitID(path, units[i].Location.StartLine, name)
	}
}
