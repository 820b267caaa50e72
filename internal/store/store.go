// Package store persists the codespace graph and the hash manifest under
// the workspace's .costscope directory. Writes are atomic (temp file +
// rename) and loads treat anything unreadable or version-mismatched as
// absent, so a corrupt artifact forces a full re-index instead of a crash.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"costscope/internal/graph"
	"costscope/internal/slogutil"
)

const (
	// StateDir is the workspace-local directory holding all artifacts.
	StateDir = ".costscope"

	graphFile    = "graph.json.gz"
	manifestFile = "manifest.json"
)

// ErrIncompatible marks an artifact that exists but cannot be used:
// corrupt content or a schema version this build does not understand.
var ErrIncompatible = errors.New("persisted artifact incompatible")

// manifestDoc is the on-disk manifest layout.
type manifestDoc struct {
	SchemaVersion int               `json:"schemaVersion"`
	Hashes        map[string]string `json:"hashes"`
}

// Store reads and writes workspace-local index artifacts.
type Store struct {
	dir    string
	logger *slog.Logger
}

// New creates a store rooted at the workspace root. A nil logger discards
// output.
func New(root string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	return &Store{dir: filepath.Join(root, StateDir), logger: logger}
}

// Dir returns the state directory path.
func (s *Store) Dir() string { return s.dir }

// LoadGraph reads the persisted graph. Returns (nil, nil) if no graph has
// been persisted yet and ErrIncompatible for unusable artifacts.
func (s *Store) LoadGraph() (*graph.CodespaceGraph, error) {
	path := filepath.Join(s.dir, graphFile)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatible, err)
	}
	defer f.Close() //nolint:errcheck // Best effort cleanup

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: not a gzip document: %v", ErrIncompatible, err)
	}
	defer zr.Close() //nolint:errcheck // Best effort cleanup

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatible, err)
	}

	var g graph.CodespaceGraph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatible, err)
	}
	if g.SchemaVersion != graph.SchemaVersion {
		return nil, fmt.Errorf("%w: schema version %d, want %d", ErrIncompatible, g.SchemaVersion, graph.SchemaVersion)
	}
	if g.Classifications == nil {
		g.Classifications = make(map[string]graph.ApiClassification)
	}
	return &g, nil
}

// SaveGraph persists the graph atomically, pruning dangling entries and
// normalizing order first so identical content serializes identically.
func (s *Store) SaveGraph(g *graph.CodespaceGraph) error {
	g.SchemaVersion = graph.SchemaVersion
	g.Prune()
	g.Normalize()

	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return fmt.Errorf("failed to compress graph: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to compress graph: %w", err)
	}

	return s.writeAtomic(graphFile, buf.Bytes())
}

// LoadManifest reads the prior run's hash manifest. Returns (nil, nil)
// when absent and ErrIncompatible for unusable documents; callers treat
// both as "no previous run".
func (s *Store) LoadManifest() (map[string]string, error) {
	path := filepath.Join(s.dir, manifestFile)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatible, err)
	}

	var doc manifestDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIncompatible, err)
	}
	if doc.SchemaVersion != graph.SchemaVersion {
		return nil, fmt.Errorf("%w: manifest schema version %d, want %d", ErrIncompatible, doc.SchemaVersion, graph.SchemaVersion)
	}
	if doc.Hashes == nil {
		doc.Hashes = make(map[string]string)
	}
	return doc.Hashes, nil
}

// SaveManifest persists the path -> hash map atomically.
func (s *Store) SaveManifest(hashes map[string]string) error {
	doc := manifestDoc{SchemaVersion: graph.SchemaVersion, Hashes: hashes}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return s.writeAtomic(manifestFile, data)
}

// DeleteManifest removes the manifest, forcing the next run to re-index
// everything.
func (s *Store) DeleteManifest() error {
	err := os.Remove(filepath.Join(s.dir, manifestFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// writeAtomic writes a file via temp + rename so readers never observe a
// partial document.
func (s *Store) writeAtomic(name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
