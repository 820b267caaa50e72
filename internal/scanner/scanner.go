// Package scanner enumerates workspace source files and computes content
// hashes so the indexer can detect what actually changed between runs.
package scanner

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"costscope/internal/slogutil"
)

// Directories never worth descending into, regardless of config.
var skipDirs = map[string]bool{
	".git":         true,
	".costscope":   true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"out":          true,
	"__pycache__":  true,
	".venv":        true,
	".cache":       true,
}

// DefaultExtensions are the source file types indexed out of the box.
var DefaultExtensions = []string{".js", ".jsx", ".ts", ".tsx", ".mjs", ".cjs", ".py"}

// FileDescriptor describes one scanned file.
type FileDescriptor struct {
	Path    string // relative to the scan root, forward slashes
	Hash    string // sha256 of content
	ModTime int64  // unix seconds
	Size    int64
}

// Config controls which files are scanned.
type Config struct {
	Extensions []string // file extensions to include (with leading dot)
	Excludes   []string // glob patterns or directory prefixes to skip
	MaxWorkers int      // bounded parallelism for hashing, default 8
}

// DefaultConfig returns the default scanner configuration.
func DefaultConfig() Config {
	return Config{
		Extensions: DefaultExtensions,
		MaxWorkers: 8,
	}
}

// Scanner walks a workspace root and hashes matching files.
type Scanner struct {
	config Config
	logger *slog.Logger
	exts   map[string]bool
}

// New creates a scanner. A nil logger discards output.
func New(config Config, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	if len(config.Extensions) == 0 {
		config.Extensions = DefaultExtensions
	}
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = 8
	}
	exts := make(map[string]bool, len(config.Extensions))
	for _, e := range config.Extensions {
		exts[strings.ToLower(e)] = true
	}
	return &Scanner{config: config, logger: logger, exts: exts}
}

// Scan enumerates files under root and computes their content hashes with
// bounded parallelism. Unreadable files are logged and skipped; only an
// unreadable root aborts the scan.
func (s *Scanner) Scan(ctx context.Context, root string) ([]FileDescriptor, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("workspace root not accessible: %w", err)
	}

	var candidates []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			s.logger.Debug("Skipping inaccessible path", "path", path, "error", err.Error())
			return nil
		}
		if info.IsDir() {
			if path != root && (skipDirs[info.Name()] || strings.HasPrefix(info.Name(), ".")) {
				return filepath.SkipDir
			}
			rel, _ := filepath.Rel(root, path)
			if path != root && s.isExcluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		rel = filepath.ToSlash(rel)
		if !s.exts[strings.ToLower(filepath.Ext(path))] || s.isExcluded(rel) {
			return nil
		}
		candidates = append(candidates, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk workspace: %w", err)
	}

	var (
		mu    sync.Mutex
		files []FileDescriptor
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxWorkers)

	for _, rel := range candidates {
		rel := rel
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			abs := filepath.Join(root, filepath.FromSlash(rel))
			info, err := os.Stat(abs)
			if err != nil {
				s.logger.Debug("Skipping unreadable file", "path", rel, "error", err.Error())
				return nil
			}
			hash, err := hashFile(abs)
			if err != nil {
				s.logger.Debug("Skipping unhashable file", "path", rel, "error", err.Error())
				return nil
			}
			mu.Lock()
			files = append(files, FileDescriptor{
				Path:    rel,
				Hash:    hash,
				ModTime: info.ModTime().Unix(),
				Size:    info.Size(),
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// isExcluded checks a relative path against configured exclude patterns.
// Patterns match either as globs or as directory prefixes, so "generated"
// also excludes "generated/api/client.ts".
func (s *Scanner) isExcluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	for _, pattern := range s.config.Excludes {
		pattern = filepath.ToSlash(pattern)
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
		dir := strings.TrimSuffix(pattern, "/") + "/"
		if strings.HasPrefix(rel, dir) || rel == strings.TrimSuffix(pattern, "/") {
			return true
		}
	}
	return false
}

// hashFile computes the sha256 digest of a file's content.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck // Best effort cleanup

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// Manifest converts scan results into a path -> hash map.
func Manifest(files []FileDescriptor) map[string]string {
	m := make(map[string]string, len(files))
	for _, f := range files {
		m[f.Path] = f.Hash
	}
	return m
}
