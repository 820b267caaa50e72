// Package indexer orchestrates incremental indexing runs: scan, diff,
// extract, classify, persist. Files outside the modified set keep their
// units and classifications untouched; persistence happens once at the end
// of a fully successful pass, so a cancelled run leaves prior state intact.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"costscope/internal/classify"
	"costscope/internal/config"
	"costscope/internal/extract"
	"costscope/internal/graph"
	"costscope/internal/scanner"
	"costscope/internal/slogutil"
	"costscope/internal/store"
	"costscope/internal/telemetry"
)

// Phase identifies where a run currently is.
type Phase string

const (
	PhaseScanning    Phase = "scanning"
	PhaseExtracting  Phase = "extracting"
	PhaseClassifying Phase = "classifying"
	PhasePersisting  Phase = "persisting"
)

// Progress is reported at phase boundaries and per processed file.
type Progress struct {
	Phase Phase
	Done  int
	Total int
}

// ProgressFunc receives progress updates. Must be fast; called inline.
type ProgressFunc func(Progress)

// Options control a single indexing run.
type Options struct {
	Mode       classify.Mode
	Scope      string // optional workspace-relative dir prefix
	ForceClean bool   // discard the prior manifest, full re-index
}

// Stats summarizes one run.
type Stats struct {
	FilesScanned    int
	FilesChanged    int
	FilesRemoved    int
	UnitsIndexed    int
	ChunksIssued    int
	ErrorsContained int
	Unchanged       bool
	Duration        time.Duration
}

// Indexer owns the workspace-scoped index state. The graph is mutated
// only here; other components read snapshots.
type Indexer struct {
	root       string
	cfg        *config.Config
	scanner    *scanner.Scanner
	extractor  *extract.Extractor
	quick      classify.Classifier
	remote     classify.Classifier
	store      *store.Store
	runs       *telemetry.Store
	logger     *slog.Logger
	onProgress ProgressFunc

	lastStats Stats
}

// New wires an indexer for the given workspace root.
func New(root string, cfg *config.Config, logger *slog.Logger) (*Indexer, error) {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	table, err := classify.LoadSignatureTable(cfg.Classifier.SignaturesPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load signature table: %w", err)
	}

	heuristic := classify.NewHeuristic(table)
	remote := classify.NewRemote(classify.RemoteConfig{
		Endpoint:   cfg.Classifier.Endpoint,
		Token:      cfg.OracleToken(),
		BatchSize:  cfg.Classifier.BatchSize,
		MaxRetries: cfg.Classifier.MaxRetries,
		Timeout:    time.Duration(cfg.Classifier.TimeoutMs) * time.Millisecond,
	}, heuristic, logger)

	return &Indexer{
		root: root,
		cfg:  cfg,
		scanner: scanner.New(scanner.Config{
			Extensions: cfg.Scanner.Extensions,
			Excludes:   cfg.Scanner.Excludes,
			MaxWorkers: cfg.Scanner.MaxWorkers,
		}, logger),
		extractor: extract.New(logger),
		quick:     heuristic,
		remote:    remote,
		store:     store.New(root, logger),
		logger:    logger,
	}, nil
}

// SetProgress installs a progress callback.
func (ix *Indexer) SetProgress(fn ProgressFunc) { ix.onProgress = fn }

// SetTelemetry attaches a run-history store. Optional; recording failures
// are logged, never propagated.
func (ix *Indexer) SetTelemetry(runs *telemetry.Store) { ix.runs = runs }

// SetClassifiers replaces the classification strategies. Used by tests to
// substitute a deterministic stub behind the oracle seam.
func (ix *Indexer) SetClassifiers(quick, remote classify.Classifier) {
	if quick != nil {
		ix.quick = quick
	}
	if remote != nil {
		ix.remote = remote
	}
}

// Store exposes the artifact store for read-side consumers.
func (ix *Indexer) Store() *store.Store { return ix.store }

// LastStats returns statistics from the most recent run.
func (ix *Indexer) LastStats() Stats { return ix.lastStats }

func (ix *Indexer) progress(p Progress) {
	if ix.onProgress != nil {
		ix.onProgress(p)
	}
}

// Run executes one indexing pass and returns the resulting graph. The
// returned graph is also persisted unless nothing changed.
func (ix *Indexer) Run(ctx context.Context, opts Options) (*graph.CodespaceGraph, error) {
	start := time.Now()
	var stats Stats

	if opts.Mode == "" {
		opts.Mode = classify.Mode(ix.cfg.Classifier.Mode)
	}

	if opts.ForceClean {
		if err := ix.store.DeleteManifest(); err != nil {
			return nil, fmt.Errorf("failed to discard manifest: %w", err)
		}
	}

	previous := ix.loadPrevious(opts.ForceClean)

	// Scanning.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ix.progress(Progress{Phase: PhaseScanning})
	files, err := ix.scanner.Scan(ctx, ix.root)
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	stats.FilesScanned = len(files)

	current := scanner.Manifest(files)
	manifest, changes := ix.applyScope(opts.Scope, current, previous.manifest)
	stats.FilesChanged = len(changes.Added) + len(changes.Changed)
	stats.FilesRemoved = len(changes.Removed)

	if changes.Empty() && previous.graph != nil {
		ix.logger.Info("Workspace unchanged, skipping re-index",
			"files", len(files))
		stats.Unchanged = true
		stats.Duration = time.Since(start)
		ix.lastStats = stats
		ix.recordRun(start, opts.Mode, stats)
		return previous.graph, nil
	}

	g := previous.graph
	if g == nil {
		g = graph.New()
	}
	for _, path := range changes.Removed {
		g.RemoveFile(path)
	}

	// Extracting.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	modified := changes.Modified()
	newUnits, records, contained, err := ix.extractFiles(ctx, files, modified)
	if err != nil {
		return nil, err
	}
	stats.ErrorsContained += contained
	stats.UnitsIndexed = len(newUnits)

	for _, path := range modified {
		g.RemoveFile(path)
	}
	g.Files = append(g.Files, records...)
	g.Units = append(g.Units, newUnits...)

	// Classifying. Chunks are issued sequentially inside the classifier;
	// only the changed files' units are (re-)classified.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	total := chunkCount(len(newUnits), ix.cfg.Classifier.BatchSize)
	ix.progress(Progress{Phase: PhaseClassifying, Total: total})
	if len(newUnits) > 0 {
		classifier := ix.quick
		if opts.Mode == classify.ModeRemote {
			classifier = ix.remote
			stats.ChunksIssued = total
		}
		bundles := classify.BundleAll(newUnits)
		verdicts, err := classifier.Classify(ctx, bundles)
		if err != nil {
			return nil, fmt.Errorf("classification failed: %w", err)
		}
		for i, u := range newUnits {
			g.Classifications[u.ID] = verdicts[i]
		}
	}
	ix.progress(Progress{Phase: PhaseClassifying, Done: total, Total: total})

	// Persisting. Only now does on-disk state change.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ix.progress(Progress{Phase: PhasePersisting})
	g.GeneratedAt = time.Now().UTC()
	if err := ix.store.SaveGraph(g); err != nil {
		return nil, fmt.Errorf("failed to persist graph: %w", err)
	}
	if err := ix.store.SaveManifest(manifest); err != nil {
		return nil, fmt.Errorf("failed to persist manifest: %w", err)
	}

	stats.Duration = time.Since(start)
	ix.lastStats = stats
	ix.recordRun(start, opts.Mode, stats)

	ix.logger.Info("Indexing run complete",
		"files", stats.FilesScanned,
		"changed", stats.FilesChanged,
		"removed", stats.FilesRemoved,
		"units", stats.UnitsIndexed,
		"duration", stats.Duration.Round(time.Millisecond).String())
	return g, nil
}

type previousState struct {
	graph    *graph.CodespaceGraph
	manifest map[string]string
}

// loadPrevious reads prior artifacts. Incompatible or corrupt state is
// treated as absent: the run degrades to a full re-index, never a crash.
func (ix *Indexer) loadPrevious(forceClean bool) previousState {
	var prev previousState
	if forceClean {
		return prev
	}

	g, err := ix.store.LoadGraph()
	if err != nil {
		ix.logger.Warn("Previous graph unusable, forcing full re-index", "error", err.Error())
	} else {
		prev.graph = g
	}

	m, err := ix.store.LoadManifest()
	if err != nil {
		ix.logger.Warn("Previous manifest unusable, forcing full re-index", "error", err.Error())
	} else {
		prev.manifest = m
	}

	// A manifest without a graph (or vice versa) cannot support an
	// incremental run.
	if prev.graph == nil || prev.manifest == nil {
		prev.graph = nil
		prev.manifest = nil
	}
	return prev
}

// applyScope computes the change set, optionally restricted to a dir
// prefix. Out-of-scope entries of the previous manifest are preserved in
// the new one so a scoped run never forgets the rest of the workspace.
func (ix *Indexer) applyScope(scope string, current, previous map[string]string) (map[string]string, scanner.Changes) {
	if scope == "" {
		return current, scanner.Diff(current, previous)
	}

	prefix := strings.TrimSuffix(filepath.ToSlash(scope), "/") + "/"
	inScope := func(path string) bool {
		return strings.HasPrefix(path, prefix) || path == strings.TrimSuffix(prefix, "/")
	}

	curScoped := make(map[string]string)
	for p, h := range current {
		if inScope(p) {
			curScoped[p] = h
		}
	}
	prevScoped := make(map[string]string)
	for p, h := range previous {
		if inScope(p) {
			prevScoped[p] = h
		}
	}
	changes := scanner.Diff(curScoped, prevScoped)

	manifest := make(map[string]string, len(previous))
	for p, h := range previous {
		if !inScope(p) {
			manifest[p] = h
		}
	}
	for p, h := range curScoped {
		manifest[p] = h
	}
	return manifest, changes
}

// extractFiles re-parses the modified set with bounded parallelism. A
// parse failure contributes a unit-less file record and is counted, not
// fatal.
func (ix *Indexer) extractFiles(ctx context.Context, files []scanner.FileDescriptor, modified []string) ([]graph.CodeUnit, []graph.FileRecord, int, error) {
	descByPath := make(map[string]scanner.FileDescriptor, len(files))
	for _, f := range files {
		descByPath[f.Path] = f
	}

	var (
		mu        sync.Mutex
		units     []graph.CodeUnit
		records   []graph.FileRecord
		contained int
		done      int
	)

	ix.progress(Progress{Phase: PhaseExtracting, Total: len(modified)})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.cfg.Indexer.MaxWorkers)

	for _, path := range modified {
		path := path
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			desc, ok := descByPath[path]
			if !ok {
				return nil
			}

			source, err := os.ReadFile(filepath.Join(ix.root, filepath.FromSlash(path)))
			var fileUnits []graph.CodeUnit
			switch {
			case err != nil:
				ix.logger.Warn("Failed to read file, skipping units", "path", path, "error", err.Error())
			default:
				fileUnits, err = ix.extractor.ParseFile(gctx, path, source)
				if err != nil {
					ix.logger.Warn("Parse failed, skipping units", "path", path, "error", err.Error())
				}
			}

			record := graph.FileRecord{
				Path:         path,
				ContentHash:  desc.Hash,
				LastModified: time.Unix(desc.ModTime, 0).UTC(),
			}
			for _, u := range fileUnits {
				record.UnitIDs = append(record.UnitIDs, u.ID)
			}

			mu.Lock()
			if err != nil {
				contained++
			}
			units = append(units, fileUnits...)
			records = append(records, record)
			done++
			ix.progress(Progress{Phase: PhaseExtracting, Done: done, Total: len(modified)})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, contained, err
	}
	return units, records, contained, nil
}

func (ix *Indexer) recordRun(start time.Time, mode classify.Mode, stats Stats) {
	if ix.runs == nil {
		return
	}
	err := ix.runs.RecordRun(telemetry.RunRecord{
		StartedAt:       start,
		DurationMs:      stats.Duration.Milliseconds(),
		Mode:            string(mode),
		FilesScanned:    stats.FilesScanned,
		FilesChanged:    stats.FilesChanged,
		FilesRemoved:    stats.FilesRemoved,
		UnitsIndexed:    stats.UnitsIndexed,
		ChunksIssued:    stats.ChunksIssued,
		ErrorsContained: stats.ErrorsContained,
	})
	if err != nil {
		ix.logger.Debug("Failed to record run telemetry", "error", err.Error())
	}
}

func chunkCount(n, batchSize int) int {
	if n == 0 {
		return 0
	}
	if batchSize <= 0 {
		batchSize = classify.DefaultBatchSize
	}
	return (n + batchSize - 1) / batchSize
}
