// Package watcher re-runs indexing when workspace files change. It polls
// content hashes rather than relying on platform file events, which keeps
// behavior identical across OSes and matches how the indexer itself
// decides what changed.
package watcher

import (
	"context"
	"log/slog"
	"time"

	"costscope/internal/scanner"
	"costscope/internal/slogutil"
)

// ChangeHandler is called with the detected change set after the debounce
// window closes.
type ChangeHandler func(changes scanner.Changes)

// Config contains watcher configuration.
type Config struct {
	Interval time.Duration // polling interval, default 30s
	Debounce time.Duration // quiet period before the handler fires, default 2s
}

// DefaultConfig returns the default watcher configuration.
func DefaultConfig() Config {
	return Config{
		Interval: 30 * time.Second,
		Debounce: 2 * time.Second,
	}
}

// Watcher polls a workspace root for content changes.
type Watcher struct {
	root      string
	scanner   *scanner.Scanner
	config    Config
	handler   ChangeHandler
	debouncer *Debouncer
	logger    *slog.Logger

	last map[string]string
}

// New creates a watcher. The initial manifest seeds the baseline so the
// first poll only reports changes made after startup.
func New(root string, sc *scanner.Scanner, initial map[string]string, config Config, handler ChangeHandler, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultConfig().Debounce
	}
	return &Watcher{
		root:      root,
		scanner:   sc,
		config:    config,
		handler:   handler,
		debouncer: NewDebouncer(config.Debounce),
		logger:    logger,
		last:      initial,
	}
}

// Start polls until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()
	defer w.debouncer.Cancel()

	w.logger.Info("Watching for changes",
		"interval", w.config.Interval.String())

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll scans once and schedules the handler if anything changed.
func (w *Watcher) poll(ctx context.Context) {
	files, err := w.scanner.Scan(ctx, w.root)
	if err != nil {
		w.logger.Warn("Watch poll failed", "error", err.Error())
		return
	}
	current := scanner.Manifest(files)
	changes := scanner.Diff(current, w.last)
	if changes.Empty() {
		return
	}
	w.last = current
	w.logger.Debug("Changes detected",
		"added", len(changes.Added),
		"changed", len(changes.Changed),
		"removed", len(changes.Removed))

	w.debouncer.Trigger(func() {
		w.handler(changes)
	})
}
