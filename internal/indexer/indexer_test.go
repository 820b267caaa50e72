package indexer

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"costscope/internal/classify"
	"costscope/internal/config"
	"costscope/internal/graph"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func newTestIndexer(t *testing.T, root string) *Indexer {
	t.Helper()
	ix, err := New(root, config.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return ix
}

// countingClassifier wraps the heuristic and counts invocations, so tests
// can assert that unchanged runs issue zero classification calls.
type countingClassifier struct {
	calls atomic.Int64
	units atomic.Int64
	inner classify.Classifier
}

func newCountingClassifier() *countingClassifier {
	return &countingClassifier{inner: classify.NewHeuristic(nil)}
}

func (c *countingClassifier) Classify(ctx context.Context, bundles []classify.ContextBundle) ([]graph.ApiClassification, error) {
	c.calls.Add(1)
	c.units.Add(int64(len(bundles)))
	return c.inner.Classify(ctx, bundles)
}

const appTS = `import OpenAI from "openai";

export function ask(prompt) {
  return client.chat.completions.create({ prompt });
}
`

const utilPy = `import requests

def fetch(url):
    return requests.get(url)
`

func TestRunFullThenIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.ts", appTS)
	writeFile(t, root, "scripts/util.py", utilPy)

	ix := newTestIndexer(t, root)
	counter := newCountingClassifier()
	ix.SetClassifiers(counter, nil)

	g, err := ix.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if len(g.Files) != 2 {
		t.Fatalf("got %d file records, want 2", len(g.Files))
	}
	if len(g.Units) == 0 {
		t.Fatal("no units extracted")
	}
	firstStats := ix.LastStats()
	if firstStats.Unchanged {
		t.Error("first run reported unchanged")
	}
	callsAfterFirst := counter.calls.Load()
	if callsAfterFirst == 0 {
		t.Fatal("first run never classified")
	}

	// Second run on an untouched workspace: same graph, no classification,
	// no persistence churn.
	graphPath := filepath.Join(ix.Store().Dir(), "graph.json.gz")
	before, err := os.Stat(graphPath)
	if err != nil {
		t.Fatalf("stat graph: %v", err)
	}

	g2, err := ix.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !ix.LastStats().Unchanged {
		t.Error("second run did not report unchanged")
	}
	if counter.calls.Load() != callsAfterFirst {
		t.Errorf("unchanged run issued %d extra classification calls", counter.calls.Load()-callsAfterFirst)
	}
	after, err := os.Stat(graphPath)
	if err != nil {
		t.Fatalf("stat graph: %v", err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Error("unchanged run rewrote the persisted graph")
	}

	if len(g2.Units) != len(g.Units) {
		t.Errorf("unit count drifted: %d vs %d", len(g2.Units), len(g.Units))
	}
	for _, u := range g.Units {
		if g2.UnitByID(u.ID) == nil {
			t.Errorf("unit %s (%s) missing on second run", u.ID, u.Name)
		}
	}
}

func TestRunIncremental(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.ts", appTS)
	writeFile(t, root, "scripts/util.py", utilPy)

	ix := newTestIndexer(t, root)
	counter := newCountingClassifier()
	ix.SetClassifiers(counter, nil)

	g1, err := ix.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	pyUnits := g1.UnitsForFile("scripts/util.py")
	if len(pyUnits) == 0 {
		t.Fatal("no python units on first run")
	}
	unitsAfterFirst := counter.units.Load()

	// Touch only the TypeScript file.
	writeFile(t, root, "src/app.ts", appTS+"\nexport function extra() { return 1 }\n")

	g2, err := ix.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if ix.LastStats().FilesChanged != 1 {
		t.Errorf("FilesChanged = %d, want 1", ix.LastStats().FilesChanged)
	}

	// The untouched file's units survive with identical ids.
	pyAfter := g2.UnitsForFile("scripts/util.py")
	if len(pyAfter) != len(pyUnits) {
		t.Fatalf("python units changed: %d vs %d", len(pyAfter), len(pyUnits))
	}
	for i := range pyUnits {
		if pyAfter[i].ID != pyUnits[i].ID {
			t.Errorf("python unit id drifted: %s -> %s", pyUnits[i].ID, pyAfter[i].ID)
		}
	}

	// Only the changed file's units were re-classified.
	reclassified := counter.units.Load() - unitsAfterFirst
	if want := int64(len(g2.UnitsForFile("src/app.ts"))); reclassified != want {
		t.Errorf("re-classified %d units, want %d", reclassified, want)
	}

	var extra *graph.CodeUnit
	for _, u := range g2.UnitsForFile("src/app.ts") {
		if u.Name == "extra" {
			extra = &u
			break
		}
	}
	if extra == nil {
		t.Error("new unit not indexed")
	}
}

func TestRunRemovesDeletedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.ts", appTS)
	writeFile(t, root, "src/gone.ts", "export function bye() {}\n")

	ix := newTestIndexer(t, root)
	g1, err := ix.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	goneUnits := g1.UnitsForFile("src/gone.ts")
	if len(goneUnits) == 0 {
		t.Fatal("expected units for src/gone.ts")
	}

	if err := os.Remove(filepath.Join(root, "src", "gone.ts")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	g2, err := ix.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if ix.LastStats().FilesRemoved != 1 {
		t.Errorf("FilesRemoved = %d, want 1", ix.LastStats().FilesRemoved)
	}
	if g2.FileRecordFor("src/gone.ts") != nil {
		t.Error("removed file record survived")
	}
	for _, u := range goneUnits {
		if g2.UnitByID(u.ID) != nil {
			t.Errorf("unit %s of removed file survived", u.ID)
		}
		if _, ok := g2.Classifications[u.ID]; ok {
			t.Errorf("classification of removed unit %s survived", u.ID)
		}
	}

	// No dangling references anywhere.
	for _, f := range g2.Files {
		for _, id := range f.UnitIDs {
			if g2.UnitByID(id) == nil {
				t.Errorf("file %s references missing unit %s", f.Path, id)
			}
		}
	}
	for id := range g2.Classifications {
		if g2.UnitByID(id) == nil {
			t.Errorf("classification references missing unit %s", id)
		}
	}
}

func TestRunForceClean(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.ts", appTS)

	ix := newTestIndexer(t, root)
	counter := newCountingClassifier()
	ix.SetClassifiers(counter, nil)

	if _, err := ix.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	callsAfterFirst := counter.calls.Load()

	// Unchanged workspace, but ForceClean discards the manifest.
	g, err := ix.Run(context.Background(), Options{ForceClean: true})
	if err != nil {
		t.Fatalf("force run failed: %v", err)
	}
	if ix.LastStats().Unchanged {
		t.Error("force run reported unchanged")
	}
	if counter.calls.Load() == callsAfterFirst {
		t.Error("force run did not re-classify")
	}
	if len(g.Files) != 1 {
		t.Errorf("got %d file records, want 1", len(g.Files))
	}
}

func TestRunScoped(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.ts", appTS)
	writeFile(t, root, "scripts/util.py", utilPy)

	ix := newTestIndexer(t, root)
	if _, err := ix.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("full run failed: %v", err)
	}

	// Touch both files, then run scoped to src/ only.
	writeFile(t, root, "src/app.ts", appTS+"\nexport function extra() {}\n")
	writeFile(t, root, "scripts/util.py", utilPy+"\ndef extra():\n    pass\n")

	if _, err := ix.Run(context.Background(), Options{Scope: "src"}); err != nil {
		t.Fatalf("scoped run failed: %v", err)
	}
	if ix.LastStats().FilesChanged != 1 {
		t.Errorf("scoped FilesChanged = %d, want 1", ix.LastStats().FilesChanged)
	}

	// A follow-up full run still sees the out-of-scope change.
	g, err := ix.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("follow-up run failed: %v", err)
	}
	if ix.LastStats().Unchanged {
		t.Fatal("out-of-scope change was forgotten")
	}
	found := false
	for _, u := range g.UnitsForFile("scripts/util.py") {
		if u.Name == "extra" {
			found = true
		}
	}
	if !found {
		t.Error("out-of-scope edit never picked up")
	}
}

func TestRunUnitlessFileStillRecorded(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.ts", appTS)
	writeFile(t, root, "src/empty.ts", "")

	ix := newTestIndexer(t, root)
	g, err := ix.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	// Both files get records; the empty one just has no units.
	if g.FileRecordFor("src/empty.ts") == nil {
		t.Error("empty file has no record")
	}
	if len(g.UnitsForFile("src/empty.ts")) != 0 {
		t.Error("empty file produced units")
	}
}

func TestRunCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.ts", appTS)

	ix := newTestIndexer(t, root)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ix.Run(ctx, Options{}); err == nil {
		t.Fatal("expected error from cancelled context")
	}
	// Nothing persisted by the aborted run.
	g, err := ix.Store().LoadGraph()
	if err != nil {
		t.Fatalf("LoadGraph failed: %v", err)
	}
	if g != nil {
		t.Error("cancelled run persisted a graph")
	}
}

func TestRunCorruptStateDegradesToFullReindex(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.ts", appTS)

	ix := newTestIndexer(t, root)
	if _, err := ix.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	// Corrupt the graph artifact.
	graphPath := filepath.Join(ix.Store().Dir(), "graph.json.gz")
	if err := os.WriteFile(graphPath, []byte("garbage"), 0o644); err != nil {
		t.Fatalf("corrupt: %v", err)
	}

	g, err := ix.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("run over corrupt state failed: %v", err)
	}
	if ix.LastStats().Unchanged {
		t.Error("corrupt state treated as unchanged")
	}
	if len(g.Files) != 1 || len(g.Units) == 0 {
		t.Errorf("recovery run produced %d files, %d units", len(g.Files), len(g.Units))
	}
}

func TestRunReportsProgress(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.ts", appTS)

	ix := newTestIndexer(t, root)
	seen := make(map[Phase]bool)
	ix.SetProgress(func(p Progress) { seen[p.Phase] = true })

	if _, err := ix.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	for _, phase := range []Phase{PhaseScanning, PhaseExtracting, PhaseClassifying, PhasePersisting} {
		if !seen[phase] {
			t.Errorf("phase %s never reported", phase)
		}
	}
}

func TestRunRemoteMode(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.ts", appTS)

	ix := newTestIndexer(t, root)
	quick := newCountingClassifier()
	remote := newCountingClassifier()
	ix.SetClassifiers(quick, remote)

	g, err := ix.Run(context.Background(), Options{Mode: classify.ModeRemote})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if quick.calls.Load() != 0 {
		t.Error("remote mode used the quick classifier")
	}
	if remote.calls.Load() == 0 {
		t.Error("remote mode never used the remote classifier")
	}
	if want := chunkCount(len(g.Units), config.DefaultConfig().Classifier.BatchSize); ix.LastStats().ChunksIssued != want {
		t.Errorf("ChunksIssued = %d, want %d", ix.LastStats().ChunksIssued, want)
	}
}

func TestChunkCount(t *testing.T) {
	tests := []struct {
		n, batch, want int
	}{
		{0, 50, 0},
		{1, 50, 1},
		{50, 50, 1},
		{51, 50, 2},
		{120, 50, 3},
		{10, 0, 1},
	}
	for _, tt := range tests {
		if got := chunkCount(tt.n, tt.batch); got != tt.want {
			t.Errorf("chunkCount(%d, %d) = %d, want %d", tt.n, tt.batch, got, tt.want)
		}
	}
}
