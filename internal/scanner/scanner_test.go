package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
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

func TestScanCollectsMatchingFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.ts", "export const a = 1\n")
	writeFile(t, root, "src/util.py", "x = 1\n")
	writeFile(t, root, "README.md", "# readme\n")
	writeFile(t, root, "node_modules/pkg/index.js", "module.exports = {}\n")
	writeFile(t, root, ".costscope/graph.json.gz", "binary\n")

	s := New(DefaultConfig(), nil)
	files, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []string{"src/app.ts", "src/util.py"}
	if len(files) != len(want) {
		t.Fatalf("got %d files, want %d: %+v", len(files), len(want), files)
	}
	for i, f := range files {
		if f.Path != want[i] {
			t.Errorf("files[%d].Path = %q, want %q", i, f.Path, want[i])
		}
		if f.Hash == "" {
			t.Errorf("files[%d] has empty hash", i)
		}
		if f.Size == 0 {
			t.Errorf("files[%d] has zero size", i)
		}
	}
}

func TestScanHashIsContentDerived(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.js", "const x = 1\n")
	writeFile(t, root, "b.js", "const x = 1\n")
	writeFile(t, root, "c.js", "const x = 2\n")

	s := New(DefaultConfig(), nil)
	files, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	m := Manifest(files)
	if m["a.js"] != m["b.js"] {
		t.Errorf("identical content produced different hashes: %s vs %s", m["a.js"], m["b.js"])
	}
	if m["a.js"] == m["c.js"] {
		t.Errorf("different content produced the same hash: %s", m["a.js"])
	}
}

func TestScanExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.ts", "export const a = 1\n")
	writeFile(t, root, "generated/client.ts", "export const g = 1\n")
	writeFile(t, root, "src/app.test.ts", "test\n")

	s := New(Config{
		Extensions: []string{".ts"},
		Excludes:   []string{"generated", "*.test.ts", "src/*.test.ts"},
	}, nil)
	files, err := s.Scan(context.Background(), root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(files) != 1 || files[0].Path != "src/app.ts" {
		t.Fatalf("got %+v, want only src/app.ts", files)
	}
}

func TestScanCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.js", "const x = 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(DefaultConfig(), nil)
	if _, err := s.Scan(ctx, root); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestScanMissingRoot(t *testing.T) {
	s := New(DefaultConfig(), nil)
	if _, err := s.Scan(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestDiff(t *testing.T) {
	previous := map[string]string{
		"a.ts": "h1",
		"b.ts": "h2",
		"c.ts": "h3",
	}
	current := map[string]string{
		"a.ts": "h1",      // unchanged
		"b.ts": "h2-next", // changed
		"d.ts": "h4",      // added
	}

	changes := Diff(current, previous)
	if got, want := changes.Added, []string{"d.ts"}; !equalStrings(got, want) {
		t.Errorf("Added = %v, want %v", got, want)
	}
	if got, want := changes.Changed, []string{"b.ts"}; !equalStrings(got, want) {
		t.Errorf("Changed = %v, want %v", got, want)
	}
	if got, want := changes.Removed, []string{"c.ts"}; !equalStrings(got, want) {
		t.Errorf("Removed = %v, want %v", got, want)
	}
	if changes.Empty() {
		t.Error("Empty() = true for non-empty change set")
	}
	if got, want := changes.Modified(), []string{"b.ts", "d.ts"}; !equalStrings(got, want) {
		t.Errorf("Modified() = %v, want %v", got, want)
	}
}

func TestDiffNoPrevious(t *testing.T) {
	current := map[string]string{"a.ts": "h1", "b.ts": "h2"}
	changes := Diff(current, nil)
	if len(changes.Added) != 2 || len(changes.Changed) != 0 || len(changes.Removed) != 0 {
		t.Fatalf("got %+v, want everything added", changes)
	}
}

func TestDiffIdentical(t *testing.T) {
	m := map[string]string{"a.ts": "h1"}
	changes := Diff(m, m)
	if !changes.Empty() {
		t.Fatalf("got %+v, want empty change set", changes)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
