package scanner

import "sort"

// Changes is the modified-file set between two hash manifests.
type Changes struct {
	Added   []string
	Changed []string
	Removed []string
}

// Empty reports whether nothing changed.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Changed) == 0 && len(c.Removed) == 0
}

// Modified returns added plus changed paths, the set that needs re-parsing.
func (c Changes) Modified() []string {
	out := make([]string, 0, len(c.Added)+len(c.Changed))
	out = append(out, c.Added...)
	out = append(out, c.Changed...)
	sort.Strings(out)
	return out
}

// Diff compares the current manifest against the previous one. A file is
// changed only if its content hash differs; mtime churn alone never
// triggers re-processing.
func Diff(current, previous map[string]string) Changes {
	var c Changes
	for path, hash := range current {
		prev, ok := previous[path]
		switch {
		case !ok:
			c.Added = append(c.Added, path)
		case prev != hash:
			c.Changed = append(c.Changed, path)
		}
	}
	for path := range previous {
		if _, ok := current[path]; !ok {
			c.Removed = append(c.Removed, path)
		}
	}
	sort.Strings(c.Added)
	sort.Strings(c.Changed)
	sort.Strings(c.Removed)
	return c
}
