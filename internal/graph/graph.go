package graph

import (
	"sort"
	"time"
)

// New returns an empty graph at the current schema version.
func New() *CodespaceGraph {
	return &CodespaceGraph{
		SchemaVersion:   SchemaVersion,
		GeneratedAt:     time.Now().UTC(),
		Classifications: make(map[string]ApiClassification),
	}
}

// FileRecordFor returns the record for a path, or nil.
func (g *CodespaceGraph) FileRecordFor(path string) *FileRecord {
	for i := range g.Files {
		if g.Files[i].Path == path {
			return &g.Files[i]
		}
	}
	return nil
}

// UnitsForFile returns all units located in the given file.
func (g *CodespaceGraph) UnitsForFile(path string) []CodeUnit {
	var units []CodeUnit
	for _, u := range g.Units {
		if u.Location.File == path {
			units = append(units, u)
		}
	}
	return units
}

// UnitByID returns the unit with the given id, or nil.
func (g *CodespaceGraph) UnitByID(id string) *CodeUnit {
	for i := range g.Units {
		if g.Units[i].ID == id {
			return &g.Units[i]
		}
	}
	return nil
}

// RemoveFile drops a file record together with every unit and
// classification it owns. Safe to call for unknown paths.
func (g *CodespaceGraph) RemoveFile(path string) {
	owned := make(map[string]bool)

	files := g.Files[:0]
	for _, f := range g.Files {
		if f.Path == path {
			for _, id := range f.UnitIDs {
				owned[id] = true
			}
			continue
		}
		files = append(files, f)
	}
	g.Files = files

	units := g.Units[:0]
	for _, u := range g.Units {
		if owned[u.ID] || u.Location.File == path {
			delete(g.Classifications, u.ID)
			continue
		}
		units = append(units, u)
	}
	g.Units = units
}

// Prune enforces the graph invariant: every unit id referenced by a file
// record exists in Units, and every classification references an existing
// unit. Dangling entries are dropped.
func (g *CodespaceGraph) Prune() {
	known := make(map[string]bool, len(g.Units))
	for _, u := range g.Units {
		known[u.ID] = true
	}

	for i := range g.Files {
		ids := g.Files[i].UnitIDs[:0]
		for _, id := range g.Files[i].UnitIDs {
			if known[id] {
				ids = append(ids, id)
			}
		}
		g.Files[i].UnitIDs = ids
	}

	for id := range g.Classifications {
		if !known[id] {
			delete(g.Classifications, id)
		}
	}
}

// Normalize sorts files and units so that two graphs with the same content
// serialize identically.
func (g *CodespaceGraph) Normalize() {
	sort.Slice(g.Files, func(i, j int) bool { return g.Files[i].Path < g.Files[j].Path })
	sort.Slice(g.Units, func(i, j int) bool {
		if g.Units[i].Location.File != g.Units[j].Location.File {
			return g.Units[i].Location.File < g.Units[j].Location.File
		}
		if g.Units[i].Location.StartLine != g.Units[j].Location.StartLine {
			return g.Units[i].Location.StartLine < g.Units[j].Location.StartLine
		}
		return g.Units[i].ID < g.Units[j].ID
	})
}

// Summarize computes aggregate counts over the graph.
func (g *CodespaceGraph) Summarize() Summary {
	s := Summary{
		FileCount:  len(g.Files),
		UnitCount:  len(g.Units),
		ByCategory: make(map[string]int),
		ByProvider: make(map[string]int),
	}
	for _, c := range g.Classifications {
		s.ByCategory[string(c.Category)]++
		if c.Provider != "" {
			s.ByProvider[c.Provider]++
		}
	}
	return s
}
