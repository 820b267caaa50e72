// Package graph defines the codespace graph: the persisted index of files,
// extracted code units, and their API classifications.
package graph

import "time"

// SchemaVersion is bumped whenever the persisted graph layout changes.
// A loaded graph with a different version is treated as absent.
const SchemaVersion = 1

// UnitKind identifies the granularity of an extracted code unit.
type UnitKind string

const (
	KindFunction UnitKind = "function"
	KindClass    UnitKind = "class"
	KindMethod   UnitKind = "method"
)

// Role describes how a unit relates to an external API.
type Role string

const (
	RoleConsumer Role = "consumer"
	RoleProvider Role = "provider"
	RoleNone     Role = "none"
)

// Category buckets the kind of external service a unit talks to.
type Category string

const (
	CategoryLLM       Category = "llm"
	CategoryPayment   Category = "payment"
	CategoryDatabase  Category = "database"
	CategoryCloud     Category = "cloud"
	CategoryAnalytics Category = "analytics"
	CategoryEmail     Category = "email"
	CategoryStorage   Category = "storage"
	CategoryOther     Category = "other"
)

// Location is a source span, 1-indexed lines and columns.
type Location struct {
	File      string `json:"file"`
	StartLine int    `json:"startLine"`
	StartCol  int    `json:"startCol"`
	EndLine   int    `json:"endLine"`
	EndCol    int    `json:"endCol"`
}

// CodeUnit is a function/class/method-level span with stable identity.
// The ID is derived from path + start line + name, so unrelated edits
// elsewhere in the file do not change it.
type CodeUnit struct {
	ID           string   `json:"id"`
	Kind         UnitKind `json:"kind"`
	Name         string   `json:"name"`
	SourceText   string   `json:"sourceText"`
	Dependencies []string `json:"dependencies,omitempty"`
	Location     Location `json:"location"`
}

// FileRecord tracks one indexed file and the units it owns.
type FileRecord struct {
	Path         string    `json:"path"`
	ContentHash  string    `json:"contentHash"`
	LastModified time.Time `json:"lastModified"`
	UnitIDs      []string  `json:"unitIds,omitempty"`
}

// ApiClassification is the verdict for one code unit.
type ApiClassification struct {
	Role       Role     `json:"role"`
	Category   Category `json:"category"`
	Provider   string   `json:"provider,omitempty"`
	IsPaid     bool     `json:"isPaid"`
	Confidence float64  `json:"confidence"`
}

// CodespaceGraph is the single persisted artifact of an indexing run.
type CodespaceGraph struct {
	SchemaVersion   int                          `json:"schemaVersion"`
	GeneratedAt     time.Time                    `json:"generatedAt"`
	Files           []FileRecord                 `json:"files"`
	Units           []CodeUnit                   `json:"units"`
	Classifications map[string]ApiClassification `json:"classifications"`
}

// Summary is an aggregate view for status displays and consumers.
type Summary struct {
	FileCount  int            `json:"fileCount"`
	UnitCount  int            `json:"unitCount"`
	ByCategory map[string]int `json:"byCategory"`
	ByProvider map[string]int `json:"byProvider"`
}
