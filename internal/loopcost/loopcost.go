// Package loopcost flags costly call expressions lexically nested inside
// loop constructs. It is a fast, stateless lint over raw source: it never
// consults the index graph and is recomputed fresh per analyzed file.
package loopcost

import (
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"costscope/internal/graph"
	"costscope/internal/slogutil"
)

// Severity grades a suggestion.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// CostImpact is a qualitative cost tier.
type CostImpact string

const (
	ImpactLow    CostImpact = "low"
	ImpactMedium CostImpact = "medium"
	ImpactHigh   CostImpact = "high"
)

// Suggestion is one optimization finding. Ephemeral: recomputed per pass,
// never persisted.
type Suggestion struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Severity    Severity       `json:"severity"`
	Location    graph.Location `json:"location"`
	CostImpact  CostImpact     `json:"costImpact"`
	Action      string         `json:"action,omitempty"`
}

// Language selects the detection strategy.
type Language string

const (
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangPython     Language = "python"
)

// LanguageForExtension maps a file extension (with dot) to a detector
// language. ok is false for unsupported extensions.
func LanguageForExtension(ext string) (Language, bool) {
	switch strings.ToLower(ext) {
	case ".js", ".jsx", ".mjs", ".cjs":
		return LangJavaScript, true
	case ".ts":
		return LangTypeScript, true
	case ".tsx":
		return LangTSX, true
	case ".py":
		return LangPython, true
	default:
		return "", false
	}
}

// Detector matches calls inside loops against a curated signature list.
// The list is injectable configuration so it can grow without code
// changes.
type Detector struct {
	costlyCalls []string // lowercased
	logger      *slog.Logger
}

// New creates a detector. costlyCalls entries are matched as
// case-insensitive substrings of `callee(`.
func New(costlyCalls []string, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slogutil.NewDiscardLogger()
	}
	lowered := make([]string, len(costlyCalls))
	for i, c := range costlyCalls {
		lowered[i] = strings.ToLower(c)
	}
	return &Detector{costlyCalls: lowered, logger: logger}
}

// Detect analyzes one document and returns suggestions for every costly
// call nested inside a loop. The file name is only used for locations.
func (d *Detector) Detect(file string, content []byte, lang Language) ([]Suggestion, error) {
	switch lang {
	case LangPython:
		return d.detectIndented(file, content), nil
	case LangJavaScript, LangTypeScript, LangTSX:
		return d.detectAST(file, content, lang)
	default:
		return nil, nil
	}
}

// matchCostly returns the first matching signature for a call shape, or "".
func (d *Detector) matchCostly(callText string) string {
	lower := strings.ToLower(callText)
	for _, sig := range d.costlyCalls {
		if sig != "" && strings.Contains(lower, sig) {
			return sig
		}
	}
	return ""
}

func (d *Detector) suggest(file string, line, col int, callee string) Suggestion {
	return Suggestion{
		ID:          uuid.New().String(),
		Title:       "Costly call inside loop",
		Description: "`" + callee + "` is invoked on every loop iteration. Paid or I/O-bound calls in loops multiply cost with the iteration count.",
		Severity:    SeverityWarning,
		CostImpact:  ImpactHigh,
		Action:      "Batch the work outside the loop or cache results across iterations",
		Location: graph.Location{
			File:      file,
			StartLine: line,
			StartCol:  col,
			EndLine:   line,
			EndCol:    col,
		},
	}
}
