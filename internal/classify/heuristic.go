package classify

import (
	"context"
	"strings"

	"costscope/internal/graph"
)

// Match strength determines confidence: an import match is near certain, a
// call-shape match strong, keyword hits alone barely suggestive.
const (
	confidenceImport  = 0.9
	confidenceCall    = 0.75
	confidenceKeyword = 0.2
)

// Heuristic classifies units by matching imports and call shapes against a
// provider signature table. Fully deterministic, zero latency, zero cost;
// lower recall on providers the table has never heard of.
type Heuristic struct {
	table *SignatureTable
}

// NewHeuristic creates a quick classifier. A nil table uses the defaults.
func NewHeuristic(table *SignatureTable) *Heuristic {
	if table == nil {
		table = DefaultSignatureTable()
	}
	return &Heuristic{table: table}
}

// Classify matches each bundle locally. Never returns an error.
func (h *Heuristic) Classify(_ context.Context, bundles []ContextBundle) ([]graph.ApiClassification, error) {
	results := make([]graph.ApiClassification, len(bundles))
	for i, b := range bundles {
		results[i] = h.classifyOne(b)
	}
	return results, nil
}

func (h *Heuristic) classifyOne(b ContextBundle) graph.ApiClassification {
	p := ExtractPatterns(b)

	// Import matches first: the strongest evidence wins regardless of
	// table order.
	for _, sig := range h.table.Providers {
		if matchAny(p.Imports, sig.Modules) {
			return graph.ApiClassification{
				Role:       graph.RoleConsumer,
				Category:   categoryFromString(sig.Category),
				Provider:   sig.Name,
				IsPaid:     sig.IsPaid,
				Confidence: confidenceImport,
			}
		}
	}
	for _, sig := range h.table.Providers {
		if matchAny(p.APICallSignatures, sig.Calls) {
			return graph.ApiClassification{
				Role:       graph.RoleConsumer,
				Category:   categoryFromString(sig.Category),
				Provider:   sig.Name,
				IsPaid:     sig.IsPaid,
				Confidence: confidenceCall,
			}
		}
	}

	result := DefaultClassification()
	if len(p.KeywordHits) > 0 {
		result.Confidence = confidenceKeyword
	}
	return result
}

// matchAny reports whether any candidate contains any needle,
// case-insensitive.
func matchAny(candidates, needles []string) bool {
	for _, c := range candidates {
		lc := strings.ToLower(c)
		for _, n := range needles {
			if n != "" && strings.Contains(lc, strings.ToLower(n)) {
				return true
			}
		}
	}
	return false
}
