// Package classify assigns API roles, categories and providers to code
// units, either from local provider signatures or through a batched remote
// classification oracle.
package classify

import (
	"context"

	"costscope/internal/graph"
)

// Mode selects the classification strategy.
type Mode string

const (
	// ModeQuick uses only local signature matching: deterministic, no I/O.
	ModeQuick Mode = "quick"
	// ModeRemote batches pattern summaries to an external oracle and falls
	// back to quick results when the oracle misbehaves.
	ModeRemote Mode = "remote"
)

// Classifier classifies a batch of context bundles. The returned slice is
// aligned with the input: result i belongs to bundles[i]. Implementations
// must return a default verdict rather than failing individual units.
type Classifier interface {
	Classify(ctx context.Context, bundles []ContextBundle) ([]graph.ApiClassification, error)
}

// DefaultClassification is the low-confidence verdict used whenever a unit
// cannot be classified.
func DefaultClassification() graph.ApiClassification {
	return graph.ApiClassification{
		Role:       graph.RoleNone,
		Category:   graph.CategoryOther,
		Confidence: 0,
	}
}
