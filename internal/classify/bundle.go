package classify

import "costscope/internal/graph"

// ContextBundle is the minimal classification input derived from a code
// unit. It is a transient projection, never persisted.
type ContextBundle struct {
	UnitID   string
	Code     string
	Imports  []string
	Location graph.Location
}

// Bundle projects a code unit into its classification input. Pure function,
// no side effects.
func Bundle(unit graph.CodeUnit) ContextBundle {
	return ContextBundle{
		UnitID:   unit.ID,
		Code:     unit.SourceText,
		Imports:  unit.Dependencies,
		Location: unit.Location,
	}
}

// BundleAll projects a slice of units, preserving order.
func BundleAll(units []graph.CodeUnit) []ContextBundle {
	bundles := make([]ContextBundle, len(units))
	for i, u := range units {
		bundles[i] = Bundle(u)
	}
	return bundles
}
