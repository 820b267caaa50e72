// Package api exposes read-only projections over an indexed graph for
// editor and UI consumers. Nothing here mutates engine state.
package api

import (
	"costscope/internal/graph"
	"costscope/internal/loopcost"
)

// Service answers consumer queries against a graph snapshot.
type Service struct {
	graph    *graph.CodespaceGraph
	detector *loopcost.Detector
}

// NewService wraps a graph snapshot and a loop-cost detector.
func NewService(g *graph.CodespaceGraph, detector *loopcost.Detector) *Service {
	if g == nil {
		g = graph.New()
	}
	return &Service{graph: g, detector: detector}
}

// UnitsForFile returns the code units extracted from one file.
func (s *Service) UnitsForFile(path string) []graph.CodeUnit {
	return s.graph.UnitsForFile(path)
}

// Classification returns the verdict for a unit, if one exists.
func (s *Service) Classification(unitID string) (graph.ApiClassification, bool) {
	c, ok := s.graph.Classifications[unitID]
	return c, ok
}

// Summary returns aggregate counts over the whole graph.
func (s *Service) Summary() graph.Summary {
	return s.graph.Summarize()
}

// DetectLoops runs the loop-cost detector over a caller-supplied document
// snapshot. Independent of the index cache.
func (s *Service) DetectLoops(file string, content []byte, lang loopcost.Language) ([]loopcost.Suggestion, error) {
	if s.detector == nil {
		return nil, nil
	}
	return s.detector.Detect(file, content, lang)
}
