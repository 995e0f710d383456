// Package reconstruction implements the pure blend-and-re-evolve step that
// lets the same stored memory recall differently depending on query
// context: blend(stored, query) is run through full CA evolution and
// compared back against both inputs via Pearson correlation.
//
// Grounded on wheeler_memory/reconstruction.py's blend formula and on
// internal/pearsonr for the similarity metric.
package reconstruction

import (
	"wheelermem/internal/pearsonr"
	"wheelermem/pkg/memory/ca"
)

// DefaultAlpha is the default blend weight toward the query frame.
const DefaultAlpha = 0.3

// Result is the outcome of reconstructing a memory against a query.
type Result struct {
	Attractor             ca.Frame
	Verdict               ca.Verdict
	Ticks                 int
	CorrelationWithStored float64
	CorrelationWithQuery  float64
}

// Reconstruct blends stored and query elementwise as
// (1-alpha)*stored + alpha*query, runs full CA evolution on the blend via
// evolver, and reports the reconstructed attractor's Pearson correlation
// against both inputs. This path never touches storage.
func Reconstruct(stored, query ca.Frame, alpha float64, maxIters int, evolver ca.Evolver) Result {
	var blend ca.Frame
	for i := range blend {
		blend[i] = float32((1-alpha)*float64(stored[i]) + alpha*float64(query[i]))
	}

	evolved := evolver.Evolve(blend, maxIters)

	return Result{
		Attractor:             evolved.Attractor,
		Verdict:               evolved.Verdict,
		Ticks:                 evolved.Ticks,
		CorrelationWithStored: pearsonr.Corr(evolved.Attractor[:], stored[:]),
		CorrelationWithQuery:  pearsonr.Corr(evolved.Attractor[:], query[:]),
	}
}
