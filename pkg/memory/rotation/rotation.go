// Package rotation wraps the CA engine with a rotation-retry strategy: when
// the seed frame settles into a bad basin, rotating it by a multiple of 90
// degrees before evolving again sometimes escapes it. Attempts are tried in
// a fixed order and stats are tracked per angle.
//
// Grounded on internal/host/deployment.go's waitForServer pattern (bounded
// retry loop over a fixed attempt budget, recording per-attempt outcome)
// adapted from a deploy health check to a CA convergence check.
package rotation

import (
	"context"

	"wheelermem/pkg/memory/ca"
)

// MaxAttempts is the number of rotation angles tried before giving up.
const MaxAttempts = 4

// Stats tracks successes per rotation angle, keyed by degrees (0, 90, 180,
// 270). It is a plain value, not a singleton, so callers own its lifetime
// and persistence explicitly.
type Stats struct {
	Successes map[int]int
	Failures  map[int]int
}

// NewStats returns an empty Stats with both maps initialized.
func NewStats() Stats {
	return Stats{
		Successes: make(map[int]int),
		Failures:  make(map[int]int),
	}
}

// RecordSuccess increments the success counter for the given angle in degrees.
func (s *Stats) RecordSuccess(degrees int) {
	if s.Successes == nil {
		s.Successes = make(map[int]int)
	}
	s.Successes[degrees]++
}

// RecordFailure increments the failure counter for the given angle in degrees.
func (s *Stats) RecordFailure(degrees int) {
	if s.Failures == nil {
		s.Failures = make(map[int]int)
	}
	s.Failures[degrees]++
}

// AttemptResult is the outcome of Attempt.
type AttemptResult struct {
	Result        ca.Result
	RotationUsed  int // degrees: 0, 90, 180, or 270
	AttemptsTried int
}

// Controller drives the rotation-retry loop over an Evolver.
type Controller struct {
	Engine ca.Evolver
}

// Attempt runs up to MaxAttempts evolutions from rotated copies of seed,
// returning the first converged result. Stats is mutated in place: a
// success increments that angle's success counter, a non-convergent attempt
// increments that angle's failure counter and the loop proceeds to the next
// angle. If every angle fails to converge, the last attempt's result is
// returned with its verdict rewritten to ca.FailedAllRotations and ok=false;
// callers must not persist anything in that case.
func (c Controller) Attempt(ctx context.Context, seed ca.Frame, maxIters int, stats *Stats) (AttemptResult, bool) {
	var last ca.Result
	var lastDegrees int

	for i := 0; i < MaxAttempts; i++ {
		select {
		case <-ctx.Done():
			last.Verdict = ca.FailedAllRotations
			return AttemptResult{Result: last, RotationUsed: lastDegrees, AttemptsTried: i}, false
		default:
		}

		degrees := 90 * i
		rotated := ca.Rotate90(seed, i)
		result := c.Engine.Evolve(rotated, maxIters)

		if result.Verdict == ca.Converged {
			stats.RecordSuccess(degrees)
			return AttemptResult{Result: result, RotationUsed: degrees, AttemptsTried: i + 1}, true
		}

		stats.RecordFailure(degrees)
		last = result
		lastDegrees = degrees
	}

	last.Verdict = ca.FailedAllRotations
	return AttemptResult{Result: last, RotationUsed: lastDegrees, AttemptsTried: MaxAttempts}, false
}
