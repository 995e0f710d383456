// Package oscillation detects settled cycles in CA role history: a
// per-cell classification of local max / local min / slope that tolerates
// the small numerical noise a raw value-space comparison over successive
// frames would flag as chaos.
//
// Grounded on internal/analyzer's pattern of deriving a coarse signal (a
// role matrix) from raw data before running detection logic over it, rather
// than comparing raw tensors directly.
package oscillation

import "wheelermem/pkg/memory/ca"

const (
	minPeriod       = 2
	maxPeriod       = 10
	oscillatingFrac = 0.01
)

// Detection is the result of running the classifier over a window of
// history.
type Detection struct {
	Oscillating bool
	Period      int
	CellCount   int
	// Cycle holds the Period role matrices that define one cycle, taken
	// from the tail of the window.
	Cycle [][ca.Cells]ca.Role
}

// Roles classifies every cell of f using the same inclusive comparisons as
// ca.Tick. It simply forwards to ca.Roles; the indirection exists so
// callers reason about oscillation in terms of this package's vocabulary.
func Roles(f ca.Frame) [ca.Cells]ca.Role {
	return ca.Roles(&f)
}

// Detect runs the oscillation classifier over the trailing window frames of
// history (history[len(history)-window:]). It returns the smallest cycle
// period p in [2, 10] for which at least 1% of cells both repeat with
// period p across every valid offset in the window and actually change role
// somewhere in the window (ruling out constant regions).
func Detect(history []ca.Frame, window int) Detection {
	if len(history) < window {
		return Detection{}
	}
	tail := history[len(history)-window:]

	roleHistory := make([][ca.Cells]ca.Role, len(tail))
	for i, f := range tail {
		roleHistory[i] = Roles(f)
	}

	n := len(roleHistory)
	changed := cellsThatChange(roleHistory)

	for p := minPeriod; p <= maxPeriod; p++ {
		if p >= n {
			break
		}
		mask := periodMask(roleHistory, p)

		count := 0
		for i := 0; i < ca.Cells; i++ {
			if mask[i] && changed[i] {
				count++
			}
		}

		if float64(count) >= oscillatingFrac*float64(ca.Cells) {
			cycle := make([][ca.Cells]ca.Role, p)
			copy(cycle, roleHistory[n-p:])
			return Detection{
				Oscillating: true,
				Period:      p,
				CellCount:   count,
				Cycle:       cycle,
			}
		}
	}

	return Detection{}
}

// periodMask reports, per cell, whether roles[t] == roles[t+p] holds for
// every valid t in the window.
func periodMask(roles [][ca.Cells]ca.Role, p int) [ca.Cells]bool {
	var mask [ca.Cells]bool
	for i := range mask {
		mask[i] = true
	}

	n := len(roles)
	for t := 0; t+p < n; t++ {
		for i := 0; i < ca.Cells; i++ {
			if mask[i] && roles[t][i] != roles[t+p][i] {
				mask[i] = false
			}
		}
	}
	return mask
}

// cellsThatChange reports, per cell, whether its role varies anywhere
// across the window.
func cellsThatChange(roles [][ca.Cells]ca.Role) [ca.Cells]bool {
	var changed [ca.Cells]bool
	if len(roles) == 0 {
		return changed
	}
	first := roles[0]
	for _, frame := range roles[1:] {
		for i := 0; i < ca.Cells; i++ {
			if !changed[i] && frame[i] != first[i] {
				changed[i] = true
			}
		}
	}
	return changed
}

// AdaptDetector returns a ca.OscillationDetector closure backed by Detect,
// for wiring into ca.CPUEvolver without creating an import cycle between
// ca and oscillation.
func AdaptDetector() ca.OscillationDetector {
	return func(history []ca.Frame, window int) (bool, int, int) {
		d := Detect(history, window)
		return d.Oscillating, d.Period, d.CellCount
	}
}
