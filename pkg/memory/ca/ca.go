// Package ca implements the cellular-automata dynamics engine: a single
// tick update over a toroidal 64x64 grid, full evolution with convergence,
// oscillation and chaos detection, and 90-degree rotation of a seed frame.
//
// Grounded on pkg/hashing/jitter.Execute21PassLoop's shape (a fixed
// multi-pass loop over mutable state, returning a verdict-shaped result
// struct) and on wheeler_memory/dynamics.py's CA semantics.
package ca

// Size is the grid side length; every Frame is Size*Size cells.
const Size = 64

// Cells is the total cell count, Size*Size.
const Cells = Size * Size

// Frame is a flattened row-major 64x64 tensor, values clamped to [-1, 1].
type Frame [Cells]float32

// At returns the cell value at (row, col).
func (f *Frame) At(row, col int) float32 {
	return f[row*Size+col]
}

// Set assigns the cell value at (row, col).
func (f *Frame) Set(row, col int, v float32) {
	f[row*Size+col] = v
}

// Clone returns a copy of f.
func (f Frame) Clone() Frame {
	return f
}

// Verdict is the outcome of a single evolution run.
type Verdict string

const (
	Converged          Verdict = "CONVERGED"
	Oscillating        Verdict = "OSCILLATING"
	Chaotic            Verdict = "CHAOTIC"
	FailedAllRotations Verdict = "FAILED_ALL_ROTATIONS"
)

const (
	// ConvergenceThreshold is the mean-absolute-delta-per-cell stop condition.
	ConvergenceThreshold = 1e-4

	// DefaultMaxIters is the default tick budget for full evolution.
	DefaultMaxIters = 1000

	deltaMax   = 0.35
	deltaMin   = 0.35
	deltaSlope = 0.20

	oscillationStartTick = 50
	oscillationCadence   = 10
	oscillationWindow    = 20
)

// wrap returns i modulo n, always in [0, n).
func wrap(i, n int) int {
	if i < 0 {
		return i + n
	}
	if i >= n {
		return i - n
	}
	return i
}

// neighbors returns the von Neumann 4-neighbor values of (row, col) under
// toroidal wrap: up, down, left, right.
func neighbors(f *Frame, row, col int) (up, down, left, right float32) {
	up = f.At(wrap(row-1, Size), col)
	down = f.At(wrap(row+1, Size), col)
	left = f.At(row, wrap(col-1, Size))
	right = f.At(row, wrap(col+1, Size))
	return
}

func clamp(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// Tick applies one CA iteration from cur into next (double-buffered, no
// per-tick allocation). cur and next must not alias the same frame.
func Tick(cur, next *Frame) {
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			c := cur.At(row, col)
			up, down, left, right := neighbors(cur, row, col)

			isMax := c >= up && c >= down && c >= left && c >= right
			isMin := c <= up && c <= down && c <= left && c <= right

			var delta float32
			switch {
			case isMax:
				delta = (1 - c) * deltaMax
			case isMin:
				delta = (-1 - c) * deltaMin
			default:
				maxN := up
				if down > maxN {
					maxN = down
				}
				if left > maxN {
					maxN = left
				}
				if right > maxN {
					maxN = right
				}
				delta = (maxN - c) * deltaSlope
			}

			next.Set(row, col, clamp(c+delta))
		}
	}
}

// Role is the per-cell classification used by the oscillation classifier,
// re-exported here because both Tick and oscillation detection need the
// identical inclusive comparison.
type Role int8

const (
	RoleMin   Role = -1
	RoleSlope Role = 0
	RoleMax   Role = 1
)

// Roles classifies every cell of f as local max (+1), local min (-1) or
// slope (0), using the same inclusive 4-neighbor comparison as Tick.
func Roles(f *Frame) [Cells]Role {
	var roles [Cells]Role
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			c := f.At(row, col)
			up, down, left, right := neighbors(f, row, col)
			isMax := c >= up && c >= down && c >= left && c >= right
			isMin := c <= up && c <= down && c <= left && c <= right
			switch {
			case isMax:
				roles[row*Size+col] = RoleMax
			case isMin:
				roles[row*Size+col] = RoleMin
			default:
				roles[row*Size+col] = RoleSlope
			}
		}
	}
	return roles
}

// meanAbsDelta returns the mean absolute per-cell difference between a and b.
func meanAbsDelta(a, b *Frame) float64 {
	var sum float64
	for i := 0; i < Cells; i++ {
		d := float64(a[i]) - float64(b[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum / float64(Cells)
}

// Result is the outcome of a full evolution run.
type Result struct {
	Verdict          Verdict
	Attractor        Frame
	Ticks            int
	History          []Frame
	CyclePeriod      int
	OscillatingCells int
}

// OscillationDetector is implemented by pkg/memory/oscillation.Detect; kept
// as a function type here to avoid an import cycle between ca and oscillation
// (oscillation.Roles delegates to ca.Roles, so ca cannot import oscillation).
type OscillationDetector func(history []Frame, window int) (oscillating bool, period int, cells int)

// Evolve runs CA dynamics from seed until convergence, oscillation, or
// chaos (tick exhaustion). detect is called on every 10th tick after tick 50
// (ticks 60, 70, ...), over the trailing 20-frame window; pass nil to
// disable oscillation detection (e.g. for the 1-tick idempotence check).
func Evolve(seed Frame, maxIters int, detect OscillationDetector) Result {
	if maxIters <= 0 {
		maxIters = DefaultMaxIters
	}

	history := make([]Frame, 0, maxIters+1)
	history = append(history, seed)

	cur := seed
	var next Frame

	for i := 0; i < maxIters; i++ {
		Tick(&cur, &next)
		delta := meanAbsDelta(&next, &cur)
		cur = next
		history = append(history, cur)

		if delta < ConvergenceThreshold {
			return Result{
				Verdict:   Converged,
				Attractor: cur,
				Ticks:     i + 1,
				History:   history,
			}
		}

		if detect != nil && i+1 > oscillationStartTick && (i+1)%oscillationCadence == 0 {
			if osc, period, cells := detect(history, oscillationWindow); osc {
				return Result{
					Verdict:          Oscillating,
					Attractor:        cur,
					Ticks:            i + 1,
					History:          history,
					CyclePeriod:      period,
					OscillatingCells: cells,
				}
			}
		}
	}

	return Result{
		Verdict:   Chaotic,
		Attractor: cur,
		Ticks:     maxIters,
		History:   history,
	}
}

// Evolver is the capability interface recall, rotation and reconstruction
// drive evolution through, so tests can inject stubs and so
// pkg/memory/gpubackend can offer an alternate implementation.
type Evolver interface {
	Evolve(seed Frame, maxIters int) Result
}

// CPUEvolver is the reference Evolver, using the detector supplied at
// construction (normally oscillation.Detect, wired in by the caller to avoid
// the import cycle noted on OscillationDetector).
type CPUEvolver struct {
	Detect OscillationDetector
}

func (e CPUEvolver) Evolve(seed Frame, maxIters int) Result {
	return Evolve(seed, maxIters, e.Detect)
}

// Rotate90 rotates f by 90*k degrees counter-clockwise (numpy.rot90
// equivalent), k taken modulo 4.
func Rotate90(f Frame, k int) Frame {
	k = ((k % 4) + 4) % 4
	if k == 0 {
		return f
	}
	cur := f
	for step := 0; step < k; step++ {
		var rotated Frame
		for row := 0; row < Size; row++ {
			for col := 0; col < Size; col++ {
				// rot90 counter-clockwise: out[r][c] = in[c][N-1-r]
				rotated.Set(row, col, cur.At(col, Size-1-row))
			}
		}
		cur = rotated
	}
	return cur
}

// AllClampedWithinTolerance reports whether every cell of f lies in
// [-1-tol, 1+tol] (used by the clamp-invariant property test).
func AllClampedWithinTolerance(f Frame, tol float64) bool {
	for _, v := range f {
		fv := float64(v)
		if fv > 1+tol || fv < -1-tol {
			return false
		}
	}
	return true
}
