package oscillation

import (
	"testing"

	"wheelermem/pkg/memory/ca"
)

func uniformFrame(v float32) ca.Frame {
	var f ca.Frame
	for i := range f {
		f[i] = v
	}
	return f
}

// checkerboard alternates v and -v across the grid, so every cell is a strict
// local max or local min (Size is even, so the pattern is consistent under
// toroidal wrap).
func checkerboard(v float32) ca.Frame {
	var f ca.Frame
	for row := 0; row < ca.Size; row++ {
		for col := 0; col < ca.Size; col++ {
			if (row+col)%2 == 0 {
				f.Set(row, col, v)
			} else {
				f.Set(row, col, -v)
			}
		}
	}
	return f
}

func TestDetectShortHistoryReturnsNoOscillation(t *testing.T) {
	history := []ca.Frame{uniformFrame(0.1), uniformFrame(0.2)}
	d := Detect(history, 20)
	if d.Oscillating {
		t.Fatal("expected no detection when history is shorter than the window")
	}
}

func TestDetectConstantRegionIsNotOscillating(t *testing.T) {
	history := make([]ca.Frame, 20)
	for i := range history {
		history[i] = uniformFrame(0.5)
	}
	d := Detect(history, 20)
	if d.Oscillating {
		t.Fatal("a constant region satisfies the period mask but never changes role, so it must not count as oscillating")
	}
}

func TestDetectPeriod2Cycle(t *testing.T) {
	a := checkerboard(0.9)  // every cell a strict local max or local min
	b := checkerboard(-0.9) // the same cells with max and min swapped

	history := make([]ca.Frame, 20)
	for i := range history {
		if i%2 == 0 {
			history[i] = a
		} else {
			history[i] = b
		}
	}

	d := Detect(history, 20)
	if !d.Oscillating {
		t.Fatal("expected a period-2 cycle to be detected")
	}
	if d.Period != 2 {
		t.Fatalf("expected period 2, got %d", d.Period)
	}
	if d.CellCount != ca.Cells {
		t.Fatalf("expected all %d cells oscillating, got %d", ca.Cells, d.CellCount)
	}
}

func TestAdaptDetectorMatchesDetect(t *testing.T) {
	history := make([]ca.Frame, 20)
	for i := range history {
		if i%2 == 0 {
			history[i] = uniformFrame(0.9)
		} else {
			history[i] = uniformFrame(-0.9)
		}
	}
	adapted := AdaptDetector()
	osc, period, cells := adapted(history, 20)
	direct := Detect(history, 20)
	if osc != direct.Oscillating || period != direct.Period || cells != direct.CellCount {
		t.Fatal("AdaptDetector must forward to Detect unchanged")
	}
}
