package ca

import (
	"math/rand"
	"testing"
)

func randomFrame(seed int64) Frame {
	r := rand.New(rand.NewSource(seed))
	var f Frame
	for i := range f {
		f[i] = float32(r.Float64()*2 - 1)
	}
	return f
}

func TestTickClampInvariant(t *testing.T) {
	cur := randomFrame(1)
	var next Frame
	for i := 0; i < 50; i++ {
		Tick(&cur, &next)
		cur = next
	}
	if !AllClampedWithinTolerance(cur, 1e-6) {
		t.Fatalf("cells escaped [-1, 1] after 50 ticks")
	}
}

func TestTickDeterministic(t *testing.T) {
	seed := randomFrame(42)
	a, b := seed, seed
	var nextA, nextB Frame

	for i := 0; i < 10; i++ {
		Tick(&a, &nextA)
		Tick(&b, &nextB)
		a, b = nextA, nextB
	}

	if a != b {
		t.Fatalf("Tick is not deterministic across identical runs")
	}
}

func TestEvolveUniformFrameConverges(t *testing.T) {
	var seed Frame
	for i := range seed {
		seed[i] = 0.5
	}
	result := Evolve(seed, DefaultMaxIters, nil)
	if result.Verdict != Converged {
		t.Fatalf("expected uniform frame to converge, got %s after %d ticks", result.Verdict, result.Ticks)
	}
}

func TestEvolveChaoticOnTickExhaustion(t *testing.T) {
	seed := randomFrame(7)
	result := Evolve(seed, 5, nil)
	if result.Ticks != 5 {
		t.Fatalf("expected evolution to run exactly maxIters=5 ticks when not converged, got %d", result.Ticks)
	}
	if result.Verdict != Chaotic {
		t.Fatalf("expected %s after exhausting maxIters=5, got %s", Chaotic, result.Verdict)
	}
}

func TestRotate90FourTimesIsIdentity(t *testing.T) {
	seed := randomFrame(3)
	rotated := Rotate90(seed, 4)
	if rotated != seed {
		t.Fatalf("four 90-degree rotations must return to the original frame")
	}
}

func TestRotate90Equivalence(t *testing.T) {
	seed := randomFrame(9)
	once := Rotate90(seed, 1)
	twice := Rotate90(once, 1)
	direct := Rotate90(seed, 2)
	if twice != direct {
		t.Fatalf("Rotate90(f, 2) must equal Rotate90(Rotate90(f, 1), 1)")
	}
}

func TestRolesClassifiesUniformFrameAsAllMax(t *testing.T) {
	var f Frame
	for i := range f {
		f[i] = 0.25
	}
	roles := Roles(&f)
	for i, r := range roles {
		if r != RoleMax {
			t.Fatalf("cell %d: expected RoleMax on a uniform frame (inclusive comparison), got %v", i, r)
		}
	}
}

func TestCPUEvolverMatchesEvolve(t *testing.T) {
	seed := randomFrame(11)
	direct := Evolve(seed, 3, nil)
	viaEvolver := CPUEvolver{}.Evolve(seed, 3)
	if direct.Attractor != viaEvolver.Attractor || direct.Verdict != viaEvolver.Verdict {
		t.Fatalf("CPUEvolver must produce the same result as calling Evolve directly")
	}
}
