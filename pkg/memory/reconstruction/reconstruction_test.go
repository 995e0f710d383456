package reconstruction

import (
	"testing"

	"wheelermem/pkg/memory/ca"
)

type fixedEvolver struct {
	result ca.Result
}

func (f fixedEvolver) Evolve(seed ca.Frame, maxIters int) ca.Result {
	r := f.result
	r.Attractor = seed // echo the blend back so tests can check it directly
	return r
}

func TestReconstructBlendWeights(t *testing.T) {
	var stored, query ca.Frame
	stored[0] = 1.0
	query[0] = -1.0

	res := Reconstruct(stored, query, 0.25, 10, fixedEvolver{result: ca.Result{Verdict: ca.Converged}})

	want := float32(0.75*1.0 + 0.25*-1.0)
	if res.Attractor[0] != want {
		t.Fatalf("expected blended cell %f, got %f", want, res.Attractor[0])
	}
}

func TestReconstructCorrelationsWithIdenticalInputs(t *testing.T) {
	var f ca.Frame
	for i := range f {
		f[i] = float32(i%7) - 3
	}
	res := Reconstruct(f, f, 0.3, 10, fixedEvolver{result: ca.Result{Verdict: ca.Converged}})
	if res.CorrelationWithStored < 0.999 {
		t.Fatalf("expected near-perfect correlation with stored when blend echoes the same vector, got %f", res.CorrelationWithStored)
	}
	if res.CorrelationWithQuery < 0.999 {
		t.Fatalf("expected near-perfect correlation with query when blend echoes the same vector, got %f", res.CorrelationWithQuery)
	}
}

func TestReconstructAlphaZeroIsStored(t *testing.T) {
	var stored, query ca.Frame
	stored[5] = 0.42
	query[5] = -0.9

	res := Reconstruct(stored, query, 0, 10, fixedEvolver{result: ca.Result{Verdict: ca.Converged}})
	if res.Attractor[5] != stored[5] {
		t.Fatalf("alpha=0 should reproduce stored exactly, got %f want %f", res.Attractor[5], stored[5])
	}
}

func TestReconstructAlphaOneIsQuery(t *testing.T) {
	var stored, query ca.Frame
	stored[5] = 0.42
	query[5] = -0.9

	res := Reconstruct(stored, query, 1, 10, fixedEvolver{result: ca.Result{Verdict: ca.Converged}})
	if res.Attractor[5] != query[5] {
		t.Fatalf("alpha=1 should reproduce query exactly, got %f want %f", res.Attractor[5], query[5])
	}
}
