package rotation

import (
	"context"
	"testing"

	"wheelermem/pkg/memory/ca"
)

// stubEvolver converges only on a specific rotation attempt index, letting
// tests drive the controller without running real CA dynamics.
type stubEvolver struct {
	convergeOnCall int
	calls          int
}

func (s *stubEvolver) Evolve(seed ca.Frame, maxIters int) ca.Result {
	defer func() { s.calls++ }()
	if s.calls == s.convergeOnCall {
		return ca.Result{Verdict: ca.Converged, Attractor: seed, Ticks: 5}
	}
	return ca.Result{Verdict: ca.Chaotic, Attractor: seed, Ticks: maxIters}
}

func TestAttemptSucceedsOnFirstTry(t *testing.T) {
	stats := NewStats()
	ctrl := Controller{Engine: &stubEvolver{convergeOnCall: 0}}

	res, ok := ctrl.Attempt(context.Background(), ca.Frame{}, 100, &stats)
	if !ok {
		t.Fatal("expected convergence")
	}
	if res.RotationUsed != 0 {
		t.Fatalf("expected rotation 0, got %d", res.RotationUsed)
	}
	if stats.Successes[0] != 1 {
		t.Fatalf("expected one success recorded at angle 0, got %d", stats.Successes[0])
	}
}

func TestAttemptRetriesRotationsUntilConverged(t *testing.T) {
	stats := NewStats()
	ctrl := Controller{Engine: &stubEvolver{convergeOnCall: 2}}

	res, ok := ctrl.Attempt(context.Background(), ca.Frame{}, 100, &stats)
	if !ok {
		t.Fatal("expected convergence on the third attempt")
	}
	if res.RotationUsed != 180 {
		t.Fatalf("expected rotation 180 (attempt index 2), got %d", res.RotationUsed)
	}
	if res.AttemptsTried != 3 {
		t.Fatalf("expected 3 attempts tried, got %d", res.AttemptsTried)
	}
	if stats.Failures[0] != 1 || stats.Failures[90] != 1 {
		t.Fatalf("expected failures recorded at angles 0 and 90, got %+v", stats.Failures)
	}
}

func TestAttemptFailsAllRotations(t *testing.T) {
	stats := NewStats()
	ctrl := Controller{Engine: &stubEvolver{convergeOnCall: -1}}

	res, ok := ctrl.Attempt(context.Background(), ca.Frame{}, 100, &stats)
	if ok {
		t.Fatal("expected all rotations to fail")
	}
	if res.Result.Verdict != ca.FailedAllRotations {
		t.Fatalf("expected FAILED_ALL_ROTATIONS verdict, got %s", res.Result.Verdict)
	}
	if res.AttemptsTried != MaxAttempts {
		t.Fatalf("expected %d attempts tried, got %d", MaxAttempts, res.AttemptsTried)
	}
	total := 0
	for _, n := range stats.Failures {
		total += n
	}
	if total != MaxAttempts {
		t.Fatalf("expected %d failures recorded across all angles, got %d", MaxAttempts, total)
	}
}

func TestAttemptRespectsContextCancellation(t *testing.T) {
	stats := NewStats()
	ctrl := Controller{Engine: &stubEvolver{convergeOnCall: -1}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := ctrl.Attempt(ctx, ca.Frame{}, 100, &stats)
	if ok {
		t.Fatal("expected a cancelled context to abort before converging")
	}
}
