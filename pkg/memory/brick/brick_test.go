package brick

import (
	"os"
	"path/filepath"
	"testing"

	"wheelermem/pkg/memory/ca"
)

func sampleBrick() Brick {
	var seed, attractor ca.Frame
	seed[0] = 0.1
	attractor[0] = 0.9
	return Brick{
		History:   []ca.Frame{seed, attractor},
		Attractor: attractor,
		Verdict:   ca.Converged,
		Ticks:     1,
		Metadata: map[string]interface{}{
			"frame_mode": "hash",
			"attempts":   1,
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memory.brick")

	want := sampleBrick()
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got.Verdict != want.Verdict {
		t.Fatalf("verdict mismatch: got %s, want %s", got.Verdict, want.Verdict)
	}
	if got.Ticks != want.Ticks {
		t.Fatalf("ticks mismatch: got %d, want %d", got.Ticks, want.Ticks)
	}
	if got.Attractor != want.Attractor {
		t.Fatal("attractor mismatch after round trip")
	}
	if len(got.History) != len(want.History) {
		t.Fatalf("history length mismatch: got %d, want %d", len(got.History), len(want.History))
	}
	for i := range got.History {
		if got.History[i] != want.History[i] {
			t.Fatalf("history[%d] mismatch after round trip", i)
		}
	}
	if got.Metadata["frame_mode"] != "hash" {
		t.Fatalf("metadata not preserved: %+v", got.Metadata)
	}
}

func TestLoadRejectsForeignFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "not-a-brick.bin")
	if err := os.WriteFile(path, []byte("not a brick at all"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected an error loading a non-brick file")
	}
}

func TestFindDivergencePointIdenticalHistories(t *testing.T) {
	a := sampleBrick()
	b := sampleBrick()
	if p := a.FindDivergencePoint(b); p != -1 {
		t.Fatalf("expected -1 for identical histories, got %d", p)
	}
}

func TestFindDivergencePointDiffersAtIndex(t *testing.T) {
	a := sampleBrick()
	b := sampleBrick()
	b.History[1][10] = 0.42

	if p := a.FindDivergencePoint(b); p != 1 {
		t.Fatalf("expected divergence at index 1, got %d", p)
	}
}

func TestFindDivergencePointLengthMismatch(t *testing.T) {
	a := sampleBrick()
	b := sampleBrick()
	b.History = append(b.History, b.Attractor)

	if p := a.FindDivergencePoint(b); p != len(a.History) {
		t.Fatalf("expected divergence at %d for a length mismatch with equal prefix, got %d", len(a.History), p)
	}
}
