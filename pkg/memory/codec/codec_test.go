package codec

import (
	"context"
	"testing"

	"wheelermem/pkg/memory/ca"
	"wheelermem/pkg/memory/errs"
)

func TestHashToFrameDeterministic(t *testing.T) {
	a := HashToFrame("the quick brown fox")
	b := HashToFrame("the quick brown fox")
	if a != b {
		t.Fatalf("HashToFrame must be a pure function of its input")
	}
}

func TestHashToFrameDiffersAcrossInputs(t *testing.T) {
	a := HashToFrame("alpha")
	b := HashToFrame("beta")
	if a == b {
		t.Fatalf("distinct inputs should not hash to the same frame")
	}
}

func TestHashToFrameWithinRange(t *testing.T) {
	f := HashToFrame("clamp check")
	for i, v := range f {
		if v < -1 || v >= 1 {
			t.Fatalf("cell %d = %f outside [-1, 1)", i, v)
		}
	}
}

func TestHashIDIsFullHexDigest(t *testing.T) {
	id := HashID("hello world")
	if len(id) != 64 {
		t.Fatalf("expected 64-char hex SHA-256 digest, got %d chars", len(id))
	}
	if id != HashID("hello world") {
		t.Fatalf("HashID must be deterministic")
	}
}

func TestEmbedToFrameNilEmbedderReturnsUnavailable(t *testing.T) {
	_, err := EmbedToFrame(context.Background(), "text", nil)
	if err == nil {
		t.Fatal("expected an error when no embedder is wired in")
	}
	if !errs.As(err, errs.KindEmbeddingUnavailable) {
		t.Fatalf("expected an EmbeddingUnavailable error, got %v", err)
	}
}

func TestEmbedToFrameWithHashEmbedderDeterministic(t *testing.T) {
	emb := HashEmbedder{}
	a, err := EmbedToFrame(context.Background(), "repeatable", emb)
	if err != nil {
		t.Fatalf("EmbedToFrame: %v", err)
	}
	b, err := EmbedToFrame(context.Background(), "repeatable", emb)
	if err != nil {
		t.Fatalf("EmbedToFrame: %v", err)
	}
	if a != b {
		t.Fatalf("EmbedToFrame must be a pure function given a fixed embedder")
	}
	for i, v := range a {
		if v < -1 || v > 1 {
			t.Fatalf("cell %d = %f outside [-1, 1] after tanh scaling", i, v)
		}
	}
}

func TestEmbedBatchMatchesIndividualCalls(t *testing.T) {
	emb := HashEmbedder{}
	texts := []string{"one", "two", "three"}

	frames, ids, err := EmbedBatch(context.Background(), texts, emb)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(frames) != len(texts) || len(ids) != len(texts) {
		t.Fatalf("expected %d frames and ids, got %d/%d", len(texts), len(frames), len(ids))
	}

	for i, text := range texts {
		want, err := EmbedToFrame(context.Background(), text, emb)
		if err != nil {
			t.Fatalf("EmbedToFrame(%q): %v", text, err)
		}
		if frames[i] != want {
			t.Fatalf("batch frame %d does not match individually computed frame", i)
		}
	}
}

func TestProjectEmbeddingRejectsWrongDimension(t *testing.T) {
	_, err := projectEmbedding(make([]float32, 10))
	if err == nil {
		t.Fatal("expected an error for a wrong-dimension embedding vector")
	}
}

func TestFrameShapeMatchesCAGrid(t *testing.T) {
	f := HashToFrame("shape check")
	if len(f) != ca.Cells {
		t.Fatalf("expected %d cells, got %d", ca.Cells, len(f))
	}
}
