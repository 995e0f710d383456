package codec

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"

	"wheelermem/internal/pcg64"
)

// HashEmbedder is an Embedder fallback that derives a deterministic
// pseudo-embedding from the same SHA-256-seeded generator the hash codec
// uses, scaled to unit length. It lets embedding-mode code paths run end to
// end (routing, projection, id derivation) without a real sentence-embedding
// model wired in; it does not preserve semantic similarity.
type HashEmbedder struct{}

func (HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	seed := binary.BigEndian.Uint64(sum[:8])
	gen := pcg64.New(seed)

	vec := make([]float32, embeddingDim)
	var sumSq float64
	for i := range vec {
		v := gen.Uniform(-1, 1)
		vec[i] = v
		sumSq += float64(v) * float64(v)
	}
	norm := float32(1)
	if sumSq > 0 {
		norm = float32(1 / math.Sqrt(sumSq))
	}
	for i := range vec {
		vec[i] *= norm
	}
	return vec, nil
}

func (e HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
