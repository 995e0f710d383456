// Package codec implements the deterministic text-to-frame encoders: a
// semantics-destroying hash mode (the default) and an optional
// semantics-preserving embedding mode via a pluggable Embedder collaborator.
//
// Grounded on pkg/hashing/methods/software.SoftwareMethod (capability struct
// wrapping crypto/sha256) for the hash path, and on
// pkg/hashing/core.CanonicalSHA256 for the canonical-id convention.
package codec

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"wheelermem/internal/pcg64"
	"wheelermem/pkg/memory/ca"
	"wheelermem/pkg/memory/errs"
)

// Mode selects which encoder produced a Frame.
type Mode string

const (
	ModeHash      Mode = "hash"
	ModeEmbedding Mode = "embedding"
)

// embeddingDim is the fixed sentence-embedding width the projection matrix
// expects.
const embeddingDim = 384

// jlSeed is the fixed seed for the Johnson-Lindenstrauss projection matrix,
// shared by every process so the matrix is reproducible without persisting
// it to disk.
const jlSeed uint64 = 0xDEADBEEF

// HashToFrame deterministically encodes text into a 64x64 frame: SHA-256 of
// the UTF-8 bytes seeds a PCG64 generator, which draws ca.Cells values
// uniform in [-1, 1).
func HashToFrame(text string) ca.Frame {
	sum := sha256.Sum256([]byte(text))
	seed := binary.BigEndian.Uint64(sum[:8])
	gen := pcg64.New(seed)

	var f ca.Frame
	for i := range f {
		f[i] = gen.Uniform(-1, 1)
	}
	return f
}

// HashID returns the full SHA-256 hex digest of text, the storage id used
// for hash-mode memories.
func HashID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", sum)
}

// Embedder is the capability interface for a sentence-embedding model: an
// external collaborator that turns text into a fixed-dimension normalized
// vector. It is a model interface only — any implementation returning
// embeddingDim floats satisfies it.
type Embedder interface {
	// Embed returns a 384-dimensional embedding of text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one 384-dimensional embedding per input text, in
	// the same order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// projectionMatrix is the fixed 384x4096 JL projection matrix, Gaussian
// entries scaled by 1/sqrt(4096), using the documented fixed seed. It is
// built once at package initialization; every encode reuses this copy.
var projectionMatrix = buildProjectionMatrix()

func buildProjectionMatrix() [][]float32 {
	gen := pcg64.New(jlSeed)
	scale := float32(1 / math.Sqrt(float64(ca.Cells)))

	m := make([][]float32, embeddingDim)
	for i := range m {
		row := make([]float32, ca.Cells)
		for j := range row {
			row[j] = float32(gen.StandardNormal()) * scale
		}
		m[i] = row
	}
	return m
}

// projectEmbedding applies the fixed JL projection and tanh(3x) scaling to a
// single embedding vector, producing a flattened frame.
func projectEmbedding(embedding []float32) (ca.Frame, error) {
	if len(embedding) != embeddingDim {
		return ca.Frame{}, fmt.Errorf("codec: embedding has %d dims, want %d", len(embedding), embeddingDim)
	}

	var f ca.Frame
	for col := 0; col < ca.Cells; col++ {
		var acc float64
		for row := 0; row < embeddingDim; row++ {
			acc += float64(embedding[row]) * float64(projectionMatrix[row][col])
		}
		f[col] = float32(math.Tanh(3 * acc))
	}
	return f, nil
}

// EmbedToFrame encodes text via embedder into a frame using the fixed JL
// projection. Returns errs.EmbeddingUnavailable if embedder is nil.
func EmbedToFrame(ctx context.Context, text string, embedder Embedder) (ca.Frame, error) {
	if embedder == nil {
		return ca.Frame{}, errs.EmbeddingUnavailable()
	}
	embedding, err := embedder.Embed(ctx, text)
	if err != nil {
		return ca.Frame{}, fmt.Errorf("codec: embed: %w", err)
	}
	return projectEmbedding(embedding)
}

// EmbedID returns the storage id for an embedding-mode memory: the SHA-256
// hex digest of the raw embedding vector bytes (little-endian float32s).
func EmbedID(embedding []float32) string {
	buf := make([]byte, 4*len(embedding))
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	sum := sha256.Sum256(buf)
	return fmt.Sprintf("%x", sum)
}

// EmbedBatch encodes multiple texts in one round-trip to embedder, returning
// one frame and one id per input, in order.
func EmbedBatch(ctx context.Context, texts []string, embedder Embedder) ([]ca.Frame, []string, error) {
	if embedder == nil {
		return nil, nil, errs.EmbeddingUnavailable()
	}
	embeddings, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, nil, fmt.Errorf("codec: embed batch: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, nil, fmt.Errorf("codec: embedder returned %d vectors for %d inputs", len(embeddings), len(texts))
	}

	frames := make([]ca.Frame, len(texts))
	ids := make([]string, len(texts))
	for i, emb := range embeddings {
		f, err := projectEmbedding(emb)
		if err != nil {
			return nil, nil, fmt.Errorf("codec: embed batch item %d: %w", i, err)
		}
		frames[i] = f
		ids[i] = EmbedID(emb)
	}
	return frames, ids, nil
}
