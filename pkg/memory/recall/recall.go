// Package recall implements the correlation-search pipeline over a
// store.Store: encode the query, fan out across candidate chunks, score
// stored attractors by Pearson correlation blended with access temperature,
// bump access counters on the returned top-k, and optionally reconstruct
// each result against the query context.
//
// Grounded on wheeler_memory/recall_engine.py's recall() pipeline shape
// (encode, route, score, sort, bump, optionally reconstruct) and on
// internal/analyzer.Detective's pattern of scanning many candidates and
// degrading per-item rather than aborting the whole scan on one bad entry.
package recall

import (
	"context"
	"log"
	"math"
	"sort"
	"time"

	"wheelermem/internal/pearsonr"
	"wheelermem/pkg/memory/ca"
	"wheelermem/pkg/memory/chunk"
	"wheelermem/pkg/memory/codec"
	"wheelermem/pkg/memory/reconstruction"
	"wheelermem/pkg/memory/stability"
	"wheelermem/pkg/memory/store"
	"wheelermem/pkg/memory/temperature"
)

// DefaultTopK is the default recall fan-out when a caller passes 0.
const DefaultTopK = 5

// Request carries every recall knob.
type Request struct {
	Text             string
	TopK             int
	Chunk            string // explicit chunk override; empty means route
	TemperatureBoost float64
	UseEmbedding     bool
	Embedder         codec.Embedder
	Reconstruct      bool
	Alpha            float64
}

// Result is one scored memory returned from a recall query.
type Result struct {
	ID                  string
	Text                string
	Chunk               string
	Similarity          float64
	Temperature         float64
	Tier                temperature.Tier
	EffectiveSimilarity float64
	State               ca.Verdict
	ConvergenceTicks    int
	Timestamp           time.Time

	// Populated only when Request.Reconstruct is true.
	CorrelationWithStored float64
	CorrelationWithQuery  float64
	ReconstructionState   ca.Verdict
	ReconstructedAttractor ca.Frame
}

// Engine drives recall over a Store using Evolver for both query encoding
// and (optionally) reconstruction re-evolution.
type Engine struct {
	Store     *store.Store
	CA        ca.Evolver
	MaxIters  int
	Stability *stability.Tracker
}

// candidate pairs a loaded entry with the chunk it came from, the unit
// scored.
type candidate struct {
	chunk string
	entry store.IndexEntry
}

// Recall encodes the query, scores every candidate attractor, and returns
// the top-k. An empty store (or one where every candidate chunk is empty or
// missing) returns an empty, non-error result.
func (e *Engine) Recall(ctx context.Context, req Request) ([]Result, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	alpha := req.Alpha
	if alpha == 0 {
		alpha = reconstruction.DefaultAlpha
	}

	queryFrame, err := e.encodeQuery(ctx, req)
	if err != nil {
		return nil, err
	}

	chunkNames, err := e.candidateChunks(req)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var candidates []candidate
	for _, chunkName := range chunkNames {
		entries, err := e.Store.List(chunkName)
		if err != nil {
			// Per-chunk failures degrade gracefully: skip this chunk, keep
			// scoring the rest.
			log.Printf("recall: skipping chunk %s: %v", chunkName, err)
			continue
		}
		for _, list := range entries {
			for _, entry := range list {
				candidates = append(candidates, candidate{chunk: chunkName, entry: entry})
			}
		}
	}

	scored := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		id := c.entry.ID
		attractor, err := e.Store.LoadAttractor(c.chunk, id)
		if err != nil {
			// Missing tensor for one entry never fails the whole query.
			log.Printf("recall: %v", err)
			continue
		}

		r := pearsonr.Corr(attractor[:], queryFrame[:])
		temp := temperature.Compute(c.entry.HitCount(), c.entry.LastAccessed(), now)
		boost := req.TemperatureBoost * math.Max(0, temp)
		effective := r + boost

		scored = append(scored, Result{
			ID:                  id,
			Text:                c.entry.Text,
			Chunk:               c.chunk,
			Similarity:          r,
			Temperature:         temp,
			Tier:                temperature.TierOf(temp),
			EffectiveSimilarity: effective,
			State:               c.entry.State,
			ConvergenceTicks:    c.entry.ConvergenceTicks,
			Timestamp:           c.entry.Timestamp,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].EffectiveSimilarity > scored[j].EffectiveSimilarity
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}

	e.bumpAccess(scored)

	if req.Reconstruct {
		for i := range scored {
			stored, err := e.Store.LoadAttractor(scored[i].Chunk, scored[i].ID)
			if err != nil {
				continue
			}
			rec := reconstruction.Reconstruct(stored, queryFrame, alpha, e.maxIters(), e.CA)
			scored[i].CorrelationWithStored = rec.CorrelationWithStored
			scored[i].CorrelationWithQuery = rec.CorrelationWithQuery
			scored[i].ReconstructionState = rec.Verdict
			scored[i].ReconstructedAttractor = rec.Attractor
		}
	}

	if e.Stability != nil {
		for _, r := range scored {
			e.Stability.RecordHit(codec.HashID(r.Text), r.Text)
		}
	}

	return scored, nil
}

func (e *Engine) maxIters() int {
	if e.MaxIters <= 0 {
		return ca.DefaultMaxIters
	}
	return e.MaxIters
}

// encodeQuery runs the codec and full CA evolution on req.Text; the query
// attractor is the final frame regardless of verdict — even a chaotic or
// oscillating query still recalls.
func (e *Engine) encodeQuery(ctx context.Context, req Request) (ca.Frame, error) {
	var seed ca.Frame
	if req.UseEmbedding {
		f, err := codec.EmbedToFrame(ctx, req.Text, req.Embedder)
		if err != nil {
			return ca.Frame{}, err
		}
		seed = f
	} else {
		seed = codec.HashToFrame(req.Text)
	}
	result := e.CA.Evolve(seed, e.maxIters())
	return result.Attractor, nil
}

// candidateChunks resolves recall routing: an explicit chunk short-circuits
// routing entirely.
func (e *Engine) candidateChunks(req Request) ([]string, error) {
	if req.Chunk != "" {
		return []string{req.Chunk}, nil
	}
	existing, err := chunk.List(e.Store.Root)
	if err != nil {
		return nil, err
	}
	return chunk.SelectRecall(req.Text, existing), nil
}

// bumpAccess coalesces one BumpEntries write per touched chunk, never
// touching an entry outside the returned top-k.
func (e *Engine) bumpAccess(results []Result) {
	byChunk := make(map[string][]string)
	for _, r := range results {
		byChunk[r.Chunk] = append(byChunk[r.Chunk], r.ID)
	}
	for chunkName, ids := range byChunk {
		if err := e.Store.BumpEntries(chunkName, ids); err != nil {
			log.Printf("recall: bump access for chunk %s: %v", chunkName, err)
		}
	}
}

