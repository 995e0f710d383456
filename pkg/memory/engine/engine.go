// Package engine wires the codec, CA engine, rotation controller, chunk
// router, attractor store, recall engine, and stability tracker into the
// single explicit value the rest of the library is built around, replacing
// global singletons with an explicit Engine value. Its exported methods are
// the library's public surface: Store, Recall, ListMemories, InspectBrick.
//
// Grounded on pkg/hashing/factory.Factory (one constructor that resolves
// config into a fully wired concrete value, rather than scattered
// package-level init()) and on internal/config for the configuration layer
// this wires against.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"wheelermem/internal/config"
	"wheelermem/pkg/memory/brick"
	"wheelermem/pkg/memory/ca"
	"wheelermem/pkg/memory/chunk"
	"wheelermem/pkg/memory/codec"
	"wheelermem/pkg/memory/errs"
	"wheelermem/pkg/memory/gpubackend"
	"wheelermem/pkg/memory/oscillation"
	"wheelermem/pkg/memory/recall"
	"wheelermem/pkg/memory/rotation"
	"wheelermem/pkg/memory/stability"
	"wheelermem/pkg/memory/store"
)

// StoreResult is the outcome of a single Store call.
type StoreResult struct {
	State        ca.Verdict
	Ticks        int
	RotationUsed int
	Attempts     int
	WallTime     time.Duration
	ID           string
	Chunk        string
}

// EntrySummary is the shape ListMemories returns.
type EntrySummary struct {
	ID               string
	Text             string
	Chunk            string
	State            ca.Verdict
	ConvergenceTicks int
	Timestamp        time.Time
	HitCount         int
	LastAccessed     time.Time
}

// RecallOptions mirrors recall.Request minus the text, which Recall takes
// as its own argument.
type RecallOptions struct {
	TopK             int
	Chunk            string
	TemperatureBoost float64
	UseEmbedding     bool
	Reconstruct      bool
	Alpha            float64
}

// Engine is the single owned value every exported operation hangs off of.
type Engine struct {
	cfg         config.EngineConfig
	store       *store.Store
	evolver     ca.Evolver
	detect      ca.OscillationDetector
	rotationC   rotation.Controller
	stability   *stability.Tracker
	recallEng   *recall.Engine
	embedder    codec.Embedder
	tickCounter *gpubackend.TickCounter
}

// New constructs a fully wired Engine from cfg. The CA evolver is always
// the CPU engine (CPU remains the source of truth); only BatchStore goes
// through the configured gpubackend.Backend.
func New(cfg config.EngineConfig) (*Engine, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("engine: empty root")
	}
	if cfg.MaxIters <= 0 {
		cfg.MaxIters = ca.DefaultMaxIters
	}

	s := store.New(cfg.Root)
	detect := oscillation.AdaptDetector()
	evolver := ca.CPUEvolver{Detect: detect}
	tracker := stability.Load(filepath.Join(cfg.Root, "stability_metrics.json"))

	// Best-effort: nil on kernels without eBPF support, in which case
	// Select always prefers the requested batch backend.
	counter := gpubackend.OpenTickCounter()

	e := &Engine{
		cfg:         cfg,
		store:       s,
		evolver:     evolver,
		detect:      detect,
		rotationC:   rotation.Controller{Engine: evolver},
		stability:   tracker,
		embedder:    codec.HashEmbedder{},
		tickCounter: counter,
	}
	e.recallEng = &recall.Engine{Store: s, CA: evolver, MaxIters: cfg.MaxIters, Stability: tracker}
	return e, nil
}

// Close releases resources New acquired outside the Go heap (currently just
// the eBPF tick counter map, when one was opened). Safe to call on an Engine
// built without eBPF support.
func (e *Engine) Close() error {
	if e.tickCounter != nil {
		return e.tickCounter.Close()
	}
	return nil
}

// selectBatch re-resolves the configured batch backend on every call so a
// tick counter accumulated across prior batches can steer the next one away
// from an already-saturated worker pool.
func (e *Engine) selectBatch() gpubackend.Backend {
	return gpubackend.Select(e.cfg.GPUBackend, e.detect, e.tickCounter)
}

// defaultEngine is the one sanctioned process-wide accessor exception to
// "no singletons": constructed lazily from config.Load() the first time
// Default is called.
var defaultEngine *Engine

// Default returns a lazily constructed, process-wide Engine built from
// config.Load(). Panics only if the root cannot be resolved at all, which
// config.Load() is designed never to do.
func Default() *Engine {
	if defaultEngine != nil {
		return defaultEngine
	}
	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}
	e, err := New(cfg)
	if err != nil {
		panic(err)
	}
	defaultEngine = e
	return e
}

func (e *Engine) frameMode(useEmbedding bool) string {
	if useEmbedding {
		return "embedding"
	}
	return "hash"
}

// Store encodes text, evolves it with rotation retry, and — on
// convergence — persists the resulting attractor and brick. A
// non-converged outcome after all four rotation attempts is reported via
// errs.NotConverged and never persisted.
func (e *Engine) Store(ctx context.Context, text string, chunkName string) (StoreResult, error) {
	if text == "" {
		return StoreResult{}, errs.EmptyInput()
	}

	start := time.Now()
	seed := codec.HashToFrame(text)
	id := codec.HashID(text)

	successes, err := e.store.LoadRotationStats()
	if err != nil {
		return StoreResult{}, fmt.Errorf("engine: load rotation stats: %w", err)
	}
	rstats := rotation.Stats{Successes: map[int]int(successes), Failures: make(map[int]int)}

	attempt, ok := e.rotationC.Attempt(ctx, seed, e.cfg.MaxIters, &rstats)
	wall := time.Since(start)

	if saveErr := e.store.SaveRotationStats(store.RotationStats(rstats.Successes)); saveErr != nil {
		// Rotation stats are process-wide bookkeeping, not the memory
		// itself; a failure to persist them is ignored so it never
		// changes the store outcome.
		_ = saveErr
	}

	if !ok {
		diagnostics := map[string]interface{}{
			"cycle_period":      attempt.Result.CyclePeriod,
			"oscillating_cells": attempt.Result.OscillatingCells,
			"attempts":          attempt.AttemptsTried,
		}
		return StoreResult{
			State:        ca.FailedAllRotations,
			Ticks:        attempt.Result.Ticks,
			RotationUsed: attempt.RotationUsed,
			Attempts:     attempt.AttemptsTried,
			WallTime:     wall,
		}, errs.NotConverged(string(attempt.Result.Verdict), attempt.Result.Ticks, diagnostics)
	}

	chunkName, err = e.store.Store(store.StoreOptions{
		ID:              id,
		Text:            text,
		Chunk:           chunkName,
		Verdict:         attempt.Result.Verdict,
		Attractor:       attempt.Result.Attractor,
		Ticks:           attempt.Result.Ticks,
		RotationUsed:    attempt.RotationUsed,
		Attempts:        attempt.AttemptsTried,
		WallTimeSeconds: wall.Seconds(),
		FrameMode:       e.frameMode(false),
		History:         attempt.Result.History,
	})
	if err != nil {
		return StoreResult{}, err
	}

	e.flushStability()

	return StoreResult{
		State:        attempt.Result.Verdict,
		Ticks:        attempt.Result.Ticks,
		RotationUsed: attempt.RotationUsed,
		Attempts:     attempt.AttemptsTried,
		WallTime:     wall,
		ID:           id,
		Chunk:        chunkName,
	}, nil
}

// BatchStore evolves every text with the configured gpubackend.Backend
// (cpu-sequential unless WHEELER_MEMORY_GPU_BACKEND names an available
// alternative) and persists each convergent result. Unlike Store, it never
// retries a failed rotation and never records a brick's full tick history
// (gpubackend.Backend is history-free by design) — a throughput path for
// large batches, not a replacement for Store's single-item guarantees.
func (e *Engine) BatchStore(ctx context.Context, texts []string, chunkName string) ([]StoreResult, error) {
	frames := make([]ca.Frame, len(texts))
	for i, text := range texts {
		frames[i] = codec.HashToFrame(text)
	}

	verdicts, err := e.selectBatch().EvolveBatch(frames, e.cfg.MaxIters)
	if err != nil {
		return nil, fmt.Errorf("engine: batch evolve: %w", err)
	}

	results := make([]StoreResult, len(texts))
	for i, text := range texts {
		id := codec.HashID(text)
		v := verdicts[i]
		if v.State != ca.Converged {
			results[i] = StoreResult{State: v.State, Ticks: v.Ticks, ID: id}
			continue
		}

		resolvedChunk, err := e.store.Store(store.StoreOptions{
			ID:        id,
			Text:      text,
			Chunk:     chunkName,
			Verdict:   v.State,
			Attractor: v.Attractor,
			Ticks:     v.Ticks,
			FrameMode: e.frameMode(false),
		})
		if err != nil {
			return results, fmt.Errorf("engine: batch store %q: %w", id, err)
		}
		results[i] = StoreResult{State: v.State, Ticks: v.Ticks, ID: id, Chunk: resolvedChunk}
	}

	e.flushStability()
	return results, nil
}

// Recall fills in the engine's default TopK and Alpha, runs the
// correlation-search pipeline, and returns its recall.Result values as is.
func (e *Engine) Recall(ctx context.Context, text string, opts RecallOptions) ([]recall.Result, error) {
	if text == "" {
		return nil, errs.EmptyInput()
	}

	alpha := opts.Alpha
	if alpha == 0 {
		alpha = e.cfg.DefaultAlpha
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = e.cfg.DefaultTopK
	}

	results, err := e.recallEng.Recall(ctx, recall.Request{
		Text:             text,
		TopK:             topK,
		Chunk:            opts.Chunk,
		TemperatureBoost: opts.TemperatureBoost,
		UseEmbedding:     opts.UseEmbedding,
		Embedder:         e.embedder,
		Reconstruct:      opts.Reconstruct,
		Alpha:            alpha,
	})
	if err != nil {
		return nil, err
	}

	e.flushStability()
	return results, nil
}

// ListMemories enumerates index entries across chunkName (or every chunk
// if empty), backfilling legacy access fields.
func (e *Engine) ListMemories(_ context.Context, chunkName string) ([]EntrySummary, error) {
	byChunk, err := e.store.List(chunkName)
	if err != nil {
		return nil, err
	}

	var out []EntrySummary
	for name, entries := range byChunk {
		for _, ent := range entries {
			out = append(out, EntrySummary{
				ID:               ent.ID,
				Text:             ent.Text,
				Chunk:            name,
				State:            ent.State,
				ConvergenceTicks: ent.ConvergenceTicks,
				Timestamp:        ent.Timestamp,
				HitCount:         ent.HitCount(),
				LastAccessed:     ent.LastAccessed(),
			})
		}
	}
	return out, nil
}

// InspectBrick loads the full evolution record for id, searching every
// chunk directory since the caller may not know which chunk it landed in.
func (e *Engine) InspectBrick(_ context.Context, id string) (*brick.Brick, error) {
	path, err := chunk.FindBrick(e.cfg.Root, id)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("engine: no brick found for id %s", id)
	}
	b, err := brick.Load(path)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// flushStability persists stability bookkeeping under its own lock-and-
// rename discipline. A Flush error is discarded and never surfaces as a
// Store/Recall error.
func (e *Engine) flushStability() {
	if e.stability == nil {
		return
	}
	_ = e.stability.Flush(5 * time.Second)
}
