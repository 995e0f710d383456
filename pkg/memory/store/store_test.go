package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wheelermem/pkg/memory/ca"
	"wheelermem/pkg/memory/errs"
)

func sampleFrame(v float32) ca.Frame {
	var f ca.Frame
	for i := range f {
		f[i] = v
	}
	return f
}

func TestStoreAndLoadAttractorRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	frame := sampleFrame(0.42)

	chunkName, err := s.Store(StoreOptions{
		ID:        "abc123",
		Text:      "debugging a python function",
		Verdict:   ca.Converged,
		Attractor: frame,
		Ticks:     10,
		FrameMode: "hash",
		History:   []ca.Frame{frame, frame},
	})
	require.NoError(t, err)
	assert.Equal(t, "code", chunkName, "expected routing to the code chunk")

	got, err := s.LoadAttractor(chunkName, "abc123")
	require.NoError(t, err)
	assert.Equal(t, frame, got, "loaded attractor should match stored attractor")
}

func TestStoreRefusesNonConvergedVerdict(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Store(StoreOptions{
		ID:      "xyz",
		Text:    "chaotic text",
		Verdict: ca.Chaotic,
	})
	assert.Error(t, err, "expected Store to refuse a non-converged verdict")
}

func TestStoreUpsertPreservesAccessMetadata(t *testing.T) {
	s := New(t.TempDir())
	frame := sampleFrame(0.1)

	chunkName, err := s.Store(StoreOptions{
		ID:        "dup",
		Text:      "some unrouted text",
		Verdict:   ca.Converged,
		Attractor: frame,
		FrameMode: "hash",
	})
	require.NoError(t, err)

	require.NoError(t, s.BumpEntries(chunkName, []string{"dup"}))

	entryBefore, ok, err := s.Entry(chunkName, "dup")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, entryBefore.HitCount())

	_, err = s.Store(StoreOptions{
		ID:           "dup",
		Text:         "some unrouted text",
		Verdict:      ca.Converged,
		Attractor:    frame,
		RotationUsed: 90,
		FrameMode:    "hash",
	})
	require.NoError(t, err)

	entryAfter, ok, err := s.Entry(chunkName, "dup")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, entryAfter.HitCount(), "access metadata should survive a re-store upsert")

	meta := entryAfter.Metadata["rotation_used"]
	rv, ok := meta.(float64)
	require.True(t, ok, "rotation_used should decode as a number")
	assert.Equal(t, 90, int(rv), "rotation_used should be refreshed by the upsert")
}

func TestBumpEntriesIsSingleWritePerChunk(t *testing.T) {
	s := New(t.TempDir())
	frame := sampleFrame(0.2)

	chunkName, err := s.Store(StoreOptions{ID: "a", Text: "grocery list", Verdict: ca.Converged, Attractor: frame, FrameMode: "hash"})
	require.NoError(t, err)
	_, err = s.Store(StoreOptions{ID: "b", Text: "grocery list again", Verdict: ca.Converged, Attractor: frame, Chunk: chunkName, FrameMode: "hash"})
	require.NoError(t, err)

	require.NoError(t, s.BumpEntries(chunkName, []string{"a", "b"}))

	for _, id := range []string{"a", "b"} {
		e, ok, err := s.Entry(chunkName, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, 1, e.HitCount(), "id %s", id)
	}
}

func TestListBackfillsAccessFields(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	frame := sampleFrame(0.3)

	chunkName, err := s.Store(StoreOptions{ID: "legacy", Text: "an ordinary memory", Verdict: ca.Converged, Attractor: frame, FrameMode: "hash"})
	require.NoError(t, err)

	// Simulate a legacy entry stripped of its access metadata by writing the
	// index directly, as if migrated from an older format.
	entries, err := s.loadIndex(chunkName)
	require.NoError(t, err)
	e := entries["legacy"]
	e.Metadata = map[string]interface{}{"frame_mode": "hash"}
	entries["legacy"] = e
	require.NoError(t, s.writeIndex(chunkName, entries))

	listed, err := s.List(chunkName)
	require.NoError(t, err)
	require.Len(t, listed[chunkName], 1)
	assert.Equal(t, 0, listed[chunkName][0].HitCount(), "expected backfilled hit_count of 0")
}

func TestLoadAttractorMissingReturnsMissingTensor(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.LoadAttractor("general", "nonexistent")
	assert.Error(t, err)
	assert.True(t, errs.As(err, errs.KindMissingTensor), "expected a MissingTensor error, got %v", err)
}

func TestRotationStatsRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	rs, err := s.LoadRotationStats()
	require.NoError(t, err)
	if rs == nil {
		rs = RotationStats{}
	}
	rs[0]++
	rs[90] += 2

	require.NoError(t, s.SaveRotationStats(rs))

	reloaded, err := s.LoadRotationStats()
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded[0])
	assert.Equal(t, 2, reloaded[90])
}

func TestEntryIffBothAttractorAndBrickExist(t *testing.T) {
	s := New(t.TempDir())
	frame := sampleFrame(0.5)
	chunkName, err := s.Store(StoreOptions{ID: "id1", Text: "science experiment physics", Verdict: ca.Converged, Attractor: frame, FrameMode: "hash"})
	require.NoError(t, err)

	_, err = s.LoadAttractor(chunkName, "id1")
	assert.NoError(t, err)
	_, err = s.LoadBrick(chunkName, "id1")
	assert.NoError(t, err)
}
