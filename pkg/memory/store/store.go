// Package store implements the on-disk attractor store: per-chunk
// index.json mapping ids to IndexEntry records, attractor tensor files,
// brick archives, chunk metadata, and the process-global rotation stats
// file. All shared mutable state is protected by a per-file advisory lock
// plus atomic rename.
//
// Grounded on pkg/hashing/jitter.LoadFromJSONFile (load, tolerate a
// malformed record, keep going rather than aborting the whole load) and
// internal/config (root-relative path layout), with file locking from
// internal/lockfile.
package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"wheelermem/internal/lockfile"
	"wheelermem/pkg/memory/ca"
	"wheelermem/pkg/memory/chunk"
	"wheelermem/pkg/memory/errs"
)

// DefaultLockWait is the default bounded wait before a lock acquisition
// fails with *lockfile.Busy.
const DefaultLockWait = 5 * time.Second

// textPreviewCap bounds how much of the original input text an IndexEntry
// retains.
const textPreviewCap = 500

// IndexEntry is one stored memory's index-level record.
type IndexEntry struct {
	// ID is populated on load from the index.json map key; it is not
	// itself serialized (the map key already carries it), a convenience so
	// callers iterating a slice of entries (List, Recall) don't need the
	// surrounding map to know which memory they're looking at.
	ID               string                 `json:"-"`
	Text             string                 `json:"text"`
	Chunk            string                 `json:"chunk"`
	State            ca.Verdict             `json:"state"`
	ConvergenceTicks int                    `json:"convergence_ticks"`
	Timestamp        time.Time              `json:"timestamp"`
	Metadata         map[string]interface{} `json:"metadata"`
}

// HitCount reads metadata.hit_count, defaulting to 0 if absent or the
// wrong JSON-decoded type.
func (e IndexEntry) HitCount() int {
	if v, ok := e.Metadata["hit_count"].(float64); ok {
		return int(v)
	}
	return 0
}

// LastAccessed reads metadata.last_accessed, falling back to Timestamp if
// absent, so legacy entries without the field still sort correctly.
func (e IndexEntry) LastAccessed() time.Time {
	if v, ok := e.Metadata["last_accessed"].(string); ok {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return e.Timestamp
}

// EnsureAccessFields backfills metadata.hit_count and metadata.last_accessed
// on legacy entries lacking them, from the entry's own creation timestamp.
// This is the Go-idiomatic equivalent of the original's dynamic dict
// mutation: the permissive map[string]interface{} already tolerates
// missing keys, so "backfill" is just "set if absent".
func (e *IndexEntry) EnsureAccessFields() {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	if _, ok := e.Metadata["hit_count"]; !ok {
		e.Metadata["hit_count"] = 0
	}
	if _, ok := e.Metadata["last_accessed"]; !ok {
		e.Metadata["last_accessed"] = e.Timestamp.Format(time.RFC3339)
	}
}

// BumpAccess increments hit_count and sets last_accessed to now.
func (e *IndexEntry) BumpAccess(now time.Time) {
	e.EnsureAccessFields()
	e.Metadata["hit_count"] = e.HitCount() + 1
	e.Metadata["last_accessed"] = now.UTC().Format(time.RFC3339)
}

// ChunkMeta is the per-chunk metadata.json record.
type ChunkMeta struct {
	Created      time.Time `json:"created"`
	LastAccessed time.Time `json:"last_accessed"`
	StoreCount   int       `json:"store_count"`
}

// RotationStats is the process-global rotation_stats.json record: a flat
// map from rotation angle in degrees to total successes at that angle.
// Failures are tracked in-memory by rotation.Stats for the duration of a
// process but are never persisted here.
type RotationStats map[int]int

// Store is the root of the on-disk attractor store.
type Store struct {
	Root     string
	LockWait time.Duration
}

// New returns a Store rooted at root, with the default lock wait.
func New(root string) *Store {
	return &Store{Root: root, LockWait: DefaultLockWait}
}

func (s *Store) lockWait() time.Duration {
	if s.LockWait <= 0 {
		return DefaultLockWait
	}
	return s.LockWait
}

func (s *Store) chunkDir(chunkName string) string {
	return filepath.Join(s.Root, "chunks", chunkName)
}

func (s *Store) indexPath(chunkName string) string {
	return filepath.Join(s.chunkDir(chunkName), "index.json")
}

func (s *Store) attractorPath(chunkName, id string) string {
	return filepath.Join(s.chunkDir(chunkName), "attractors", id+".tensor")
}

func (s *Store) brickPath(chunkName, id string) string {
	return filepath.Join(s.chunkDir(chunkName), "bricks", id+".brick")
}

func (s *Store) metaPath(chunkName string) string {
	return filepath.Join(s.chunkDir(chunkName), "metadata.json")
}

func (s *Store) rotationStatsPath() string {
	return filepath.Join(s.Root, "rotation_stats.json")
}

// loadIndex reads chunk's index.json, tolerating a missing file (empty
// index) but surfacing a file that is not a JSON object as
// errs.CorruptIndex. An individual entry that fails to decode is logged as
// errs.CorruptIndex and dropped; the other entries are kept.
func (s *Store) loadIndex(chunkName string) (map[string]IndexEntry, error) {
	data, err := os.ReadFile(s.indexPath(chunkName))
	if os.IsNotExist(err) {
		return make(map[string]IndexEntry), nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read index for %s: %w", chunkName, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.CorruptIndex(chunkName, err.Error())
	}
	entries := make(map[string]IndexEntry, len(raw))
	for id, msg := range raw {
		var e IndexEntry
		if err := json.Unmarshal(msg, &e); err != nil {
			log.Printf("store: dropping entry %s: %v", id, errs.CorruptIndex(chunkName, err.Error()))
			continue
		}
		e.ID = id
		entries[id] = e
	}
	return entries, nil
}

func (s *Store) writeIndex(chunkName string, entries map[string]IndexEntry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal index for %s: %w", chunkName, err)
	}
	return lockfile.AtomicWriteFile(s.indexPath(chunkName), data, 0o644)
}

// withIndexLock acquires the per-chunk index lock, runs fn with the loaded
// index, and on success writes back whatever fn leaves in entries.
func (s *Store) withIndexLock(chunkName string, fn func(entries map[string]IndexEntry) error) error {
	return lockfile.WithLock(s.indexPath(chunkName), s.lockWait(), func() error {
		entries, err := s.loadIndex(chunkName)
		if err != nil {
			return err
		}
		if err := fn(entries); err != nil {
			return err
		}
		return s.writeIndex(chunkName, entries)
	})
}

// AttractorRecord is what Store persists and returns for a single memory:
// the index entry alongside the Attractor tensor it refers to.
type AttractorRecord struct {
	ID        string
	Entry     IndexEntry
	Attractor ca.Frame
}

// StoreOptions carries everything Store.Store needs beyond the already-
// evolved result, mirroring the fields the rotation controller and codec
// produce.
type StoreOptions struct {
	ID              string
	Text            string
	Chunk           string // empty: route via chunk.SelectStore
	Verdict         ca.Verdict
	Attractor       ca.Frame
	Ticks           int
	RotationUsed    int
	Attempts        int
	WallTimeSeconds float64
	FrameMode       string // "hash" | "embedding"
	History         []ca.Frame
}

// Store writes one memory: routes to a chunk if none is given, refuses
// non-converged verdicts, writes the attractor tensor and brick files,
// upserts the index entry, and touches the chunk's metadata. A store with
// an id already present in the index is an upsert that preserves existing
// access metadata (hit_count, last_accessed) but refreshes the rotation/
// attempt/timing metadata fields.
func (s *Store) Store(opts StoreOptions) (string, error) {
	if opts.Verdict != ca.Converged {
		return "", fmt.Errorf("store: refusing to persist verdict %s", opts.Verdict)
	}

	chunkName := opts.Chunk
	if chunkName == "" {
		chunkName = chunk.SelectStore(opts.Text)
	}
	if _, err := chunk.Dir(s.Root, chunkName); err != nil {
		return "", fmt.Errorf("store: create chunk dir: %w", err)
	}

	preview := opts.Text
	if len(preview) > textPreviewCap {
		preview = preview[:textPreviewCap]
	}

	if err := s.writeAttractorFile(chunkName, opts.ID, opts.Attractor); err != nil {
		return "", err
	}

	b := brickOf(opts)
	if err := saveBrick(s.brickPath(chunkName, opts.ID), b); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	err := s.withIndexLock(chunkName, func(entries map[string]IndexEntry) error {
		existing, exists := entries[opts.ID]

		entry := IndexEntry{
			Text:             preview,
			Chunk:            chunkName,
			State:            opts.Verdict,
			ConvergenceTicks: opts.Ticks,
			Timestamp:        now,
			Metadata: map[string]interface{}{
				"rotation_used":     opts.RotationUsed,
				"attempts":          opts.Attempts,
				"wall_time_seconds": opts.WallTimeSeconds,
				"frame_mode":        opts.FrameMode,
			},
		}

		if exists {
			// Upsert: preserve access metadata, keep the original timestamp,
			// refresh only the rotation/attempt/timing fields.
			entry.Timestamp = existing.Timestamp
			if hc, ok := existing.Metadata["hit_count"]; ok {
				entry.Metadata["hit_count"] = hc
			}
			if la, ok := existing.Metadata["last_accessed"]; ok {
				entry.Metadata["last_accessed"] = la
			}
		} else {
			entry.Metadata["hit_count"] = 0
			entry.Metadata["last_accessed"] = now.Format(time.RFC3339)
		}

		entries[opts.ID] = entry
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := s.touchChunkMeta(chunkName, true); err != nil {
		// Metadata bookkeeping is best-effort; the memory itself is
		// already durably stored.
		log.Printf("store: touch chunk metadata for %s: %v", chunkName, err)
	}

	return chunkName, nil
}

func (s *Store) writeAttractorFile(chunkName, id string, f ca.Frame) error {
	buf := make([]byte, 4*len(f))
	for i, v := range f {
		putFloat32(buf[i*4:], v)
	}
	path := s.attractorPath(chunkName, id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("store: mkdir attractors: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return fmt.Errorf("store: write attractor %s: %w", path, err)
	}
	return nil
}

// LoadAttractor reads a previously stored attractor tensor.
func (s *Store) LoadAttractor(chunkName, id string) (ca.Frame, error) {
	path := s.attractorPath(chunkName, id)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ca.Frame{}, errs.MissingTensor(id, chunkName)
		}
		return ca.Frame{}, fmt.Errorf("store: read attractor %s: %w", path, err)
	}
	if len(data) != 4*ca.Cells {
		return ca.Frame{}, fmt.Errorf("store: attractor %s has %d bytes, want %d", path, len(data), 4*ca.Cells)
	}

	var f ca.Frame
	for i := range f {
		f[i] = getFloat32(data[i*4:])
	}
	return f, nil
}

func (s *Store) touchChunkMeta(chunkName string, stored bool) error {
	path := s.metaPath(chunkName)
	return lockfile.WithLock(path, s.lockWait(), func() error {
		meta := ChunkMeta{Created: time.Now().UTC()}
		if data, err := os.ReadFile(path); err == nil {
			json.Unmarshal(data, &meta)
		}
		meta.LastAccessed = time.Now().UTC()
		if stored {
			meta.StoreCount++
		}
		data, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			return err
		}
		return lockfile.AtomicWriteFile(path, data, 0o644)
	})
}

// List enumerates index entries for chunkName (or every chunk if
// chunkName is empty), backfilling missing access fields as it goes.
func (s *Store) List(chunkName string) (map[string][]IndexEntry, error) {
	var names []string
	if chunkName != "" {
		names = []string{chunkName}
	} else {
		var err error
		names, err = chunk.List(s.Root)
		if err != nil {
			return nil, err
		}
	}

	out := make(map[string][]IndexEntry, len(names))
	for _, name := range names {
		entries, err := s.loadIndex(name)
		if err != nil {
			log.Printf("store: skipping corrupt index for chunk %s: %v", name, err)
			continue
		}
		list := make([]IndexEntry, 0, len(entries))
		for _, e := range entries {
			e.EnsureAccessFields()
			list = append(list, e)
		}
		out[name] = list
	}
	return out, nil
}

// Entry returns a single index entry by id within chunkName.
func (s *Store) Entry(chunkName, id string) (IndexEntry, bool, error) {
	entries, err := s.loadIndex(chunkName)
	if err != nil {
		return IndexEntry{}, false, err
	}
	e, ok := entries[id]
	if ok {
		e.EnsureAccessFields()
	}
	return e, ok, nil
}

// BumpEntries applies BumpAccess to every id in ids within chunkName in a
// single read-modify-write-rename, coalescing what would otherwise be one
// write per recalled entry into one write per touched chunk.
func (s *Store) BumpEntries(chunkName string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return s.withIndexLock(chunkName, func(entries map[string]IndexEntry) error {
		for _, id := range ids {
			e, ok := entries[id]
			if !ok {
				continue
			}
			e.BumpAccess(now)
			entries[id] = e
		}
		return nil
	})
}

// LoadRotationStats reads the process-global rotation stats file,
// tolerating a missing or corrupt file as an empty RotationStats.
func (s *Store) LoadRotationStats() (RotationStats, error) {
	data, err := os.ReadFile(s.rotationStatsPath())
	if os.IsNotExist(err) {
		return RotationStats{}, nil
	}
	if err != nil {
		return RotationStats{}, fmt.Errorf("store: read rotation stats: %w", err)
	}
	var rs RotationStats
	if err := json.Unmarshal(data, &rs); err != nil {
		return RotationStats{}, nil
	}
	if rs == nil {
		rs = RotationStats{}
	}
	return rs, nil
}

// SaveRotationStats persists rs under a per-file lock plus atomic rename.
func (s *Store) SaveRotationStats(rs RotationStats) error {
	path := s.rotationStatsPath()
	return lockfile.WithLock(path, s.lockWait(), func() error {
		data, err := json.MarshalIndent(rs, "", "  ")
		if err != nil {
			return err
		}
		return lockfile.AtomicWriteFile(path, data, 0o644)
	})
}
