// Package stability tracks per-pattern stability metrics: hit count,
// survival across context switches, and whether a pattern survived
// compression. The three combine into a composite score in [0, 1].
//
// Grounded on ralph_core/wheeler_weights.py's PatternMetrics/StabilityTracker,
// translated from a thread-safe process-global singleton into an explicit
// Tracker value callers own directly; file persistence follows
// lockfile.AtomicWriteFile's convention rather than a bare os.WriteFile.
package stability

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"wheelermem/internal/lockfile"
)

// recencyWindow is how recent last_accessed must be, relative to a context
// switch, for a pattern to count as having survived it.
const recencyWindow = 10 * time.Minute

// PatternMetrics holds the raw stability signals for one pattern id.
type PatternMetrics struct {
	PatternID           string    `json:"pattern_id"`
	TextPreview         string    `json:"text_preview,omitempty"`
	HitCount            int       `json:"hit_count"`
	FramePersistence    int       `json:"frame_persistence"`
	CompressionSurvived bool      `json:"compression_survived"`
	FirstSeen           time.Time `json:"first_seen"`
	LastAccessed        time.Time `json:"last_accessed"`
	ContextSwitchesSeen int       `json:"context_switches_seen"`
}

// Score computes the composite stability score for m, rounded to 4 places.
// hit_score saturates near 20 hits; persist_score is defined as 0 with no
// switches yet and no persistence, 0.5 with persistence but no switches
// (pre-switch records), else the survival ratio.
func (m PatternMetrics) Score() float64 {
	var hitScore float64
	if m.HitCount > 0 {
		hitScore = math.Min(1.0, math.Log(float64(m.HitCount)+1)/math.Log(21))
	}

	var persistScore float64
	switch {
	case m.ContextSwitchesSeen <= 0 && m.FramePersistence == 0:
		persistScore = 0
	case m.ContextSwitchesSeen <= 0:
		persistScore = 0.5
	default:
		persistScore = math.Min(1.0, float64(m.FramePersistence)/float64(m.ContextSwitchesSeen))
	}

	compressScore := 0.0
	if m.CompressionSurvived {
		compressScore = 1.0
	}

	raw := 0.40*hitScore + 0.35*persistScore + 0.25*compressScore
	return math.Round(raw*10000) / 10000
}

// diskFormat is the on-disk JSON shape: {version, updated, patterns: [...]}.
type diskFormat struct {
	Version  int              `json:"version"`
	Updated  time.Time        `json:"updated"`
	Patterns []PatternMetrics `json:"patterns"`
}

// Tracker holds in-memory stability metrics for a set of patterns, backed
// by a single JSON file at Path. Callers own a Tracker value explicitly
// rather than reaching for a process-wide singleton.
type Tracker struct {
	Path     string
	patterns map[string]PatternMetrics
	dirty    bool
}

// Load reads a Tracker from path, or returns an empty Tracker if the file
// does not exist. A corrupt file is treated the same as a missing one: the
// tracker starts empty rather than failing store/recall outright —
// corruption here should degrade scoring, not make the engine unusable.
func Load(path string) *Tracker {
	t := &Tracker{Path: path, patterns: make(map[string]PatternMetrics)}

	data, err := os.ReadFile(path)
	if err != nil {
		return t
	}

	var df diskFormat
	if err := json.Unmarshal(data, &df); err != nil {
		return t
	}
	for _, m := range df.Patterns {
		if m.PatternID != "" {
			t.patterns[m.PatternID] = m
		}
	}
	return t
}

func (t *Tracker) getOrCreate(patternID, text string) PatternMetrics {
	if m, ok := t.patterns[patternID]; ok {
		return m
	}
	now := time.Now().UTC()
	preview := text
	if len(preview) > 80 {
		preview = preview[:80]
	}
	return PatternMetrics{
		PatternID:    patternID,
		TextPreview:  preview,
		FirstSeen:    now,
		LastAccessed: now,
	}
}

// RecordHit increments hit_count and touches last_accessed for patternID,
// creating the pattern if unseen. Returns the updated metrics.
func (t *Tracker) RecordHit(patternID, text string) PatternMetrics {
	m := t.getOrCreate(patternID, text)
	m.HitCount++
	m.LastAccessed = time.Now().UTC()
	t.patterns[patternID] = m
	t.dirty = true
	return m
}

// RecordContextSwitch increments context_switches_seen for every tracked
// pattern; patterns whose last_accessed falls within recencyWindow of now
// also get frame_persistence incremented (they survived the switch).
func (t *Tracker) RecordContextSwitch() {
	now := time.Now().UTC()
	threshold := now.Add(-recencyWindow)

	for id, m := range t.patterns {
		m.ContextSwitchesSeen++
		if !m.LastAccessed.Before(threshold) {
			m.FramePersistence++
		}
		t.patterns[id] = m
	}
	t.dirty = true
}

// RecordCompressionSurvival marks patternID as having survived compression.
// A no-op if the pattern is unknown.
func (t *Tracker) RecordCompressionSurvival(patternID string) {
	m, ok := t.patterns[patternID]
	if !ok {
		return
	}
	m.CompressionSurvived = true
	t.patterns[patternID] = m
	t.dirty = true
}

// Score returns the stability score for patternID, or 0 if unknown.
func (t *Tracker) Score(patternID string) float64 {
	if m, ok := t.patterns[patternID]; ok {
		return m.Score()
	}
	return 0
}

// Metrics returns the full metrics for patternID and whether it is known.
func (t *Tracker) Metrics(patternID string) (PatternMetrics, bool) {
	m, ok := t.patterns[patternID]
	return m, ok
}

// Flush persists t to its Path if dirty, using an advisory lock plus
// atomic rename so concurrent trackers on the same file never interleave
// writes.
func (t *Tracker) Flush(maxWait time.Duration) error {
	if !t.dirty {
		return nil
	}

	patterns := make([]PatternMetrics, 0, len(t.patterns))
	for _, m := range t.patterns {
		patterns = append(patterns, m)
	}
	df := diskFormat{Version: 1, Updated: time.Now().UTC(), Patterns: patterns}

	data, err := json.MarshalIndent(df, "", "  ")
	if err != nil {
		return fmt.Errorf("stability: marshal: %w", err)
	}

	err = lockfile.WithLock(t.Path, maxWait, func() error {
		return lockfile.AtomicWriteFile(t.Path, data, 0o644)
	})
	if err != nil {
		return fmt.Errorf("stability: flush: %w", err)
	}
	t.dirty = false
	return nil
}
