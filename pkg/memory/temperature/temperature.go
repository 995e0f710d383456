// Package temperature computes an access-recency/frequency decay score for
// stored memories, pure and file-free: given hit count and last-access
// time it derives a score and a hot/warm/cold tier.
//
// Grounded directly on wheeler_memory/temperature.py's base/decay/round
// formula, kept as a pair of pure package-level functions that take every
// input (including the current time) as an argument, with no package-level
// clock or cache, per the "no global singletons" redesign note carried into
// SPEC_FULL.
package temperature

import (
	"math"
	"time"
)

// HalfLifeDays is the exponential decay half-life in days.
const HalfLifeDays = 7.0

// Saturation is the hit count at which the base score saturates.
const Saturation = 10.0

// Tier thresholds.
const (
	TierHotThreshold  = 0.6
	TierWarmThreshold = 0.3
)

// Tier is the coarse hot/warm/cold bucket a temperature falls into.
type Tier string

const (
	Hot  Tier = "hot"
	Warm Tier = "warm"
	Cold Tier = "cold"
)

// Compute returns the temperature score for an entry with hits accesses,
// last accessed at lastAccessed, evaluated at now. The result is rounded to
// 4 decimal places so a freshly stored entry (hits=0, base 0.3, no decay)
// lands exactly on the warm threshold rather than drifting below it from
// floating-point noise; one fresh access gives 0.37, which is warm.
func Compute(hits int, lastAccessed, now time.Time) float64 {
	base := math.Min(1.0, 0.3+0.7*float64(hits)/Saturation)
	deltaDays := now.Sub(lastAccessed).Hours() / 24
	if deltaDays < 0 {
		deltaDays = 0
	}
	decay := math.Pow(2, -deltaDays/HalfLifeDays)
	temp := base * decay
	return math.Round(temp*10000) / 10000
}

// TierOf classifies a temperature value into hot/warm/cold.
func TierOf(temp float64) Tier {
	switch {
	case temp >= TierHotThreshold:
		return Hot
	case temp >= TierWarmThreshold:
		return Warm
	default:
		return Cold
	}
}
