package temperature

import (
	"testing"
	"time"
)

func TestComputeFreshAccessWithOneHitIsWarm(t *testing.T) {
	now := time.Now().UTC()
	temp := Compute(1, now, now)
	// base = 0.3 + 0.7*1/10 = 0.37, decay = 1 -> 0.37, i.e. warm.
	if TierOf(temp) != Warm {
		t.Fatalf("expected a single fresh hit to land in warm, got tier for temp=%f", temp)
	}
}

func TestComputeSaturatesAtHitCeiling(t *testing.T) {
	now := time.Now().UTC()
	temp := Compute(10, now, now)
	if temp != 1.0 {
		t.Fatalf("expected saturation at hits=10, got %f", temp)
	}
	beyond := Compute(50, now, now)
	if beyond != 1.0 {
		t.Fatalf("expected hits beyond saturation to still clamp to 1.0, got %f", beyond)
	}
}

func TestComputeDecaysWithAge(t *testing.T) {
	now := time.Now().UTC()
	lastAccessed := now.Add(-7 * 24 * time.Hour)
	temp := Compute(10, lastAccessed, now)
	// base=1.0, decay=2^(-1)=0.5 after exactly one half-life.
	if temp != 0.5 {
		t.Fatalf("expected temperature 0.5 after one half-life at saturation, got %f", temp)
	}
}

func TestComputeNeverNegativeForFutureTimestamp(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(1 * time.Hour)
	temp := Compute(5, future, now)
	if temp < 0 || temp > 1 {
		t.Fatalf("expected temperature to stay in [0, 1] for a last_accessed in the future, got %f", temp)
	}
}

func TestTierBoundaries(t *testing.T) {
	cases := []struct {
		temp float64
		want Tier
	}{
		{0.6, Hot},
		{0.599, Warm},
		{0.3, Warm},
		{0.299, Cold},
		{0.0, Cold},
	}
	for _, c := range cases {
		if got := TierOf(c.temp); got != c.want {
			t.Errorf("TierOf(%f) = %s, want %s", c.temp, got, c.want)
		}
	}
}
