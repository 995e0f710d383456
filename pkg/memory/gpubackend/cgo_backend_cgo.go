//go:build cgo

package gpubackend

/*
#include <math.h>

static double wheelermem_cgo_probe(double x) {
    return fabs(x);
}
*/
import "C"

import "wheelermem/pkg/memory/ca"

// CGOBackend proves the cgo call boundary is live (a real libm call, not a
// mocked kernel) so the build can tell "cgo toolchain present" apart from
// "cgo toolchain absent" without pretending a GPU CA kernel exists. It
// stays unavailable until a real kernel is written against this boundary —
// IsAvailable reports false even though the probe call succeeds, so Select
// never hands out a backend whose evolve path cannot run.
type CGOBackend struct{}

func (CGOBackend) Name() string { return "cgo-gpu" }

func (CGOBackend) IsAvailable() bool {
	_ = float64(C.wheelermem_cgo_probe(C.double(-1)))
	return false
}

func (CGOBackend) EvolveSingle(ca.Frame, int) (Verdict, error) {
	return Verdict{}, errUnavailable("cgo-gpu")
}

func (CGOBackend) EvolveBatch([]ca.Frame, int) ([]Verdict, error) {
	return nil, errUnavailable("cgo-gpu")
}
