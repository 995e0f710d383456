//go:build !cgo

package gpubackend

import "wheelermem/pkg/memory/ca"

// CGOBackend marks the extension point for a real GPU CA kernel. Unlike
// pkg/hashing/methods/cuda, which links a mocked C runtime to stand in for
// real CUDA, wheelermem never fabricates a fake kernel: without cgo this
// backend is simply unavailable, and the cgo-enabled build
// (cgo_backend_cgo.go) only proves the C call boundary works, not a kernel
// that doesn't exist yet. See DESIGN.md.
type CGOBackend struct{}

func (CGOBackend) Name() string      { return "cgo-gpu" }
func (CGOBackend) IsAvailable() bool { return false }

func (CGOBackend) EvolveSingle(ca.Frame, int) (Verdict, error) {
	return Verdict{}, errUnavailable("cgo-gpu")
}

func (CGOBackend) EvolveBatch([]ca.Frame, int) ([]Verdict, error) {
	return nil, errUnavailable("cgo-gpu")
}
