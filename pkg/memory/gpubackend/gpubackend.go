// Package gpubackend provides batch evolution over many seed frames, with
// the CPU engine as the numerical source of truth and alternate backends
// offered as performance optimizations that must match it within a fixed
// tolerance.
//
// Grounded on pkg/hashing/methods's capability-struct pattern (one
// concrete type per backend, a shared IsAvailable/Name surface) and on
// pkg/hashing/methods/ebpf.EbpfMethod for the not-yet-available stub
// convention (IsAvailable always false, methods return a descriptive
// error).
package gpubackend

import (
	"fmt"
	"runtime"
	"sync"

	"wheelermem/pkg/memory/ca"
)

// Tolerance is the maximum per-cell absolute deviation an alternate backend
// may exhibit from the CPU engine while still being considered at parity.
const Tolerance = 1e-4

// ContentionThreshold is the cumulative tick count, read from a TickCounter,
// above which Select treats the batch pool as already saturated and falls
// back to the sequential CPU backend rather than adding more goroutines to
// it.
const ContentionThreshold = 2_000_000

// Verdict mirrors ca.Result but omits History, since batch evolution is
// explicitly history-free.
type Verdict struct {
	State     ca.Verdict
	Attractor ca.Frame
	Ticks     int
}

// Backend evolves seed frames to their settled verdict without retaining
// per-tick history.
type Backend interface {
	Name() string
	IsAvailable() bool
	EvolveSingle(frame ca.Frame, maxIters int) (Verdict, error)
	EvolveBatch(frames []ca.Frame, maxIters int) ([]Verdict, error)
}

// toVerdict drops a full ca.Result's history, keeping only what the batch
// surface promises.
func toVerdict(r ca.Result) Verdict {
	return Verdict{State: r.Verdict, Attractor: r.Attractor, Ticks: r.Ticks}
}

// CPUBackend runs evolution sequentially via ca.Evolve, one frame at a
// time; it is always available and is the reference every other backend
// is checked against.
type CPUBackend struct {
	Detect ca.OscillationDetector
}

func (b CPUBackend) Name() string      { return "cpu-sequential" }
func (b CPUBackend) IsAvailable() bool { return true }

func (b CPUBackend) EvolveSingle(frame ca.Frame, maxIters int) (Verdict, error) {
	return toVerdict(ca.Evolve(frame, maxIters, b.Detect)), nil
}

func (b CPUBackend) EvolveBatch(frames []ca.Frame, maxIters int) ([]Verdict, error) {
	out := make([]Verdict, len(frames))
	for i, f := range frames {
		out[i] = toVerdict(ca.Evolve(f, maxIters, b.Detect))
	}
	return out, nil
}

// BatchCPUBackend evolves a batch across a worker pool sized to
// GOMAXPROCS. Because each frame evolves independently and ca.Evolve is a
// pure function of its inputs, its output is bit-identical to CPUBackend's
// — parity holds by construction rather than by approximation, so an
// equivalence suite exercises the pool-splitting logic itself rather than
// any numerical drift.
type BatchCPUBackend struct {
	Detect  ca.OscillationDetector
	Workers int

	// Counter, if set, accumulates the tick count of every EvolveBatch call
	// so a later Select call can read it back as a load signal. Nil is a
	// valid zero value: accounting is skipped, not faked.
	Counter *TickCounter
}

func (b BatchCPUBackend) Name() string      { return "cpu-batch" }
func (b BatchCPUBackend) IsAvailable() bool { return true }

func (b BatchCPUBackend) EvolveSingle(frame ca.Frame, maxIters int) (Verdict, error) {
	return toVerdict(ca.Evolve(frame, maxIters, b.Detect)), nil
}

func (b BatchCPUBackend) EvolveBatch(frames []ca.Frame, maxIters int) ([]Verdict, error) {
	workers := b.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(frames) {
		workers = len(frames)
	}
	if workers <= 0 {
		return nil, nil
	}

	out := make([]Verdict, len(frames))
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = toVerdict(ca.Evolve(frames[i], maxIters, b.Detect))
			}
		}()
	}

	for i := range frames {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if b.Counter != nil {
		var total uint64
		for _, v := range out {
			total += uint64(v.Ticks)
		}
		_ = b.Counter.Add(total)
	}

	return out, nil
}

// Parity reports whether got matches want within Tolerance per cell and
// has the identical verdict state, the property an equivalence suite
// checks for every backend against CPUBackend.
func Parity(got, want Verdict) bool {
	if got.State != want.State {
		return false
	}
	for i := range got.Attractor {
		d := float64(got.Attractor[i]) - float64(want.Attractor[i])
		if d < 0 {
			d = -d
		}
		if d > Tolerance {
			return false
		}
	}
	return true
}

// errUnavailable formats the standard "not available on this build"
// message the CGO and future hardware backends share.
func errUnavailable(name string) error {
	return fmt.Errorf("gpubackend: %s not available on this build", name)
}

// Select resolves a preferred backend name to a concrete Backend, falling
// back to CPUBackend whenever the name is unknown or the preferred backend
// reports itself unavailable. Mirrors pkg/hashing/factory's pattern of
// resolving a config string to a concrete method at one call site rather
// than scattering name comparisons through callers.
//
// load is an optional TickCounter (nil on kernels without eBPF support):
// when requesting "cpu-batch", Select reads its cumulative tick count and
// falls back to the sequential CPUBackend if it is already past
// ContentionThreshold, treating a saturated worker pool the same as an
// unavailable one rather than piling more goroutines onto it.
func Select(name string, detect ca.OscillationDetector, load *TickCounter) Backend {
	cpu := CPUBackend{Detect: detect}
	var preferred Backend
	switch name {
	case "cpu-batch":
		if load != nil {
			if total, err := load.Total(); err == nil && total > ContentionThreshold {
				return cpu
			}
		}
		preferred = BatchCPUBackend{Detect: detect, Counter: load}
	case "cgo-gpu":
		preferred = CGOBackend{}
	case "npu-usb":
		preferred = NPUBackend{}
	default:
		preferred = cpu
	}
	if preferred.IsAvailable() {
		return preferred
	}
	return cpu
}
