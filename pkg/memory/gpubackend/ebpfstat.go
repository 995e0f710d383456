// eBPF-backed tick counter for the batch backend: a per-CPU array map that
// BatchCPUBackend adds each batch's tick total to, and that Select reads back
// as a load signal. Grounded on
// internal/driver/device/eBPF_driver.go (rlimit.RemoveMemlock before any
// map use, ebpf.Map field tags, explicit Close()).
package gpubackend

import (
	"fmt"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/rlimit"
)

// tickCounterSpec describes a single BPF_MAP_TYPE_PERCPU_ARRAY map holding
// one tick-counter slot per CPU. BatchCPUBackend reports once per batch,
// after its worker pool has finished.
var tickCounterSpec = &ebpf.MapSpec{
	Name:       "wheelermem_batch_ticks",
	Type:       ebpf.PerCPUArray,
	KeySize:    4,
	ValueSize:  8,
	MaxEntries: 1,
}

// TickCounter exposes kernel-side per-CPU tick accounting for
// BatchCPUBackend. It is optional instrumentation: callers that don't need
// it never construct one, and construction itself fails closed (returns an
// error, not a panic) on kernels or permission contexts that don't support
// eBPF maps, which is the common case in a container without
// CAP_SYS_ADMIN.
type TickCounter struct {
	m *ebpf.Map
}

// NewTickCounter creates the per-CPU tick counter map. Callers must Close
// it when done.
func NewTickCounter() (*TickCounter, error) {
	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, fmt.Errorf("gpubackend: remove memlock rlimit: %w", err)
	}

	m, err := ebpf.NewMap(tickCounterSpec)
	if err != nil {
		return nil, fmt.Errorf("gpubackend: create tick counter map: %w", err)
	}
	return &TickCounter{m: m}, nil
}

// Add increments the per-CPU tick counter by delta. Safe to call from any
// goroutine; the kernel map itself provides the per-CPU slot.
func (c *TickCounter) Add(delta uint64) error {
	var key uint32
	var values []uint64
	if err := c.m.Lookup(&key, &values); err != nil {
		return fmt.Errorf("gpubackend: lookup tick counter: %w", err)
	}
	if len(values) == 0 {
		values = []uint64{delta}
	} else {
		values[0] += delta
	}
	return c.m.Update(&key, values, ebpf.UpdateAny)
}

// Total sums the per-CPU tick counter across all CPUs.
func (c *TickCounter) Total() (uint64, error) {
	var key uint32
	var values []uint64
	if err := c.m.Lookup(&key, &values); err != nil {
		return 0, fmt.Errorf("gpubackend: lookup tick counter: %w", err)
	}
	var total uint64
	for _, v := range values {
		total += v
	}
	return total, nil
}

// Close releases the underlying map.
func (c *TickCounter) Close() error {
	return c.m.Close()
}

// OpenTickCounter is the best-effort constructor Select uses: it returns nil
// rather than an error when eBPF maps aren't available (no CAP_BPF, non-
// Linux kernel, container without CAP_SYS_ADMIN), since tick accounting is
// optional instrumentation and its absence must never block backend
// selection.
func OpenTickCounter() *TickCounter {
	c, err := NewTickCounter()
	if err != nil {
		return nil
	}
	return c
}
