//go:build !mips && !mipsle

// NPU dongle discovery over USB. Mirrors
// internal/driver/device/usb_device.go's open sequence (new context, open by
// VID/PID, claim interface, open endpoints) but probes for presence only —
// Wheeler Memory has no NPU offload path to drive yet, so NPUBackend reports
// itself unavailable until one exists; see DESIGN.md.
package gpubackend

import (
	"github.com/google/gousb"

	"wheelermem/pkg/memory/ca"
)

// Placeholder VID/PID for a CA-offload NPU dongle. No such device exists
// yet; this is here so the probe has concrete IDs to look for once one
// does, rather than inventing protocol details that don't exist.
const (
	npuVendorID  = gousb.ID(0x2341)
	npuProductID = gousb.ID(0x8037)
)

// NPUBackend targets a USB-attached CA-offload accelerator. The probe is
// real: IsAvailable opens a USB context and looks for the device by VID/PID
// on every call. It still reports false when the device is present, because
// EvolveSingle and EvolveBatch have no offload path and always return an
// error.
type NPUBackend struct{}

func (NPUBackend) Name() string { return "npu-usb" }

func (NPUBackend) IsAvailable() bool {
	ctx := gousb.NewContext()
	defer ctx.Close()

	dev, err := ctx.OpenDeviceWithVIDPID(npuVendorID, npuProductID)
	if err != nil || dev == nil {
		return false
	}
	dev.Close()
	// Present, but there is no offload path to drive it.
	return false
}

func (NPUBackend) EvolveSingle(ca.Frame, int) (Verdict, error) {
	return Verdict{}, errUnavailable("npu-usb")
}

func (NPUBackend) EvolveBatch([]ca.Frame, int) ([]Verdict, error) {
	return nil, errUnavailable("npu-usb")
}
