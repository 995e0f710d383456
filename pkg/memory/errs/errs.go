// Package errs defines the transport-agnostic error kinds the memory engine
// surfaces: a structured error type in the style of internal/hasher's
// HasherError (errors.go), one kind constant per category.
package errs

import "fmt"

// Kind identifies one of the error categories the engine reports.
type Kind int

const (
	KindNotConverged Kind = iota + 1
	KindEmptyInput
	KindCorruptIndex
	KindMissingTensor
	KindBusy
	KindEmbeddingUnavailable
	KindVersionMismatch
)

func (k Kind) String() string {
	switch k {
	case KindNotConverged:
		return "NotConverged"
	case KindEmptyInput:
		return "EmptyInput"
	case KindCorruptIndex:
		return "CorruptIndex"
	case KindMissingTensor:
		return "MissingTensor"
	case KindBusy:
		return "Busy"
	case KindEmbeddingUnavailable:
		return "EmbeddingUnavailable"
	case KindVersionMismatch:
		return "VersionMismatch"
	default:
		return "Unknown"
	}
}

// MemoryError is the structured error type returned across the library
// boundary. Details carries kind-specific diagnostics (ticks, cycle period,
// chunk name, ...).
type MemoryError struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
}

func (e *MemoryError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("memory: [%s] %s: %+v", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("memory: [%s] %s", e.Kind, e.Message)
}

func newErr(kind Kind, message string, details map[string]interface{}) *MemoryError {
	return &MemoryError{Kind: kind, Message: message, Details: details}
}

// NotConverged reports a store attempt that exhausted all rotations without
// converging. state is one of "OSCILLATING", "CHAOTIC", "FAILED_ALL_ROTATIONS".
func NotConverged(state string, ticks int, diagnostics map[string]interface{}) error {
	details := map[string]interface{}{"state": state, "ticks": ticks}
	for k, v := range diagnostics {
		details[k] = v
	}
	return newErr(KindNotConverged, "evolution did not converge", details)
}

// EmptyInput reports a store/recall call with zero-length text.
func EmptyInput() error {
	return newErr(KindEmptyInput, "input text is empty", nil)
}

// CorruptIndex reports an unparseable or internally inconsistent index.json.
func CorruptIndex(chunk, reason string) error {
	return newErr(KindCorruptIndex, "corrupt chunk index", map[string]interface{}{
		"chunk": chunk, "reason": reason,
	})
}

// MissingTensor reports an attractor file absent during recall.
func MissingTensor(id, chunk string) error {
	return newErr(KindMissingTensor, "attractor file missing", map[string]interface{}{
		"id": id, "chunk": chunk,
	})
}

// Busy reports lock contention beyond the backoff ceiling.
func Busy(path string) error {
	return newErr(KindBusy, "resource busy", map[string]interface{}{"path": path})
}

// EmbeddingUnavailable reports that embedding mode was requested but no
// Embedder collaborator was wired in.
func EmbeddingUnavailable() error {
	return newErr(KindEmbeddingUnavailable, "embedding model not available", nil)
}

// VersionMismatch reports an on-disk format version this build can't read.
func VersionMismatch(found, expected int) error {
	return newErr(KindVersionMismatch, "unsupported on-disk version", map[string]interface{}{
		"found": found, "expected": expected,
	})
}

// As reports whether err is a *MemoryError of the given kind.
func As(err error, kind Kind) bool {
	me, ok := err.(*MemoryError)
	return ok && me.Kind == kind
}
