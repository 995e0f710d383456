// Package lockfile provides per-file advisory locking with a bounded
// exponential backoff, the same shape as internal/host/deployment.go's
// waitForServer (backoff doubling from 1s up to a ceiling, then giving up).
// The store and stability tracker use one lock per JSON file they mutate
// (index.json, rotation_stats.json, metadata.json, stability_metrics.json)
// so concurrent writers serialize per-file instead of store-wide.
package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Busy is returned when a lock could not be acquired before the backoff
// ceiling was reached. The store and the stability tracker pass it on
// unchanged; it is not converted to errs.Busy.
type Busy struct {
	Path string
}

func (e *Busy) Error() string {
	return fmt.Sprintf("lockfile: %s busy", e.Path)
}

// WithLock acquires an exclusive advisory lock on <path>.lock, runs fn, and
// releases the lock. It retries with exponential backoff (starting at
// 10ms, doubling, capped at 500ms) for up to maxWait before returning *Busy.
func WithLock(path string, maxWait time.Duration, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("lockfile: mkdir: %w", err)
	}

	lockPath := path + ".lock"
	fl := flock.New(lockPath)

	backoff := 10 * time.Millisecond
	const maxBackoff = 500 * time.Millisecond
	deadline := time.Now().Add(maxWait)

	for {
		locked, err := fl.TryLock()
		if err != nil {
			return fmt.Errorf("lockfile: try lock %s: %w", lockPath, err)
		}
		if locked {
			break
		}
		if time.Now().After(deadline) {
			return &Busy{Path: path}
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	defer fl.Unlock()

	return fn()
}

// AtomicWriteFile writes data to a sibling temp file, fsyncs it, then renames
// it over path, so readers never observe a torn write: append-or-upsert then
// atomic-rename.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("lockfile: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("lockfile: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	// Best-effort cleanup if we fail before the rename.
	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("lockfile: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("lockfile: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("lockfile: close temp: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("lockfile: chmod temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("lockfile: rename: %w", err)
	}
	succeeded = true
	return nil
}
