// Package config resolves where the memory store lives on disk and how the
// engine should behave by default, following the .env-then-environment
// precedence and project-root discovery of LoadDeviceConfig/findProjectRoot,
// but returning an explicit value rather than caching a package-level
// singleton — the engine built on top of it is itself an explicit value, not
// a singleton.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// EngineConfig controls a pkg/memory/engine.Engine instance.
type EngineConfig struct {
	// Root is the on-disk root the chunk tree, rotation_stats.json and
	// stability_metrics.json live under.
	Root string

	// FrameMode names a codec ("hash" or "embedding"). It is resolved from
	// the config layers, but the engine does not read it: Store and
	// BatchStore always use hash mode, and Recall follows
	// RecallOptions.UseEmbedding.
	FrameMode string

	// DefaultTopK is the default recall fan-out.
	DefaultTopK int

	// DefaultAlpha is the default reconstruction blend weight.
	DefaultAlpha float64

	// GPUBackend names the gpubackend.Backend to prefer ("cpu-sequential",
	// "cpu-batch", "npu-usb", "cgo-gpu"); the engine falls back to
	// "cpu-sequential" if the named backend isn't available.
	GPUBackend string

	// MaxIters bounds CA evolution per attempt.
	MaxIters int
}

const (
	envRoot       = "WHEELER_MEMORY_ROOT"
	envFrameMode  = "WHEELER_MEMORY_FRAME_MODE"
	envTopK       = "WHEELER_MEMORY_TOP_K"
	envAlpha      = "WHEELER_MEMORY_ALPHA"
	envGPUBackend = "WHEELER_MEMORY_GPU_BACKEND"
	envMaxIters   = "WHEELER_MEMORY_MAX_ITERS"

	configFileName = "engine_config.json"
)

// fileConfig mirrors the on-disk JSON override file, all fields optional.
type fileConfig struct {
	FrameMode    string   `json:"frame_mode,omitempty"`
	DefaultTopK  int      `json:"default_top_k,omitempty"`
	DefaultAlpha *float64 `json:"default_alpha,omitempty"`
	GPUBackend   string   `json:"gpu_backend,omitempty"`
	MaxIters     int      `json:"max_iters,omitempty"`
}

// Default returns the built-in defaults before any .env/env/file overrides
// are applied.
func Default() EngineConfig {
	return EngineConfig{
		Root:         defaultRoot(),
		FrameMode:    "hash",
		DefaultTopK:  5,
		DefaultAlpha: 0.3,
		GPUBackend:   "cpu-sequential",
		MaxIters:     1000,
	}
}

// Load resolves an EngineConfig by layering, lowest to highest precedence:
// built-in defaults, a project-root .env file (KEY=VALUE lines),
// <root>/engine_config.json, and process environment variables. It never
// errors on a missing or unreadable optional layer — a config file that
// doesn't exist yet is not a failure, nor is a missing .env.
func Load() (EngineConfig, error) {
	cfg := Default()

	if data, err := os.ReadFile(filepath.Join(findProjectRoot(), ".env")); err == nil {
		applyEnvFile(string(data), &cfg)
	}

	if root := os.Getenv(envRoot); root != "" {
		cfg.Root = root
	}

	if data, err := os.ReadFile(filepath.Join(cfg.Root, configFileName)); err == nil {
		var fc fileConfig
		if err := json.Unmarshal(data, &fc); err == nil {
			applyFileConfig(fc, &cfg)
		}
	}

	applyProcessEnv(&cfg)

	return cfg, nil
}

func defaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".wheeler_memory"
	}
	return filepath.Join(home, ".wheeler_memory")
}

func applyEnvFile(content string, cfg *EngineConfig) {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		switch key {
		case envRoot:
			cfg.Root = value
		case envFrameMode:
			cfg.FrameMode = value
		case envGPUBackend:
			cfg.GPUBackend = value
		case envTopK:
			if n, err := strconv.Atoi(value); err == nil {
				cfg.DefaultTopK = n
			}
		case envAlpha:
			if a, err := strconv.ParseFloat(value, 64); err == nil {
				cfg.DefaultAlpha = a
			}
		case envMaxIters:
			if n, err := strconv.Atoi(value); err == nil {
				cfg.MaxIters = n
			}
		}
	}
}

func applyFileConfig(fc fileConfig, cfg *EngineConfig) {
	if fc.FrameMode != "" {
		cfg.FrameMode = fc.FrameMode
	}
	if fc.DefaultTopK != 0 {
		cfg.DefaultTopK = fc.DefaultTopK
	}
	if fc.DefaultAlpha != nil {
		cfg.DefaultAlpha = *fc.DefaultAlpha
	}
	if fc.GPUBackend != "" {
		cfg.GPUBackend = fc.GPUBackend
	}
	if fc.MaxIters != 0 {
		cfg.MaxIters = fc.MaxIters
	}
}

func applyProcessEnv(cfg *EngineConfig) {
	if v := os.Getenv(envFrameMode); v != "" {
		cfg.FrameMode = v
	}
	if v := os.Getenv(envGPUBackend); v != "" {
		cfg.GPUBackend = v
	}
	if v := os.Getenv(envTopK); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DefaultTopK = n
		}
	}
	if v := os.Getenv(envAlpha); v != "" {
		if a, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.DefaultAlpha = a
		}
	}
	if v := os.Getenv(envMaxIters); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxIters = n
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod,
// the root .env resolution is relative to.
func findProjectRoot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	if _, err := os.Stat(filepath.Join(cwd, ".env")); err == nil {
		return cwd
	}
	for {
		if _, err := os.Stat(filepath.Join(cwd, "go.mod")); err == nil {
			return cwd
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return cwd
		}
		cwd = parent
	}
}
