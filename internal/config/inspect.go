package config

import (
	"runtime"
	"time"
)

// InspectConfig controls source inspection.
type InspectConfig struct {
	// Workers caps concurrent file inspections.
	Workers int `yaml:"workers"`
	// MaxFileBytes skips files larger than this when discovered through git.
	MaxFileBytes int64 `yaml:"max_file_bytes"`
}

// DefaultInspectConfig returns defaults for source inspection.
func DefaultInspectConfig() InspectConfig {
	workers := runtime.NumCPU()
	if workers > 16 {
		workers = 16
	}
	if workers < 2 {
		workers = 2
	}
	return InspectConfig{
		Workers:      workers,
		MaxFileBytes: 2 * 1024 * 1024,
	}
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	// Debounce batches rapid saves into a single selection.
	Debounce string `yaml:"debounce"`
	// IgnorePatterns skips matching directories (base names).
	IgnorePatterns []string `yaml:"ignore_patterns"`
}

// DefaultWatchConfig returns defaults for watch mode.
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		Debounce: "300ms",
		IgnorePatterns: []string{
			".git",
			".filemarker",
			"node_modules",
			"vendor",
			"dist",
			"build",
			"target",
			"bin",
			".venv",
			"__pycache__",
			".cache",
		},
	}
}

// GetDebounce returns the watch debounce as a duration.
func (w WatchConfig) GetDebounce() time.Duration {
	d, err := time.ParseDuration(w.Debounce)
	if err != nil || d <= 0 {
		return 300 * time.Millisecond
	}
	return d
}
