// Package config defines service configuration and its defaults.
package config

import (
	"fmt"
	"runtime"
	"slices"
	"strings"

	"github.com/okian/usercf/internal/adapters/repository"
	"github.com/okian/usercf/internal/domain/similarity"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory rating queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of workers writing ratings to the store.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize caps how many rating event ids are remembered; <= 0 is unbounded.
	DedupeSize int `koanf:"dedupe_size"`

	// Store selects the rating store: memory or badger.
	Store string `koanf:"store"`

	// BadgerDir is the badger data directory. Required when Store is badger.
	BadgerDir string `koanf:"badger_dir"`

	// DatasetPath optionally seeds the store at startup (.json or .csv).
	DatasetPath string `koanf:"dataset_path"`

	// DefaultKernel is used when a request does not name one.
	DefaultKernel string `koanf:"default_kernel"`

	// MaxSimilarUsers caps GET /users/{id}/similar?k.
	MaxSimilarUsers int `koanf:"max_similar_users"`

	// SimilarityWorkers is the number of goroutines scoring candidate users per request.
	SimilarityWorkers int `koanf:"similarity_workers"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		QueueSize:         100_000,
		WorkerCount:       runtime.NumCPU(),
		DedupeSize:        500_000,
		Store:             repository.KindMemory,
		DefaultKernel:     similarity.KernelPearson,
		MaxSimilarUsers:   100,
		SimilarityWorkers: runtime.NumCPU(),
	}
}

// Validate reports the first setting the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive, got %d", ErrInvalidConfig, c.QueueSize)
	case c.MaxSimilarUsers <= 0:
		return fmt.Errorf("%w: max_similar_users must be positive, got %d", ErrInvalidConfig, c.MaxSimilarUsers)
	case c.Store != repository.KindMemory && c.Store != repository.KindBadger:
		return fmt.Errorf("%w: unknown store %q", ErrInvalidConfig, c.Store)
	case c.Store == repository.KindBadger && strings.TrimSpace(c.BadgerDir) == "":
		return fmt.Errorf("%w: badger_dir is required for the badger store", ErrInvalidConfig)
	case !slices.Contains(similarity.Names(), c.DefaultKernel):
		return fmt.Errorf("%w: unsupported default_kernel %q", ErrInvalidConfig, c.DefaultKernel)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	return nil
}
