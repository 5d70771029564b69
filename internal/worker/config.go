// Package worker provides a bounded worker pool for executing per-repository
// fetch and scan jobs.
package worker

import (
	"errors"
	"time"
)

const (
	// DefaultPoolSize is the default number of workers in the pool.
	DefaultPoolSize = 8

	// DefaultDrainTimeout is the default timeout for graceful shutdown.
	DefaultDrainTimeout = 30 * time.Second

	// MinPoolSize is the minimum allowed pool size.
	MinPoolSize = 1

	// MaxPoolSize is the maximum allowed pool size.
	MaxPoolSize = 64
)

// Config holds configuration for the worker pool.
type Config struct {
	// PoolSize is the number of concurrent workers.
	PoolSize int

	// DrainTimeout is the maximum time to wait for workers to finish during shutdown.
	DrainTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PoolSize:     DefaultPoolSize,
		DrainTimeout: DefaultDrainTimeout,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.PoolSize < MinPoolSize {
		return errors.New("pool size must be at least 1")
	}
	if c.PoolSize > MaxPoolSize {
		return errors.New("pool size cannot exceed 64")
	}
	if c.DrainTimeout <= 0 {
		return errors.New("drain timeout must be positive")
	}
	return nil
}
