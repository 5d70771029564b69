// Package config provides configuration management for the figscan
// application. It handles loading, validation, and access to configuration
// values from YAML files, environment variables, and command-line flags
// via Viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the interface for configuration management.
type Interface interface {
	// GetSearchConfig returns the code-search configuration.
	GetSearchConfig() *SearchConfig
	// GetFetchConfig returns the repository fetch configuration.
	GetFetchConfig() *FetchConfig
	// GetScanConfig returns the Markdown scan configuration.
	GetScanConfig() *ScanConfig
	// GetOutputConfig returns the output artifact configuration.
	GetOutputConfig() *OutputConfig
	// GetWorkersConfig returns the worker pool configuration.
	GetWorkersConfig() *WorkersConfig
	// Validate validates the configuration.
	Validate() error
}

// Ensure Config implements Interface
var _ Interface = (*Config)(nil)

// Config represents the application configuration.
type Config struct {
	// Search holds code-search configuration
	Search *SearchConfig `yaml:"search"`
	// Fetch holds repository fetch configuration
	Fetch *FetchConfig `yaml:"fetch"`
	// Scan holds Markdown scan configuration
	Scan *ScanConfig `yaml:"scan"`
	// Output holds output artifact configuration
	Output *OutputConfig `yaml:"output"`
	// Workers holds worker pool configuration
	Workers *WorkersConfig `yaml:"workers"`
}

// SearchConfig holds configuration for the code-search phase.
type SearchConfig struct {
	// Query is the literal code-search query.
	Query string `yaml:"query" mapstructure:"query"`
	// MaxPages bounds how many result pages are requested.
	MaxPages int `yaml:"max_pages" mapstructure:"max_pages"`
	// PerPage is the number of results per page (API max 100).
	PerPage int `yaml:"per_page" mapstructure:"per_page"`
	// MaxRetries bounds rate-limit retries before the run aborts.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`
	// Token is an optional bearer token for higher rate limits.
	Token string `yaml:"token" mapstructure:"token"`
	// RequestTimeout bounds a single search request.
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
}

// Validate checks the search configuration.
func (c *SearchConfig) Validate() error {
	if c.MaxPages < 1 {
		return fmt.Errorf("%w: max_pages must be at least 1", ErrInvalidConfig)
	}
	if c.PerPage < 1 || c.PerPage > MaxPerPage {
		return fmt.Errorf("%w: per_page must be between 1 and %d", ErrInvalidConfig, MaxPerPage)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// FetchConfig holds configuration for repository fetching.
type FetchConfig struct {
	// Workdir is the scratch directory repositories are cloned into.
	Workdir string `yaml:"workdir" mapstructure:"workdir"`
	// Timeout bounds a single clone.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// Validate checks the fetch configuration.
func (c *FetchConfig) Validate() error {
	if c.Workdir == "" {
		return fmt.Errorf("%w: workdir cannot be empty", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: fetch timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// ScanConfig holds configuration for Markdown scanning.
type ScanConfig struct {
	// Timeout bounds a single repository scan.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Extensions lists the file extensions treated as Markdown.
	Extensions []string `yaml:"extensions" mapstructure:"extensions"`
}

// Validate checks the scan configuration.
func (c *ScanConfig) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: scan timeout must be positive", ErrInvalidConfig)
	}
	if len(c.Extensions) == 0 {
		return fmt.Errorf("%w: at least one markdown extension is required", ErrInvalidConfig)
	}
	return nil
}

// OutputConfig holds configuration for the output artifact.
type OutputConfig struct {
	// Path is where the JSON artifact is written.
	Path string `yaml:"path" mapstructure:"path"`
}

// Validate checks the output configuration.
func (c *OutputConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: output path cannot be empty", ErrInvalidConfig)
	}
	return nil
}

// WorkersConfig holds configuration for the fetch/scan worker pool.
type WorkersConfig struct {
	// PoolSize is the number of concurrent workers.
	PoolSize int `yaml:"pool_size" mapstructure:"pool_size"`
	// DrainTimeout bounds graceful shutdown.
	DrainTimeout time.Duration `yaml:"drain_timeout" mapstructure:"drain_timeout"`
}

// Validate checks the workers configuration.
func (c *WorkersConfig) Validate() error {
	if c.PoolSize < MinWorkers || c.PoolSize > MaxWorkers {
		return fmt.Errorf("%w: pool_size must be between %d and %d", ErrInvalidConfig, MinWorkers, MaxWorkers)
	}
	if c.DrainTimeout <= 0 {
		return fmt.Errorf("%w: drain_timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if err := c.Fetch.Validate(); err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	if err := c.Scan.Validate(); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if err := c.Workers.Validate(); err != nil {
		return fmt.Errorf("workers: %w", err)
	}
	return nil
}

// GetSearchConfig returns the code-search configuration.
func (c *Config) GetSearchConfig() *SearchConfig { return c.Search }

// GetFetchConfig returns the repository fetch configuration.
func (c *Config) GetFetchConfig() *FetchConfig { return c.Fetch }

// GetScanConfig returns the Markdown scan configuration.
func (c *Config) GetScanConfig() *ScanConfig { return c.Scan }

// GetOutputConfig returns the output artifact configuration.
func (c *Config) GetOutputConfig() *OutputConfig { return c.Output }

// GetWorkersConfig returns the worker pool configuration.
func (c *Config) GetWorkersConfig() *WorkersConfig { return c.Workers }

// LoadConfig builds the configuration from Viper's current state.
// Viper is expected to have been initialized by the root command with
// defaults, config file values, environment bindings, and flag bindings,
// in ascending precedence.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Search: &SearchConfig{
			Query:          viper.GetString("search.query"),
			MaxPages:       viper.GetInt("search.max_pages"),
			PerPage:        viper.GetInt("search.per_page"),
			MaxRetries:     viper.GetInt("search.max_retries"),
			Token:          viper.GetString("search.token"),
			RequestTimeout: viper.GetDuration("search.request_timeout"),
		},
		Fetch: &FetchConfig{
			Workdir: viper.GetString("fetch.workdir"),
			Timeout: viper.GetDuration("fetch.timeout"),
		},
		Scan: &ScanConfig{
			Timeout:    viper.GetDuration("scan.timeout"),
			Extensions: viper.GetStringSlice("scan.extensions"),
		},
		Output: &OutputConfig{
			Path: viper.GetString("output.path"),
		},
		Workers: &WorkersConfig{
			PoolSize:     viper.GetInt("workers.pool_size"),
			DrainTimeout: viper.GetDuration("workers.drain_timeout"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
