// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for padkv.
//
// Configuration is loaded from a single YAML file specified by:
//   - the --config flag passed to the command, or
//   - the PADKV_CONFIG environment variable
//
// When neither is set, built-in defaults apply. The config file is the
// single source of truth once named — individual environment variables
// do not override its values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for padkv.
type Config struct {
	// StoreRoot is the base directory for local state: pointers,
	// history, the index journal, and staged pads.
	StoreRoot string `yaml:"store_root"`

	// PadCapacity is the maximum payload bytes per pad.
	PadCapacity int `yaml:"pad_capacity"`

	// Compression selects the per-pad compression: "none", "lz4", or
	// "zstd". Incompressible pads are stored raw regardless.
	Compression string `yaml:"compression"`

	// UploadWorkers bounds concurrent pad uploads and fetches.
	UploadWorkers int `yaml:"upload_workers"`

	// Network configures the chunk backend.
	Network NetworkConfig `yaml:"network"`

	// Retry configures transient-failure handling for network
	// operations.
	Retry RetryConfig `yaml:"retry"`
}

// NetworkConfig selects and configures the chunk backend.
type NetworkConfig struct {
	// Kind is "disk" (a shared directory standing in for the chunk
	// network) or "memory" (ephemeral, for tests and dry runs).
	Kind string `yaml:"kind"`

	// Path is the backing directory for the disk backend.
	Path string `yaml:"path"`
}

// RetryConfig configures the bounded retry wrapper around network
// operations.
type RetryConfig struct {
	// Attempts is the total number of tries per operation.
	Attempts int `yaml:"attempts"`

	// Backoff is the initial delay between tries; it doubles per
	// retry. Parsed as a Go duration string ("500ms", "2s").
	Backoff string `yaml:"backoff"`
}

// Default returns the default configuration. These are a complete
// working setup, not just zero-value placeholders — padkv runs
// without a config file.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	root := filepath.Join(homeDir, ".local", "share", "padkv")

	return &Config{
		StoreRoot:     root,
		PadCapacity:   64 * 1024,
		Compression:   "lz4",
		UploadWorkers: 8,
		Network: NetworkConfig{
			Kind: "disk",
			Path: filepath.Join(root, "network"),
		},
		Retry: RetryConfig{
			Attempts: 3,
			Backoff:  "500ms",
		},
	}
}

// Load loads configuration from the PADKV_CONFIG environment
// variable, falling back to defaults when it is unset.
func Load() (*Config, error) {
	path := os.Getenv("PADKV_CONFIG")
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merging it
// over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values and cross-field consistency.
func (c *Config) Validate() error {
	if c.StoreRoot == "" {
		return fmt.Errorf("store_root is required")
	}
	if c.PadCapacity < 512 || c.PadCapacity > 16*1024*1024 {
		return fmt.Errorf("pad_capacity %d out of range [512, 16777216]", c.PadCapacity)
	}
	switch c.Compression {
	case "none", "lz4", "zstd":
	default:
		return fmt.Errorf("compression %q is not one of none, lz4, zstd", c.Compression)
	}
	if c.UploadWorkers < 1 || c.UploadWorkers > 256 {
		return fmt.Errorf("upload_workers %d out of range [1, 256]", c.UploadWorkers)
	}
	switch c.Network.Kind {
	case "disk":
		if c.Network.Path == "" {
			return fmt.Errorf("network.path is required for the disk backend")
		}
	case "memory":
	default:
		return fmt.Errorf("network.kind %q is not one of disk, memory", c.Network.Kind)
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1")
	}
	if _, err := c.RetryBackoff(); err != nil {
		return err
	}
	return nil
}

// RetryBackoff parses the configured backoff duration.
func (c *Config) RetryBackoff() (time.Duration, error) {
	backoff, err := time.ParseDuration(c.Retry.Backoff)
	if err != nil {
		return 0, fmt.Errorf("retry.backoff %q: %w", c.Retry.Backoff, err)
	}
	if backoff <= 0 {
		return 0, fmt.Errorf("retry.backoff must be positive")
	}
	return backoff, nil
}

// PointerDir returns the pointer store directory under the store
// root.
func (c *Config) PointerDir() string { return filepath.Join(c.StoreRoot, "pointers") }

// HistoryDir returns the history log directory under the store root.
func (c *Config) HistoryDir() string { return filepath.Join(c.StoreRoot, "history") }

// IndexPath returns the index journal path under the store root.
func (c *Config) IndexPath() string { return filepath.Join(c.StoreRoot, "index", "index.journal") }

// StagingDir returns the staged-pad directory under the store root.
func (c *Config) StagingDir() string { return filepath.Join(c.StoreRoot, "staging") }
