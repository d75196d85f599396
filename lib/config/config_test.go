// Copyright 2026 The Padkv Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.PadCapacity != 64*1024 {
		t.Errorf("default pad capacity = %d", cfg.PadCapacity)
	}
	backoff, err := cfg.RetryBackoff()
	if err != nil {
		t.Fatal(err)
	}
	if backoff != 500*time.Millisecond {
		t.Errorf("default backoff = %v", backoff)
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "padkv.yaml")
	content := `
store_root: /var/lib/padkv
compression: zstd
retry:
  attempts: 5
  backoff: 2s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.StoreRoot != "/var/lib/padkv" {
		t.Errorf("store_root = %q", cfg.StoreRoot)
	}
	if cfg.Compression != "zstd" {
		t.Errorf("compression = %q", cfg.Compression)
	}
	if cfg.Retry.Attempts != 5 || cfg.Retry.Backoff != "2s" {
		t.Errorf("retry = %+v", cfg.Retry)
	}
	// Unset fields keep their defaults.
	if cfg.PadCapacity != 64*1024 || cfg.UploadWorkers != 8 {
		t.Errorf("defaults not preserved: capacity=%d workers=%d", cfg.PadCapacity, cfg.UploadWorkers)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("missing config file did not error")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty store root", func(c *Config) { c.StoreRoot = "" }},
		{"pad capacity too small", func(c *Config) { c.PadCapacity = 256 }},
		{"pad capacity too large", func(c *Config) { c.PadCapacity = 32 * 1024 * 1024 }},
		{"unknown compression", func(c *Config) { c.Compression = "gzip" }},
		{"zero workers", func(c *Config) { c.UploadWorkers = 0 }},
		{"too many workers", func(c *Config) { c.UploadWorkers = 1000 }},
		{"unknown network kind", func(c *Config) { c.Network.Kind = "s3" }},
		{"disk backend without path", func(c *Config) { c.Network.Kind = "disk"; c.Network.Path = "" }},
		{"zero retry attempts", func(c *Config) { c.Retry.Attempts = 0 }},
		{"unparseable backoff", func(c *Config) { c.Retry.Backoff = "soon" }},
		{"negative backoff", func(c *Config) { c.Retry.Backoff = "-1s" }},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: validation passed", tc.name)
		}
	}
}

func TestLoadHonorsEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "padkv.yaml")
	if err := os.WriteFile(path, []byte("upload_workers: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PADKV_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.UploadWorkers != 2 {
		t.Errorf("upload_workers = %d, want 2", cfg.UploadWorkers)
	}
}

func TestStatePaths(t *testing.T) {
	cfg := Default()
	cfg.StoreRoot = "/data/padkv"
	if cfg.PointerDir() != filepath.Join("/data/padkv", "pointers") {
		t.Error("pointer dir wrong")
	}
	if cfg.IndexPath() != filepath.Join("/data/padkv", "index", "index.journal") {
		t.Error("index path wrong")
	}
}
