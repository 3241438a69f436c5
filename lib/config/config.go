// Copyright 2026 The Tagd Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config is the configuration for the tagd service and the tag CLI.
type Config struct {
	// Store configures the SQLite tag store.
	Store StoreConfig `yaml:"store"`

	// Listen configures the service endpoint. The CLI dials the same
	// endpoint, so one shared config file serves both sides.
	Listen ListenConfig `yaml:"listen"`
}

// StoreConfig configures the SQLite tag store.
type StoreConfig struct {
	// Path is the SQLite database file. The parent directory is
	// created on service startup if it does not exist.
	Path string `yaml:"path"`

	// PoolSize is the number of connections in the pool. Zero means
	// the store default.
	PoolSize int `yaml:"pool_size"`
}

// ListenConfig configures the service endpoint.
type ListenConfig struct {
	// Network is "unix" or "tcp".
	Network string `yaml:"network"`

	// Address is a socket path for "unix" or host:port for "tcp".
	Address string `yaml:"address"`
}

// Default returns the default configuration: a Unix socket and a
// database under the user's local data directory.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	root := filepath.Join(homeDir, ".local", "share", "tagd")

	return &Config{
		Store: StoreConfig{
			Path: filepath.Join(root, "tags.db"),
		},
		Listen: ListenConfig{
			Network: "unix",
			Address: filepath.Join(root, "tagd.sock"),
		},
	}
}

// Load loads configuration from the file named by the TAGD_CONFIG
// environment variable. There are no fallbacks or automatic
// discovery: if TAGD_CONFIG is not set, Load fails. This keeps
// configuration deterministic and auditable.
func Load() (*Config, error) {
	configPath := os.Getenv("TAGD_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("TAGD_CONFIG environment variable not set; " +
			"set it to the path of your tagd.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging
// over the defaults. Environment variables do not override config
// values; the only expansion performed is ${VAR} and ${VAR:-default}
// patterns in paths, for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// path-valued fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Store.Path = expandVars(c.Store.Path, vars)
	if c.Listen.Network == "unix" {
		c.Listen.Address = expandVars(c.Listen.Address, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Store.Path == "" {
		errs = append(errs, fmt.Errorf("store.path is required"))
	}
	if c.Store.PoolSize < 0 {
		errs = append(errs, fmt.Errorf("store.pool_size must not be negative"))
	}

	switch c.Listen.Network {
	case "unix", "tcp":
	default:
		errs = append(errs, fmt.Errorf("listen.network must be \"unix\" or \"tcp\", got %q", c.Listen.Network))
	}
	if c.Listen.Address == "" {
		errs = append(errs, fmt.Errorf("listen.address is required"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// EnsureStoreDir creates the database file's parent directory if it
// does not exist.
func (c *Config) EnsureStoreDir() error {
	dir := filepath.Dir(c.Store.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	return nil
}
