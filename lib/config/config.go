// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for kiln.
//
// Configuration is loaded from a single file specified by:
//   - KILN_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures deterministic,
// auditable configuration with no hidden overrides.
//
// The config file may contain a scope-specific section (user, system) that
// overrides base values when the requested scope matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Scope identifies which installation scope a Client operates against.
// A user-scope install is visible only to the invoking user; a
// system-scope install is visible to every user on the machine. The
// Planner's dependency resolution also checks system scope when
// satisfying a user-scope install (spec.md's cross-scope rule).
type Scope string

const (
	// ScopeUser is the per-user installation scope.
	ScopeUser Scope = "user"
	// ScopeSystem is the machine-wide installation scope.
	ScopeSystem Scope = "system"
)

// Config is the master configuration for kiln.
type Config struct {
	// Path is the file this config was loaded from, recorded so Save
	// can write back to it. Empty when the config was built with
	// Default and never loaded from disk.
	Path string `yaml:"-"`

	// Scope selects which installation scope commands operate against.
	Scope Scope `yaml:"scope"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Remotes lists the configured remotes, in the order they should be
	// consulted. A remote not listed here cannot be referenced by name;
	// the OCI Origin Binder is the only source of ad hoc remotes.
	Remotes []RemoteConfig `yaml:"remotes"`

	// Cache configures the metadata and related-refs caches.
	Cache CacheConfig `yaml:"cache"`

	// User and System contain per-scope overrides; the one matching
	// Scope is applied after the base config is loaded.
	User   *ConfigOverrides `yaml:"user,omitempty"`
	System *ConfigOverrides `yaml:"system,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per scope.
type ConfigOverrides struct {
	Paths *PathsConfig `yaml:"paths,omitempty"`
	Cache *CacheConfig `yaml:"cache,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for kiln's user-scope state: the
	// SQLite store, the metadata and related-refs caches, and deployed
	// refs when no external deploy engine is configured.
	Root string `yaml:"root"`

	// SystemRoot is the base directory for kiln's system-scope state,
	// consulted by cross-scope dependency satisfaction even when the
	// active scope is ScopeUser.
	SystemRoot string `yaml:"system_root"`
}

// RemoteConfig describes one configured remote.
type RemoteConfig struct {
	// Name is the remote's short identifier, as it appears in refs
	// passed to install/update (e.g. "flathub").
	Name string `yaml:"name"`

	// URL is the remote's repository summary/objects endpoint.
	URL string `yaml:"url"`

	// Disabled excludes the remote from automatic related-ref and
	// dependency resolution without removing its configuration.
	Disabled bool `yaml:"disabled"`

	// DefaultBranch is used when an install request omits a branch.
	DefaultBranch string `yaml:"default_branch,omitempty"`
}

// CacheConfig configures the metadata and related-refs caches.
type CacheConfig struct {
	// MetadataTTL is the configured reuse period for a fetched
	// Application keyfile, expressed as a Go duration string (e.g.
	// "5m"). Default: "5m". It is loaded and overridable per scope, but
	// no kiln code reads it: cached keyfiles are not expired.
	MetadataTTL string `yaml:"metadata_ttl"`

	// RelatedRefsTTL is the configured reuse period for a remote's
	// related-refs index. Default: "1h". Like MetadataTTL, nothing reads
	// it: a cached index is reused without expiry.
	RelatedRefsTTL string `yaml:"related_refs_ttl"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "kiln")

	return &Config{
		Scope: ScopeUser,
		Paths: PathsConfig{
			Root:       defaultRoot,
			SystemRoot: "/var/lib/kiln",
		},
		Cache: CacheConfig{
			MetadataTTL:    "5m",
			RelatedRefsTTL: "1h",
		},
	}
}

// Load loads configuration from the KILN_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if KILN_CONFIG is not set, this fails.
// This ensures deterministic, auditable configuration with no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("KILN_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("KILN_CONFIG environment variable not set; " +
			"set it to the path of your kiln.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values - this ensures deterministic, auditable configuration.
// The only expansion performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply scope-specific overrides (user/system sections in the file).
	cfg.applyScopeOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return err
	}
	c.Path = path
	return nil
}

// Save writes the configuration back to the file it was loaded from
// (`kiln remote add`/`remove` use this to persist changes). It fails
// if the config was never loaded from a file.
func (c *Config) Save() error {
	if c.Path == "" {
		return fmt.Errorf("config: no file path to save to (config was not loaded from a file)")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}
	if err := os.WriteFile(c.Path, data, 0o644); err != nil {
		return fmt.Errorf("config: writing %s: %w", c.Path, err)
	}
	return nil
}

// applyScopeOverrides applies the scope-specific overrides.
func (c *Config) applyScopeOverrides() {
	var overrides *ConfigOverrides

	switch c.Scope {
	case ScopeUser:
		overrides = c.User
	case ScopeSystem:
		overrides = c.System
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.SystemRoot != "" {
			c.Paths.SystemRoot = overrides.Paths.SystemRoot
		}
	}

	if overrides.Cache != nil {
		if overrides.Cache.MetadataTTL != "" {
			c.Cache.MetadataTTL = overrides.Cache.MetadataTTL
		}
		if overrides.Cache.RelatedRefsTTL != "" {
			c.Cache.RelatedRefsTTL = overrides.Cache.RelatedRefsTTL
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"KILN_ROOT": c.Paths.Root,
		"HOME":      os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["KILN_ROOT"] = c.Paths.Root // Update for dependent paths.

	c.Paths.SystemRoot = expandVars(c.Paths.SystemRoot, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
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

	if c.Scope != ScopeUser && c.Scope != ScopeSystem {
		errs = append(errs, fmt.Errorf("invalid scope: %s", c.Scope))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}

	names := make(map[string]bool, len(c.Remotes))
	for _, remote := range c.Remotes {
		if remote.Name == "" {
			errs = append(errs, fmt.Errorf("remotes: entry with empty name"))
			continue
		}
		if names[remote.Name] {
			errs = append(errs, fmt.Errorf("remotes: duplicate name %q", remote.Name))
		}
		names[remote.Name] = true
		if remote.URL == "" {
			errs = append(errs, fmt.Errorf("remotes[%s]: url is required", remote.Name))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// RemoteByName returns the configured remote with the given name, or
// false if no remote with that name is configured.
func (c *Config) RemoteByName(name string) (RemoteConfig, bool) {
	for _, remote := range c.Remotes {
		if remote.Name == name {
			return remote, true
		}
	}
	return RemoteConfig{}, false
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{c.Paths.Root}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
