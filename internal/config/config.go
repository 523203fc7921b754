// Package config handles loading of application settings from the
// environment, an optional YAML file and per-table schema rule files.
package config

import (
	"errors"
	"fmt"

	"github.com/BartekS5/docshift/pkg/models"
)

// Dialects of the sql provider kind.
const (
	DialectSQLite    = "sqlite"
	DialectSQLServer = "sqlserver"
)

// Default migration settings.
const (
	DefaultBatchSize     = 100
	DefaultWorkers       = 1
	DefaultMongoDatabase = "docshift"
)

// ProviderConfig describes one named backend.
type ProviderConfig struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	DSN      string `yaml:"dsn"`
	Database string `yaml:"database,omitempty"`
	// Dialect selects sqlite or sqlserver for the sql kind.
	Dialect string `yaml:"dialect,omitempty"`
	// CacheSize bounds the memory kind; 0 is unbounded.
	CacheSize       int     `yaml:"cacheSize,omitempty"`
	WritesPerSecond float64 `yaml:"writesPerSecond,omitempty"`
}

// MigrationDefaults seed every plan built from the CLI.
type MigrationDefaults struct {
	BatchSize             int  `yaml:"batchSize"`
	ContinueOnError       bool `yaml:"continueOnError"`
	BackupBeforeMigration bool `yaml:"backupBeforeMigration"`
	Workers               int  `yaml:"workers"`
}

// Config holds all configuration for the application.
type Config struct {
	Providers       []ProviderConfig  `yaml:"providers"`
	DefaultProvider string            `yaml:"defaultProvider,omitempty"`
	Migration       MigrationDefaults `yaml:"migration"`
	LogLevel        string            `yaml:"logLevel,omitempty"`
	LogFile         string            `yaml:"logFile,omitempty"`
	ReportDir       string            `yaml:"reportDir,omitempty"`
}

// New returns a configuration with defaults and no providers.
func New() *Config {
	return &Config{
		Migration: MigrationDefaults{
			BatchSize:       DefaultBatchSize,
			ContinueOnError: true,
			Workers:         DefaultWorkers,
		},
		LogLevel:  "info",
		ReportDir: "reports",
	}
}

// Provider returns the named provider configuration.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

// DefaultProviderName returns the explicit default, else the first configured
// provider. An empty string means no backend is configured.
func (c *Config) DefaultProviderName() string {
	if c.DefaultProvider != "" {
		return c.DefaultProvider
	}
	if len(c.Providers) > 0 {
		return c.Providers[0].Name
	}
	return ""
}

// Verify rejects configurations that cannot be used to build a registry.
func (c *Config) Verify() error {
	var errs []error
	seen := make(map[string]bool)

	for i, p := range c.Providers {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("provider #%d has no name", i+1))
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Errorf("duplicate provider name %q", p.Name))
		}
		seen[p.Name] = true

		kind, err := models.ParseKind(p.Kind)
		if err != nil {
			errs = append(errs, fmt.Errorf("provider %q: %w", p.Name, err))
			continue
		}
		switch kind {
		case models.KindMongo, models.KindSQL:
			if p.DSN == "" {
				errs = append(errs, fmt.Errorf("provider %q: dsn is required", p.Name))
			}
		}
		if kind == models.KindSQL && p.Dialect != DialectSQLite && p.Dialect != DialectSQLServer {
			errs = append(errs, fmt.Errorf("provider %q: unknown sql dialect %q", p.Name, p.Dialect))
		}
		if p.WritesPerSecond < 0 {
			errs = append(errs, fmt.Errorf("provider %q: writesPerSecond must not be negative", p.Name))
		}
	}

	if c.DefaultProvider != "" && !seen[c.DefaultProvider] {
		errs = append(errs, fmt.Errorf("default provider %q is not configured", c.DefaultProvider))
	}
	if c.Migration.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("batch size must be positive, got %d", c.Migration.BatchSize))
	}
	if c.Migration.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Migration.Workers))
	}

	return errors.Join(errs...)
}
