package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a YAML configuration file on top of the environment.
// Providers from the file replace env providers with the same name and are
// appended otherwise; non-zero file settings override env settings.
func LoadFile(filePath string) (*Config, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if filePath == "" {
		return cfg, nil
	}

	bytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", filePath, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(bytes, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", filePath, err)
	}

	merge(cfg, &file)
	return cfg, nil
}

// fileConfig mirrors Config with optional booleans so an omitted key keeps
// the env default.
type fileConfig struct {
	Providers       []ProviderConfig `yaml:"providers"`
	DefaultProvider string           `yaml:"defaultProvider"`
	Migration       struct {
		BatchSize             int   `yaml:"batchSize"`
		ContinueOnError       *bool `yaml:"continueOnError"`
		BackupBeforeMigration *bool `yaml:"backupBeforeMigration"`
		Workers               int   `yaml:"workers"`
	} `yaml:"migration"`
	LogLevel  string `yaml:"logLevel"`
	LogFile   string `yaml:"logFile"`
	ReportDir string `yaml:"reportDir"`
}

func merge(dst *Config, src *fileConfig) {
	for _, p := range src.Providers {
		replaced := false
		for i := range dst.Providers {
			if dst.Providers[i].Name == p.Name {
				dst.Providers[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			dst.Providers = append(dst.Providers, p)
		}
	}

	if src.DefaultProvider != "" {
		dst.DefaultProvider = src.DefaultProvider
	}
	if src.Migration.BatchSize != 0 {
		dst.Migration.BatchSize = src.Migration.BatchSize
	}
	if src.Migration.Workers != 0 {
		dst.Migration.Workers = src.Migration.Workers
	}
	if src.Migration.ContinueOnError != nil {
		dst.Migration.ContinueOnError = *src.Migration.ContinueOnError
	}
	if src.Migration.BackupBeforeMigration != nil {
		dst.Migration.BackupBeforeMigration = *src.Migration.BackupBeforeMigration
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogFile != "" {
		dst.LogFile = src.LogFile
	}
	if src.ReportDir != "" {
		dst.ReportDir = src.ReportDir
	}
}
