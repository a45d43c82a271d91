package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alnah/go-mdbatch/internal/fileutil"
	"github.com/alnah/go-mdbatch/internal/hints"
	"github.com/alnah/go-mdbatch/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
)

// Config holds all configuration for batch conversion.
type Config struct {
	Input    InputConfig    `yaml:"input"`
	Output   OutputConfig   `yaml:"output"`
	Batch    BatchSettings  `yaml:"batch"`
	Convert  ConvertConfig  `yaml:"convert"`
	Recovery RecoveryConfig `yaml:"recovery"`
}

// InputConfig defines input source options.
type InputConfig struct {
	DefaultDir string `yaml:"defaultDir"` // Default input directory (empty = must specify)
	Recursive  bool   `yaml:"recursive"`
}

// OutputConfig defines output destination options.
type OutputConfig struct {
	DefaultDir   string `yaml:"defaultDir"` // Default output directory (empty = current)
	PreserveDirs bool   `yaml:"preserveDirs"`
	Format       string `yaml:"format"`  // original, with-timestamp, with-date, custom
	Pattern      string `yaml:"pattern"` // for custom format; must contain {name}
}

// BatchSettings defines worker pool options.
type BatchSettings struct {
	Workers     int  `yaml:"workers"` // 0 = auto
	StopOnError bool `yaml:"stopOnError"`
}

// ConvertConfig defines per-file conversion options.
type ConvertConfig struct {
	CSSFile          string `yaml:"cssFile"`
	PageSize         string `yaml:"pageSize"`
	CodeHighlighting bool   `yaml:"codeHighlighting"`
	Timeout          string `yaml:"timeout"`
}

// RecoveryConfig defines automated recovery options.
type RecoveryConfig struct {
	MaxRetries  int    `yaml:"maxRetries"` // 0 = library default
	RetryDelay  string `yaml:"retryDelay"` // duration string, "" = library default
	Cleanup     *bool  `yaml:"cleanup"`    // nil = enabled
	HealthCheck *bool  `yaml:"healthCheck"`
}

// DefaultConfig returns a neutral configuration.
func DefaultConfig() *Config {
	return &Config{
		Output: OutputConfig{Format: "original"},
	}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	return &cfg, nil
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, ~/.config/go-mdbatch/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	triedPaths := make([]string, 0, len(extensions)*2) // 2 locations

	for _, ext := range extensions {
		localPath := name + ext
		if fileutil.FileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, "go-mdbatch", name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %v%s", ErrConfigNotFound, triedPaths,
		hints.ForConfigNotFound(triedPaths))
}
