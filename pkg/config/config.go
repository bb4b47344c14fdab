// Package config provides configuration loading and management for dicomblocks.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"dicomblocks/pkg/grouping"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumWorkers is the number of candidate blocks sorted concurrently
		NumWorkers int `yaml:"numWorkers"`
	} `yaml:"processing"`

	// Grouping parameters
	Grouping struct {
		// Condense merges repeated volumes into 3D+time blocks
		Condense bool `yaml:"condense"`

		// OnlyCondenseSameSeries restricts condensation to one series
		OnlyCondenseSameSeries bool `yaml:"onlyCondenseSameSeries"`
	} `yaml:"grouping"`

	// Sorting tolerances in mm
	Sorting struct {
		DistanceTolerance float64 `yaml:"distanceTolerance"`
		TiltTolerance     float64 `yaml:"tiltTolerance"`
		SpacingTolerance  float64 `yaml:"spacingTolerance"`
	} `yaml:"sorting"`

	// Output parameters
	Output struct {
		// Verbose enables debug logging
		Verbose bool `yaml:"verbose"`

		// LogFile additionally receives JSON log records when set
		LogFile string `yaml:"logFile"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumWorkers = runtime.NumCPU()

	cfg.Grouping.Condense = true
	cfg.Grouping.OnlyCondenseSameSeries = true

	opts := grouping.DefaultOptions()
	cfg.Sorting.DistanceTolerance = opts.DistanceTolerance
	cfg.Sorting.TiltTolerance = opts.TiltTolerance
	cfg.Sorting.SpacingTolerance = opts.SpacingTolerance

	cfg.Output.Verbose = false

	return cfg
}

// SortOptions returns the sorting tolerances as grouping options
func (c *Config) SortOptions() grouping.Options {
	return grouping.Options{
		DistanceTolerance: c.Sorting.DistanceTolerance,
		TiltTolerance:     c.Sorting.TiltTolerance,
		SpacingTolerance:  c.Sorting.SpacingTolerance,
	}
}

// Validate reports settings that cannot work
func (c *Config) Validate() error {
	if c.Processing.NumWorkers < 1 {
		return fmt.Errorf("numWorkers must be at least 1, got %d", c.Processing.NumWorkers)
	}
	for name, v := range map[string]float64{
		"distanceTolerance": c.Sorting.DistanceTolerance,
		"tiltTolerance":     c.Sorting.TiltTolerance,
		"spacingTolerance":  c.Sorting.SpacingTolerance,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %g", name, v)
		}
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
