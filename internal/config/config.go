// Package config provides unified configuration loading for stabsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/stabsim/stabsim/internal/constants"
	"gopkg.in/yaml.v3"
)

// Config contains all stabsim configuration settings.
type Config struct {
	// Protocol contains the stabilization rule parameters.
	Protocol ProtocolConfig `json:"protocol" yaml:"protocol"`

	// Run contains settings for single stabilization runs.
	Run RunConfig `json:"run" yaml:"run"`

	// Sweep contains settings for multi-trial sweeps.
	Sweep SweepConfig `json:"sweep" yaml:"sweep"`

	// Store contains settings for the run history store.
	Store StoreConfig `json:"store" yaml:"store"`

	// Backup contains settings for run history backups.
	Backup BackupConfig `json:"backup" yaml:"backup"`

	// Logging contains settings for operational and activation logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ProtocolConfig configures the rule engine.
type ProtocolConfig struct {
	// Margin is the priority boost a leader takes over its neighborhood
	// maximum when resolving a mixed neighborhood. Must be non-negative:
	// secondary priorities never decrease, so a promotion may only land at
	// or above the neighborhood maximum.
	Margin int `json:"margin" yaml:"margin"`
}

// RunConfig configures single stabilization runs.
type RunConfig struct {
	// MaxSteps caps rule applications per run. The protocol converges only
	// probabilistically, so every run needs a budget.
	MaxSteps int `json:"max_steps" yaml:"max_steps"`
}

// SweepConfig configures multi-trial sweeps.
type SweepConfig struct {
	// Trials is the number of independent runs per sweep.
	Trials int `json:"trials" yaml:"trials"`
}

// StoreConfig configures where run history lives.
type StoreConfig struct {
	// Dir is the data directory holding the run database and activation
	// logs. Empty means ~/.stabsim, resolved at load time. Supports ${VAR}
	// expansion.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// BackupConfig configures run history backups.
type BackupConfig struct {
	// Retention bounds how many backup files accumulate. A backup is kept
	// when any configured policy keeps it.
	Retention RetentionConfig `json:"retention" yaml:"retention"`
}

// RetentionConfig holds the backup retention policies. Zero or empty
// values disable the corresponding policy.
type RetentionConfig struct {
	// MaxCount keeps the N most recent backups.
	MaxCount int `json:"max_count" yaml:"max_count"`

	// MaxAge keeps backups newer than this age, e.g. "30d" or "2w".
	MaxAge string `json:"max_age,omitempty" yaml:"max_age,omitempty"`

	// MaxTotalSize keeps the newest backups whose combined size fits this
	// bound, e.g. "100MB".
	MaxTotalSize string `json:"max_total_size,omitempty" yaml:"max_total_size,omitempty"`
}

// LoggingConfig configures stabsim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" additionally writes per-activation records to
	// .stabsim/activations.jsonl during runs.
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Protocol: ProtocolConfig{
			Margin: constants.LeaderMargin,
		},
		Run: RunConfig{
			MaxSteps: constants.DefaultMaxSteps,
		},
		Sweep: SweepConfig{
			Trials: constants.DefaultSweepTrials,
		},
		Backup: BackupConfig{
			Retention: RetentionConfig{
				MaxCount: constants.DefaultBackupKeep,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultDataDir returns the default data directory, ~/.stabsim.
func DefaultDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(homeDir, constants.DataDirName), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.stabsim/config.yaml -> environment variables.
func Load() (*Config, error) {
	config := Default()

	// Try to load from default config file
	if dataDir, err := DefaultDataDir(); err == nil {
		configPath := filepath.Join(dataDir, constants.ConfigFile)
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	// Apply environment variable overrides
	applyEnvOverrides(config)

	if config.Store.Dir == "" {
		dataDir, err := DefaultDataDir()
		if err != nil {
			return nil, err
		}
		config.Store.Dir = dataDir
	}

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Expand environment variables in the data directory
	config.Store.Dir = expandEnvVars(config.Store.Dir)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Protocol.Margin < 0 {
		return fmt.Errorf("margin must be non-negative, got %d", c.Protocol.Margin)
	}

	if c.Run.MaxSteps < 1 {
		return fmt.Errorf("max_steps must be at least 1, got %d", c.Run.MaxSteps)
	}

	if c.Sweep.Trials < 1 {
		return fmt.Errorf("trials must be at least 1, got %d", c.Sweep.Trials)
	}

	if c.Backup.Retention.MaxCount < 0 {
		return fmt.Errorf("backup max_count must be non-negative, got %d", c.Backup.Retention.MaxCount)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("STABSIM_MARGIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Protocol.Margin = n
		}
	}

	if v := os.Getenv("STABSIM_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Run.MaxSteps = n
		}
	}

	if v := os.Getenv("STABSIM_TRIALS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Sweep.Trials = n
		}
	}

	if v := os.Getenv("STABSIM_DATA_DIR"); v != "" {
		config.Store.Dir = v
	}

	if v := os.Getenv("STABSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
