// Package config handles configuration loading for veriflow.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for veriflow.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Bedrock   BedrockConfig   `mapstructure:"bedrock"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Gates     GatesConfig     `mapstructure:"gates"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// BedrockConfig holds AWS Bedrock settings.
type BedrockConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region"`
	Profile string `mapstructure:"profile"`
}

// DefaultsConfig holds default values for coordination sessions.
type DefaultsConfig struct {
	MaxIterations int           `mapstructure:"max_iterations"`
	MaxRetries    int           `mapstructure:"max_retries"`
	WorkerWait    time.Duration `mapstructure:"worker_wait"`
}

// WorkspaceConfig holds filesystem layout settings.
type WorkspaceConfig struct {
	// OutputDir is the artifact output root, one subdirectory per task.
	OutputDir string `mapstructure:"output_dir"`
	// Roster is an optional agents.yaml path overriding the built-in roster.
	Roster string `mapstructure:"roster"`
	// DBPath overrides the session database location.
	DBPath string `mapstructure:"db_path"`
}

// GatesConfig holds quality gate thresholds.
type GatesConfig struct {
	QualityThreshold float64 `mapstructure:"quality_threshold"`
}

// Load loads configuration with the following precedence (highest first):
// environment variables (ANTHROPIC_API_KEY, VERIFLOW_*), project config
// (.veriflow.yaml in the current directory or a parent), user config
// (~/.config/veriflow/config.yaml), built-in defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("VERIFLOW")

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("bedrock.region", "AWS_REGION")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("bedrock.enabled", cfg.Bedrock.Enabled)
	v.Set("bedrock.region", cfg.Bedrock.Region)
	v.Set("bedrock.profile", cfg.Bedrock.Profile)
	v.Set("defaults.max_iterations", cfg.Defaults.MaxIterations)
	v.Set("defaults.max_retries", cfg.Defaults.MaxRetries)
	v.Set("defaults.worker_wait", cfg.Defaults.WorkerWait.String())
	v.Set("workspace.output_dir", cfg.Workspace.OutputDir)
	v.Set("workspace.roster", cfg.Workspace.Roster)
	v.Set("workspace.db_path", cfg.Workspace.DBPath)
	v.Set("gates.quality_threshold", cfg.Gates.QualityThreshold)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the project config file path if one exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")

	v.SetDefault("bedrock.enabled", false)
	v.SetDefault("bedrock.region", "")
	v.SetDefault("bedrock.profile", "")

	v.SetDefault("defaults.max_iterations", 10)
	v.SetDefault("defaults.max_retries", 3)
	v.SetDefault("defaults.worker_wait", "300s")

	v.SetDefault("workspace.output_dir", "out")
	v.SetDefault("workspace.roster", "")
	v.SetDefault("workspace.db_path", "")

	v.SetDefault("gates.quality_threshold", 80)
}

// getUserConfigDir returns the XDG config directory for veriflow.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "veriflow")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "veriflow")
	}
	return filepath.Join(home, ".config", "veriflow")
}

// findProjectConfig searches for .veriflow.yaml in the current directory
// and its parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".veriflow.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			MaxIterations: 10,
			MaxRetries:    3,
			WorkerWait:    300 * time.Second,
		},
		Workspace: WorkspaceConfig{
			OutputDir: "out",
		},
		Gates: GatesConfig{
			QualityThreshold: 80,
		},
	}
}
