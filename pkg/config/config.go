// Package config loads the TOML configuration with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/flowgrid/flowgrid/pkg/domain"
)

// Config is the full application configuration.
type Config struct {
	Home     string         `mapstructure:"home" toml:"home"`
	Database DatabaseConfig `mapstructure:"database" toml:"database"`
	Provider ProviderConfig `mapstructure:"provider" toml:"provider"`
	Agent    AgentConfig    `mapstructure:"agent" toml:"agent"`
	Tools    ToolsConfig    `mapstructure:"tools" toml:"tools"`
	Log      LogConfig      `mapstructure:"log" toml:"log"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path" toml:"path"`
}

type ProviderConfig struct {
	APIKey         string `mapstructure:"api_key" toml:"api_key"`
	BaseURL        string `mapstructure:"base_url" toml:"base_url"`
	Model          string `mapstructure:"model" toml:"model"`
	EmbeddingModel string `mapstructure:"embedding_model" toml:"embedding_model"`
}

type AgentConfig struct {
	MaxIterations int `mapstructure:"max_iterations" toml:"max_iterations"`
	TimeoutSec    int `mapstructure:"timeout_sec" toml:"timeout_sec"`
}

type ToolsConfig struct {
	CallsPerMinute int `mapstructure:"calls_per_minute" toml:"calls_per_minute"`
	BurstSize      int `mapstructure:"burst_size" toml:"burst_size"`
}

type LogConfig struct {
	Level string `mapstructure:"level" toml:"level"`
}

const configFileName = "flowgrid.toml"

// Load reads configuration from configPath, or from ./flowgrid.toml and
// ~/.flowgrid/flowgrid.toml in that order. A missing file is not an error;
// defaults and environment variables still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	home := os.Getenv("FLOWGRID_HOME")
	if home == "" {
		home = expandHomePath("~/.flowgrid")
	}

	switch {
	case configPath != "":
		abs, _ := filepath.Abs(configPath)
		v.SetConfigFile(abs)
		home = filepath.Dir(abs)
	default:
		if _, err := os.Stat(configFileName); err == nil {
			abs, _ := filepath.Abs(configFileName)
			v.SetConfigFile(abs)
		} else {
			v.SetConfigFile(filepath.Join(home, configFileName))
		}
	}

	setDefaults(v)

	v.SetEnvPrefix("FLOWGRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if configPath != "" {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		// Default locations are optional.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Home == "" {
		cfg.Home = home
	}
	cfg.Home = expandHomePath(cfg.Home)
	if !filepath.IsAbs(cfg.Database.Path) {
		cfg.Database.Path = filepath.Join(cfg.Home, cfg.Database.Path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration for unusable values.
func (c *Config) Validate() error {
	if c.Provider.Model == "" {
		return fmt.Errorf("%w: provider.model is required", domain.ErrConfigurationError)
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("%w: agent.max_iterations must be positive", domain.ErrConfigurationError)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", domain.ErrConfigurationError, c.Log.Level)
	}
	return nil
}

// Default returns the built-in configuration rooted at home.
func Default(home string) *Config {
	home = expandHomePath(home)
	return &Config{
		Home:     home,
		Database: DatabaseConfig{Path: filepath.Join(home, "flowgrid.db")},
		Provider: ProviderConfig{
			Model:          "gpt-4o-mini",
			EmbeddingModel: "text-embedding-3-small",
		},
		Agent: AgentConfig{MaxIterations: 10, TimeoutSec: 60},
		Tools: ToolsConfig{CallsPerMinute: 60, BurstSize: 10},
		Log:   LogConfig{Level: "info"},
	}
}

// WriteDefault writes the default configuration file under home and returns
// its path. An existing file is left untouched.
func WriteDefault(home string) (string, error) {
	home = expandHomePath(home)
	if err := os.MkdirAll(home, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", home, err)
	}

	path := filepath.Join(home, configFileName)
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("%w: %s already exists", domain.ErrConfigurationError, path)
	}

	data, err := toml.Marshal(Default(home))
	if err != nil {
		return "", fmt.Errorf("failed to encode default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "flowgrid.db")
	// Empty defaults keep these keys visible to AutomaticEnv.
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.model", "gpt-4o-mini")
	v.SetDefault("provider.embedding_model", "text-embedding-3-small")
	v.SetDefault("agent.max_iterations", 10)
	v.SetDefault("agent.timeout_sec", 60)
	v.SetDefault("tools.calls_per_minute", 60)
	v.SetDefault("tools.burst_size", 10)
	v.SetDefault("log.level", "info")
}

func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") || path == "~" {
		if userHome, err := os.UserHomeDir(); err == nil {
			return filepath.Join(userHome, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
