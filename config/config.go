// Package config loads runmesh configuration from defaults, an optional
// YAML file and environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (RUNMESH_ENGINE_MAX_CONCURRENT, ANTHROPIC_API_KEY, ...)
//  2. Config file
//  3. Built-in defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RUNMESH"

// Config holds all configuration for runmesh.
type Config struct {
	Engine    EngineConfig    `mapstructure:"engine"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Agents    AgentsConfig    `mapstructure:"agents"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
}

// EngineConfig holds execution manager settings.
type EngineConfig struct {
	MaxConcurrent  int           `mapstructure:"max_concurrent"`
	Retention      time.Duration `mapstructure:"retention"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	BasePrompt     string        `mapstructure:"base_prompt"`
	RouteMaxTokens int           `mapstructure:"route_max_tokens"`
	PropagateKill  bool          `mapstructure:"propagate_kill"`
}

// PolicyConfig holds admission policy settings.
type PolicyConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	MaxDepth  int  `mapstructure:"max_depth"`
	MaxAgents int  `mapstructure:"max_agents"`
	// File optionally replaces the built-in rego module.
	File string `mapstructure:"file"`
}

// ProvidersConfig holds completion provider settings.
type ProvidersConfig struct {
	// Default names the provider used when an agent pins none.
	Default   string          `mapstructure:"default"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxTokens  int64  `mapstructure:"max_tokens"`
	Bedrock    bool   `mapstructure:"bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// Enabled reports whether the provider has credentials.
func (c AnthropicConfig) Enabled() bool { return c.APIKey != "" || c.Bedrock }

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// Enabled reports whether the provider has credentials.
func (c OpenAIConfig) Enabled() bool { return c.APIKey != "" }

// AgentsConfig locates the agent catalog file.
type AgentsConfig struct {
	File  string `mapstructure:"file"`
	Watch bool   `mapstructure:"watch"`
}

// ArchiveConfig selects the run archive backend.
type ArchiveConfig struct {
	// Driver is "memory" or "sqlite".
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Capacity int    `mapstructure:"capacity"`
}

// ServerConfig holds HTTP settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration. An empty path skips the file; a missing file
// at an explicit path is an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("providers.anthropic.api_key", EnvPrefix+"_PROVIDERS_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("providers.openai.api_key", EnvPrefix+"_PROVIDERS_OPENAI_API_KEY", "OPENAI_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Providers.Anthropic.APIKey = expandEnv(cfg.Providers.Anthropic.APIKey)
	cfg.Providers.OpenAI.APIKey = expandEnv(cfg.Providers.OpenAI.APIKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("engine.max_concurrent", 5)
	v.SetDefault("engine.retention", time.Hour)
	v.SetDefault("engine.sweep_interval", 5*time.Minute)
	v.SetDefault("engine.base_prompt", "You are a helpful assistant.")
	v.SetDefault("engine.route_max_tokens", 50)
	v.SetDefault("engine.propagate_kill", false)

	v.SetDefault("policy.enabled", false)
	v.SetDefault("policy.max_depth", 3)
	v.SetDefault("policy.max_agents", 8)
	v.SetDefault("policy.file", "")

	v.SetDefault("providers.default", "anthropic")
	v.SetDefault("providers.anthropic.api_key", "")
	v.SetDefault("providers.anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("providers.anthropic.max_tokens", 4096)
	v.SetDefault("providers.anthropic.bedrock", false)
	v.SetDefault("providers.anthropic.aws_region", "")
	v.SetDefault("providers.anthropic.aws_profile", "")
	v.SetDefault("providers.openai.api_key", "")
	v.SetDefault("providers.openai.model", "gpt-4o-mini")

	v.SetDefault("agents.file", "agents.yaml")
	v.SetDefault("agents.watch", false)

	v.SetDefault("archive.driver", "memory")
	v.SetDefault("archive.dsn", "runmesh.db")
	v.SetDefault("archive.capacity", 1000)

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error

	if c.Engine.MaxConcurrent <= 0 {
		errs = append(errs, fmt.Errorf("engine.max_concurrent must be positive, got %d", c.Engine.MaxConcurrent))
	}
	if c.Engine.Retention <= 0 {
		errs = append(errs, fmt.Errorf("engine.retention must be positive, got %s", c.Engine.Retention))
	}
	if c.Engine.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("engine.sweep_interval must be positive, got %s", c.Engine.SweepInterval))
	}

	switch c.Archive.Driver {
	case "memory", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("archive.driver must be memory or sqlite, got %q", c.Archive.Driver))
	}

	switch c.Providers.Default {
	case "anthropic", "openai":
	default:
		errs = append(errs, fmt.Errorf("providers.default must be anthropic or openai, got %q", c.Providers.Default))
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// expandEnv expands ${VAR} references.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}
