// Package config loads the layered configuration recognized at the core's
// boundary (spec §6): compiled-in defaults, an optional YAML file, and
// environment variable overrides via viper, matching the teacher's layered
// configuration idiom.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ToolCache holds the §6 tool_cache.* keys.
type ToolCache struct {
	Enabled           bool          `yaml:"enabled"`
	DefaultTTL        time.Duration `yaml:"default_ttl"`
	MaxCacheSize      int           `yaml:"max_cache_size"`
	CleanupThreshold  float64       `yaml:"cleanup_threshold"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
}

// LLM holds the §6 llm.* keys.
type LLM struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// DSL holds the §6 dsl.* keys.
type DSL struct {
	MaxExecutionDuration time.Duration `yaml:"max_execution_duration"`
	MaxParallelTasks     int           `yaml:"max_parallel_tasks"`
	DefaultLoopCap       int           `yaml:"default_loop_cap"`
}

// Config is the fully resolved configuration for one process.
type Config struct {
	MaxConcurrentTasks     int       `yaml:"max_concurrent_tasks"`
	MaxTokensPerMinute     int       `yaml:"max_tokens_per_minute"`
	MaxToolCallsPerMinute  int       `yaml:"max_tool_calls_per_minute"`
	ToolCache              ToolCache `yaml:"tool_cache"`
	RateLimitRequestsPerSecond float64 `yaml:"rate_limit_requests_per_second"`
	BatchSize              int       `yaml:"batch_size"`
	LLM                    LLM       `yaml:"llm"`
	DSL                    DSL       `yaml:"dsl"`
}

// Default returns the §6 default configuration.
func Default() *Config {
	return &Config{
		MaxConcurrentTasks:    5,
		MaxTokensPerMinute:    10000,
		MaxToolCallsPerMinute: 60,
		ToolCache: ToolCache{
			Enabled:          true,
			DefaultTTL:       60 * time.Second,
			MaxCacheSize:     1000,
			CleanupThreshold: 0.8,
			CleanupInterval:  30 * time.Second,
		},
		RateLimitRequestsPerSecond: 5,
		BatchSize:                  10,
		DSL: DSL{
			MaxExecutionDuration: 3600 * time.Second,
			MaxParallelTasks:     10,
			DefaultLoopCap:       100,
		},
	}
}

// Load resolves configuration by starting from Default, merging an optional
// YAML file at path (skipped when path is empty or unreadable) and finally
// applying environment variable overrides of the form AGENTCORE_<KEY>, with
// nested keys separated by underscores (e.g. AGENTCORE_TOOL_CACHE_ENABLED).
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err == nil {
			raw, err := yaml.Marshal(v.AllSettings())
			if err == nil {
				_ = yaml.Unmarshal(raw, cfg)
			}
		}
	}

	ev := viper.New()
	ev.SetEnvPrefix("AGENTCORE")
	ev.AutomaticEnv()
	ev.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	applyEnvOverrides(ev, cfg)

	return cfg, nil
}

func applyEnvOverrides(v *viper.Viper, cfg *Config) {
	if v.IsSet("max_concurrent_tasks") {
		cfg.MaxConcurrentTasks = v.GetInt("max_concurrent_tasks")
	}
	if v.IsSet("max_tokens_per_minute") {
		cfg.MaxTokensPerMinute = v.GetInt("max_tokens_per_minute")
	}
	if v.IsSet("max_tool_calls_per_minute") {
		cfg.MaxToolCallsPerMinute = v.GetInt("max_tool_calls_per_minute")
	}
	if v.IsSet("tool_cache_enabled") {
		cfg.ToolCache.Enabled = v.GetBool("tool_cache_enabled")
	}
	if v.IsSet("rate_limit_requests_per_second") {
		cfg.RateLimitRequestsPerSecond = v.GetFloat64("rate_limit_requests_per_second")
	}
	if v.IsSet("batch_size") {
		cfg.BatchSize = v.GetInt("batch_size")
	}
	if v.IsSet("llm_model") {
		cfg.LLM.Model = v.GetString("llm_model")
	}
}
