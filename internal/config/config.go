package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harun/websurfer/pkg/agent"
	"github.com/harun/websurfer/pkg/browser"
	"github.com/harun/websurfer/pkg/cache"
	"github.com/harun/websurfer/pkg/surfer"
)

// Config represents the main websurfer configuration
type Config struct {
	// Surfer
	Surfer SurferConfig `json:"surfer" mapstructure:"surfer"`

	// Planner model list
	LLM agent.LLMConfig `json:"llm" mapstructure:"llm"`

	// Summarizer model list, derived from LLM when unset
	Summarizer *agent.LLMConfig `json:"summarizer,omitempty" mapstructure:"summarizer"`

	// Browser session
	Browser browser.Config `json:"browser" mapstructure:"browser"`

	// Headless Chrome used to fetch pages
	Chrome browser.ChromeConfig `json:"chrome" mapstructure:"chrome"`

	// Search engine
	Search SearchConfig `json:"search" mapstructure:"search"`

	// Completion cache
	Cache CacheConfig `json:"cache" mapstructure:"cache"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Trace sampling
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// SurferConfig holds relay settings
type SurferConfig struct {
	Name               string   `json:"name" mapstructure:"name"`
	SystemPrompt       string   `json:"system_prompt,omitempty" mapstructure:"system_prompt"`
	SummarizerDisabled bool     `json:"summarizer_disabled" mapstructure:"summarizer_disabled"`
	PreferredModels    []string `json:"preferred_models,omitempty" mapstructure:"preferred_models"`
	TokenLimit         int      `json:"token_limit" mapstructure:"token_limit"`
	TokenHeadroom      int      `json:"token_headroom" mapstructure:"token_headroom"`
	ToolTimeout        int      `json:"tool_timeout" mapstructure:"tool_timeout"` // seconds, 0 = none
}

// SearchConfig holds SearXNG settings
type SearchConfig struct {
	SearXNGURL string `json:"searxng_url" mapstructure:"searxng_url"`
	Timeout    int    `json:"timeout" mapstructure:"timeout"` // seconds
}

// CacheConfig holds completion cache settings
type CacheConfig struct {
	Enabled  bool                `json:"enabled" mapstructure:"enabled"`
	Seed     string              `json:"seed" mapstructure:"seed"`
	RedisURL string              `json:"redis_url,omitempty" mapstructure:"redis_url"`
	PathRoot string              `json:"path_root" mapstructure:"path_root"`
	Cosmos   *cache.CosmosConfig `json:"cosmos,omitempty" mapstructure:"cosmos"`
}

// Params converts the cache settings to selector inputs
func (c CacheConfig) Params() cache.Params {
	return cache.Params{
		Seed:          c.Seed,
		RedisURL:      c.RedisURL,
		CachePathRoot: c.PathRoot,
		Cosmos:        c.Cosmos,
	}
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	AuditLog  string `json:"audit_log" mapstructure:"audit_log"`
}

// MetricsConfig holds the prometheus endpoint
type MetricsConfig struct {
	Addr string `json:"addr" mapstructure:"addr"`
}

// TracingConfig holds span sampling settings
type TracingConfig struct {
	// SampleRatio is the fraction of turns traced, from 0 to 1
	SampleRatio float64 `json:"sample_ratio" mapstructure:"sample_ratio"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Surfer: SurferConfig{
			Name:          "web_surfer",
			TokenLimit:    surfer.DefaultTokenLimit,
			TokenHeadroom: surfer.DefaultTokenHeadroom,
		},
		LLM: agent.LLMConfig{
			ConfigList: []agent.ModelConfig{
				{Provider: "openai", Model: "gpt-4o"},
				{Provider: "anthropic", Model: "claude-3-5-sonnet-latest"},
			},
			Temperature: 0,
			MaxRetries:  3,
		},
		Browser: browser.DefaultConfig(),
		Chrome:  browser.DefaultChromeConfig(),
		Search: SearchConfig{
			SearXNGURL: "http://localhost:8888",
			Timeout:    10,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Seed:     "41",
			PathRoot: cache.DefaultPathRoot,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Pretty:    true,
			Redaction: true,
		},
		Tracing: TracingConfig{
			SampleRatio: 1,
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validateLLM("llm", &c.LLM); err != nil {
		return err
	}
	if c.Summarizer != nil {
		if err := validateLLM("summarizer", c.Summarizer); err != nil {
			return err
		}
	}

	if c.Surfer.TokenLimit < 0 {
		return fmt.Errorf("surfer token_limit must be >= 0")
	}
	if c.Surfer.TokenHeadroom < 0 {
		return fmt.Errorf("surfer token_headroom must be >= 0")
	}
	if c.Surfer.TokenLimit > 0 && c.Surfer.TokenHeadroom >= c.Surfer.TokenLimit {
		return fmt.Errorf("surfer token_headroom must be below token_limit")
	}
	if c.Surfer.ToolTimeout < 0 {
		return fmt.Errorf("surfer tool_timeout must be >= 0")
	}

	if c.Browser.ViewportSize < 0 {
		return fmt.Errorf("browser viewport_size must be >= 0")
	}
	if c.Browser.MaxResults < 0 {
		return fmt.Errorf("browser max_results must be >= 0")
	}

	if c.Cache.Enabled {
		if strings.TrimSpace(c.Cache.Seed) == "" {
			return fmt.Errorf("cache seed is required when the cache is enabled")
		}
		if err := cache.ValidateSeed(c.Cache.Seed); err != nil {
			return err
		}
	}

	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample_ratio must be between 0 and 1")
	}

	return nil
}

func validateLLM(name string, cfg *agent.LLMConfig) error {
	if len(cfg.ConfigList) == 0 {
		return fmt.Errorf("%s: at least one model config is required", name)
	}

	for i, mc := range cfg.ConfigList {
		if mc.Model == "" {
			return fmt.Errorf("%s config %d: model is required", name, i)
		}
		if mc.Provider == "" {
			continue
		}
		valid := false
		for _, p := range agent.SupportedProviders() {
			if mc.Provider == p {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("%s config %d: invalid provider %s (must be: %s)",
				name, i, mc.Provider, strings.Join(agent.SupportedProviders(), ", "))
		}
	}

	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return fmt.Errorf("%s: temperature must be between 0 and 2", name)
	}
	if cfg.MaxTokens < 0 {
		return fmt.Errorf("%s: max_tokens must be >= 0", name)
	}
	if cfg.MaxRetries < 0 {
		return fmt.Errorf("%s: max_retries must be >= 0", name)
	}
	return nil
}
