package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateEndpoint checks that raw is an absolute URL with one of the schemes
func (v *Validator) ValidateEndpoint(name, raw string, schemes ...string) error {
	if raw == "" {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s: missing host", name)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("invalid %s scheme: %s (must be one of: %s)", name, u.Scheme, strings.Join(schemes, ", "))
}

// ValidateViewportSize validates the browser viewport size
func (v *Validator) ValidateViewportSize(size int) error {
	if size <= 0 {
		return fmt.Errorf("viewport size must be positive, got %d", size)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := cfg.Validate(); err != nil {
		errors = append(errors, err)
	}

	for i, mc := range cfg.LLM.ConfigList {
		if mc.Provider == "" && mc.BaseURL != "" {
			continue
		}
		if err := v.ValidateAPIKey(mc.APIKey, providerOrDefault(mc.Provider)); err != nil {
			errors = append(errors, fmt.Errorf("llm config %d (%s): %w", i, mc.Model, err))
		}
	}

	if err := v.ValidateViewportSize(cfg.Browser.ViewportSize); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateEndpoint("search url", cfg.Search.SearXNGURL, "http", "https"); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateEndpoint("redis url", cfg.Cache.RedisURL, "redis", "rediss"); err != nil {
		errors = append(errors, err)
	}

	return errors
}

func providerOrDefault(p string) string {
	if p == "" {
		return "openai"
	}
	return p
}
