package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harun/websurfer/pkg/agent"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the loader
const EnvPrefix = "WEBSURFER"

// Credentials are secrets taken from the environment only
type Credentials struct {
	OpenAIAPIKey           string `envconfig:"OPENAI_API_KEY"`
	AnthropicAPIKey        string `envconfig:"ANTHROPIC_API_KEY"`
	RedisURL               string `envconfig:"REDIS_URL"`
	CosmosConnectionString string `envconfig:"COSMOS_CONNECTION_STRING"`
}

// Loader handles configuration loading
type Loader struct {
	configPath string
	envFile    string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		envFile:    ".env",
	}
}

// WithEnvFile sets the dotenv file read before the environment.
// An empty path disables it.
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// Load loads the configuration from file, then the environment
func (l *Loader) Load() (*Config, error) {
	if err := loadDotEnv(l.envFile); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	configPath := l.GetConfigPath()
	if configPath == "" {
		return nil, fmt.Errorf("failed to resolve config path")
	}

	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); err == nil {
		v := viper.New()
		v.SetConfigFile(configPath)
		if ext := strings.TrimPrefix(filepath.Ext(configPath), "."); ext == "" {
			v.SetConfigType("json")
		}

		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	var creds Credentials
	if err := envconfig.Process(EnvPrefix, &creds); err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	cfg.ApplyCredentials(creds)

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".websurfer")
	}

	return cfg, nil
}

// ApplyCredentials fills missing API keys by provider and the cache
// endpoints when the file left them empty.
func (c *Config) ApplyCredentials(creds Credentials) {
	applyKeys(c.LLM.ConfigList, creds)
	if c.Summarizer != nil {
		applyKeys(c.Summarizer.ConfigList, creds)
	}

	if c.Cache.RedisURL == "" {
		c.Cache.RedisURL = creds.RedisURL
	}
	if creds.CosmosConnectionString != "" && c.Cache.Cosmos != nil && c.Cache.Cosmos.ConnectionString == "" {
		c.Cache.Cosmos.ConnectionString = creds.CosmosConnectionString
	}
}

func applyKeys(list []agent.ModelConfig, creds Credentials) {
	for i := range list {
		if list[i].APIKey != "" {
			continue
		}
		switch list[i].Provider {
		case "anthropic":
			list[i].APIKey = creds.AnthropicAPIKey
		case "openai", "":
			list[i].APIKey = creds.OpenAIAPIKey
		}
	}
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("failed to resolve config path")
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".websurfer", "websurfer.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
