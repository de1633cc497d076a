package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harun/websurfer/internal/observability"
	"github.com/harun/websurfer/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultMaxRetries = 3

// CompletionCache memoizes model responses. cache.Cache satisfies it.
type CompletionCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Backend() string
}

// CompletionRequest is a single model call, independent of which config entry serves it
type CompletionRequest struct {
	Messages     []Message
	Tools        []ToolSpec
	SystemPrompt string
}

// Client calls models with config-list failover, retry and optional caching
type Client struct {
	config   LLMConfig
	factory  ProviderCreator
	cache    CompletionCache
	logger   zerolog.Logger
	backoff  time.Duration
	sleepFor func(ctx context.Context, d time.Duration) error
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithProviderFactory overrides how providers are built from model configs
func WithProviderFactory(f ProviderCreator) ClientOption {
	return func(c *Client) {
		c.factory = f
	}
}

// WithCache attaches a completion cache
func WithCache(cache CompletionCache) ClientOption {
	return func(c *Client) {
		c.cache = cache
	}
}

// WithLogger sets the client logger
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithBackoff sets the base retry delay. Attempt n waits base * 2^n.
func WithBackoff(base time.Duration) ClientOption {
	return func(c *Client) {
		c.backoff = base
	}
}

// NewClient creates a new model client
func NewClient(cfg LLMConfig, opts ...ClientOption) (*Client, error) {
	observability.EnsureRegistered()

	if len(cfg.ConfigList) == 0 {
		return nil, fmt.Errorf("at least one model config is required")
	}
	for i, mc := range cfg.ConfigList {
		if mc.Model == "" {
			return nil, fmt.Errorf("config_list[%d]: model cannot be empty", i)
		}
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if cfg.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries cannot be negative")
	}

	c := &Client{
		config:   *cfg.Clone(),
		factory:  &ProviderFactory{},
		logger:   zerolog.Nop(),
		backoff:  time.Second,
		sleepFor: sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns a copy of the client's configuration
func (c *Client) Config() LLMConfig {
	return *c.config.Clone()
}

// Complete runs one model call and returns the first successful response
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*LLMResponse, error) {
	ctx, span := tracing.StartSpan(
		ctx,
		"websurfer.agent",
		"agent.complete",
		attribute.Int("messages", len(req.Messages)),
		attribute.Int("tools", len(req.Tools)),
	)
	defer span.End()
	logger := tracing.LoggerFromContext(ctx, c.logger)

	key := ""
	if c.cache != nil {
		var err error
		key, err = c.cacheKey(req)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to build cache key")
		} else if resp, ok := c.lookup(ctx, key); ok {
			return resp, nil
		}
	}

	resp, err := c.executeWithFailover(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if c.cache != nil && key != "" {
		c.store(ctx, key, resp)
	}
	return resp, nil
}

// executeWithFailover walks the config list in order
func (c *Client) executeWithFailover(ctx context.Context, req CompletionRequest) (*LLMResponse, error) {
	logger := tracing.LoggerFromContext(ctx, c.logger)

	var lastErr error

	for _, mc := range c.config.ConfigList {
		start := time.Now()

		provider, err := c.factory.NewProvider(mc)
		if err != nil {
			lastErr = err
			logger.Warn().
				Str("model", mc.Model).
				Err(err).
				Msg("Failed to create provider")
			continue
		}

		resp, err := c.callWithRetry(ctx, provider, mc, req)
		observability.RecordLLMCall(provider.Provider(), time.Since(start), err == nil)
		if err == nil {
			return resp, nil
		}

		lastErr = err
		logger.Warn().
			Str("provider", provider.Provider()).
			Str("model", mc.Model).
			Err(err).
			Msg("Model config failed")

		// Don't fail over on permanent errors
		if !IsRetryableError(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("all model configs failed: %w", lastErr)
}

// callWithRetry calls one provider with exponential backoff
func (c *Client) callWithRetry(ctx context.Context, provider LLMProvider, mc ModelConfig, req CompletionRequest) (*LLMResponse, error) {
	maxRetries := c.config.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	request := LLMRequest{
		Model:        mc.Model,
		Messages:     req.Messages,
		Tools:        req.Tools,
		Temperature:  c.config.Temperature,
		MaxTokens:    c.config.MaxTokens,
		SystemPrompt: req.SystemPrompt,
	}

	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		response, err := provider.Call(ctx, request)
		if err == nil {
			return response, nil
		}

		lastErr = err

		if !IsRetryableError(err) {
			return nil, err
		}

		// Last attempt - don't wait
		if attempt == maxRetries-1 {
			break
		}

		delay := c.backoff * time.Duration(1<<attempt)
		c.logger.Info().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying after error")

		if err := c.sleepFor(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", maxRetries, lastErr)
}

func (c *Client) cacheKey(req CompletionRequest) (string, error) {
	payload := struct {
		Configs     []ModelConfig     `json:"configs"`
		Temperature float64           `json:"temperature"`
		MaxTokens   int               `json:"max_tokens"`
		Request     CompletionRequest `json:"request"`
	}{
		Configs:     c.config.ConfigList,
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
		Request:     req,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return "completion:" + hex.EncodeToString(sum[:]), nil
}

func (c *Client) lookup(ctx context.Context, key string) (*LLMResponse, bool) {
	logger := tracing.LoggerFromContext(ctx, c.logger)
	backend := c.cache.Backend()

	data, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		observability.RecordCacheLookup(backend, "error")
		logger.Warn().Err(err).Str("backend", backend).Msg("Completion cache read failed")
		return nil, false
	}
	if !ok {
		observability.RecordCacheLookup(backend, "miss")
		return nil, false
	}

	var resp LLMResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		observability.RecordCacheLookup(backend, "error")
		logger.Warn().Err(err).Str("backend", backend).Msg("Discarding corrupt cache entry")
		return nil, false
	}

	observability.RecordCacheLookup(backend, "hit")
	observability.RecordLLMCacheHit(providerName(c.config.ConfigList[0]))
	return &resp, true
}

func (c *Client) store(ctx context.Context, key string, resp *LLMResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data); err != nil {
		logger := tracing.LoggerFromContext(ctx, c.logger)
		logger.Warn().Err(err).Str("backend", c.cache.Backend()).Msg("Completion cache write failed")
	}
}

func providerName(mc ModelConfig) string {
	if mc.Provider == "" {
		return "openai"
	}
	return mc.Provider
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
