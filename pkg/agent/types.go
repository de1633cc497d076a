package agent

import (
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one role-tagged entry of a conversation
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// ToolCall represents a tool invocation
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ToolSpec is a tool as advertised to a model
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// ModelConfig is one entry of a model configuration list
type ModelConfig struct {
	Provider string `json:"provider" mapstructure:"provider"` // "openai", "anthropic"
	Model    string `json:"model" mapstructure:"model"`
	APIKey   string `json:"-" mapstructure:"api_key"`
	BaseURL  string `json:"base_url,omitempty" mapstructure:"base_url"`
}

// LLMConfig configures model calls. Entries of ConfigList are tried in order.
type LLMConfig struct {
	ConfigList  []ModelConfig `json:"config_list" mapstructure:"config_list"`
	Temperature float64       `json:"temperature,omitempty" mapstructure:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty" mapstructure:"max_tokens"`
	MaxRetries  int           `json:"max_retries,omitempty" mapstructure:"max_retries"`
}

// Clone returns a deep copy of the config
func (c *LLMConfig) Clone() *LLMConfig {
	if c == nil {
		return nil
	}
	out := *c
	out.ConfigList = append([]ModelConfig(nil), c.ConfigList...)
	return &out
}

// CloneMessages returns a copy of msgs that shares no slices with the input
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m
		if m.ToolCalls != nil {
			out[i].ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
		}
	}
	return out
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return retryableStatus(oaiErr.StatusCode)
	}
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return retryableStatus(antErr.StatusCode)
	}

	errMsg := err.Error()

	// Network errors
	if strings.Contains(errMsg, "ECONNRESET") || strings.Contains(errMsg, "ETIMEDOUT") ||
		strings.Contains(errMsg, "connection reset") {
		return true
	}

	// Rate limits
	if strings.Contains(errMsg, "429") || strings.Contains(errMsg, "rate limit") {
		return true
	}

	// Server errors
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(errMsg, code) {
			return true
		}
	}

	return false
}

func retryableStatus(code int) bool {
	return code == 429 || code >= 500
}

// EstimateTextTokens provides a rough token count for a string
func EstimateTextTokens(s string) int {
	return EstimateLengthTokens(len(s))
}

// EstimateLengthTokens estimates the tokens in n bytes of text.
// Rough estimation: 1 token ≈ 4 characters
func EstimateLengthTokens(n int) int {
	return (n + 3) / 4
}

// EstimateTokens provides a rough token count estimation
func EstimateTokens(messages []Message) int {
	totalChars := 0
	for _, msg := range messages {
		totalChars += len(msg.Content)
	}
	return (totalChars + 3) / 4
}
