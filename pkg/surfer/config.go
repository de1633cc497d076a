package surfer

import (
	"fmt"
	"strings"
	"time"

	"github.com/harun/websurfer/pkg/agent"
	"github.com/rs/zerolog"
)

const (
	// DefaultTokenLimit caps the page text handed to the summarizer
	DefaultTokenLimit = 32000
	// DefaultTokenHeadroom is reserved out of the limit for the summary itself
	DefaultTokenHeadroom = 1024
)

// DefaultPreferredModels are cheap long-context models used for summaries
var DefaultPreferredModels = []string{
	"gpt-3.5-turbo-1106",
	"gpt-3.5-turbo-16k-0613",
	"gpt-3.5-turbo-16k",
	"gpt-4o-mini",
	"claude-3-5-haiku-latest",
}

// Config configures a Surfer
type Config struct {
	Name string

	// LLM drives the planner
	LLM *agent.LLMConfig

	// Summarizer overrides the model used by the summarization tools.
	// When nil it is derived from LLM, restricted to PreferredModels.
	Summarizer         *agent.LLMConfig
	SummarizerDisabled bool
	PreferredModels    []string

	TokenLimit    int
	TokenHeadroom int

	SystemPrompt string

	// ToolTimeout bounds a single tool call when positive
	ToolTimeout time.Duration

	Cache  agent.CompletionCache
	Logger zerolog.Logger
}

// DefaultSystemPrompt is the planner instruction, dated at call time
func DefaultSystemPrompt(now time.Time) string {
	return "You are a helpful AI assistant with access to a web browser (via the provided functions). " +
		"In fact, YOU ARE THE ONLY MEMBER OF YOUR PARTY WITH ACCESS TO A WEB BROWSER, so please help out " +
		"where you can by performing web searches, navigating pages, and reporting what you find. " +
		"Though you have access to many browser functions, use at most one function per response. " +
		"Today's date is " + now.Format("2006-01-02")
}

// DefaultDescription describes the surfer to other agents
const DefaultDescription = "A helpful assistant with access to a web browser. " +
	"Ask them to perform web searches, open pages, navigate to Wikipedia, download files, etc. " +
	"Once on a desired page, ask them to answer questions by reading the page, generate summaries, " +
	"find specific words or phrases on the page (ctrl+f), or even just scroll up or down in the viewport."

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "web_surfer"
	}
	if c.PreferredModels == nil {
		c.PreferredModels = DefaultPreferredModels
	}
	if c.TokenLimit == 0 {
		c.TokenLimit = DefaultTokenLimit
	}
	if c.TokenHeadroom == 0 {
		c.TokenHeadroom = DefaultTokenHeadroom
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt(time.Now())
	}
}

// Validate checks the limits
func (c *Config) Validate() error {
	if c.TokenLimit < 0 {
		return fmt.Errorf("token limit must be positive, got %d", c.TokenLimit)
	}
	if c.TokenHeadroom < 0 {
		return fmt.Errorf("token headroom must be positive, got %d", c.TokenHeadroom)
	}
	if c.TokenLimit > 0 && c.TokenHeadroom >= c.TokenLimit {
		return fmt.Errorf("token headroom %d must be below the limit %d", c.TokenHeadroom, c.TokenLimit)
	}
	return nil
}

// SelectSummarizerConfig resolves the model config for the summarization
// tools. A nil result means those tools are not offered.
func SelectSummarizerConfig(summarizer, main *agent.LLMConfig, disabled bool, preferred []string, logger zerolog.Logger) *agent.LLMConfig {
	if disabled {
		return nil
	}
	if summarizer != nil {
		return summarizer.Clone()
	}
	if main == nil {
		return nil
	}

	out := main.Clone()
	if len(out.ConfigList) == 0 {
		return out
	}

	var matched []agent.ModelConfig
	for _, mc := range out.ConfigList {
		if containsModel(preferred, mc.Model) {
			matched = append(matched, mc)
		}
	}

	if len(matched) == 0 {
		logger.Warn().
			Strs("preferred", preferred).
			Msg("The summarizer did not find a preferred model in the config list; operations relying on summarization may be costly or ineffective")
		return out
	}

	out.ConfigList = matched
	return out
}

func containsModel(models []string, model string) bool {
	for _, m := range models {
		if strings.EqualFold(m, model) {
			return true
		}
	}
	return false
}
