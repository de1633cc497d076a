package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/harun/websurfer/pkg/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	mu        sync.Mutex
	responses []*agent.LLMResponse
	requests  []agent.LLMRequest
}

func (p *scriptedProvider) Call(_ context.Context, req agent.LLMRequest) (*agent.LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if len(p.responses) == 0 {
		return &agent.LLMResponse{Content: "done"}, nil
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func (p *scriptedProvider) Provider() string { return "openai" }

type scriptedFactory struct {
	provider *scriptedProvider
}

func (f scriptedFactory) NewProvider(agent.ModelConfig) (agent.LLMProvider, error) {
	return f.provider, nil
}

func useProvider(t *testing.T, p *scriptedProvider) {
	t.Helper()
	prev := providerFactory
	providerFactory = scriptedFactory{provider: p}
	t.Cleanup(func() { providerFactory = prev })
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "websurfer.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func offlineConfig(t *testing.T, cacheRoot string) string {
	enabled := "false"
	if cacheRoot != "" {
		enabled = "true"
	}
	return writeConfig(t, `{
  "llm": {"config_list": [{"provider": "openai", "model": "gpt-4o-mini", "api_key": "sk-test"}]},
  "search": {"searxng_url": "http://127.0.0.1:1", "timeout": 1},
  "cache": {"enabled": `+enabled+`, "seed": "41", "path_root": "`+filepath.ToSlash(cacheRoot)+`"},
  "logging": {"level": "error"}
}`)
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := GetRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	t.Run("version flag", func(t *testing.T) {
		out, err := run(t, "", "--version")
		require.NoError(t, err)
		assert.Contains(t, out, "websurfer version")
		assert.Contains(t, out, GetVersion())
	})

	t.Run("help flag", func(t *testing.T) {
		out, err := run(t, "", "--help")
		require.NoError(t, err)
		assert.Contains(t, out, "Websurfer")
		for _, name := range []string{"ask", "chat", "tools", "cache", "configure"} {
			assert.Contains(t, out, name)
		}
	})

	t.Run("global flags", func(t *testing.T) {
		cmd := GetRootCmd()
		for _, name := range []string{"config", "log-level", "metrics-addr"} {
			flag := cmd.PersistentFlags().Lookup(name)
			require.NotNil(t, flag, name)
			assert.Equal(t, "", flag.DefValue)
		}
	})
}

func TestGetVersion(t *testing.T) {
	version := GetVersion()
	assert.NotEmpty(t, version)
	assert.True(t, strings.HasPrefix(version, "0."))
}

func TestToolsCommand(t *testing.T) {
	useProvider(t, &scriptedProvider{})
	path := offlineConfig(t, "")

	out, err := run(t, "", "tools", "--config", path)
	require.NoError(t, err)

	for _, name := range []string{
		"informational_web_search",
		"navigational_web_search",
		"visit_page",
		"download_file",
		"page_up",
		"page_down",
		"find_on_page_ctrl_f",
		"find_next",
		"read_page_and_answer",
		"summarize_page",
	} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "question?,url?")
}

func TestAskCommand(t *testing.T) {
	t.Run("direct reply", func(t *testing.T) {
		provider := &scriptedProvider{responses: []*agent.LLMResponse{{Content: "Paris."}}}
		useProvider(t, provider)
		path := offlineConfig(t, "")

		out, err := run(t, "", "ask", "--config", path, "capital", "of", "France?")
		require.NoError(t, err)
		assert.Equal(t, "Paris.\n", out)

		require.Len(t, provider.requests, 1)
		last := provider.requests[0].Messages[len(provider.requests[0].Messages)-1]
		assert.Equal(t, "capital of France?", last.Content)
	})

	t.Run("tool reply", func(t *testing.T) {
		provider := &scriptedProvider{responses: []*agent.LLMResponse{{
			ToolCalls: []agent.ToolCall{{ID: "call_1", Name: "page_down", Parameters: map[string]interface{}{}}},
		}}}
		useProvider(t, provider)
		path := offlineConfig(t, "")

		out, err := run(t, "", "ask", "--config", path, "scroll")
		require.NoError(t, err)
		assert.Contains(t, out, "about:blank")
		assert.Contains(t, out, "=======================")
	})

	t.Run("requires a prompt", func(t *testing.T) {
		_, err := run(t, "", "ask")
		require.Error(t, err)
	})
}

func TestChatCommandKeepsHistory(t *testing.T) {
	provider := &scriptedProvider{responses: []*agent.LLMResponse{
		{Content: "first answer"},
		{Content: "second answer"},
	}}
	useProvider(t, provider)
	path := offlineConfig(t, "")

	out, err := run(t, "hello\n\nagain\nexit\nignored\n", "chat", "--config", path, "--session", "")
	require.NoError(t, err)
	assert.Contains(t, out, "first answer")
	assert.Contains(t, out, "second answer")

	require.Len(t, provider.requests, 2)
	var contents []string
	for _, m := range provider.requests[1].Messages {
		contents = append(contents, m.Content)
	}
	assert.Contains(t, contents, "hello")
	assert.Contains(t, contents, "first answer")
	assert.Contains(t, contents, "again")
}

func TestCacheCommand(t *testing.T) {
	t.Run("disk fallback", func(t *testing.T) {
		root := t.TempDir()
		path := offlineConfig(t, root)

		out, err := run(t, "", "cache", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Cache: disk")
		assert.Contains(t, out, filepath.Join(root, "41"))
		assert.FileExists(t, filepath.Join(root, "41", "cache.db"))
	})

	t.Run("disabled", func(t *testing.T) {
		path := offlineConfig(t, "")

		out, err := run(t, "", "cache", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "Cache: disabled")
	})
}

func TestConfigureCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "websurfer.json")

	out, err := run(t, "", "configure", "--config", path, "--force=false")
	require.NoError(t, err)
	assert.Contains(t, out, path)
	assert.FileExists(t, path)

	_, err = run(t, "", "configure", "--config", path, "--force=false")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = run(t, "", "configure", "--config", path, "--force")
	require.NoError(t, err)
}

func TestInvalidConfigIsRejected(t *testing.T) {
	path := writeConfig(t, `{"llm": {"config_list": [{"provider": "nope", "model": "x"}]}}`)

	_, err := run(t, "", "tools", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestChatCommandResumesSession(t *testing.T) {
	provider := &scriptedProvider{responses: []*agent.LLMResponse{
		{Content: "noted"},
		{Content: "you said remember me"},
	}}
	useProvider(t, provider)

	dataDir := t.TempDir()
	path := writeConfig(t, `{
  "llm": {"config_list": [{"provider": "openai", "model": "gpt-4o-mini", "api_key": "sk-test"}]},
  "cache": {"enabled": false},
  "logging": {"level": "error"},
  "data_dir": "`+filepath.ToSlash(dataDir)+`"
}`)

	_, err := run(t, "remember me\nquit\n", "chat", "--config", path, "--session", "notes")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dataDir, "transcripts", "notes.jsonl"))

	out, err := run(t, "what did I say?\nquit\n", "chat", "--config", path, "--session", "notes")
	require.NoError(t, err)
	assert.Contains(t, out, "Resumed notes (2 messages)")

	require.Len(t, provider.requests, 2)
	var contents []string
	for _, m := range provider.requests[1].Messages {
		contents = append(contents, m.Content)
	}
	assert.Contains(t, contents, "remember me")
	assert.Contains(t, contents, "noted")

	_, err = run(t, "quit\n", "chat", "--config", path, "--session", "")
	require.NoError(t, err)
}

func TestLogLevelFlagIsValidated(t *testing.T) {
	path := offlineConfig(t, "")

	_, err := run(t, "", "cache", "--config", path, "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")

	_, err = run(t, "", "cache", "--config", path, "--log-level", "error")
	require.NoError(t, err)
}
