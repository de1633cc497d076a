package surfer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harun/websurfer/pkg/agent"
	"github.com/harun/websurfer/pkg/browser"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	mu       sync.Mutex
	respond  func(n int, req agent.CompletionRequest) (*agent.LLMResponse, error)
	requests []agent.CompletionRequest
}

func (m *fakeModel) Complete(_ context.Context, req agent.CompletionRequest) (*agent.LLMResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	return m.respond(len(m.requests)-1, req)
}

func (m *fakeModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *fakeModel) last() agent.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests[len(m.requests)-1]
}

func replyWith(content string) *fakeModel {
	return &fakeModel{respond: func(int, agent.CompletionRequest) (*agent.LLMResponse, error) {
		return &agent.LLMResponse{Content: content}, nil
	}}
}

func callTool(calls ...agent.ToolCall) *fakeModel {
	return &fakeModel{respond: func(int, agent.CompletionRequest) (*agent.LLMResponse, error) {
		return &agent.LLMResponse{ToolCalls: calls}, nil
	}}
}

type stubFetcher struct {
	pages map[string]*browser.Page
}

func (f *stubFetcher) Fetch(_ context.Context, address string) (*browser.Page, error) {
	page, ok := f.pages[address]
	if !ok {
		return nil, errors.New("404 not found")
	}
	return page, nil
}

type stubSearch struct {
	results []browser.SearchResult
}

func (s *stubSearch) Search(context.Context, string, int) ([]browser.SearchResult, error) {
	return s.results, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var testPages = map[string]*browser.Page{
	"https://example.com/":      {Title: "Example", Content: "Example body"},
	"https://example.com/other": {Title: "Other", Content: "Other body"},
	"https://go.dev":            {Title: "The Go Programming Language", Content: "Build simple, secure, scalable systems with Go"},
	"https://example.com/long":  {Title: "Long", Content: "alpha beta gamma delta epsilon zeta eta theta iota kappa "},
	"https://example.com/doc":   {Title: "Doc", Content: "line one\nline two\n"},
	"https://example.com/empty": {Title: "Empty", Content: "   \n  "},
}

func newTestSession(t *testing.T, clk *testClock, viewport int) *browser.TextBrowser {
	t.Helper()
	b, err := browser.New(context.Background(), browser.Config{ViewportSize: viewport},
		browser.WithFetcher(&stubFetcher{pages: testPages}),
		browser.WithSearchEngine(&stubSearch{results: []browser.SearchResult{
			{Title: "Go", URL: "https://go.dev", Content: "The Go language"},
			{Title: "Tour", URL: "https://go.dev/tour", Content: "A tour"},
		}}),
		browser.WithClock(clk.Now),
	)
	require.NoError(t, err)
	return b
}

func newTestSurfer(t *testing.T, session Session, clk *testClock, planner, summarizer Completer) *Surfer {
	t.Helper()
	opts := []Option{WithPlannerModel(planner), WithClock(clk.Now)}
	cfg := Config{SummarizerDisabled: summarizer == nil}
	if summarizer != nil {
		opts = append(opts, WithSummarizerModel(summarizer))
	}
	s, err := New(cfg, session, opts...)
	require.NoError(t, err)
	return s
}

func userTurn(content string) []agent.Message {
	return []agent.Message{{Role: agent.RoleUser, Content: content}}
}
