package surfer

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/harun/websurfer/pkg/agent"
	"github.com/harun/websurfer/pkg/browser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoToolTurnReturnsPlannerContent(t *testing.T) {
	clk := newTestClock()
	planner := replyWith("Paris is the capital of France.")
	s := newTestSurfer(t, newTestSession(t, clk, 0), clk, planner, nil)

	reply, err := s.GenerateReply(context.Background(), userTurn("What is the capital of France?"))
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, "Paris is the capital of France.", reply.Content)
	assert.Equal(t, agent.RoleAssistant, reply.Role)
	assert.Empty(t, reply.Error)
}

func TestPlannerSeesHistoryReminderAndLastMessage(t *testing.T) {
	clk := newTestClock()
	planner := replyWith("ok")
	s := newTestSurfer(t, newTestSession(t, clk, 0), clk, planner, nil)

	messages := []agent.Message{
		{Role: agent.RoleUser, Content: "hi"},
		{Role: agent.RoleAssistant, Content: "hello"},
		{Role: agent.RoleUser, Content: "search for go"},
	}
	_, err := s.GenerateReply(context.Background(), messages)
	require.NoError(t, err)

	req := planner.last()
	require.Len(t, req.Messages, 4)
	assert.Equal(t, messages[0], req.Messages[0])
	assert.Equal(t, messages[1], req.Messages[1])
	assert.Equal(t, agent.Message{
		Role:    agent.RoleUser,
		Content: "Your browser is currently open to the page '' at the address 'about:blank'.",
	}, req.Messages[2])
	assert.Equal(t, agent.Message{Role: agent.RoleUser, Content: "search for go"}, req.Messages[3])
	assert.Len(t, req.Tools, 8)
	assert.NotEmpty(t, req.SystemPrompt)
}

func TestGenerateReplyDoesNotMutateInput(t *testing.T) {
	clk := newTestClock()
	s := newTestSurfer(t, newTestSession(t, clk, 0), clk, replyWith("ok"), nil)

	messages := make([]agent.Message, 2, 8)
	messages[0] = agent.Message{Role: agent.RoleUser, Content: "first"}
	messages[1] = agent.Message{Role: agent.RoleUser, Content: "second"}
	spare := messages[:cap(messages)]

	_, err := s.GenerateReply(context.Background(), messages)
	require.NoError(t, err)

	assert.Equal(t, "first", messages[0].Content)
	assert.Equal(t, "second", messages[1].Content)
	assert.Empty(t, spare[2].Content, "backing array beyond len is untouched")
}

func TestToolTurnReturnsFormattedReply(t *testing.T) {
	clk := newTestClock()
	planner := callTool(agent.ToolCall{ID: "call_1", Name: ToolVisitPage, Parameters: map[string]interface{}{"url": "https://example.com/"}})
	s := newTestSurfer(t, newTestSession(t, clk, 0), clk, planner, nil)

	reply, err := s.GenerateReply(context.Background(), userTurn("open example.com"))
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t,
		"Address: https://example.com/\n"+
			"Title: Example\n"+
			"Viewport position: Showing page 1 of 1.\n"+
			"=======================\n"+
			"Example body",
		reply.Content)
}

func TestToolTurnViewportLineTracksSession(t *testing.T) {
	clk := newTestClock()
	session := newTestSession(t, clk, 12)
	require.NoError(t, session.VisitPage(context.Background(), "https://example.com/long"))
	total := session.PageCount()
	require.Greater(t, total, 2)

	s := newTestSurfer(t, session, clk, callTool(agent.ToolCall{Name: ToolPageDown}), nil)

	reply, err := s.GenerateReply(context.Background(), userTurn("scroll down"))
	require.NoError(t, err)
	assert.Contains(t, reply.Content, "Viewport position: Showing page 2 of "+strconv.Itoa(total)+".")
	assert.Equal(t, 1, session.CurrentPage())
	assert.Contains(t, reply.Content, "=======================\n"+session.Viewport())
}

func TestOnlyFirstToolCallRuns(t *testing.T) {
	clk := newTestClock()
	session := newTestSession(t, clk, 0)
	planner := callTool(
		agent.ToolCall{ID: "a", Name: ToolVisitPage, Parameters: map[string]interface{}{"url": "https://example.com/"}},
		agent.ToolCall{ID: "b", Name: ToolVisitPage, Parameters: map[string]interface{}{"url": "https://example.com/other"}},
	)
	s := newTestSurfer(t, session, clk, planner, nil)

	reply, err := s.GenerateReply(context.Background(), userTurn("open both"))
	require.NoError(t, err)
	assert.Contains(t, reply.Content, "Address: https://example.com/\n")
	assert.Equal(t, "https://example.com/", session.Address())
	for _, v := range session.History() {
		assert.NotEqual(t, "https://example.com/other", v.Address)
	}
}

func TestUnknownToolBecomesErrorContent(t *testing.T) {
	clk := newTestClock()
	s := newTestSurfer(t, newTestSession(t, clk, 0), clk, callTool(agent.ToolCall{Name: "launch_rocket"}), nil)

	reply, err := s.GenerateReply(context.Background(), userTurn("go"))
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Equal(t, "Error: tool not found: launch_rocket", reply.Content)
	assert.Equal(t, "tool not found: launch_rocket", reply.Error)
}

func TestToolFailureIsSurfacedNotReturned(t *testing.T) {
	clk := newTestClock()
	planner := callTool(agent.ToolCall{Name: ToolVisitPage, Parameters: map[string]interface{}{"url": "https://missing.example.com/"}})
	s := newTestSurfer(t, newTestSession(t, clk, 0), clk, planner, nil)

	reply, err := s.GenerateReply(context.Background(), userTurn("open it"))
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Contains(t, reply.Content, "Error: tool visit_page failed")
	assert.Contains(t, reply.Content, "404 not found")
	assert.NotEmpty(t, reply.Error)
}

func TestToolParameterValidation(t *testing.T) {
	clk := newTestClock()
	s := newTestSurfer(t, newTestSession(t, clk, 0), clk, callTool(agent.ToolCall{Name: ToolVisitPage}), nil)

	reply, err := s.GenerateReply(context.Background(), userTurn("open"))
	require.NoError(t, err)
	assert.Contains(t, reply.Content, "parameter validation failed")
}

func TestNilPlannerResponseGivesNilReply(t *testing.T) {
	clk := newTestClock()
	planner := &fakeModel{respond: func(int, agent.CompletionRequest) (*agent.LLMResponse, error) {
		return nil, nil
	}}
	s := newTestSurfer(t, newTestSession(t, clk, 0), clk, planner, nil)

	reply, err := s.GenerateReply(context.Background(), userTurn("anything"))
	require.NoError(t, err)
	assert.Nil(t, reply)
}

func TestPlannerErrorIsReturned(t *testing.T) {
	clk := newTestClock()
	planner := &fakeModel{respond: func(int, agent.CompletionRequest) (*agent.LLMResponse, error) {
		return nil, errors.New("rate limited")
	}}
	s := newTestSurfer(t, newTestSession(t, clk, 0), clk, planner, nil)

	reply, err := s.GenerateReply(context.Background(), userTurn("anything"))
	require.Error(t, err)
	assert.Nil(t, reply)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestGenerateReplyRequiresMessage(t *testing.T) {
	clk := newTestClock()
	s := newTestSurfer(t, newTestSession(t, clk, 0), clk, replyWith("ok"), nil)

	_, err := s.GenerateReply(context.Background(), nil)
	assert.Error(t, err)
}

func TestTurnsDoNotShareState(t *testing.T) {
	clk := newTestClock()
	planner := replyWith("ok")
	s := newTestSurfer(t, newTestSession(t, clk, 0), clk, planner, nil)

	_, err := s.GenerateReply(context.Background(), []agent.Message{
		{Role: agent.RoleUser, Content: "one"},
		{Role: agent.RoleUser, Content: "two"},
	})
	require.NoError(t, err)
	_, err = s.GenerateReply(context.Background(), userTurn("three"))
	require.NoError(t, err)

	req := planner.last()
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "three", req.Messages[1].Content)
}

func TestConcurrentTurnsAreSerialized(t *testing.T) {
	clk := newTestClock()
	var active, maxActive int
	var mu sync.Mutex
	planner := &fakeModel{respond: func(int, agent.CompletionRequest) (*agent.LLMResponse, error) {
		return &agent.LLMResponse{Content: "ok"}, nil
	}}
	s := newTestSurfer(t, newTestSession(t, clk, 0), clk, planner, nil)
	s.planner.model = CompleterFunc(func(ctx context.Context, req agent.CompletionRequest) (*agent.LLMResponse, error) {
		mu.Lock()
		active++
		if active > maxActive {
			maxActive = active
		}
		mu.Unlock()

		resp, err := planner.Complete(ctx, req)

		mu.Lock()
		active--
		mu.Unlock()
		return resp, err
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.GenerateReply(context.Background(), userTurn("hi"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 8, planner.calls())
	assert.Equal(t, 1, maxActive)
}

func TestNewRequiresSessionAndModel(t *testing.T) {
	_, err := New(Config{}, nil, WithPlannerModel(replyWith("x")))
	assert.Error(t, err)

	clk := newTestClock()
	_, err = New(Config{}, newTestSession(t, clk, 0))
	assert.Error(t, err)
}

func TestNewBuildsClientsFromConfig(t *testing.T) {
	clk := newTestClock()
	s, err := New(Config{
		LLM: &agent.LLMConfig{ConfigList: []agent.ModelConfig{{Provider: "openai", Model: "gpt-4o-mini", APIKey: "sk-test"}}},
	}, newTestSession(t, clk, 0))
	require.NoError(t, err)
	assert.Len(t, s.Tools(), 10)
	assert.Equal(t, "web_surfer", s.Name())
}

func TestNewRejectsBadTokenBudget(t *testing.T) {
	clk := newTestClock()
	_, err := New(Config{TokenLimit: 100, TokenHeadroom: 200}, newTestSession(t, clk, 0), WithPlannerModel(replyWith("x")))
	assert.Error(t, err)
}

// slowSession ignores cancellation while navigating
type slowSession struct {
	*browser.TextBrowser
	delay time.Duration
}

func (s *slowSession) VisitPage(ctx context.Context, addr string) error {
	time.Sleep(s.delay)
	return s.TextBrowser.VisitPage(context.Background(), addr)
}

func TestToolTimeoutDoesNotOutliveTurn(t *testing.T) {
	clk := newTestClock()
	session := &slowSession{TextBrowser: newTestSession(t, clk, 0), delay: 200 * time.Millisecond}
	planner := callTool(agent.ToolCall{
		ID:         "call_1",
		Name:       ToolVisitPage,
		Parameters: map[string]interface{}{"url": "https://example.com/"},
	})

	s, err := New(Config{SummarizerDisabled: true, ToolTimeout: 50 * time.Millisecond}, session,
		WithPlannerModel(planner), WithClock(clk.Now))
	require.NoError(t, err)

	reply, err := s.GenerateReply(context.Background(), userTurn("open example"))
	require.NoError(t, err)
	require.NotNil(t, reply)
	assert.Contains(t, reply.Content, "tool execution timeout after 50ms")

	addrAtReturn := session.Address()
	visitsAtReturn := len(session.History())

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, addrAtReturn, session.Address())
	assert.Len(t, session.History(), visitsAtReturn)
}
