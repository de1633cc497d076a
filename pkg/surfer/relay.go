package surfer

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/websurfer/internal/tracing"
	"github.com/harun/websurfer/pkg/agent"
	"github.com/harun/websurfer/pkg/toolexecutor"
	"github.com/rs/zerolog"
)

// planned is the planner's answer to one dispatched message.
// A nil msg means the model produced no reply.
type planned struct {
	msg *agent.Message
	err error
}

// executed is the executor's reply. isDefault marks the empty reply
// given when the planner requested no tool.
type executed struct {
	msg       *agent.Message
	isDefault bool
}

// planner decides, with one model call, whether to answer or call a tool
type planner struct {
	model        Completer
	tools        []agent.ToolSpec
	systemPrompt string
}

// run seeds the planner's view with history, waits for one dispatched
// message and answers it on out.
func (p *planner) run(ctx context.Context, history []agent.Message, in <-chan agent.Message, out chan<- planned) {
	var msg agent.Message
	select {
	case msg = <-in:
	case <-ctx.Done():
		out <- planned{err: ctx.Err()}
		return
	}

	resp, err := p.model.Complete(ctx, agent.CompletionRequest{
		Messages:     append(history, msg),
		Tools:        p.tools,
		SystemPrompt: p.systemPrompt,
	})
	if err != nil {
		out <- planned{err: fmt.Errorf("planner model call failed: %w", err)}
		return
	}
	if resp == nil {
		out <- planned{}
		return
	}

	out <- planned{msg: &agent.Message{
		Role:      agent.RoleAssistant,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	}}
}

// executor runs the first tool call of a planner message. It never asks
// for input and keeps no state between turns.
type executor struct {
	tools   *toolexecutor.ToolExecutor
	timeout time.Duration
	logger  zerolog.Logger
}

func (e *executor) run(ctx context.Context, turnID string, msg *agent.Message, out chan<- executed) {
	if msg == nil || len(msg.ToolCalls) == 0 {
		out <- executed{isDefault: true}
		return
	}

	logger := tracing.LoggerFromContext(ctx, e.logger)
	call := msg.ToolCalls[0]
	if len(msg.ToolCalls) > 1 {
		ignored := make([]string, 0, len(msg.ToolCalls)-1)
		for _, extra := range msg.ToolCalls[1:] {
			ignored = append(ignored, extra.Name)
		}
		logger.Warn().
			Str("executed", call.Name).
			Strs("ignored", ignored).
			Msg("Planner requested several tools, only the first runs")
	}

	result := e.tools.Execute(ctx, call.Name, call.Parameters, &toolexecutor.ExecutionContext{
		TurnID:  turnID,
		Timeout: e.timeout,
	})

	reply := &agent.Message{
		Role:       agent.RoleTool,
		Name:       call.Name,
		ToolCallID: call.ID,
		Content:    result.Output,
	}
	if !result.Success {
		reply.Error = result.Error
		reply.Content = "Error: " + result.Error
		logger.Warn().Str("tool", call.Name).Str("error", result.Error).Msg("Tool call failed")
	}
	out <- executed{msg: reply}
}
