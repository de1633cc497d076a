// Package agent is the model-call plumbing shared by the planner and the summarizer.
//
// Invariants:
// - A Client walks its ConfigList in order and stops at the first success.
// - Non-retryable provider errors abort the walk immediately.
// - When a cache is attached, identical requests are answered from it.
//
// Usage:
//
//	client, _ := agent.NewClient(agent.LLMConfig{
//		ConfigList: []agent.ModelConfig{{Provider: "openai", Model: "gpt-4o", APIKey: key}},
//	})
//	resp, _ := client.Complete(ctx, agent.CompletionRequest{
//		Messages: []agent.Message{{Role: agent.RoleUser, Content: "hello"}},
//	})
//	_ = resp
package agent
