// Package transcript persists conversations as JSONL files, one message per line.
//
// Keys are validated to be path-safe and writes for the same key are
// serialized. Lines that fail to parse are skipped on load.
//
// Usage:
//
//	store, _ := transcript.New("/tmp/websurfer/transcripts")
//	_ = store.Append(ctx, "research", agent.Message{Role: agent.RoleUser, Content: "hello"})
//	history, _ := store.Load(ctx, "research")
package transcript
