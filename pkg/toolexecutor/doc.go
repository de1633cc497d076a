// Package toolexecutor registers and executes the structured tools advertised to the planner.
//
// Invariants:
// - Tool names are unique; a duplicate registration leaves the registry unchanged.
// - Registration order is the advertised order.
// - Parameters are schema-validated before execution.
// - Execution never panics or returns a Go error: failures are classified into ToolResult.
//
// Usage:
//
//	exec := toolexecutor.New(toolexecutor.WithLogger(logger))
//	_ = exec.RegisterTool(toolexecutor.ToolDefinition{
//		Name: "echo",
//		Description: "Echo input",
//		Parameters: []toolexecutor.ToolParameter{{Name: "text", Type: "string", Description: "text", Required: true}},
//		Handler: func(ctx context.Context, params map[string]interface{}) (string, error) { return params["text"].(string), nil },
//	})
package toolexecutor
