package toolexecutor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harun/websurfer/internal/observability"
	"github.com/harun/websurfer/pkg/agent"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/xeipuuv/gojsonschema"
)

// ToolParameter defines a parameter for a tool
type ToolParameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// ToolDefinition defines a tool's metadata and handler
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
	Handler     ToolHandler     `json:"-"`
}

// ToolHandler is the function signature for tool execution
type ToolHandler func(ctx context.Context, params map[string]interface{}) (string, error)

// ExecutionContext provides runtime information for tool execution
type ExecutionContext struct {
	TurnID string
	// Timeout bounds the handler when positive. Zero means no timeout.
	Timeout time.Duration
}

// ToolResult represents the result of a tool execution
type ToolResult struct {
	Success  bool                   `json:"success"`
	Output   string                 `json:"output,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Err      error                  `json:"-"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToolExecutor manages and executes tools
type ToolExecutor struct {
	tools   map[string]*ToolDefinition
	schemas map[string]*gojsonschema.Schema
	order   []string
	mu      sync.RWMutex
	logger  zerolog.Logger
}

// Option customizes a ToolExecutor
type Option func(*ToolExecutor)

// WithLogger sets the logger used for registration and execution events
func WithLogger(logger zerolog.Logger) Option {
	return func(te *ToolExecutor) {
		te.logger = logger
	}
}

// New creates a new ToolExecutor. It logs to the global logger unless
// WithLogger is given.
func New(opts ...Option) *ToolExecutor {
	observability.EnsureRegistered()

	te := &ToolExecutor{
		tools:   make(map[string]*ToolDefinition),
		schemas: make(map[string]*gojsonschema.Schema),
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(te)
	}
	return te
}

// RegisterTool registers a new tool. A name that is already registered
// yields *DuplicateToolError and leaves the registry unchanged.
func (te *ToolExecutor) RegisterTool(def ToolDefinition) error {
	if err := te.validateToolDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schema, err := te.generateJSONSchema(def)
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	te.mu.Lock()
	defer te.mu.Unlock()

	if _, exists := te.tools[def.Name]; exists {
		return &DuplicateToolError{Name: def.Name}
	}

	te.tools[def.Name] = &def
	te.schemas[def.Name] = schema
	te.order = append(te.order, def.Name)

	te.logger.Debug().Str("tool", def.Name).Msg("Tool registered")

	return nil
}

// GetTool returns a tool definition by name
func (te *ToolExecutor) GetTool(name string) *ToolDefinition {
	te.mu.RLock()
	defer te.mu.RUnlock()

	return te.tools[name]
}

// Resolve returns the tool definition for name or *UnknownToolError
func (te *ToolExecutor) Resolve(name string) (*ToolDefinition, error) {
	if tool := te.GetTool(name); tool != nil {
		return tool, nil
	}
	return nil, &UnknownToolError{Name: name}
}

// ListTools returns all registered tool names in registration order
func (te *ToolExecutor) ListTools() []string {
	te.mu.RLock()
	defer te.mu.RUnlock()

	return append([]string(nil), te.order...)
}

// GetToolCount returns the number of registered tools
func (te *ToolExecutor) GetToolCount() int {
	te.mu.RLock()
	defer te.mu.RUnlock()

	return len(te.tools)
}

// Definitions returns the registered tools in registration order
func (te *ToolExecutor) Definitions() []ToolDefinition {
	te.mu.RLock()
	defer te.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(te.order))
	for _, name := range te.order {
		defs = append(defs, *te.tools[name])
	}
	return defs
}

// Specs converts the registered tools into model tool advertisements
func (te *ToolExecutor) Specs() []agent.ToolSpec {
	defs := te.Definitions()
	specs := make([]agent.ToolSpec, 0, len(defs))
	for _, def := range defs {
		specs = append(specs, agent.ToolSpec{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: inputSchema(def),
		})
	}
	return specs
}

// Execute executes a tool with the given parameters
func (te *ToolExecutor) Execute(ctx context.Context, toolName string, params map[string]interface{}, execCtx *ExecutionContext) ToolResult {
	startTime := time.Now()
	if execCtx == nil {
		execCtx = &ExecutionContext{}
	}

	te.mu.RLock()
	tool := te.tools[toolName]
	schema := te.schemas[toolName]
	te.mu.RUnlock()

	if tool == nil {
		err := &UnknownToolError{Name: toolName}
		te.logger.Error().Str("tool", toolName).Msg("Tool not found")
		te.record(ctx, toolName, execCtx, startTime, err)
		return ToolResult{
			Success: false,
			Error:   err.Error(),
			Err:     err,
		}
	}

	params = stripNilParams(params)

	if err := te.validateParameters(schema, params); err != nil {
		execErr := &ToolExecutionError{Tool: toolName, Err: fmt.Errorf("parameter validation failed: %w", err)}
		te.logger.Error().Str("tool", toolName).Err(err).Msg("Parameter validation failed")
		te.record(ctx, toolName, execCtx, startTime, execErr)
		return ToolResult{
			Success: false,
			Error:   execErr.Error(),
			Err:     execErr,
		}
	}

	te.logger.Debug().Str("tool", toolName).Msg("Executing tool")

	runCtx := ContextWithExecContext(ctx, execCtx)
	cancel := func() {}
	if execCtx.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, execCtx.Timeout)
	}
	defer cancel()

	resultChan := make(chan string, 1)
	errChan := make(chan error, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				errChan <- fmt.Errorf("panic: %v", r)
			}
		}()
		result, err := tool.Handler(runCtx, params)
		if err != nil {
			errChan <- err
		} else {
			resultChan <- result
		}
	}()

	select {
	case result := <-resultChan:
		duration := time.Since(startTime)
		te.record(ctx, toolName, execCtx, startTime, nil)

		te.logger.Debug().
			Str("tool", toolName).
			Dur("duration", duration).
			Msg("Tool execution completed")

		return ToolResult{
			Success: true,
			Output:  result,
			Metadata: map[string]interface{}{
				"duration": duration.Milliseconds(),
			},
		}

	case err := <-errChan:
		duration := time.Since(startTime)
		execErr := &ToolExecutionError{Tool: toolName, Err: err}
		te.record(ctx, toolName, execCtx, startTime, execErr)

		te.logger.Error().
			Str("tool", toolName).
			Dur("duration", duration).
			Err(err).
			Msg("Tool execution failed")

		return ToolResult{
			Success: false,
			Error:   execErr.Error(),
			Err:     execErr,
			Metadata: map[string]interface{}{
				"duration": duration.Milliseconds(),
			},
		}

	case <-runCtx.Done():
		cause := runCtx.Err()
		// The handler owns shared state until it returns, so the call
		// does not finish before it does.
		cancel()
		<-done
		duration := time.Since(startTime)
		if errors.Is(cause, context.DeadlineExceeded) && execCtx.Timeout > 0 {
			cause = fmt.Errorf("tool execution timeout after %v", execCtx.Timeout)
		}
		execErr := &ToolExecutionError{Tool: toolName, Err: cause}
		te.record(ctx, toolName, execCtx, startTime, execErr)

		te.logger.Error().
			Str("tool", toolName).
			Dur("duration", duration).
			Msg("Tool execution interrupted")

		return ToolResult{
			Success: false,
			Error:   execErr.Error(),
			Err:     execErr,
			Metadata: map[string]interface{}{
				"duration": duration.Milliseconds(),
			},
		}
	}
}

func (te *ToolExecutor) record(ctx context.Context, toolName string, execCtx *ExecutionContext, start time.Time, err error) {
	observability.RecordToolExecution(toolName, time.Since(start), err == nil)

	status := "success"
	var metadata map[string]interface{}
	if err != nil {
		status = "failure"
		metadata = map[string]interface{}{"error": err.Error()}
	}
	observability.RecordToolAudit(ctx, toolName, execCtx.TurnID, status, metadata)
}

// validateToolDefinition validates a tool definition
func (te *ToolExecutor) validateToolDefinition(def ToolDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}

	seen := map[string]bool{}
	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if seen[param.Name] {
			return fmt.Errorf("duplicate parameter %s", param.Name)
		}
		seen[param.Name] = true
		if param.Type == "" {
			return fmt.Errorf("parameter type cannot be empty for %s", param.Name)
		}
		if param.Description == "" {
			return fmt.Errorf("parameter description cannot be empty for %s", param.Name)
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %s for %s", param.Type, param.Name)
		}
	}

	return nil
}

// inputSchema builds the JSON Schema object for a tool's parameters
func inputSchema(def ToolDefinition) map[string]interface{} {
	properties := make(map[string]interface{}, len(def.Parameters))
	required := []string{}

	for _, param := range def.Parameters {
		paramSchema := map[string]interface{}{
			"type":        param.Type,
			"description": param.Description,
		}

		if param.Default != nil {
			paramSchema["default"] = param.Default
		}

		properties[param.Name] = paramSchema

		if param.Required {
			required = append(required, param.Name)
		}
	}

	schemaMap := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schemaMap["required"] = required
	}
	return schemaMap
}

// generateJSONSchema compiles the validation schema for a tool
func (te *ToolExecutor) generateJSONSchema(def ToolDefinition) (*gojsonschema.Schema, error) {
	schemaMap := inputSchema(def)
	schemaMap["additionalProperties"] = false

	return gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
}

// validateParameters validates parameters against a JSON Schema
func (te *ToolExecutor) validateParameters(schema *gojsonschema.Schema, params map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}

	if !result.Valid() {
		errs := []string{}
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return fmt.Errorf("validation errors: %v", errs)
	}

	return nil
}

// stripNilParams drops explicit nulls, which models send for omitted optional arguments
func stripNilParams(params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		if v != nil {
			out[k] = v
		}
	}
	return out
}
