// Package tool implements the host-side tool surface: the Tool interface
// extensions implement, a typed ToolError, a FunctionTool adapter for plain
// Go functions and a Registry that mounts tools by name and executes them.
//
// Tools never return Go errors across the host boundary. Every outcome,
// including validation failures and panics, is reported as a core.ToolResult.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentguard/core"
	"github.com/hupe1980/agentguard/internal/util"
)

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeNotFound   = "NOT_FOUND"
)

// Tool is a named capability the model can invoke with structured input.
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string

	// Description returns a human-readable description shown to the model.
	Description() string

	// Parameters returns a JSON schema describing the expected input.
	Parameters() map[string]any

	// Execute runs the tool. Failures are reported in the result, never panicked.
	Execute(ctx context.Context, input map[string]any) core.ToolResult
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Result converts the error into a tool result carrying its message.
func (e *ToolError) Result() core.ToolResult {
	return core.ErrorResult(e.Message)
}
