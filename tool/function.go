package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentguard/core"
	"github.com/hupe1980/agentguard/internal/util"
	"github.com/hupe1980/agentguard/logging"
)

// FunctionTool exposes a plain Go function as a Tool.
//
// Arguments are validated against the parameter schema before the function
// runs. Failures are normalized into *ToolError codes:
//
//	VALIDATION_ERROR  -> schema / argument mismatch
//	EXECUTION_ERROR   -> the function returned a plain error
//	(custom codes preserved if the function returns *ToolError directly)
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args map[string]any) (string, error)
	logger      logging.Logger
}

// FunctionOptions configures a FunctionTool.
type FunctionOptions struct {
	Logger logging.Logger
}

// NewFunctionTool constructs a FunctionTool from an explicit schema and function.
//
// Example:
//
//	statusTool := NewFunctionTool(
//	  "budget_status",
//	  "Report context window usage",
//	  map[string]any{"type": "object", "properties": map[string]any{}},
//	  func(ctx context.Context, args map[string]any) (string, error) {
//	    return "42% used", nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (string, error),
	optFns ...func(o *FunctionOptions),
) *FunctionTool {
	opts := FunctionOptions{}
	for _, f := range optFns {
		f(&opts)
	}

	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
		logger:      logging.OrNoOp(opts.Logger),
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using
// util.CreateSchema.
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(ctx context.Context, args map[string]any) (string, error),
	optFns ...func(o *FunctionOptions),
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn, optFns...)
}

// Name returns the tool name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Execute validates args and invokes the wrapped function.
func (t *FunctionTool) Execute(ctx context.Context, args map[string]any) core.ToolResult {
	out, err := t.Call(ctx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return toolErr.Result()
		}
		return core.ErrorResult(err.Error())
	}

	return core.OutputResult(out)
}

// Call is Execute with Go error semantics.
//
//	*ToolError (returned directly)  -> forwarded unchanged
//	validation failure              -> *ToolError{Code: "VALIDATION_ERROR"}
//	other error                     -> *ToolError{Code: "EXECUTION_ERROR"}
func (t *FunctionTool) Call(ctx context.Context, args map[string]any) (string, error) {
	start := time.Now()

	t.logger.Debug("tool.call.start", "tool", t.name)

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		t.logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return "", &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
		}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			t.logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)

			return "", toolErr
		}

		t.logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return "", &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    CodeExecution,
		}
	}

	t.logger.Debug("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
