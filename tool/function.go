package tool

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/internal/util"
)

// FunctionTool exposes a plain Go function as a tool.
//
// Arguments are validated against the parameter schema before the function
// runs. Errors are normalized to *ToolError:
//
//	*ToolError returned by fn   -> forwarded unchanged
//	*core.Error returned by fn  -> code preserved
//	validation failure          -> VALIDATION_ERROR
//	other error                 -> EXECUTION_ERROR
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(toolCtx *core.ToolContext, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using reflection.
//
// Example:
//
//	type KillArgs struct {
//	  Target string `json:"target" description:"Run to kill"`
//	}
//
//	killTool := NewFunctionToolFromStruct("kill", "Kill a run", KillArgs{}, fn)
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(toolCtx *core.ToolContext, args map[string]any) (any, error),
) *FunctionTool {
	schema := util.CreateSchema(structType)
	return NewFunctionTool(name, description, schema, fn)
}

// NewTypedTool derives the schema from A and decodes validated arguments
// into an A before calling fn.
func NewTypedTool[A any](
	name, description string,
	fn func(toolCtx *core.ToolContext, args A) (any, error),
) *FunctionTool {
	var zero A
	return NewFunctionToolFromStruct(name, description, zero, func(tc *core.ToolContext, raw map[string]any) (any, error) {
		var args A
		if err := Decode(raw, &args); err != nil {
			return nil, &ToolError{
				Tool:    name,
				Message: err.Error(),
				Code:    string(core.CodeValidation),
			}
		}
		return fn(tc, args)
	})
}

// Decode copies a JSON-shaped argument map into out using its json tags.
func Decode(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// Name returns the unique tool name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the natural language description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call validates args against the schema, then invokes the function.
//
// Logging Fields:
//
//	tool: tool name
//	fc_id: function call identifier
//	duration_ms: execution time in milliseconds
func (t *FunctionTool) Call(toolCtx *core.ToolContext, args map[string]any) (any, error) {
	logger := toolCtx.Logger()
	start := time.Now()

	logger.Debug("tool.call.start", "tool", t.name, "fc_id", toolCtx.FunctionCallID())

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		logger.Warn("tool.call.validation_failed", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    string(core.CodeValidation),
			Details: err,
		}
	}

	result, err := t.fn(toolCtx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			logger.Error("tool.call.error", "tool", t.name, "error", toolErr.Message)
			return nil, toolErr
		}

		var coreErr *core.Error
		if errors.As(err, &coreErr) {
			logger.Warn("tool.call.error", "tool", t.name, "code", string(coreErr.Code), "error", coreErr.Message)
			return nil, &ToolError{
				Tool:    t.name,
				Message: coreErr.Message,
				Code:    string(coreErr.Code),
			}
		}

		logger.Error("tool.call.error", "tool", t.name, "error", err.Error())

		return nil, &ToolError{
			Tool:    t.name,
			Message: err.Error(),
			Code:    "EXECUTION_ERROR",
		}
	}

	logger.Info("tool.call.success", "tool", t.name, "duration_ms", time.Since(start).Milliseconds())

	return result, nil
}
