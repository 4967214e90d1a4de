// Package tool implements the function calling surface of runmesh: the
// Tool contract, a schema validated FunctionTool adapter, a name indexed
// Set, and the orchestration tools (orchestrate, orchestrate.list,
// orchestrate.kill, orchestrate.history).
//
// Tool failures never escape as Go errors from Invoke: every call yields a
// Result envelope {ok, data} or {ok: false, error: {code, message}}.
package tool

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/internal/util"
	"github.com/hupe1980/runmesh/logging"
)

// Tool defines the interface for capabilities callable by agents and
// external surfaces.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Be safe for concurrent use
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	// This description is provided to the LLM to help it understand when and how to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with structured arguments and ToolContext.
	Call(toolCtx *core.ToolContext, args map[string]any) (any, error)
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

// ErrorBody is the error part of a failed Result.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the envelope returned by Invoke.
type Result struct {
	OK    bool       `json:"ok"`
	Data  any        `json:"data,omitempty"`
	Error *ErrorBody `json:"error,omitempty"`
}

// OK wraps data in a successful Result.
func OK(data any) Result { return Result{OK: true, Data: data} }

// Fail converts err into a failed Result, keeping its code when it carries one.
func Fail(err error) Result {
	var te *ToolError
	if errors.As(err, &te) {
		return Result{Error: &ErrorBody{Code: te.Code, Message: te.Message}}
	}
	ce := core.AsError(err)
	return Result{Error: &ErrorBody{Code: string(ce.Code), Message: ce.Message}}
}

// Invoke calls t and folds the outcome into a Result. Panics inside the tool
// are recovered as ORCHESTRATE_ERROR.
func Invoke(toolCtx *core.ToolContext, t Tool, args map[string]any) (res Result) {
	if toolCtx == nil {
		toolCtx = core.NewToolContext(context.Background())
	}

	start := time.Now()
	logger := toolCtx.Logger()

	defer func() {
		if r := recover(); r != nil {
			perr := core.NewError(core.CodeOrchestrate, "tool %s panicked: %v", t.Name(), r)
			logging.Panic(logger, perr, "tool.call.panic", "tool", t.Name())
			res = Fail(perr)
		}
		var err error
		if !res.OK && res.Error != nil {
			err = errors.New(res.Error.Message)
		}
		logging.ToolCall(logger, t.Name(), time.Since(start), err)
	}()

	if args == nil {
		args = map[string]any{}
	}

	data, err := t.Call(toolCtx, args)
	if err != nil {
		return Fail(err)
	}
	return OK(data)
}
