package core

import (
	"context"
	"fmt"

	"github.com/hupe1980/runmesh/logging"
)

// ToolContext provides a constrained surface for tool implementations. It
// carries the caller's context, the orchestration depth at which the tool
// was invoked and the id of the run (if any) that issued the tool call.
//
// Depth is the depth of the calling run. Top-level callers (CLI, HTTP) carry
// no caller run id and depth 0; a tool call issued from a run at depth d
// creates runs at depth d+1.
type ToolContext struct {
	ctx            context.Context
	depth          int
	callerRunID    string
	functionCallID string

	*loggerAdapter
}

// ToolInvoker executes a tool call issued by a model during a run.
// Failures are reported in the response, never returned.
type ToolInvoker interface {
	InvokeCall(tc *ToolContext, call FunctionCall) FunctionResponse
}

// ToolContextOptions configures optional fields of a ToolContext.
type ToolContextOptions struct {
	Depth          int
	CallerRunID    string
	FunctionCallID string
	Logger         logging.Logger
}

// NewToolContext constructs a tool context bound to ctx.
func NewToolContext(ctx context.Context, optFns ...func(o *ToolContextOptions)) *ToolContext {
	opts := ToolContextOptions{
		FunctionCallID: NewID(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	return &ToolContext{
		ctx:            ctx,
		depth:          opts.Depth,
		callerRunID:    opts.CallerRunID,
		functionCallID: opts.FunctionCallID,
		loggerAdapter:  newLoggerAdapter(opts.Logger),
	}
}

// Context returns the context associated with the tool invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// Depth returns the orchestration nesting depth of the caller.
func (tc *ToolContext) Depth() int { return tc.depth }

// CallerRunID returns the id of the run that issued the tool call, if any.
func (tc *ToolContext) CallerRunID() string { return tc.callerRunID }

// FunctionCallID returns the function call ID associated with the tool invocation.
func (tc *ToolContext) FunctionCallID() string { return tc.functionCallID }

// Logger returns the logger associated with the tool invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// Child derives a tool context one level deeper, attributed to runID.
func (tc *ToolContext) Child(ctx context.Context, runID string) *ToolContext {
	return &ToolContext{
		ctx:            ctx,
		depth:          tc.depth + 1,
		callerRunID:    runID,
		functionCallID: NewID(),
		loggerAdapter:  tc.loggerAdapter,
	}
}

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc == nil || tc.ctx == nil || tc.functionCallID == "" || tc.depth < 0 {
		return fmt.Errorf("invalid ToolContext")
	}
	return nil
}
