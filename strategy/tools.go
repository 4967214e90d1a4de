package strategy

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/model"
)

const (
	// DefaultMaxToolRounds bounds the tool-call round trips of a single
	// completion.
	DefaultMaxToolRounds = 8
	// DefaultMaxParallelTools bounds concurrent tool calls of one round.
	DefaultMaxParallelTools = 4
)

// SetTools attaches the invoker that executes tool calls requested by the
// model. It must be called before the first Execute.
func (e *Executor) SetTools(t core.ToolInvoker) { e.tools = t }

// complete issues a completion call on behalf of the run described by in.
// Tool calls in the reply are executed, answered and sent back until the
// model stops asking for tools.
func (e *Executor) complete(ctx context.Context, in Input, req model.Request) (model.Response, error) {
	if e.model == nil {
		return model.Response{}, core.NewError(core.CodeNoLLM, "no completion service configured")
	}

	req.Contents = append([]core.Content{}, req.Contents...)

	for round := 0; ; round++ {
		resp, err := model.Complete(ctx, e.model, req)
		if err != nil {
			return resp, err
		}

		calls := resp.Content.FunctionCalls()
		if len(calls) == 0 || e.tools == nil || req.NoTools {
			return resp, nil
		}

		if round >= e.opts.MaxToolRounds {
			return resp, core.NewError(core.CodeOrchestrate, "tool call limit of %d rounds exceeded", e.opts.MaxToolRounds)
		}

		assistant := resp.Content
		assistant.Role = core.RoleAssistant

		req.Contents = append(req.Contents, assistant, e.invokeCalls(ctx, in, calls))
	}
}

// invokeCalls runs one round of tool calls and returns the tool-role content
// answering them. Responses keep the order of calls.
func (e *Executor) invokeCalls(ctx context.Context, in Input, calls []core.FunctionCall) core.Content {
	responses := make([]core.FunctionResponse, len(calls))

	start := time.Now()

	var g errgroup.Group
	g.SetLimit(e.opts.MaxParallelTools)

	for i, call := range calls {
		g.Go(func() error {
			responses[i] = e.invokeCall(ctx, in, call)
			return nil
		})
	}
	_ = g.Wait()

	e.opts.Logger.Debug("strategy.tools.round", "run_id", in.RunID, "calls", len(calls), "duration_ms", time.Since(start).Milliseconds())

	parts := make([]core.Part, len(responses))
	for i, r := range responses {
		parts[i] = core.FunctionResponsePart{FunctionResponse: r}
	}

	return core.Content{Role: core.RoleTool, Parts: parts}
}

func (e *Executor) invokeCall(ctx context.Context, in Input, call core.FunctionCall) (res core.FunctionResponse) {
	defer func() {
		if r := recover(); r != nil {
			e.opts.Logger.Error("strategy.tools.panic", "tool", call.Name, "panic", fmt.Sprint(r), "stack_trace", string(debug.Stack()))
			res = core.FunctionResponse{
				ID:       call.ID,
				Name:     call.Name,
				Response: fmt.Sprintf(`{"ok":false,"error":{"code":%q,"message":%q}}`, core.CodeOrchestrate, fmt.Sprintf("panic: %v", r)),
				IsError:  true,
			}
		}
	}()

	tc := core.NewToolContext(ctx, func(o *core.ToolContextOptions) {
		o.Depth = in.Depth
		o.CallerRunID = in.RunID
		if call.ID != "" {
			o.FunctionCallID = call.ID
		}
		o.Logger = e.opts.Logger
	})

	return e.tools.InvokeCall(tc, call)
}
