package strategy_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/internal/testutil"
	"github.com/hupe1980/runmesh/model"
	"github.com/hupe1980/runmesh/strategy"
)

type recordingInvoker struct {
	mu    sync.Mutex
	seen  []*core.ToolContext
	calls []core.FunctionCall
	panic bool
}

func (r *recordingInvoker) InvokeCall(tc *core.ToolContext, call core.FunctionCall) core.FunctionResponse {
	r.mu.Lock()
	r.seen = append(r.seen, tc)
	r.calls = append(r.calls, call)
	r.mu.Unlock()

	if r.panic {
		panic("tool exploded")
	}

	return core.FunctionResponse{ID: call.ID, Name: call.Name, Response: `{"ok":true,"data":"` + call.Name + ` done"}`}
}

func toolCallResponse(calls ...core.FunctionCall) model.Response {
	parts := make([]core.Part, len(calls))
	for i, c := range calls {
		parts[i] = core.FunctionCallPart{FunctionCall: c}
	}
	return model.Response{Content: core.Content{Parts: parts}, FinishReason: "tool_calls"}
}

func lastToolContent(req model.Request) (core.Content, bool) {
	if len(req.Contents) == 0 {
		return core.Content{}, false
	}
	last := req.Contents[len(req.Contents)-1]
	return last, last.Role == core.RoleTool
}

func TestToolLoop_ExecutesCallsAndFeedsResults(t *testing.T) {
	m := model.NewMockModel("m", "mock")
	m.SetHandler(func(ctx context.Context, req model.Request) (model.Response, error) {
		if last, ok := lastToolContent(req); ok {
			if len(last.Parts) != 2 {
				return model.Response{}, errors.New("expected two tool responses")
			}
			return model.TextResponse("answered after tools"), nil
		}
		return toolCallResponse(
			core.FunctionCall{ID: "c1", Name: "runs", Arguments: `{}`},
			core.FunctionCall{ID: "c2", Name: "history", Arguments: `{}`},
		), nil
	})

	inv := &recordingInvoker{}
	e := newExecutor(testutil.NewCatalog("a"), m)
	e.SetTools(inv)

	out, err := e.AutoRoute(context.Background(), strategy.Input{Task: "t", Agents: []string{"a"}, RunID: "run-1", Depth: 2})
	require.NoError(t, err)
	assert.Equal(t, "answered after tools", out.Text)

	require.Len(t, inv.seen, 2)
	for _, tc := range inv.seen {
		assert.Equal(t, "run-1", tc.CallerRunID())
		assert.Equal(t, 2, tc.Depth())
	}

	calls := m.Calls()
	require.Len(t, calls, 2)

	follow := calls[1].Contents
	require.Len(t, follow, 3)
	assert.Equal(t, core.RoleAssistant, follow[1].Role)
	assert.Len(t, follow[1].FunctionCalls(), 2)

	// Responses keep call order regardless of completion order.
	r0 := follow[2].Parts[0].(core.FunctionResponsePart).FunctionResponse
	r1 := follow[2].Parts[1].(core.FunctionResponsePart).FunctionResponse
	assert.Equal(t, "c1", r0.ID)
	assert.Equal(t, "c2", r1.ID)
	assert.Contains(t, r1.Response, "history done")
}

func TestToolLoop_RoundLimit(t *testing.T) {
	m := model.NewMockModel("m", "mock")
	m.SetHandler(func(ctx context.Context, req model.Request) (model.Response, error) {
		return toolCallResponse(core.FunctionCall{ID: "loop", Name: "runs"}), nil
	})

	e := strategy.New(testutil.NewCatalog("a"), m, func(o *strategy.Options) { o.MaxToolRounds = 2 })
	e.SetTools(&recordingInvoker{})

	_, err := e.AutoRoute(context.Background(), strategy.Input{Task: "t", Agents: []string{"a"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrOrchestrate)
	assert.Len(t, m.Calls(), 3)
}

func TestToolLoop_NoInvokerReturnsFirstReply(t *testing.T) {
	m := model.NewMockModel("m", "mock")
	m.SetHandler(func(ctx context.Context, req model.Request) (model.Response, error) {
		return toolCallResponse(core.FunctionCall{ID: "c1", Name: "runs"}), nil
	})

	e := newExecutor(testutil.NewCatalog("a"), m)

	_, err := e.AutoRoute(context.Background(), strategy.Input{Task: "t", Agents: []string{"a"}})
	require.NoError(t, err)
	assert.Len(t, m.Calls(), 1)
}

func TestToolLoop_PanickingToolBecomesErrorResponse(t *testing.T) {
	m := model.NewMockModel("m", "mock")
	m.SetHandler(func(ctx context.Context, req model.Request) (model.Response, error) {
		if last, ok := lastToolContent(req); ok {
			fr := last.Parts[0].(core.FunctionResponsePart).FunctionResponse
			if fr.IsError {
				return model.TextResponse("tool failed"), nil
			}
			return model.TextResponse("tool ok"), nil
		}
		return toolCallResponse(core.FunctionCall{ID: "c1", Name: "kill"}), nil
	})

	e := newExecutor(testutil.NewCatalog("a"), m)
	e.SetTools(&recordingInvoker{panic: true})

	out, err := e.AutoRoute(context.Background(), strategy.Input{Task: "t", Agents: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, "tool failed", out.Text)
}
