package tool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/runmesh/archive"
	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/engine"
	"github.com/hupe1980/runmesh/internal/testutil"
	"github.com/hupe1980/runmesh/model"
	"github.com/hupe1980/runmesh/run"
	"github.com/hupe1980/runmesh/strategy"
)

func toolCtx() *core.ToolContext { return core.NewToolContext(context.Background()) }

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
	sum := NewFunctionTool("sum", "Adds numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	out, err := sum.Call(toolCtx(), map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, out)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	tool := NewFunctionToolFromStruct("kill", "", KillArgs{}, func(*core.ToolContext, map[string]any) (any, error) {
		t.Fatal("must not be called")
		return nil, nil
	})

	_, err := tool.Call(toolCtx(), map[string]any{})
	require.Error(t, err)

	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "VALIDATION_ERROR", te.Code)
	assert.Equal(t, "kill", te.Tool)
}

func TestFunctionTool_ErrorCodes(t *testing.T) {
	plain := NewFunctionTool("plain", "", nil, func(*core.ToolContext, map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	_, err := plain.Call(toolCtx(), nil)
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "EXECUTION_ERROR", te.Code)

	coded := NewFunctionTool("coded", "", nil, func(*core.ToolContext, map[string]any) (any, error) {
		return nil, core.NewError(core.CodeNotActive, "run is done")
	})
	_, err = coded.Call(toolCtx(), nil)
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "NOT_ACTIVE", te.Code)
	assert.Equal(t, "run is done", te.Message)
}

func TestToolErrorFormatting(t *testing.T) {
	assert.Equal(t, "tool error [X] in t: m", NewToolError("t", "m", "X").Error())
	assert.Equal(t, "tool error in t: m", NewToolError("t", "m", "").Error())
}

func TestNewTypedTool_Decodes(t *testing.T) {
	var got OrchestrateArgs
	tool := NewTypedTool("probe", "", func(_ *core.ToolContext, args OrchestrateArgs) (any, error) {
		got = args
		return "ok", nil
	})

	res := Invoke(toolCtx(), tool, map[string]any{
		"task":       "t",
		"strategy":   "fan-out",
		"agents":     []any{"a", "b"},
		"background": true,
	})
	require.True(t, res.OK)
	assert.Equal(t, "t", got.Task)
	assert.Equal(t, "fan-out", got.Strategy)
	assert.Equal(t, []string{"a", "b"}, got.Agents)
	assert.True(t, got.Background)

	schema := tool.Parameters()
	assert.Equal(t, []string{"task"}, schema["required"])
}

// -------------------- Envelope Tests --------------------

func TestInvoke_Envelope(t *testing.T) {
	ok := NewFunctionTool("ok", "", nil, func(*core.ToolContext, map[string]any) (any, error) { return 42, nil })
	assert.Equal(t, Result{OK: true, Data: 42}, Invoke(toolCtx(), ok, nil))

	failing := NewFunctionTool("failing", "", nil, func(*core.ToolContext, map[string]any) (any, error) {
		return nil, core.NewError(core.CodeConcurrencyLimit, "full")
	})
	res := Invoke(nil, failing, nil)
	assert.False(t, res.OK)
	require.NotNil(t, res.Error)
	assert.Equal(t, "CONCURRENCY_LIMIT", res.Error.Code)
	assert.Equal(t, "full", res.Error.Message)

	panicking := NewFunctionTool("panicking", "", nil, func(*core.ToolContext, map[string]any) (any, error) { panic("oops") })
	res = Invoke(toolCtx(), panicking, nil)
	assert.False(t, res.OK)
	assert.Equal(t, "ORCHESTRATE_ERROR", res.Error.Code)
}

// -------------------- Orchestration Tool Tests --------------------

func newTools(t *testing.T, m model.Model, optFns ...func(o *engine.Options)) (*Set, *engine.Engine) {
	t.Helper()
	eng := engine.New(testutil.NewCatalog("researcher", "coder"), m, optFns...)
	return NewSet(NewOrchestrateTools(eng)...), eng
}

func TestSet(t *testing.T) {
	set, _ := newTools(t, testutil.ScriptedModel("none", nil))

	assert.Equal(t, []string{"orchestrate", "orchestrate.history", "orchestrate.kill", "orchestrate.list"}, set.Names())

	defs := set.Definitions()
	require.Len(t, defs, 4)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "orchestrate", defs[0].Function.Name)
	assert.NotEmpty(t, defs[0].Function.Parameters["properties"])

	res := set.Invoke(toolCtx(), "orchestrate.unknown", nil)
	assert.False(t, res.OK)
	assert.Equal(t, "NOT_FOUND", res.Error.Code)
}

func TestSet_InvokeCall(t *testing.T) {
	set, eng := newTools(t, testutil.ScriptedModel("none", nil))

	parent := core.NewToolContext(context.Background(), func(o *core.ToolContextOptions) {
		o.CallerRunID = "outer"
		o.Depth = 0
	})

	resp := set.InvokeCall(parent, core.FunctionCall{
		ID:        "c1",
		Name:      OrchestrateName,
		Arguments: `{"task":"t","agents":["coder"],"label":"child"}`,
	})
	assert.Equal(t, "c1", resp.ID)
	assert.False(t, resp.IsError)
	assert.Contains(t, resp.Response, `"ok":true`)

	child, ok := eng.Runs().Resolve("child")
	require.True(t, ok)
	assert.Equal(t, 1, child.Depth)

	resp = set.InvokeCall(toolCtx(), core.FunctionCall{ID: "c2", Name: OrchestrateName, Arguments: "{not json"})
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Response, "VALIDATION_ERROR")
}

func TestOrchestrate_FanOutScenario(t *testing.T) {
	m := testutil.ScriptedModel("none", map[string]testutil.AgentReply{
		"researcher": {Text: "Research output"},
		"coder":      {Text: "Code output"},
	})
	set, _ := newTools(t, m)

	res := set.Invoke(toolCtx(), OrchestrateName, map[string]any{
		"task":     "Summarize AI",
		"strategy": "fan-out",
		"agents":   []any{"researcher", "coder"},
	})
	require.True(t, res.OK, "%+v", res.Error)

	out, ok := res.Data.(*strategy.FanOutOutcome)
	require.True(t, ok)
	require.Len(t, out.Results, 2)
	assert.Equal(t, strategy.AgentResult{AgentID: "researcher", Text: "Research output", FinishReason: "stop"}, out.Results[0])
	assert.Equal(t, strategy.AgentResult{AgentID: "coder", Text: "Code output", FinishReason: "stop"}, out.Results[1])
	assert.NotEmpty(t, out.RunID)
}

func TestOrchestrate_ValidationErrors(t *testing.T) {
	set, eng := newTools(t, testutil.ScriptedModel("none", nil))

	for name, args := range map[string]map[string]any{
		"single agent fan-out":  {"task": "t", "strategy": "fan-out", "agents": []any{"researcher"}},
		"single agent pipeline": {"task": "t", "strategy": "pipeline", "agents": []any{"coder"}},
		"unknown strategy":      {"task": "t", "strategy": "round-robin"},
		"missing task":          {"strategy": "auto"},
		"wrong type":            {"task": 42},
	} {
		res := set.Invoke(toolCtx(), OrchestrateName, args)
		assert.False(t, res.OK, name)
		if assert.NotNil(t, res.Error, name) {
			assert.Equal(t, "VALIDATION_ERROR", res.Error.Code, name)
		}
	}

	assert.Equal(t, 0, eng.Runs().Len())
}

func TestOrchestrate_NoLLM(t *testing.T) {
	set, _ := newTools(t, nil)

	res := set.Invoke(toolCtx(), OrchestrateName, map[string]any{"task": "t"})
	assert.False(t, res.OK)
	assert.Equal(t, "NO_LLM", res.Error.Code)
}

func TestOrchestrate_ConcurrencyLimitScenario(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	set, _ := newTools(t, testutil.Blocking(release), func(o *engine.Options) {
		o.Config.MaxConcurrent = 2
	})

	for i := 0; i < 2; i++ {
		res := set.Invoke(toolCtx(), OrchestrateName, map[string]any{"task": "t", "background": true})
		require.True(t, res.OK)
		accepted, ok := res.Data.(*engine.Accepted)
		require.True(t, ok)
		assert.Equal(t, "accepted", accepted.Status)
	}

	res := set.Invoke(toolCtx(), OrchestrateName, map[string]any{"task": "t", "background": true})
	assert.Equal(t, Result{Error: &ErrorBody{Code: "CONCURRENCY_LIMIT", Message: res.Error.Message}}, res)
}

func TestOrchestrate_Depth(t *testing.T) {
	set, eng := newTools(t, testutil.ScriptedModel("none", nil))

	top := set.Invoke(toolCtx(), OrchestrateName, map[string]any{"task": "t", "label": "top"})
	require.True(t, top.OK)

	nested := core.NewToolContext(context.Background(), func(o *core.ToolContextOptions) {
		o.Depth = 1
		o.CallerRunID = "run-parent"
	})
	res := set.Invoke(nested, OrchestrateName, map[string]any{"task": "t", "label": "nested"})
	require.True(t, res.OK)

	rec, ok := eng.Runs().Resolve("top")
	require.True(t, ok)
	assert.Equal(t, 0, rec.Depth)

	rec, ok = eng.Runs().Resolve("nested")
	require.True(t, ok)
	assert.Equal(t, 2, rec.Depth)

	assert.Equal(t, 3, RunDepth(nested.Child(context.Background(), rec.RunID)))
}

func TestList_And_Kill(t *testing.T) {
	release := make(chan struct{})
	set, eng := newTools(t, testutil.Blocking(release))
	tc := toolCtx()

	res := set.Invoke(tc, ListName, nil)
	require.True(t, res.OK)
	assert.Equal(t, "No runs.", res.Data)

	res = set.Invoke(tc, KillName, map[string]any{"target": "all"})
	require.True(t, res.OK)
	assert.Contains(t, res.Data.(engine.KillReport).Message, "No active")

	res = set.Invoke(tc, OrchestrateName, map[string]any{"task": "slow work", "background": true, "label": "slow"})
	require.True(t, res.OK)

	res = set.Invoke(tc, ListName, map[string]any{"active": true})
	require.True(t, res.OK)
	summaries, ok := res.Data.([]run.Summary)
	require.True(t, ok)
	require.Len(t, summaries, 1)
	assert.Equal(t, "slow", summaries[0].Label)
	assert.Equal(t, "slow work", summaries[0].Task)

	res = set.Invoke(tc, KillName, map[string]any{"target": "missing"})
	assert.Equal(t, "NOT_FOUND", res.Error.Code)

	res = set.Invoke(tc, KillName, map[string]any{"target": "1"})
	require.True(t, res.OK)

	res = set.Invoke(tc, KillName, map[string]any{"target": "slow"})
	assert.Equal(t, "NOT_ACTIVE", res.Error.Code)

	res = set.Invoke(tc, ListName, map[string]any{"active": true})
	assert.Equal(t, "No active runs.", res.Data)

	close(release)
	require.NoError(t, eng.Wait(context.Background()))
}

func TestHistory(t *testing.T) {
	base := time.Now()
	var offset time.Duration
	store := archive.NewInMemoryStore(10)

	set, _ := newTools(t, testutil.ScriptedModel("coder", nil), func(o *engine.Options) {
		o.Archive = store
		o.Now = func() time.Time { return base.Add(offset) }
	})
	tc := toolCtx()

	for _, label := range []string{"a", "b", "c"} {
		res := set.Invoke(tc, OrchestrateName, map[string]any{"task": "t", "label": label})
		require.True(t, res.OK)
		offset += time.Minute
	}

	offset += 2 * time.Hour

	res := set.Invoke(tc, ListName, nil)
	assert.Equal(t, "No runs.", res.Data)

	res = set.Invoke(tc, HistoryName, map[string]any{"limit": 2})
	require.True(t, res.OK)
	history := res.Data.([]run.Summary)
	require.Len(t, history, 2)
	assert.Equal(t, "c", history[0].Label)
	assert.Equal(t, "b", history[1].Label)
}
