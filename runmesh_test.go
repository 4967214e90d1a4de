package runmesh

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/runmesh/archive"
	"github.com/hupe1980/runmesh/config"
	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/internal/testutil"
	"github.com/hupe1980/runmesh/logging"
	"github.com/hupe1980/runmesh/model"
	"github.com/hupe1980/runmesh/run"
	"github.com/hupe1980/runmesh/strategy"
	"github.com/hupe1980/runmesh/tool"
)

func newMesh(t *testing.T, m model.Model, optFns ...func(o *Options)) *RunMesh {
	t.Helper()
	catalog := testutil.MustCatalog(
		testutil.NewAgentSpec("researcher").Role("Finds facts").Build(),
		testutil.NewAgentSpec("coder").Role("Writes code").Build(),
	)
	rm := New(catalog, m, optFns...)
	t.Cleanup(func() { _ = rm.Close(context.Background()) })
	return rm
}

func TestNew_RegistersToolsOnMux(t *testing.T) {
	mock := testutil.ScriptedModel("none", nil)
	mux := model.NewMux(func(o *model.MuxOptions) { o.Default = "mock" })
	mux.Register("mock", mock)

	rm := newMesh(t, mux)

	assert.Equal(t, []string{tool.OrchestrateName, tool.HistoryName, tool.KillName, tool.ListName}, rm.Tools().Names())

	res := rm.Call(context.Background(), tool.OrchestrateName, map[string]any{
		"task":     "Summarize AI",
		"strategy": "fan-out",
		"agents":   []any{"researcher", "coder"},
	})
	require.True(t, res.OK, "%+v", res.Error)

	out, ok := res.Data.(*strategy.FanOutOutcome)
	require.True(t, ok)
	require.Len(t, out.Results, 2)
	assert.Equal(t, "researcher output", out.Results[0].Text)

	calls := mock.Calls()
	require.NotEmpty(t, calls)
	assert.NotEmpty(t, calls[0].Tools)

	rec, ok := rm.Runs().Get(out.RunID)
	require.True(t, ok)
	assert.Equal(t, run.StatusCompleted, rec.Status)
}

func TestCall_ModelToolCallCreatesNestedRun(t *testing.T) {
	mock := model.NewMockModel("nested", "mock")
	mock.SetHandler(func(ctx context.Context, req model.Request) (model.Response, error) {
		last := req.Contents[len(req.Contents)-1]
		if last.Role == core.RoleTool {
			fr := last.Parts[0].(core.FunctionResponsePart).FunctionResponse
			return model.TextResponse("outer saw: " + fr.Response), nil
		}
		if req.Contents[0].Text() == "outer" {
			return model.Response{
				Content: core.Content{Parts: []core.Part{core.FunctionCallPart{FunctionCall: core.FunctionCall{
					ID:        "call-1",
					Name:      tool.OrchestrateName,
					Arguments: `{"task":"inner","agents":["coder"],"label":"nested"}`,
				}}}},
				FinishReason: "tool_calls",
			}, nil
		}
		return model.TextResponse("inner done"), nil
	})

	mux := model.NewMux(func(o *model.MuxOptions) { o.Default = "mock" })
	mux.Register("mock", mock)

	rm := newMesh(t, mux)

	res := rm.Call(context.Background(), tool.OrchestrateName, map[string]any{
		"task":   "outer",
		"agents": []any{"researcher"},
	})
	require.True(t, res.OK, "%+v", res.Error)

	out, ok := res.Data.(*strategy.AutoOutcome)
	require.True(t, ok)
	assert.Contains(t, out.Text, "inner done")

	outer, ok := rm.Runs().Get(out.RunID)
	require.True(t, ok)
	assert.Equal(t, 0, outer.Depth)

	inner, ok := rm.Runs().Resolve("nested")
	require.True(t, ok)
	assert.Equal(t, 1, inner.Depth)
	assert.Equal(t, "inner", inner.Task)
	assert.Equal(t, run.StatusCompleted, inner.Status)
	assert.Len(t, rm.Runs().List(false), 2)
}

func TestUsage(t *testing.T) {
	rm := newMesh(t, testutil.ScriptedModel("none", nil))

	usage := rm.Usage()
	assert.Contains(t, usage, "- researcher: Finds facts")
	assert.Contains(t, usage, "- coder: Writes code")
}

func TestCall_NoLLM(t *testing.T) {
	rm := newMesh(t, nil)

	res := rm.Call(context.Background(), tool.OrchestrateName, map[string]any{"task": "hi"})
	require.False(t, res.OK)
	assert.Equal(t, "NO_LLM", res.Error.Code)
}

func TestStartAndClose(t *testing.T) {
	store := archive.NewInMemoryStore(10)
	rm := New(testutil.NewCatalog("researcher"), testutil.ScriptedModel("researcher", nil), func(o *Options) {
		o.Archive = store
		o.EngineConfig.SweepInterval = 10 * time.Millisecond
	})

	ctx, cancel := context.WithCancel(context.Background())
	rm.Start(ctx)

	res := rm.Call(ctx, tool.OrchestrateName, map[string]any{"task": "hi", "background": true})
	require.True(t, res.OK, "%+v", res.Error)

	cancel()
	require.NoError(t, rm.Close(context.Background()))
	assert.Equal(t, 0, rm.Runs().ActiveCount())
}

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	agents := filepath.Join(dir, "agents.yaml")
	require.NoError(t, os.WriteFile(agents, []byte(`agents:
  - id: researcher
    role: Finds facts
`), 0o600))

	cfg := config.Default()
	cfg.Agents.File = agents
	cfg.Archive.Driver = "sqlite"
	cfg.Archive.DSN = filepath.Join(dir, "runs.db")
	cfg.Policy.Enabled = true
	cfg.Providers.Anthropic = config.AnthropicConfig{}
	cfg.Providers.OpenAI = config.OpenAIConfig{}

	rm, err := FromConfig(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rm.Close(context.Background()) })

	assert.Contains(t, rm.Usage(), "- researcher: Finds facts")

	res := rm.Call(context.Background(), tool.OrchestrateName, map[string]any{"task": "hi"})
	require.False(t, res.OK)
	assert.Equal(t, "NO_LLM", res.Error.Code)

	history, err := rm.Engine().History(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestFromConfig_MissingAgentsFile(t *testing.T) {
	cfg := config.Default()
	cfg.Agents.File = filepath.Join(t.TempDir(), "missing.yaml")
	cfg.Providers.Anthropic = config.AnthropicConfig{}
	cfg.Providers.OpenAI = config.OpenAIConfig{}

	rm, err := FromConfig(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rm.Close(context.Background()) })

	assert.Empty(t, rm.Usage())
}

func TestNewPolicy_Disabled(t *testing.T) {
	pol, err := NewPolicy(context.Background(), config.PolicyConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, pol)
}

func TestNewProviders_None(t *testing.T) {
	m, err := NewProviders(config.ProvidersConfig{Default: "anthropic"}, logging.NoOpLogger{})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestNewProviders_OpenAI(t *testing.T) {
	m, err := NewProviders(config.ProvidersConfig{
		Default: "openai",
		OpenAI:  config.OpenAIConfig{APIKey: "sk-test"},
	}, logging.NoOpLogger{})
	require.NoError(t, err)

	mux, ok := m.(*model.Mux)
	require.True(t, ok)
	assert.Equal(t, []string{"openai"}, mux.Providers())
}
