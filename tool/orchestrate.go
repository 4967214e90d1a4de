package tool

import (
	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/engine"
	"github.com/hupe1980/runmesh/run"
)

// Names of the orchestration tools.
const (
	OrchestrateName = "orchestrate"
	ListName        = "orchestrate.list"
	KillName        = "orchestrate.kill"
	HistoryName     = "orchestrate.history"
)

// DefaultHistoryLimit is used when orchestrate.history gets no limit.
const DefaultHistoryLimit = 20

// OrchestrateArgs are the arguments of the orchestrate tool.
type OrchestrateArgs struct {
	Task       string   `json:"task" description:"Task to delegate"`
	Strategy   string   `json:"strategy,omitempty" enum:"auto,fan-out,pipeline" description:"Dispatch strategy (default auto)"`
	Agents     []string `json:"agents,omitempty" description:"Agent ids; auto uses the first usable one, fan-out and pipeline need at least two"`
	Context    string   `json:"context,omitempty" description:"Additional context appended to the task"`
	Background bool     `json:"background,omitempty" description:"Return immediately with a run id"`
	Label      string   `json:"label,omitempty" description:"Human-readable run label"`
}

// ListArgs are the arguments of orchestrate.list.
type ListArgs struct {
	Active bool `json:"active,omitempty" description:"Only pending and running runs"`
}

// KillArgs are the arguments of orchestrate.kill.
type KillArgs struct {
	Target string `json:"target" description:"Run id or prefix, label, \"last\", 1-based index, or \"all\""`
}

// HistoryArgs are the arguments of orchestrate.history.
type HistoryArgs struct {
	Limit int `json:"limit,omitempty" description:"Maximum number of archived runs (default 20)"`
}

// NewOrchestrateTools returns the orchestration tools bound to eng.
func NewOrchestrateTools(eng *engine.Engine) []Tool {
	return []Tool{
		NewOrchestrateTool(eng),
		NewListTool(eng),
		NewKillTool(eng),
		NewHistoryTool(eng),
	}
}

// NewOrchestrateTool dispatches a task to agents.
//
// A call issued from inside a run (the tool context carries a caller run id)
// creates its run one level deeper than the caller.
func NewOrchestrateTool(eng *engine.Engine) *FunctionTool {
	return NewTypedTool(OrchestrateName,
		"Delegate a task to one or more agents using the auto, fan-out or pipeline strategy.",
		func(tc *core.ToolContext, args OrchestrateArgs) (any, error) {
			kind, err := run.ParseStrategy(args.Strategy)
			if err != nil {
				return nil, core.WrapError(core.CodeValidation, err)
			}

			res, err := eng.Orchestrate(tc.Context(), engine.Request{
				Task:       args.Task,
				Strategy:   kind,
				Agents:     args.Agents,
				Context:    args.Context,
				Background: args.Background,
				Label:      args.Label,
				Depth:      RunDepth(tc),
			})
			if err != nil {
				return nil, err
			}
			return res.Value(), nil
		})
}

// NewListTool lists tracked runs.
func NewListTool(eng *engine.Engine) *FunctionTool {
	return NewTypedTool(ListName,
		"List orchestration runs with their status and a result preview.",
		func(_ *core.ToolContext, args ListArgs) (any, error) {
			runs := eng.List(args.Active)
			if len(runs) == 0 {
				if args.Active {
					return "No active runs.", nil
				}
				return "No runs.", nil
			}
			return runs, nil
		})
}

// NewKillTool kills runs.
func NewKillTool(eng *engine.Engine) *FunctionTool {
	return NewTypedTool(KillName,
		"Kill an active orchestration run, or all of them with target \"all\".",
		func(tc *core.ToolContext, args KillArgs) (any, error) {
			return eng.Kill(tc.Context(), args.Target)
		})
}

// NewHistoryTool lists archived runs.
func NewHistoryTool(eng *engine.Engine) *FunctionTool {
	return NewTypedTool(HistoryName,
		"List archived orchestration runs, newest first.",
		func(tc *core.ToolContext, args HistoryArgs) (any, error) {
			limit := args.Limit
			if limit <= 0 {
				limit = DefaultHistoryLimit
			}
			return eng.History(tc.Context(), limit)
		})
}

// RunDepth returns the depth of a run created from tc.
func RunDepth(tc *core.ToolContext) int {
	if tc.CallerRunID() != "" {
		return tc.Depth() + 1
	}
	return tc.Depth()
}
