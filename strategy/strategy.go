package strategy

import (
	"context"
	"strings"

	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/logging"
	"github.com/hupe1980/runmesh/model"
	"github.com/hupe1980/runmesh/run"
)

const (
	// SpawnRoute marks an auto run that fell back to the unscoped spawn.
	SpawnRoute = "_spawn"
	// DefaultRouteMaxTokens is the output budget of the routing call.
	DefaultRouteMaxTokens = 50
)

// Input is the task handed to an executor.
type Input struct {
	Task string
	// Agents is the explicit agent id list; empty means "decide for me".
	Agents []string
	// Context is optional extra text appended to the user message.
	Context string
	// OnRouted, if set, is called once the routing decision is known with the
	// route label and the resolved agent ids.
	OnRouted func(routed string, agents []string)
	// RunID and Depth identify the run on whose behalf tool calls execute.
	RunID string
	Depth int
}

func (in Input) routed(routed string, agents []string) {
	if in.OnRouted != nil {
		in.OnRouted(routed, agents)
	}
}

// Outcome is the strategy-shaped result of a successful execution. The
// concrete types are *AutoOutcome, *FanOutOutcome and *PipelineOutcome.
type Outcome interface {
	// Strategy returns the strategy that produced the outcome.
	Strategy() run.Strategy
	// Routed returns the route label recorded on the run.
	Routed() string
	// Preview returns the text used for list previews.
	Preview() string
	// SetRun stamps the run id and duration onto the outcome.
	SetRun(runID string, durationMs int64)
}

// Options configures an Executor.
type Options struct {
	// BasePrompt is the system prompt every call starts from.
	BasePrompt string
	// RouteMaxTokens is the output budget of the auto-route LLM call.
	RouteMaxTokens int
	// MaxToolRounds bounds the tool-call round trips of one completion.
	MaxToolRounds int
	// MaxParallelTools bounds concurrent tool calls within a round.
	MaxParallelTools int
	Logger           logging.Logger
}

// Executor runs strategies against an agent catalog and a completion service.
type Executor struct {
	catalog core.Catalog
	model   model.Model
	tools   core.ToolInvoker
	opts    Options
}

// New creates an Executor.
func New(catalog core.Catalog, m model.Model, optFns ...func(o *Options)) *Executor {
	opts := Options{
		RouteMaxTokens:   DefaultRouteMaxTokens,
		MaxToolRounds:    DefaultMaxToolRounds,
		MaxParallelTools: DefaultMaxParallelTools,
		Logger:           logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.RouteMaxTokens <= 0 {
		opts.RouteMaxTokens = DefaultRouteMaxTokens
	}
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = DefaultMaxToolRounds
	}
	if opts.MaxParallelTools <= 0 {
		opts.MaxParallelTools = DefaultMaxParallelTools
	}
	return &Executor{catalog: catalog, model: m, opts: opts}
}

// Execute dispatches to the executor for kind. This is the only place the
// strategy tag is inspected.
func (e *Executor) Execute(ctx context.Context, kind run.Strategy, in Input) (Outcome, error) {
	// A nil concrete pointer must not leak out as a non-nil Outcome.
	switch kind {
	case run.StrategyAuto, "":
		out, err := e.AutoRoute(ctx, in)
		if err != nil {
			return nil, err
		}
		return out, nil
	case run.StrategyFanOut:
		out, err := e.FanOut(ctx, in)
		if err != nil {
			return nil, err
		}
		return out, nil
	case run.StrategyPipeline:
		out, err := e.Pipeline(ctx, in)
		if err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, core.NewError(core.CodeValidation, "unknown strategy %q", kind)
	}
}

// Validate checks preconditions that can be decided before a run is
// admitted: the completion service must exist and multi-agent strategies
// need at least two agents.
func (e *Executor) Validate(kind run.Strategy, in Input) error {
	if e.model == nil {
		return core.NewError(core.CodeNoLLM, "no completion service configured")
	}
	if strings.TrimSpace(in.Task) == "" {
		return core.NewError(core.CodeValidation, "task is required")
	}
	switch kind {
	case run.StrategyFanOut, run.StrategyPipeline:
		_, err := e.workingSet(kind, in.Agents)
		return err
	}
	return nil
}

// workingSet resolves the agent ids of a multi-agent strategy: the explicit
// list if given, else every enabled agent.
func (e *Executor) workingSet(kind run.Strategy, explicit []string) ([]string, error) {
	ids := explicit
	if len(ids) == 0 {
		for _, s := range e.enabled() {
			ids = append(ids, s.ID)
		}
	}
	if len(ids) < 2 {
		return nil, core.NewError(core.CodeValidation, "%s requires at least 2 agents, got %d", kind, len(ids))
	}
	return append([]string{}, ids...), nil
}

func (e *Executor) enabled() []core.AgentSpec {
	if e.catalog == nil {
		return nil
	}
	return e.catalog.Enabled()
}

// lookup returns the enabled spec for id or an ORCHESTRATE_ERROR naming why
// it is unusable.
func (e *Executor) lookup(id string) (core.AgentSpec, error) {
	if e.catalog == nil {
		return core.AgentSpec{}, core.NewError(core.CodeOrchestrate, "agent %q not found", id)
	}
	spec, ok := e.catalog.Get(id)
	if !ok {
		return core.AgentSpec{}, core.NewError(core.CodeOrchestrate, "agent %q not found", id)
	}
	if !spec.Enabled {
		return core.AgentSpec{}, core.NewError(core.CodeOrchestrate, "agent %q is disabled", id)
	}
	return spec, nil
}
