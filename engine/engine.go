package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/runmesh/archive"
	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/logging"
	"github.com/hupe1980/runmesh/model"
	"github.com/hupe1980/runmesh/policy"
	"github.com/hupe1980/runmesh/run"
	"github.com/hupe1980/runmesh/strategy"
)

// Config defines tuning parameters for the Engine.
type Config struct {
	// MaxConcurrent limits the number of pending or running runs. Admission
	// fails with CONCURRENCY_LIMIT once reached.
	MaxConcurrent int

	// Retention is how long terminal runs stay addressable before a sweep
	// moves them to the archive.
	Retention time.Duration

	// SweepInterval is the period of the background sweeper started by Start.
	SweepInterval time.Duration

	// BasePrompt is the system prompt every completion starts from.
	BasePrompt string

	// RouteMaxTokens is the output budget of the auto-route LLM call.
	RouteMaxTokens int

	// PropagateKill makes Kill cancel the context of the in-flight
	// completion call. When false, kill only updates bookkeeping.
	PropagateKill bool
}

// DefaultConfig provides the default configuration values.
var DefaultConfig = Config{
	MaxConcurrent:  run.DefaultMaxConcurrent,
	Retention:      run.DefaultRetention,
	SweepInterval:  5 * time.Minute,
	RouteMaxTokens: strategy.DefaultRouteMaxTokens,
}

// Admitter decides whether a run may be admitted. *policy.Engine satisfies it.
type Admitter interface {
	Admit(ctx context.Context, in policy.Input) error
}

// Options configures an Engine instance using the functional options pattern.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Bus receives lifecycle events. Defaults to a no-op bus.
	Bus core.EventBus

	// Archive receives runs evicted by a sweep. Optional.
	Archive archive.Store

	// Policy is consulted before the concurrency check. Optional.
	Policy Admitter

	// Callbacks holds lifecycle hooks. Defaults to an empty manager.
	Callbacks *CallbackManager

	// Now overrides the registry clock (tests).
	Now func() time.Time

	// Logger provides structured logging. Defaults to NoOp.
	Logger logging.Logger
}

// Request describes one orchestrate call.
type Request struct {
	Task       string
	Strategy   run.Strategy
	Agents     []string
	Context    string
	Background bool
	Label      string
	// Depth is the nesting level of the run; callers outside any run use 0.
	Depth int
}

// Accepted is returned for background runs.
type Accepted struct {
	Status string `json:"status"`
	RunID  string `json:"runId"`
	Label  string `json:"label"`
}

// Result is the outcome of Orchestrate. Exactly one of Accepted (background)
// and Outcome (blocking) is set.
type Result struct {
	Run      run.Record
	Accepted *Accepted
	Outcome  strategy.Outcome
}

// Value returns the caller-facing payload.
func (r Result) Value() any {
	if r.Accepted != nil {
		return r.Accepted
	}
	return r.Outcome
}

// KillReport describes the effect of Kill.
type KillReport struct {
	Message string        `json:"message"`
	Killed  []run.Summary `json:"killed"`
}

// Engine is the execution manager: it admits runs, drives them through
// their lifecycle on the registry, and publishes lifecycle events. The
// registry is written only from here.
//
// Concurrency Model:
//   - Admission check and record creation happen atomically in the registry
//   - Background runs execute on their own goroutine, tracked for Wait
//   - Kill is advisory unless Config.PropagateKill is set
type Engine struct {
	runs      *run.Registry
	executor  *strategy.Executor
	catalog   core.Catalog
	bus       core.EventBus
	archive   archive.Store
	policy    Admitter
	callbacks *CallbackManager
	logger    logging.Logger
	config    Config

	wg sync.WaitGroup
}

// New creates an Engine dispatching to catalog agents through m.
//
// A nil m is accepted: every orchestrate call then fails with NO_LLM.
func New(catalog core.Catalog, m model.Model, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:    DefaultConfig,
		Bus:       core.NoOpBus{},
		Callbacks: NewCallbackManager(),
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Bus == nil {
		opts.Bus = core.NoOpBus{}
	}
	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}
	if opts.Config.SweepInterval <= 0 {
		opts.Config.SweepInterval = DefaultConfig.SweepInterval
	}

	e := &Engine{
		catalog:   catalog,
		bus:       opts.Bus,
		archive:   opts.Archive,
		policy:    opts.Policy,
		callbacks: opts.Callbacks,
		logger:    opts.Logger,
		config:    opts.Config,
	}

	e.runs = run.New(func(o *run.Options) {
		o.MaxConcurrent = opts.Config.MaxConcurrent
		o.Retention = opts.Config.Retention
		o.Now = opts.Now
		o.OnEvict = e.evicted
	})

	e.executor = strategy.New(catalog, m, func(o *strategy.Options) {
		o.BasePrompt = opts.Config.BasePrompt
		o.RouteMaxTokens = opts.Config.RouteMaxTokens
		o.Logger = opts.Logger
	})

	return e
}

// SetTools attaches the tool set executed when a model requests tool calls
// during a run.
func (e *Engine) SetTools(t core.ToolInvoker) { e.executor.SetTools(t) }

// Runs returns the run registry so other components can inspect runs.
func (e *Engine) Runs() *run.Registry { return e.runs }

// Callbacks returns the lifecycle callback manager.
func (e *Engine) Callbacks() *CallbackManager { return e.callbacks }

// Orchestrate validates req, admits a run and executes it. Blocking
// requests return the strategy outcome; background requests return an
// Accepted receipt immediately and record the outcome on the run.
//
// Errors are *core.Error values carrying VALIDATION_ERROR, NO_LLM,
// POLICY_DENIED, CONCURRENCY_LIMIT or ORCHESTRATE_ERROR.
func (e *Engine) Orchestrate(ctx context.Context, req Request) (Result, error) {
	kind := req.Strategy
	if kind == "" {
		kind = run.StrategyAuto
	}

	in := strategy.Input{
		Task:    req.Task,
		Agents:  req.Agents,
		Context: req.Context,
	}

	if err := e.executor.Validate(kind, in); err != nil {
		return Result{}, core.AsError(err)
	}

	if e.policy != nil {
		if err := e.policy.Admit(ctx, policy.Input{
			TaskLength: len(req.Task),
			Strategy:   string(kind),
			Agents:     req.Agents,
			Depth:      req.Depth,
			Background: req.Background,
		}); err != nil {
			return Result{}, core.AsError(err)
		}
	}

	rec, err := e.runs.Admit(run.Spec{
		Task:       req.Task,
		Label:      req.Label,
		Strategy:   kind,
		Agents:     req.Agents,
		Background: req.Background,
		Depth:      req.Depth,
	})
	if err != nil {
		e.logger.Warn("engine.run.rejected", "strategy", string(kind), "error", err.Error())
		return Result{}, core.AsError(err)
	}

	in.RunID, in.Depth = rec.RunID, rec.Depth

	e.logger.Info("engine.run.spawned",
		"run_id", rec.RunID,
		"label", rec.Label,
		"strategy", string(kind),
		"background", rec.Background,
		"depth", rec.Depth,
	)
	e.publish(core.EventSpawned, rec.RunID, map[string]any{
		"label":      rec.Label,
		"background": rec.Background,
	})

	if req.Background {
		runCtx, cancel := e.runContext(context.WithoutCancel(ctx), rec.RunID)

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			defer cancel()
			_, _ = e.execute(runCtx, rec, kind, in)
		}()

		return Result{
			Run: rec,
			Accepted: &Accepted{
				Status: "accepted",
				RunID:  rec.RunID,
				Label:  rec.Label,
			},
		}, nil
	}

	runCtx, cancel := e.runContext(ctx, rec.RunID)
	defer cancel()

	outcome, err := e.execute(runCtx, rec, kind, in)
	if err != nil {
		return Result{}, err
	}

	final, _ := e.runs.Get(rec.RunID)

	return Result{Run: final, Outcome: outcome}, nil
}

// runContext derives the context the strategy runs under. With kill
// propagation the cancel function is attached to the run.
func (e *Engine) runContext(parent context.Context, runID string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	if e.config.PropagateKill {
		e.runs.Attach(runID, cancel)
	}
	return ctx, cancel
}

// execute drives rec from pending to a terminal status.
func (e *Engine) execute(ctx context.Context, rec run.Record, kind run.Strategy, in strategy.Input) (outcome strategy.Outcome, err error) {
	runID := rec.RunID
	logger := e.runLogger(runID)

	defer e.runs.Finish(runID)

	defer func() {
		if r := recover(); r != nil {
			cerr := core.NewError(core.CodeOrchestrate, "panic: %v", r)
			outcome, err = nil, cerr
			logging.Panic(logger, cerr, "engine.run.panic")
			e.fail(ctx, runID, cerr)
		}
	}()

	running, err := e.runs.MarkRunning(runID)
	if err != nil {
		return nil, core.NewError(core.CodeOrchestrate, "run %s was killed before it started", runID)
	}

	if cbErr := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeRun, &CallbackContext{Run: running}); cbErr != nil {
		cerr := core.AsError(cbErr)
		e.fail(ctx, runID, cerr)
		return nil, cerr
	}

	in.OnRouted = func(routed string, agents []string) {
		e.runs.SetRouted(runID, routed, agents)
		logger.Debug("engine.run.routed", "routed", routed, "agents", agents)
		e.publish(core.EventRouted, runID, map[string]any{"routed": routed})
	}

	start := time.Now()
	outcome, err = e.executor.Execute(ctx, kind, in)
	dur := time.Since(start)

	logging.StrategyExecution(logger, string(kind), agentCount(kind, in, outcome), dur, err)

	if err != nil {
		cerr := core.AsError(err)
		e.fail(ctx, runID, cerr)
		return nil, cerr
	}

	outcome.SetRun(runID, dur.Milliseconds())

	done, cerr := e.runs.Complete(runID, run.Completion{
		Result:  outcome,
		Routed:  outcome.Routed(),
		Preview: outcome.Preview(),
	})
	if cerr != nil {
		logger.Info("engine.run.discarded", "status", string(done.Status))
		return nil, core.NewError(core.CodeOrchestrate, "run %s was %s before it completed", runID, done.Status)
	}

	e.publish(core.EventCompleted, runID, map[string]any{
		"status":     string(done.Status),
		"durationMs": done.DurationMs,
	})

	e.afterCallback(ctx, CallbackAfterRun, &CallbackContext{Run: done, Outcome: outcome})

	return outcome, nil
}

// fail records err on the run and publishes the terminal event.
func (e *Engine) fail(ctx context.Context, runID string, err *core.Error) {
	rec, ferr := e.runs.Fail(runID, err.Message)
	if ferr != nil {
		// Already terminal, typically killed.
		return
	}

	e.runLogger(runID).Warn("engine.run.failed", "code", string(err.Code), "error", err.Message)

	e.publish(core.EventCompleted, runID, map[string]any{
		"status":     string(rec.Status),
		"durationMs": rec.DurationMs,
	})

	e.afterCallback(ctx, CallbackOnError, &CallbackContext{Run: rec, Err: err})
}

func (e *Engine) afterCallback(ctx context.Context, t CallbackType, cc *CallbackContext) {
	if err := e.callbacks.ExecuteCallbacks(ctx, t, cc); err != nil {
		e.logger.Warn("engine.callback.failed", "callback", string(t), "run_id", cc.Run.RunID, "error", err.Error())
	}
}

// List sweeps the registry and returns run summaries in insertion order.
// activeOnly restricts the result to pending and running runs.
func (e *Engine) List(activeOnly bool) []run.Summary {
	e.Sweep()

	recs := e.runs.List(activeOnly)
	out := make([]run.Summary, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Summary())
	}
	return out
}

// Kill marks the run addressed by target killed. target is anything
// Registry.Resolve accepts, or "all" for every active run.
func (e *Engine) Kill(ctx context.Context, target string) (KillReport, error) {
	e.Sweep()

	target = strings.TrimSpace(target)
	if target == "" {
		return KillReport{}, core.NewError(core.CodeValidation, "target is required")
	}

	if target == "all" {
		active := e.runs.List(true)
		report := KillReport{Killed: []run.Summary{}}
		for _, r := range active {
			if killed, ok := e.kill(ctx, r.RunID); ok {
				report.Killed = append(report.Killed, killed.Summary())
			}
		}
		if len(report.Killed) == 0 {
			report.Message = "No active runs to kill"
		} else {
			report.Message = fmt.Sprintf("Killed %d run(s)", len(report.Killed))
		}
		return report, nil
	}

	rec, ok := e.runs.Resolve(target)
	if !ok {
		return KillReport{}, core.NewError(core.CodeNotFound, "no run matches %q", target)
	}
	if !rec.Status.IsActive() {
		return KillReport{}, core.NewError(core.CodeNotActive, "run %s (%s) is %s", rec.RunID, rec.Label, rec.Status)
	}

	killed, ok := e.kill(ctx, rec.RunID)
	if !ok {
		return KillReport{}, core.NewError(core.CodeNotActive, "run %s (%s) is no longer active", rec.RunID, rec.Label)
	}

	return KillReport{
		Message: fmt.Sprintf("Killed run %s (%s)", killed.RunID, killed.Label),
		Killed:  []run.Summary{killed.Summary()},
	}, nil
}

func (e *Engine) kill(ctx context.Context, runID string) (run.Record, bool) {
	rec, err := e.runs.Kill(runID)
	if err != nil {
		return run.Record{}, false
	}

	if e.config.PropagateKill {
		e.runs.Cancel(runID)
	}

	e.runLogger(runID).Info("engine.run.killed", "label", rec.Label, "propagated", e.config.PropagateKill)
	e.publish(core.EventKilled, runID, map[string]any{"label": rec.Label})
	e.afterCallback(ctx, CallbackOnKill, &CallbackContext{Run: rec})

	return rec, true
}

// Sweep evicts stale terminal runs into the archive and returns the count.
func (e *Engine) Sweep() int {
	n := e.runs.Sweep()
	if n > 0 {
		e.logger.Debug("engine.sweep", "evicted", n)
	}
	return n
}

func (e *Engine) evicted(recs []run.Record) {
	if e.archive == nil {
		return
	}
	if err := e.archive.Archive(context.Background(), recs); err != nil {
		e.logger.Error("engine.archive.failed", "count", len(recs), "error", err.Error())
	}
}

// History returns up to limit archived runs, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]run.Summary, error) {
	if e.archive == nil {
		return []run.Summary{}, nil
	}

	recs, err := e.archive.History(ctx, limit)
	if err != nil {
		return nil, core.WrapError(core.CodeOrchestrate, err)
	}

	out := make([]run.Summary, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Summary())
	}
	return out, nil
}

// Start runs the periodic sweeper until ctx is done.
func (e *Engine) Start(ctx context.Context) {
	ticker := time.NewTicker(e.config.SweepInterval)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.Sweep()
			}
		}
	}()
}

// Wait blocks until every background run and the sweeper have returned, or
// ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) publish(t core.EventType, runID string, payload map[string]any) {
	e.bus.Publish(core.NewEvent(t, runID, payload))
}

func (e *Engine) runLogger(runID string) logging.Logger {
	if rl, ok := e.logger.(*logging.RunMeshLogger); ok {
		return rl.WithRun(runID)
	}
	return e.logger
}

func agentCount(kind run.Strategy, in strategy.Input, outcome strategy.Outcome) int {
	switch o := outcome.(type) {
	case *strategy.FanOutOutcome:
		if o != nil {
			return len(o.Results)
		}
	case *strategy.PipelineOutcome:
		if o != nil {
			return len(o.Chain)
		}
	case *strategy.AutoOutcome:
		return 1
	}
	if kind == run.StrategyAuto {
		return 1
	}
	return len(in.Agents)
}
