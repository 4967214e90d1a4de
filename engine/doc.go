// Package engine implements the execution manager of runmesh.
//
// The Engine sits between the control surface (tools, HTTP, CLI) and the
// strategy executors. For every orchestrate call it:
//
//  1. validates the request (NO_LLM, empty task, fewer than two agents for
//     fan-out or pipeline)
//  2. consults the optional admission policy (POLICY_DENIED)
//  3. admits a pending run on the registry or fails with CONCURRENCY_LIMIT
//     without creating a record
//  4. publishes orchestrate:spawned and drives the run through
//     running to completed, error or killed
//
// Blocking requests return the strategy outcome. Background requests return
// an accepted receipt immediately; their outcome is recorded on the run.
//
// # Events
//
//	orchestrate:spawned   {label, background}
//	orchestrate:routed    {routed}
//	orchestrate:completed {status, durationMs}
//	orchestrate:killed    {label}
//
// # Kill semantics
//
// Kill marks a run killed and discards its eventual result. The in-flight
// completion call keeps running unless Config.PropagateKill is set, in
// which case the run's context is cancelled as well.
//
// # Callbacks
//
// A CallbackManager exposes before_run, after_run, on_error and on_kill
// hooks. A before_run error fails the run.
//
// Usage:
//
//	eng := engine.New(catalog, mux, func(o *engine.Options) {
//	    o.Config.MaxConcurrent = 10
//	    o.Bus = bus
//	    o.Archive = archive.NewInMemoryStore(500)
//	})
//	eng.Start(ctx)
//
//	res, err := eng.Orchestrate(ctx, engine.Request{
//	    Task:     "Summarize AI",
//	    Strategy: run.StrategyFanOut,
//	    Agents:   []string{"researcher", "coder"},
//	})
package engine
