// Package strategy implements the three dispatch algorithms of the
// orchestrator:
//
//  1. AutoRoute: pick exactly one agent (explicitly, or by asking the
//     completion service to choose) and fall back to an unscoped spawn
//  2. FanOut: run N≥2 agents concurrently with per-agent failure isolation
//  3. Pipeline: run N≥2 agents in sequence, threading each stage's output
//     into the next stage's input
//
// Executors are pure over their inputs: they read the agent catalog and call
// the completion service, but never touch the run registry. Routing
// decisions are reported through Input.OnRouted so the caller can record
// them.
package strategy
