package strategy

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/runmesh/run"
)

// AgentResult is one fan-out entry.
type AgentResult struct {
	AgentID      string `json:"agentId"`
	Text         string `json:"text"`
	FinishReason string `json:"finishReason"`
}

// FanOutOutcome is the result of FanOut. Results follow the resolved agent
// order, not completion order.
type FanOutOutcome struct {
	Kind       run.Strategy  `json:"strategy"`
	Results    []AgentResult `json:"results"`
	RunID      string        `json:"runId,omitempty"`
	DurationMs int64         `json:"durationMs"`
}

// Strategy implements Outcome.
func (o *FanOutOutcome) Strategy() run.Strategy { return run.StrategyFanOut }

// Routed implements Outcome.
func (o *FanOutOutcome) Routed() string {
	ids := make([]string, len(o.Results))
	for i, r := range o.Results {
		ids[i] = r.AgentID
	}
	return strings.Join(ids, ",")
}

// Preview implements Outcome.
func (o *FanOutOutcome) Preview() string {
	parts := make([]string, len(o.Results))
	for i, r := range o.Results {
		parts[i] = r.AgentID + ": " + r.Text
	}
	return strings.Join(parts, " | ")
}

// SetRun implements Outcome.
func (o *FanOutOutcome) SetRun(runID string, durationMs int64) {
	o.RunID, o.DurationMs = runID, durationMs
}

// FanOut runs the task on every agent of the working set concurrently.
//
// Each invocation is isolated: a failure (including a missing or disabled
// agent) becomes an entry with text "Error: <message>" and finish reason
// "error" and never cancels siblings or fails the call. The only call-level
// failure is a working set smaller than two agents.
func (e *Executor) FanOut(ctx context.Context, in Input) (*FanOutOutcome, error) {
	ids, err := e.workingSet(run.StrategyFanOut, in.Agents)
	if err != nil {
		return nil, err
	}

	in.routed(strings.Join(ids, ","), ids)

	results := make([]AgentResult, len(ids))
	user := UserMessage(in.Task, in.Context)

	// Workers never return errors so one failure cannot cancel the others.
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			results[i] = e.invokeIsolated(ctx, in, id, user)
			return nil
		})
	}
	_ = g.Wait()

	return &FanOutOutcome{Kind: run.StrategyFanOut, Results: results}, nil
}

func (e *Executor) invokeIsolated(ctx context.Context, in Input, id, user string) (res AgentResult) {
	res.AgentID = id

	defer func() {
		if r := recover(); r != nil {
			res.Text = fmt.Sprintf("Error: panic: %v", r)
			res.FinishReason = "error"
		}
	}()

	spec, err := e.lookup(id)
	if err == nil {
		resp, cerr := e.complete(ctx, in, agentRequest(e.opts.BasePrompt, spec, user))
		if cerr == nil {
			res.Text, res.FinishReason = resp.Text(), resp.FinishReason
			return res
		}
		err = cerr
	}

	e.opts.Logger.Warn("strategy.fanout.agent_failed", "agent_id", id, "error", err.Error())
	res.Text = "Error: " + errorMessage(err)
	res.FinishReason = "error"

	return res
}
