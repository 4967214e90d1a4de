package strategy

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/run"
)

// ChainStep is one executed pipeline stage.
type ChainStep struct {
	AgentID string `json:"agentId"`
	Text    string `json:"text"`
}

// PipelineOutcome is the result of Pipeline.
type PipelineOutcome struct {
	Kind       run.Strategy `json:"strategy"`
	FinalAgent string       `json:"finalAgent"`
	Text       string       `json:"text"`
	Chain      []ChainStep  `json:"chain"`
	RunID      string       `json:"runId,omitempty"`
	DurationMs int64        `json:"durationMs"`
}

// Strategy implements Outcome.
func (o *PipelineOutcome) Strategy() run.Strategy { return run.StrategyPipeline }

// Routed implements Outcome.
func (o *PipelineOutcome) Routed() string {
	ids := make([]string, len(o.Chain))
	for i, s := range o.Chain {
		ids[i] = s.AgentID
	}
	return strings.Join(ids, ",")
}

// Preview implements Outcome.
func (o *PipelineOutcome) Preview() string { return o.Text }

// SetRun implements Outcome.
func (o *PipelineOutcome) SetRun(runID string, durationMs int64) {
	o.RunID, o.DurationMs = runID, durationMs
}

// Pipeline runs the working set strictly in order. Every stage after the
// first receives the previous stage's text under "## Previous Agent Output".
// The first failing stage aborts the whole chain with ORCHESTRATE_ERROR; no
// partial chain is returned.
func (e *Executor) Pipeline(ctx context.Context, in Input) (*PipelineOutcome, error) {
	ids, err := e.workingSet(run.StrategyPipeline, in.Agents)
	if err != nil {
		return nil, err
	}

	in.routed(strings.Join(ids, ","), ids)

	chain := make([]ChainStep, 0, len(ids))
	previous := ""

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, stageError(i, id, err)
		}

		spec, err := e.lookup(id)
		if err != nil {
			return nil, stageError(i, id, err)
		}

		user := UserMessage(in.Task, in.Context)
		if i > 0 {
			user = StageMessage(in.Task, in.Context, previous)
		}

		resp, err := e.complete(ctx, in, agentRequest(e.opts.BasePrompt, spec, user))
		if err != nil {
			e.opts.Logger.Warn("strategy.pipeline.stage_failed", "stage", i+1, "agent_id", id, "error", err.Error())
			return nil, stageError(i, id, err)
		}

		previous = resp.Text()
		chain = append(chain, ChainStep{AgentID: id, Text: previous})
	}

	last := chain[len(chain)-1]

	return &PipelineOutcome{
		Kind:       run.StrategyPipeline,
		FinalAgent: last.AgentID,
		Text:       last.Text,
		Chain:      chain,
	}, nil
}

// stageError wraps a stage failure as ORCHESTRATE_ERROR carrying the
// underlying message.
func stageError(i int, id string, err error) *core.Error {
	return &core.Error{
		Code:    core.CodeOrchestrate,
		Message: fmt.Sprintf("pipeline stage %d (%s): %s", i+1, id, errorMessage(err)),
		Err:     err,
	}
}
