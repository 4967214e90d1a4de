package strategy

import (
	"context"
	"strings"
	"time"

	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/internal/util"
	"github.com/hupe1980/runmesh/model"
	"github.com/hupe1980/runmesh/run"
)

// AutoOutcome is the result of AutoRoute.
type AutoOutcome struct {
	Kind         run.Strategy `json:"strategy"`
	Route        string       `json:"routed"`
	Text         string       `json:"text"`
	FinishReason string       `json:"finishReason,omitempty"`
	RunID        string       `json:"runId,omitempty"`
	DurationMs   int64        `json:"durationMs"`
}

// Strategy implements Outcome.
func (o *AutoOutcome) Strategy() run.Strategy { return run.StrategyAuto }

// Routed implements Outcome.
func (o *AutoOutcome) Routed() string { return o.Route }

// Preview implements Outcome.
func (o *AutoOutcome) Preview() string { return o.Text }

// SetRun implements Outcome.
func (o *AutoOutcome) SetRun(runID string, durationMs int64) {
	o.RunID, o.DurationMs = runID, durationMs
}

const routerInstructions = "You are a task router. Choose the single best agent for the task. " +
	"Reply with the agent id only, or none if no agent fits."

var routerPrompt = util.MustTemplate("router", `Task:
{{.Task}}

Available agents:
{{range .Agents}}- {{.ID}}: {{default "general purpose" .Role}}
{{end}}
Reply with exactly one agent id from the list, or "none".`)

// AutoRoute picks exactly one agent and runs the task on it.
//
// With explicit agents, the first existing and enabled id wins and no
// routing call is made; if none is usable the last failure reason is
// returned. Without explicit agents, a tool-less, token-capped routing call
// asks the completion service to choose among the enabled agents. Any
// routing failure ("none", an unknown id, an error) falls back to spawning
// the task unscoped with the base prompt, recorded as route "_spawn".
func (e *Executor) AutoRoute(ctx context.Context, in Input) (*AutoOutcome, error) {
	start := time.Now()

	var (
		spec   core.AgentSpec
		routed bool
	)

	if len(in.Agents) > 0 {
		var lastErr error
		for _, id := range in.Agents {
			s, err := e.lookup(id)
			if err != nil {
				lastErr = err
				continue
			}
			spec, routed = s, true
			break
		}
		if !routed {
			return nil, lastErr
		}
	} else {
		spec, routed = e.route(ctx, in)
	}

	user := UserMessage(in.Task, in.Context)

	var (
		req   model.Request
		route string
	)

	if routed {
		req, route = agentRequest(e.opts.BasePrompt, spec, user), spec.ID
		in.routed(route, []string{spec.ID})
	} else {
		req, route = spawnRequest(e.opts.BasePrompt, user), SpawnRoute
		in.routed(route, []string{})
	}

	e.opts.Logger.Debug("strategy.auto.routed", "routed", route)

	resp, err := e.complete(ctx, in, req)
	if err != nil {
		return nil, err
	}

	return &AutoOutcome{
		Kind:         run.StrategyAuto,
		Route:        route,
		Text:         resp.Text(),
		FinishReason: resp.FinishReason,
		DurationMs:   time.Since(start).Milliseconds(),
	}, nil
}

// route asks the completion service to choose among the enabled agents.
func (e *Executor) route(ctx context.Context, in Input) (core.AgentSpec, bool) {
	enabled := e.enabled()
	if len(enabled) == 0 {
		return core.AgentSpec{}, false
	}

	prompt, err := util.Execute(routerPrompt, map[string]any{"Task": in.Task, "Agents": enabled})
	if err != nil {
		e.opts.Logger.Warn("strategy.auto.prompt_failed", "error", err.Error())
		return core.AgentSpec{}, false
	}

	resp, err := e.complete(ctx, in, model.Request{
		Instructions: routerInstructions,
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, prompt)},
		NoTools:      true,
		MaxTokens:    e.opts.RouteMaxTokens,
	})
	if err != nil {
		e.opts.Logger.Warn("strategy.auto.route_failed", "error", err.Error())
		return core.AgentSpec{}, false
	}

	choice := ParseRouteChoice(resp.Text())
	if choice == "" || choice == "none" {
		return core.AgentSpec{}, false
	}

	for _, s := range enabled {
		if strings.EqualFold(s.ID, choice) {
			return s, true
		}
	}

	e.opts.Logger.Warn("strategy.auto.unknown_route", "choice", choice)

	return core.AgentSpec{}, false
}

// ParseRouteChoice normalizes a routing reply: first line, surrounding
// whitespace, quotes, backticks and trailing punctuation removed.
func ParseRouteChoice(reply string) string {
	reply = strings.TrimSpace(reply)
	if i := strings.IndexByte(reply, '\n'); i >= 0 {
		reply = reply[:i]
	}
	// Quotes and punctuation can nest in either order: `coder`. or "coder."
	for {
		trimmed := strings.TrimRight(strings.Trim(reply, " \t\"'`*"), ".!,;:")
		if trimmed == reply {
			return reply
		}
		reply = trimmed
	}
}
