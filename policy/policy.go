// Package policy evaluates orchestration admission rules with OPA.
//
// A rego module contributes denial messages to data.runmesh.admission.deny.
// An empty set admits the run; otherwise the run is rejected with
// POLICY_DENIED before it counts against the concurrency limit.
package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/open-policy-agent/opa/rego"

	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/logging"
)

const query = "data.runmesh.admission.deny"

// DefaultPolicy caps recursive self-orchestration depth and the number of
// agents a single run may address.
const DefaultPolicy = `
package runmesh.admission

import future.keywords.contains
import future.keywords.if

deny contains msg if {
	input.depth > input.limits.max_depth
	msg := sprintf("orchestration depth %d exceeds limit %d", [input.depth, input.limits.max_depth])
}

deny contains msg if {
	count(input.agents) > input.limits.max_agents
	msg := sprintf("%d agents requested, limit is %d", [count(input.agents), input.limits.max_agents])
}
`

// Options configures an Engine.
type Options struct {
	// Module is the rego source; DefaultPolicy when empty.
	Module    string
	MaxDepth  int
	MaxAgents int
	Logger    logging.Logger
}

// Input describes a run asking for admission.
type Input struct {
	TaskLength int      `json:"task_length"`
	Strategy   string   `json:"strategy"`
	Agents     []string `json:"agents"`
	Depth      int      `json:"depth"`
	Background bool     `json:"background"`
}

// Decision is the outcome of an evaluation.
type Decision struct {
	Allow   bool
	Reasons []string
}

// Engine is a prepared admission policy.
type Engine struct {
	query rego.PreparedEvalQuery
	opts  Options
}

// NewEngine compiles the policy module.
func NewEngine(ctx context.Context, optFns ...func(o *Options)) (*Engine, error) {
	opts := Options{
		Module:    DefaultPolicy,
		MaxDepth:  3,
		MaxAgents: 8,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Module == "" {
		opts.Module = DefaultPolicy
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	r := rego.New(
		rego.Query(query),
		rego.Module("admission.rego", opts.Module),
	)

	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: prepared, opts: opts}, nil
}

// Evaluate runs the policy against in.
func (e *Engine) Evaluate(ctx context.Context, in Input) (Decision, error) {
	agents := in.Agents
	if agents == nil {
		agents = []string{}
	}

	input := map[string]any{
		"task_length": in.TaskLength,
		"strategy":    in.Strategy,
		"agents":      agents,
		"depth":       in.Depth,
		"background":  in.Background,
		"limits": map[string]any{
			"max_depth":  e.opts.MaxDepth,
			"max_agents": e.opts.MaxAgents,
		},
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Allow: true}, nil
	}

	var reasons []string

	switch v := results[0].Expressions[0].Value.(type) {
	case []any:
		for _, item := range v {
			reasons = append(reasons, fmt.Sprint(item))
		}
	case nil:
	default:
		return Decision{}, fmt.Errorf("unexpected policy result type %T", v)
	}

	sort.Strings(reasons)

	return Decision{Allow: len(reasons) == 0, Reasons: reasons}, nil
}

// Admit evaluates in and converts a denial into a POLICY_DENIED error.
func (e *Engine) Admit(ctx context.Context, in Input) error {
	d, err := e.Evaluate(ctx, in)
	if err != nil {
		return core.WrapError(core.CodeOrchestrate, err)
	}
	if d.Allow {
		return nil
	}

	e.opts.Logger.Info("policy.admission.denied", "depth", in.Depth, "strategy", in.Strategy, "reasons", d.Reasons)

	return core.NewError(core.CodePolicyDenied, "%s", strings.Join(d.Reasons, "; "))
}
