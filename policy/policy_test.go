package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/runmesh/core"
)

func TestEngine_DefaultPolicy(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx, func(o *Options) {
		o.MaxDepth = 2
		o.MaxAgents = 3
	})
	require.NoError(t, err)

	d, err := e.Evaluate(ctx, Input{Strategy: "auto", Depth: 2, Agents: []string{"a"}})
	require.NoError(t, err)
	assert.True(t, d.Allow)
	assert.Empty(t, d.Reasons)

	d, err = e.Evaluate(ctx, Input{Strategy: "fan-out", Depth: 3})
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Equal(t, []string{"orchestration depth 3 exceeds limit 2"}, d.Reasons)

	d, err = e.Evaluate(ctx, Input{Strategy: "fan-out", Depth: 5, Agents: []string{"a", "b", "c", "d"}})
	require.NoError(t, err)
	assert.False(t, d.Allow)
	assert.Len(t, d.Reasons, 2)
}

func TestEngine_Admit(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx, func(o *Options) { o.MaxDepth = 1 })
	require.NoError(t, err)

	require.NoError(t, e.Admit(ctx, Input{Depth: 1}))

	err = e.Admit(ctx, Input{Depth: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPolicyDenied)
	assert.Contains(t, err.Error(), "depth 2 exceeds limit 1")
}

func TestEngine_CustomModule(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx, func(o *Options) {
		o.Module = `
package runmesh.admission

import future.keywords.contains
import future.keywords.if

deny contains "background pipelines are disabled" if {
	input.strategy == "pipeline"
	input.background
}
`
	})
	require.NoError(t, err)

	require.NoError(t, e.Admit(ctx, Input{Strategy: "pipeline"}))
	err = e.Admit(ctx, Input{Strategy: "pipeline", Background: true})
	assert.ErrorIs(t, err, core.ErrPolicyDenied)
}

func TestNewEngine_InvalidModule(t *testing.T) {
	_, err := NewEngine(context.Background(), func(o *Options) { o.Module = "package broken\n deny contains {" })
	require.Error(t, err)
}
