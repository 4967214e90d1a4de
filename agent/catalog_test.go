package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/runmesh/core"
)

func TestCatalog_OrderAndEnabled(t *testing.T) {
	c, err := NewCatalog(
		core.AgentSpec{ID: "researcher", Enabled: true},
		core.AgentSpec{ID: "archived", Enabled: false},
		core.AgentSpec{ID: "coder", Enabled: true},
	)
	require.NoError(t, err)

	ids := func(specs []core.AgentSpec) []string {
		out := []string{}
		for _, s := range specs {
			out = append(out, s.ID)
		}
		return out
	}

	assert.Equal(t, []string{"researcher", "archived", "coder"}, ids(c.List()))
	assert.Equal(t, []string{"researcher", "coder"}, ids(c.Enabled()))

	spec, ok := c.Get("archived")
	assert.True(t, ok)
	assert.False(t, spec.Enabled)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCatalog_Validation(t *testing.T) {
	_, err := NewCatalog(core.AgentSpec{ID: ""})
	require.Error(t, err)

	_, err = NewCatalog(core.AgentSpec{ID: "a"}, core.AgentSpec{ID: "a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestCatalog_ReplaceKeepsPreviousOnError(t *testing.T) {
	c, err := NewCatalog(core.AgentSpec{ID: "a", Enabled: true})
	require.NoError(t, err)

	require.Error(t, c.Replace([]core.AgentSpec{{ID: "b"}, {ID: "b"}}))
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Replace([]core.AgentSpec{{ID: "b"}, {ID: "c"}}))
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCatalog_AddAndCopies(t *testing.T) {
	c, err := NewCatalog()
	require.NoError(t, err)

	tools := []string{"search"}
	require.NoError(t, c.Add(core.AgentSpec{ID: "a", ToolAllowlist: tools}))
	require.Error(t, c.Add(core.AgentSpec{ID: "a"}))

	tools[0] = "mutated"
	spec, _ := c.Get("a")
	assert.Equal(t, []string{"search"}, spec.ToolAllowlist)
}
