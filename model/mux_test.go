package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toolDef(name string) ToolDefinition {
	return ToolDefinition{Type: "function", Function: FunctionDefinition{Name: name}}
}

func toolNames(defs []ToolDefinition) []string {
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Function.Name)
	}
	return names
}

func TestMux_DefaultProvider(t *testing.T) {
	a := NewMockModel("a-model", "a")
	b := NewMockModel("b-model", "b")

	mux := NewMux()
	mux.Register("a", a)
	mux.Register("b", b)

	_, err := Complete(context.Background(), mux, userRequest("x"))
	require.NoError(t, err)
	assert.Len(t, a.Calls(), 1)
	assert.Empty(t, b.Calls())
	assert.Equal(t, []string{"a", "b"}, mux.Providers())
	assert.Equal(t, "a", mux.Info().Provider)
}

func TestMux_PinnedProvider(t *testing.T) {
	a := NewMockModel("a-model", "a")
	b := NewMockModel("b-model", "b")

	mux := NewMux(func(o *MuxOptions) { o.Default = "a" })
	mux.Register("a", a)
	mux.Register("b", b)

	req := userRequest("x")
	req.Provider = "b"
	req.Model = "b-large"
	_, err := Complete(context.Background(), mux, req)
	require.NoError(t, err)

	require.Len(t, b.Calls(), 1)
	assert.Equal(t, "b-large", b.Calls()[0].Model)
	assert.Empty(t, a.Calls())
}

func TestMux_UnknownProvider(t *testing.T) {
	mux := NewMux()
	mux.Register("a", NewMockModel("a", "a"))

	req := userRequest("x")
	req.Provider = "missing"
	_, err := Complete(context.Background(), mux, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestMux_ToolSelection(t *testing.T) {
	m := NewMockModel("m", "m")
	mux := NewMux(func(o *MuxOptions) {
		o.Tools = []ToolDefinition{toolDef("search"), toolDef("shell"), toolDef("orchestrate")}
	})
	mux.Register("m", m)

	full := userRequest("full")
	_, err := Complete(context.Background(), mux, full)
	require.NoError(t, err)

	scoped := userRequest("scoped")
	scoped.ToolAllowlist = []string{"search"}
	_, err = Complete(context.Background(), mux, scoped)
	require.NoError(t, err)

	none := userRequest("none")
	none.NoTools = true
	_, err = Complete(context.Background(), mux, none)
	require.NoError(t, err)

	calls := m.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, []string{"search", "shell", "orchestrate"}, toolNames(calls[0].Tools))
	assert.Equal(t, []string{"search"}, toolNames(calls[1].Tools))
	assert.Empty(t, calls[2].Tools)
}
