package testutil

import (
	"github.com/hupe1980/runmesh/agent"
	"github.com/hupe1980/runmesh/core"
)

// AgentSpecBuilder provides a fluent helper for constructing agent specs.
// Example:
//
//	spec := NewAgentSpec("coder").Role("Writes code").Tools("shell").Build()
//
// Defaults: Name = id, SystemPrompt = "You are <id>.", Enabled = true.
type AgentSpecBuilder struct {
	spec core.AgentSpec
}

// NewAgentSpec starts a builder for id.
func NewAgentSpec(id string) *AgentSpecBuilder {
	return &AgentSpecBuilder{spec: core.AgentSpec{
		ID:           id,
		Name:         id,
		SystemPrompt: "You are " + id + ".",
		Enabled:      true,
	}}
}

// Name sets the display name (chainable).
func (b *AgentSpecBuilder) Name(n string) *AgentSpecBuilder { b.spec.Name = n; return b }

// Role sets the role description (chainable).
func (b *AgentSpecBuilder) Role(r string) *AgentSpecBuilder { b.spec.Role = r; return b }

// SystemPrompt sets the agent instructions (chainable).
func (b *AgentSpecBuilder) SystemPrompt(p string) *AgentSpecBuilder { b.spec.SystemPrompt = p; return b }

// Pin sets provider and model (chainable).
func (b *AgentSpecBuilder) Pin(provider, model string) *AgentSpecBuilder {
	b.spec.Provider, b.spec.Model = provider, model
	return b
}

// Tools sets the tool allowlist (chainable).
func (b *AgentSpecBuilder) Tools(names ...string) *AgentSpecBuilder {
	b.spec.ToolAllowlist = names
	return b
}

// Disabled marks the agent disabled (chainable).
func (b *AgentSpecBuilder) Disabled() *AgentSpecBuilder { b.spec.Enabled = false; return b }

// Build returns the spec.
func (b *AgentSpecBuilder) Build() core.AgentSpec { return b.spec }

// NewCatalog builds a catalog of enabled default specs for ids, panicking on
// invalid input.
func NewCatalog(ids ...string) *agent.Catalog {
	specs := make([]core.AgentSpec, len(ids))
	for i, id := range ids {
		specs[i] = NewAgentSpec(id).Build()
	}
	return MustCatalog(specs...)
}

// MustCatalog builds a catalog from specs, panicking on invalid input.
func MustCatalog(specs ...core.AgentSpec) *agent.Catalog {
	c, err := agent.NewCatalog(specs...)
	if err != nil {
		panic(err)
	}
	return c
}
