package core

// AgentSpec describes a configured agent: a named role with its own system
// prompt, optional pinned provider/model and optional tool allowlist.
//
// Specs are owned by the external agent registry. The orchestrator only
// reads them and never mutates a spec it was handed.
type AgentSpec struct {
	ID            string   `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	Role          string   `json:"role" yaml:"role"`
	SystemPrompt  string   `json:"system_prompt,omitempty" yaml:"system_prompt"`
	Provider      string   `json:"provider,omitempty" yaml:"provider"`
	Model         string   `json:"model,omitempty" yaml:"model"`
	ToolAllowlist []string `json:"tools,omitempty" yaml:"tools"`
	Enabled       bool     `json:"enabled" yaml:"enabled"`
}

// DisplayName returns Name, falling back to ID.
func (a AgentSpec) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// Catalog is the read-only view of the agent registry the orchestrator needs.
//
// Implementations must be safe for concurrent use. Get reports whether the id
// is known regardless of its Enabled flag; Enabled returns only enabled
// agents in a stable order.
type Catalog interface {
	Get(id string) (AgentSpec, bool)
	List() []AgentSpec
	Enabled() []AgentSpec
}
