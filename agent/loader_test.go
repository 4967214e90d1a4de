package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleAgents = `
agents:
  - id: researcher
    name: Researcher
    role: Finds and summarizes sources
    system_prompt: You are a careful researcher.
    provider: anthropic
    model: claude-sonnet-4-20250514
    tools: [web_search]
  - id: coder
    role: Writes code
    enabled: false
`

func TestParse(t *testing.T) {
	specs, err := Parse([]byte(sampleAgents))
	require.NoError(t, err)
	require.Len(t, specs, 2)

	r := specs[0]
	assert.Equal(t, "researcher", r.ID)
	assert.Equal(t, "Researcher", r.Name)
	assert.Equal(t, "You are a careful researcher.", r.SystemPrompt)
	assert.Equal(t, "anthropic", r.Provider)
	assert.Equal(t, []string{"web_search"}, r.ToolAllowlist)
	assert.True(t, r.Enabled, "enabled defaults to true")

	assert.False(t, specs[1].Enabled)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("agents:\n  - id: a\n    unknown_key: x\n"))
	require.Error(t, err)

	_, err = Parse([]byte("agents:\n  - id: a\n  - id: a\n"))
	require.Error(t, err)

	specs, err := Parse([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, specs)
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleAgents), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, c.Enabled(), 1)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
