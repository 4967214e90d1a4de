package agent

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/runmesh/core"
)

// fileSpec mirrors core.AgentSpec on disk. Enabled defaults to true when
// the key is omitted.
type fileSpec struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Role         string   `yaml:"role"`
	SystemPrompt string   `yaml:"system_prompt"`
	Provider     string   `yaml:"provider"`
	Model        string   `yaml:"model"`
	Tools        []string `yaml:"tools"`
	Enabled      *bool    `yaml:"enabled"`
}

type catalogFile struct {
	Agents []fileSpec `yaml:"agents"`
}

// Parse decodes a YAML agent file:
//
//	agents:
//	  - id: researcher
//	    role: Finds and summarizes sources
//	    system_prompt: You are a careful researcher.
//	    provider: anthropic
//	    tools: [web_search]
func Parse(data []byte) ([]core.AgentSpec, error) {
	var f catalogFile

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if len(bytes.TrimSpace(data)) == 0 {
			return []core.AgentSpec{}, nil
		}
		return nil, fmt.Errorf("decode agents: %w", err)
	}

	specs := make([]core.AgentSpec, 0, len(f.Agents))
	for _, a := range f.Agents {
		enabled := true
		if a.Enabled != nil {
			enabled = *a.Enabled
		}
		specs = append(specs, core.AgentSpec{
			ID:            a.ID,
			Name:          a.Name,
			Role:          a.Role,
			SystemPrompt:  a.SystemPrompt,
			Provider:      a.Provider,
			Model:         a.Model,
			ToolAllowlist: a.Tools,
			Enabled:       enabled,
		})
	}

	if err := Validate(specs); err != nil {
		return nil, err
	}

	return specs, nil
}

// LoadFile reads and parses the agent file at path.
func LoadFile(path string) ([]core.AgentSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agents file: %w", err)
	}
	return Parse(data)
}

// LoadCatalog builds a Catalog from the agent file at path.
func LoadCatalog(path string) (*Catalog, error) {
	specs, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return NewCatalog(specs...)
}
