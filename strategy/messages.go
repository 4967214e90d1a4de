package strategy

import (
	"strings"

	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/model"
)

// Section headers injected into prompts.
const (
	agentInstructionsHeader = "## Agent Instructions"
	additionalContextHeader = "## Additional Context"
	previousOutputHeader    = "## Previous Agent Output"
)

// SystemPrompt builds the system message for an agent route: the base prompt,
// followed by the agent's own instructions when it has any.
func SystemPrompt(base string, spec core.AgentSpec) string {
	if spec.SystemPrompt == "" {
		return base
	}
	section := agentInstructionsHeader + " (" + spec.DisplayName() + ")\n" + spec.SystemPrompt
	if base == "" {
		return section
	}
	return base + "\n\n" + section
}

// UserMessage builds the user message: the task, followed by optional extra
// context.
func UserMessage(task, extra string) string {
	var sb strings.Builder
	sb.WriteString(task)
	if extra != "" {
		sb.WriteString("\n\n" + additionalContextHeader + "\n")
		sb.WriteString(extra)
	}
	return sb.String()
}

// StageMessage builds the user message of a pipeline stage after the first.
// The previous output section is present even when that output is empty.
func StageMessage(task, extra, previous string) string {
	return UserMessage(task, extra) + "\n\n" + previousOutputHeader + "\n" + previous
}

// agentRequest builds a request pinned to spec's provider, model and tools.
func agentRequest(base string, spec core.AgentSpec, user string) model.Request {
	return model.Request{
		Instructions:  SystemPrompt(base, spec),
		Contents:      []core.Content{core.NewTextContent(core.RoleUser, user)},
		Provider:      spec.Provider,
		Model:         spec.Model,
		ToolAllowlist: append([]string(nil), spec.ToolAllowlist...),
	}
}

// spawnRequest builds the unscoped request: base prompt, full tool access.
func spawnRequest(base, user string) model.Request {
	return model.Request{
		Instructions: base,
		Contents:     []core.Content{core.NewTextContent(core.RoleUser, user)},
	}
}
