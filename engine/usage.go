package engine

import (
	"fmt"
	"strings"
)

const usageHeader = `## Orchestration

You can delegate work to other agents with the "orchestrate" tool:
- strategy "auto" (default): route the task to the single best agent, or pass "agents" to pick one explicitly.
- strategy "fan-out": run the same task on two or more agents in parallel and compare their answers.
- strategy "pipeline": run two or more agents in order, each receiving the previous agent's output.
Set "background": true to return immediately with a run id instead of waiting.

Inspect runs with "orchestrate.list" (pass "active": true for running work only) and stop them with "orchestrate.kill" (target: run id or prefix, label, "last", 1-based index, or "all").
`

// Usage returns a prompt-injectable description of the orchestration tools
// and the enabled agents, or "" when no agent is enabled.
func (e *Engine) Usage() string {
	if e.catalog == nil {
		return ""
	}

	enabled := e.catalog.Enabled()
	if len(enabled) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(usageHeader)
	b.WriteString("\nAvailable agents:\n")
	for _, a := range enabled {
		if a.Role != "" {
			fmt.Fprintf(&b, "- %s: %s\n", a.ID, a.Role)
		} else {
			fmt.Fprintf(&b, "- %s\n", a.ID)
		}
	}

	return b.String()
}
