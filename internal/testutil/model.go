package testutil

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/model"
)

const instructionsMarker = "## Agent Instructions ("

// AgentFromRequest extracts the agent display name from the instructions
// section injected for agent routes, or "" for unscoped requests.
func AgentFromRequest(req model.Request) string {
	i := strings.LastIndex(req.Instructions, instructionsMarker)
	if i < 0 {
		return ""
	}
	rest := req.Instructions[i+len(instructionsMarker):]
	if j := strings.IndexByte(rest, ')'); j >= 0 {
		return rest[:j]
	}
	return ""
}

// AgentReply scripts one agent's completion.
type AgentReply struct {
	Text  string
	Err   error
	Delay time.Duration
}

// ScriptedModel returns a MockModel answering per agent (keyed by display
// name, "" for spawn). Routing calls (NoTools) are answered with route.
// Unscripted agents echo "<name> output".
func ScriptedModel(route string, replies map[string]AgentReply) *model.MockModel {
	m := model.NewMockModel("scripted", "mock")
	m.SetHandler(func(ctx context.Context, req model.Request) (model.Response, error) {
		if req.NoTools {
			return model.TextResponse(route), nil
		}

		name := AgentFromRequest(req)
		reply, ok := replies[name]
		if !ok {
			return model.TextResponse(fmt.Sprintf("%s output", name)), nil
		}

		if reply.Delay > 0 {
			select {
			case <-ctx.Done():
				return model.Response{}, ctx.Err()
			case <-time.After(reply.Delay):
			}
		}

		if reply.Err != nil {
			return model.Response{}, reply.Err
		}

		return model.TextResponse(reply.Text), nil
	})
	return m
}

// UserText returns the text of the last content of req.
func UserText(req model.Request) string {
	if len(req.Contents) == 0 {
		return ""
	}
	return req.Contents[len(req.Contents)-1].Text()
}

// Blocking returns a MockModel whose completions wait until release is
// closed (or the context ends), then answer "released".
func Blocking(release <-chan struct{}) *model.MockModel {
	m := model.NewMockModel("blocking", "mock")
	m.SetHandler(func(ctx context.Context, _ model.Request) (model.Response, error) {
		select {
		case <-ctx.Done():
			return model.Response{}, ctx.Err()
		case <-release:
			return model.Response{Content: core.NewTextContent(core.RoleAssistant, "released"), FinishReason: "stop"}, nil
		}
	})
	return m
}
