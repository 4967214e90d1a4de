package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/runmesh/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized completion input.
//
// Provider and Model pin the call to a specific backend; empty values select
// the defaults of whatever Model receives the request. ToolAllowlist narrows
// the tool set a Mux attaches, NoTools removes it entirely.
type Request struct {
	Instructions  string           `json:"instructions,omitempty"` // System prompt
	Contents      []core.Content   `json:"contents"`
	Tools         []ToolDefinition `json:"tools,omitempty"`
	Stream        bool             `json:"stream,omitempty"`
	Provider      string           `json:"provider,omitempty"`
	Model         string           `json:"model,omitempty"`
	MaxTokens     int              `json:"max_tokens,omitempty"`
	ToolAllowlist []string         `json:"tool_allowlist,omitempty"`
	NoTools       bool             `json:"no_tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string       `json:"id"`
	Partial      bool         `json:"partial"` // Indicates if this is a partial response
	Content      core.Content `json:"content"`
	FinishReason string       `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage  `json:"usage,omitempty"`
}

// Text returns the concatenated text parts of the response.
func (r Response) Text() string { return r.Content.Text() }

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the completion service contract.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Complete drains a Generate call and returns the final response. Partial
// chunks are concatenated in case a provider never emits a final chunk.
func Complete(ctx context.Context, m Model, req Request) (Response, error) {
	if m == nil {
		return Response{}, core.NewError(core.CodeNoLLM, "no completion service configured")
	}

	respCh, errCh := m.Generate(ctx, req)

	var (
		final    *Response
		partials strings.Builder
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				partials.WriteString(r.Text())
				continue
			}
			rr := r
			final = &rr
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}

	if final == nil {
		if partials.Len() == 0 {
			return Response{}, fmt.Errorf("model %s returned no response", m.Info().Name)
		}
		return Response{
			Content:      core.NewTextContent(core.RoleAssistant, partials.String()),
			FinishReason: "stop",
		}, nil
	}

	return *final, nil
}
