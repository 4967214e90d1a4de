package model

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/runmesh/core"
)

// HandlerFunc scripts a MockModel completion for a request.
type HandlerFunc func(ctx context.Context, req Request) (Response, error)

// MockModel is a lightweight in‑memory Model useful for tests & examples.
// It records every request it receives.
type MockModel struct {
	info Info

	mu        sync.Mutex
	responses map[string]string
	handler   HandlerFunc
	latency   time.Duration
	calls     []Request
}

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// SetHandler replaces canned responses with a scripted function.
func (m *MockModel) SetHandler(fn HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = fn
}

// SetLatency delays every completion by d (respecting ctx cancellation).
func (m *MockModel) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// Calls returns a snapshot of the received requests in arrival order.
func (m *MockModel) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.calls = append(m.calls, req)
	handler, latency := m.handler, m.latency
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)

		if latency > 0 {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case <-time.After(latency):
			}
		}

		if handler != nil {
			resp, err := handler(ctx, req)
			if err != nil {
				errCh <- err
				return
			}
			if resp.FinishReason == "" {
				resp.FinishReason = "stop"
			}
			respCh <- resp
			return
		}

		if len(req.Contents) == 0 {
			errCh <- fmt.Errorf("no contents provided")
			return
		}

		inputText := req.Contents[len(req.Contents)-1].Text()

		m.mu.Lock()
		full := m.responses[inputText]
		m.mu.Unlock()

		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}

		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Content: core.NewTextContent(core.RoleAssistant, string(r))}:
				}
			}
		}

		respCh <- Response{
			Content:      core.NewTextContent(core.RoleAssistant, full),
			FinishReason: "stop",
		}
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// TextResponse builds a final assistant response with the given text.
func TextResponse(text string) Response {
	return Response{Content: core.NewTextContent(core.RoleAssistant, text), FinishReason: "stop"}
}
