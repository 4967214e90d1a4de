package model

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/runmesh/logging"
)

// MuxOptions configures a Mux.
type MuxOptions struct {
	// Default names the provider used when a request does not pin one.
	Default string
	// Tools is the full tool set attached to requests that allow tools.
	Tools  []ToolDefinition
	Logger logging.Logger
}

// Mux is a Model that dispatches each request to a registered provider.
//
// Request.Provider selects the backend (falling back to Default). Unless
// Request.NoTools is set or the request already carries tools, the Mux
// attaches its own tool set narrowed by Request.ToolAllowlist.
type Mux struct {
	mu        sync.RWMutex
	providers map[string]Model
	opts      MuxOptions
}

// NewMux creates an empty Mux.
func NewMux(optFns ...func(o *MuxOptions)) *Mux {
	opts := MuxOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Mux{providers: map[string]Model{}, opts: opts}
}

// Register adds (or replaces) a provider under name. The first registered
// provider becomes the default if none was configured.
func (m *Mux) Register(name string, mdl Model) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[name] = mdl
	if m.opts.Default == "" {
		m.opts.Default = name
	}
}

// SetTools replaces the tool set attached to requests.
func (m *Mux) SetTools(tools []ToolDefinition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts.Tools = slices.Clone(tools)
}

// Providers returns registered provider names, sorted.
func (m *Mux) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for n := range m.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered providers.
func (m *Mux) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.providers)
}

func (m *Mux) route(req Request) (Model, Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name := req.Provider
	if name == "" {
		name = m.opts.Default
	}
	mdl, ok := m.providers[name]
	if !ok {
		return nil, req, fmt.Errorf("unknown provider %q", name)
	}

	switch {
	case req.NoTools:
		req.Tools = nil
	case len(req.Tools) == 0:
		req.Tools = filterTools(m.opts.Tools, req.ToolAllowlist)
	default:
		req.Tools = filterTools(req.Tools, req.ToolAllowlist)
	}

	return mdl, req, nil
}

// filterTools keeps tools named in allow. An empty allowlist keeps all.
func filterTools(tools []ToolDefinition, allow []string) []ToolDefinition {
	if len(allow) == 0 {
		return slices.Clone(tools)
	}
	out := make([]ToolDefinition, 0, len(tools))
	for _, t := range tools {
		if slices.Contains(allow, t.Function.Name) {
			out = append(out, t)
		}
	}
	return out
}

// Generate implements Model.
func (m *Mux) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	mdl, routed, err := m.route(req)
	if err != nil {
		out := make(chan Response)
		errCh := make(chan error, 1)
		errCh <- err
		close(out)
		close(errCh)
		m.opts.Logger.Warn("model.mux.route_failed", "provider", req.Provider, "error", err.Error())
		return out, errCh
	}

	name := routed.Model
	if name == "" {
		name = mdl.Info().Name
	}

	start := time.Now()
	inner, innerErr := mdl.Generate(ctx, routed)

	out := make(chan Response, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		var (
			tokens  int
			callErr error
		)

		for inner != nil || innerErr != nil {
			select {
			case r, ok := <-inner:
				if !ok {
					inner = nil
					continue
				}
				if r.Usage != nil {
					tokens = r.Usage.TotalTokens
				}
				out <- r
			case e, ok := <-innerErr:
				if !ok {
					innerErr = nil
					continue
				}
				if e != nil && callErr == nil {
					callErr = e
					errCh <- e
				}
			}
		}

		logging.LLMCall(m.opts.Logger, name, tokens, time.Since(start), callErr)
	}()

	return out, errCh
}

// Info implements Model.
func (m *Mux) Info() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Info{Name: "mux", Provider: m.opts.Default, SupportsTools: true}
}
