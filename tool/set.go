package tool

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/model"
)

// Set is a name indexed collection of tools.
type Set struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewSet creates a Set holding tools. Later tools replace earlier ones with
// the same name.
func NewSet(tools ...Tool) *Set {
	s := &Set{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		s.Add(t)
	}
	return s
}

// Add registers t, replacing any tool with the same name.
func (s *Set) Add(t Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[t.Name()] = t
}

// Get returns the tool called name.
func (s *Set) Get(name string) (Tool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tools[name]
	return t, ok
}

// Names returns the sorted tool names.
func (s *Set) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tools))
	for n := range s.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Definitions converts the set into model tool declarations, sorted by name.
func (s *Set) Definitions() []model.ToolDefinition {
	names := s.Names()

	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]model.ToolDefinition, 0, len(names))
	for _, n := range names {
		t := s.tools[n]
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// Invoke calls the tool called name. Unknown names yield NOT_FOUND.
func (s *Set) Invoke(toolCtx *core.ToolContext, name string, args map[string]any) Result {
	t, ok := s.Get(name)
	if !ok {
		return Fail(core.NewError(core.CodeNotFound, "unknown tool %q", name))
	}
	return Invoke(toolCtx, t, args)
}

// InvokeCall executes a model-issued function call and encodes the Result
// envelope as the response. It implements core.ToolInvoker.
func (s *Set) InvokeCall(toolCtx *core.ToolContext, call core.FunctionCall) core.FunctionResponse {
	res := s.invokeCall(toolCtx, call)

	body, err := json.Marshal(res)
	if err != nil {
		res = Fail(core.NewError(core.CodeOrchestrate, "encode %s result: %v", call.Name, err))
		body, _ = json.Marshal(res)
	}

	return core.FunctionResponse{
		ID:       call.ID,
		Name:     call.Name,
		Response: string(body),
		IsError:  !res.OK,
	}
}

func (s *Set) invokeCall(toolCtx *core.ToolContext, call core.FunctionCall) Result {
	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return Fail(core.NewError(core.CodeValidation, "invalid arguments for %s: %v", call.Name, err))
		}
	}
	return s.Invoke(toolCtx, call.Name, args)
}
