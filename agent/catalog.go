package agent

import (
	"fmt"
	"slices"
	"sync"

	"github.com/hupe1980/runmesh/core"
)

// Catalog is an ordered in-memory agent registry implementing core.Catalog.
// Specs are stored by value; callers receive copies.
type Catalog struct {
	mu    sync.RWMutex
	specs []core.AgentSpec
	index map[string]int
}

var _ core.Catalog = (*Catalog)(nil)

// NewCatalog builds a catalog from specs, preserving their order.
func NewCatalog(specs ...core.AgentSpec) (*Catalog, error) {
	c := &Catalog{index: map[string]int{}}
	if err := c.Replace(specs); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks that every spec has a non-empty, unique id.
func Validate(specs []core.AgentSpec) error {
	seen := make(map[string]struct{}, len(specs))
	for i, s := range specs {
		if s.ID == "" {
			return fmt.Errorf("agent #%d: id is required", i+1)
		}
		if _, dup := seen[s.ID]; dup {
			return fmt.Errorf("agent %q: duplicate id", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}

// Replace atomically swaps the catalog contents. On validation failure the
// previous contents are kept.
func (c *Catalog) Replace(specs []core.AgentSpec) error {
	if err := Validate(specs); err != nil {
		return err
	}

	next := make([]core.AgentSpec, len(specs))
	index := make(map[string]int, len(specs))
	for i, s := range specs {
		s.ToolAllowlist = slices.Clone(s.ToolAllowlist)
		next[i] = s
		index[s.ID] = i
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.specs = next
	c.index = index

	return nil
}

// Add appends a spec, failing on duplicate ids.
func (c *Catalog) Add(spec core.AgentSpec) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if spec.ID == "" {
		return fmt.Errorf("agent id is required")
	}
	if _, dup := c.index[spec.ID]; dup {
		return fmt.Errorf("agent %q: duplicate id", spec.ID)
	}

	spec.ToolAllowlist = slices.Clone(spec.ToolAllowlist)
	c.index[spec.ID] = len(c.specs)
	c.specs = append(c.specs, spec)

	return nil
}

// Get returns the spec with id, enabled or not.
func (c *Catalog) Get(id string) (core.AgentSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.index[id]
	if !ok {
		return core.AgentSpec{}, false
	}
	return c.specs[i], true
}

// List returns every spec in catalog order.
func (c *Catalog) List() []core.AgentSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.specs)
}

// Enabled returns the enabled specs in catalog order.
func (c *Catalog) Enabled() []core.AgentSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]core.AgentSpec, 0, len(c.specs))
	for _, s := range c.specs {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of specs.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.specs)
}
