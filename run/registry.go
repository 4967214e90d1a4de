package run

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/runmesh/core"
)

const (
	// DefaultMaxConcurrent is the default admission limit.
	DefaultMaxConcurrent = 5
	// DefaultRetention is how long terminal runs survive a sweep.
	DefaultRetention = time.Hour
)

// Options configures a Registry.
type Options struct {
	MaxConcurrent int
	Retention     time.Duration
	// Now overrides the clock (tests).
	Now func() time.Time
	// OnEvict receives records removed by Sweep, outside the registry lock.
	OnEvict func(evicted []Record)
}

// Spec describes a run to admit.
type Spec struct {
	Task       string
	Label      string
	Strategy   Strategy
	Agents     []string
	Background bool
	Depth      int
}

// Completion carries the terminal payload of a successful run.
type Completion struct {
	Result  any
	Routed  string
	Preview string
}

type entry struct {
	rec    Record
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry is the mutex-guarded run store. All mutations go through its
// methods; nothing blocks while the lock is held.
type Registry struct {
	mu            sync.RWMutex
	runs          map[string]*entry
	order         []string
	maxConcurrent int
	opts          Options
}

// New creates an empty registry.
func New(optFns ...func(o *Options)) *Registry {
	opts := Options{
		MaxConcurrent: DefaultMaxConcurrent,
		Retention:     DefaultRetention,
		Now:           time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	return &Registry{
		runs:          map[string]*entry{},
		maxConcurrent: opts.MaxConcurrent,
		opts:          opts,
	}
}

// Create inserts rec as-is. It fails only when the run id is already taken.
func (r *Registry) Create(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(rec)
}

func (r *Registry) insertLocked(rec Record) error {
	if rec.RunID == "" {
		return core.NewError(core.CodeValidation, "run id is required")
	}
	if _, exists := r.runs[rec.RunID]; exists {
		return core.NewError(core.CodeOrchestrate, "run %q already exists", rec.RunID)
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.opts.Now()
	}
	r.runs[rec.RunID] = &entry{rec: rec.clone(), done: make(chan struct{})}
	r.order = append(r.order, rec.RunID)
	return nil
}

// Admit checks the concurrency limit and, if there is room, creates a
// pending record for spec. Check and insert happen under one lock so
// concurrent callers can never overshoot the limit.
func (r *Registry) Admit(spec Spec) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if active := r.activeLocked(); active >= r.maxConcurrent {
		return Record{}, core.NewError(core.CodeConcurrencyLimit,
			"concurrency limit reached (%d/%d active runs)", active, r.maxConcurrent)
	}

	label := spec.Label
	if label == "" {
		label = NewLabel()
	}

	strategy := spec.Strategy
	if strategy == "" {
		strategy = StrategyAuto
	}

	rec := Record{
		Label:      label,
		Task:       Truncate(spec.Task, TaskDisplayLimit),
		Strategy:   strategy,
		Agents:     append([]string{}, spec.Agents...),
		Status:     StatusPending,
		Background: spec.Background,
		Depth:      spec.Depth,
		CreatedAt:  r.opts.Now(),
	}

	for {
		rec.RunID = NewID()
		if _, taken := r.runs[rec.RunID]; !taken {
			break
		}
	}

	if err := r.insertLocked(rec); err != nil {
		return Record{}, err
	}
	return rec.clone(), nil
}

// Get returns the run with the exact id.
func (r *Registry) Get(runID string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.runs[runID]
	if !ok {
		return Record{}, false
	}
	return e.rec.clone(), true
}

// Resolve maps a free-form query to a run. Rules are tried in order and the
// first match wins: exact run id, run id prefix, exact label, "last" (most
// recently created), 1-based position in insertion order.
func (r *Registry) Resolve(query string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e := r.resolveLocked(query); e != nil {
		return e.rec.clone(), true
	}
	return Record{}, false
}

func (r *Registry) resolveLocked(query string) *entry {
	if query == "" {
		return nil
	}

	if e, ok := r.runs[query]; ok {
		return e
	}

	for _, id := range r.order {
		if strings.HasPrefix(id, query) {
			return r.runs[id]
		}
	}

	for _, id := range r.order {
		if e := r.runs[id]; e.rec.Label == query {
			return e
		}
	}

	if query == "last" {
		var last *entry
		for _, id := range r.order {
			e := r.runs[id]
			if last == nil || !e.rec.CreatedAt.Before(last.rec.CreatedAt) {
				last = e
			}
		}
		return last
	}

	if n, err := strconv.Atoi(query); err == nil && n >= 1 && n <= len(r.order) {
		return r.runs[r.order[n-1]]
	}

	return nil
}

// List returns records in insertion order, optionally only active ones.
func (r *Registry) List(activeOnly bool) []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.order))
	for _, id := range r.order {
		e := r.runs[id]
		if activeOnly && !e.rec.Status.IsActive() {
			continue
		}
		out = append(out, e.rec.clone())
	}
	return out
}

// Len returns the number of tracked runs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// ActiveCount returns the number of pending or running runs.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeLocked()
}

func (r *Registry) activeLocked() int {
	n := 0
	for _, e := range r.runs {
		if e.rec.Status.IsActive() {
			n++
		}
	}
	return n
}

// MaxConcurrent returns the admission limit.
func (r *Registry) MaxConcurrent() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.maxConcurrent
}

// SetMaxConcurrent changes the admission limit. Runs already admitted are
// unaffected. Values below 1 are clamped to 1.
func (r *Registry) SetMaxConcurrent(n int) {
	if n < 1 {
		n = 1
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxConcurrent = n
}

// Sweep removes terminal runs created longer ago than the retention window
// and returns how many were removed. Active runs are never swept.
func (r *Registry) Sweep() int {
	r.mu.Lock()

	cutoff := r.opts.Now().Add(-r.opts.Retention)

	var evicted []Record
	kept := r.order[:0]
	for _, id := range r.order {
		e := r.runs[id]
		if e.rec.Status.IsTerminal() && e.rec.CreatedAt.Before(cutoff) {
			evicted = append(evicted, e.rec.clone())
			delete(r.runs, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept

	hook := r.opts.OnEvict
	r.mu.Unlock()

	if hook != nil && len(evicted) > 0 {
		hook(evicted)
	}

	return len(evicted)
}

// transition applies mutate under lock if the status change is legal.
func (r *Registry) transition(runID string, to Status, mutate func(rec *Record)) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.runs[runID]
	if !ok {
		return Record{}, core.NewError(core.CodeNotFound, "run %q not found", runID)
	}
	if !e.rec.Status.canTransition(to) {
		return e.rec.clone(), core.NewError(core.CodeNotActive, "run %q is %s", runID, e.rec.Status)
	}

	now := r.opts.Now()
	e.rec.Status = to

	if to == StatusRunning {
		e.rec.StartedAt = now
	}

	if to.IsTerminal() {
		e.rec.FinishedAt = now
		start := e.rec.StartedAt
		if start.IsZero() {
			start = e.rec.CreatedAt
		}
		e.rec.DurationMs = now.Sub(start).Milliseconds()
	}

	if mutate != nil {
		mutate(&e.rec)
	}

	return e.rec.clone(), nil
}

// MarkRunning moves a pending run to running.
func (r *Registry) MarkRunning(runID string) (Record, error) {
	return r.transition(runID, StatusRunning, nil)
}

// SetRouted records the routing decision of an active run. A non-nil agents
// slice replaces the recorded agent list with the resolved one.
func (r *Registry) SetRouted(runID, routed string, agents []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.runs[runID]
	if !ok || !e.rec.Status.IsActive() {
		return
	}
	e.rec.Routed = routed
	if agents != nil {
		e.rec.Agents = append([]string{}, agents...)
	}
}

// Complete marks the run completed. A run that was killed meanwhile keeps
// its killed status and the result is discarded (NOT_ACTIVE).
func (r *Registry) Complete(runID string, c Completion) (Record, error) {
	return r.transition(runID, StatusCompleted, func(rec *Record) {
		rec.Result = c.Result
		if c.Routed != "" {
			rec.Routed = c.Routed
		}
		rec.ResultPreview = Truncate(c.Preview, PreviewLimit)
	})
}

// Fail marks the run errored with msg.
func (r *Registry) Fail(runID, msg string) (Record, error) {
	return r.transition(runID, StatusError, func(rec *Record) {
		rec.Error = msg
		rec.ResultPreview = Truncate("Error: "+msg, PreviewLimit)
	})
}

// Kill marks an active run killed. Killing is bookkeeping: it does not
// interrupt the work unless the caller also invokes Cancel.
func (r *Registry) Kill(runID string) (Record, error) {
	return r.transition(runID, StatusKilled, nil)
}

// Attach stores the cancel function of the goroutine executing the run.
func (r *Registry) Attach(runID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.runs[runID]; ok {
		e.cancel = cancel
	}
}

// Cancel invokes the attached cancel function, if any.
func (r *Registry) Cancel(runID string) bool {
	r.mu.RLock()
	e, ok := r.runs[runID]
	var cancel context.CancelFunc
	if ok {
		cancel = e.cancel
	}
	r.mu.RUnlock()

	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Finish closes the run's done channel once its executing goroutine returns.
func (r *Registry) Finish(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.runs[runID]
	if !ok {
		return
	}
	select {
	case <-e.done:
	default:
		close(e.done)
	}
}

// Done returns a channel closed when the run's goroutine has returned, or
// nil for unknown runs.
func (r *Registry) Done(runID string) <-chan struct{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.runs[runID]; ok {
		return e.done
	}
	return nil
}

// IDs returns run ids in insertion order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}
