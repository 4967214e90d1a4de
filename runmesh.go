// Package runmesh wires the orchestration engine, its tool surface, the
// event bus and the run archive into one value.
//
// Most applications:
//  1. build a RunMesh with New (or FromConfig)
//  2. call Start to run the periodic sweeper
//  3. invoke the orchestration tools through Call, or hand Tools() to a
//     model host
//
// Runs() exposes the run registry for programmatic inspection. Usage()
// returns the prompt blurb describing the orchestration tools.
package runmesh

import (
	"context"
	"errors"

	"github.com/hupe1980/runmesh/agent"
	"github.com/hupe1980/runmesh/archive"
	"github.com/hupe1980/runmesh/core"
	"github.com/hupe1980/runmesh/engine"
	"github.com/hupe1980/runmesh/events"
	"github.com/hupe1980/runmesh/logging"
	"github.com/hupe1980/runmesh/model"
	"github.com/hupe1980/runmesh/run"
	"github.com/hupe1980/runmesh/tool"
)

// Options configures a RunMesh instance.
type Options struct {
	// EngineConfig holds admission, retention and prompt settings.
	EngineConfig engine.Config

	// Archive receives swept runs. Defaults to an in-memory store.
	Archive archive.Store

	// Policy is consulted before admission. Optional.
	Policy engine.Admitter

	// Watcher reloads the catalog while Start's context is alive. Optional.
	Watcher *agent.Watcher

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// RunMesh is the high-level façade over the engine and its collaborators.
type RunMesh struct {
	opts    Options
	catalog core.Catalog
	engine  *engine.Engine
	bus     *events.Bus
	tools   *tool.Set
}

// New creates a RunMesh dispatching catalog agents through m. When m is a
// *model.Mux, the orchestration tools are registered on it so spawned and
// agent completions can see them.
func New(catalog core.Catalog, m model.Model, optFns ...func(o *Options)) *RunMesh {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Archive == nil {
		opts.Archive = archive.NewInMemoryStore(archive.DefaultCapacity)
	}

	bus := events.New(func(o *events.Options) { o.Logger = opts.Logger })

	eng := engine.New(catalog, m, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Bus = bus
		o.Archive = opts.Archive
		o.Policy = opts.Policy
		o.Logger = opts.Logger
	})

	tools := tool.NewSet(tool.NewOrchestrateTools(eng)...)
	eng.SetTools(tools)

	if mux, ok := m.(*model.Mux); ok {
		mux.SetTools(tools.Definitions())
	}

	return &RunMesh{
		opts:    opts,
		catalog: catalog,
		engine:  eng,
		bus:     bus,
		tools:   tools,
	}
}

// Engine returns the execution manager.
func (r *RunMesh) Engine() *engine.Engine { return r.engine }

// Runs returns the run registry.
func (r *RunMesh) Runs() *run.Registry { return r.engine.Runs() }

// Usage returns the orchestration usage blurb, empty without enabled agents.
func (r *RunMesh) Usage() string { return r.engine.Usage() }

// Bus returns the event bus.
func (r *RunMesh) Bus() *events.Bus { return r.bus }

// Tools returns the orchestration tool set.
func (r *RunMesh) Tools() *tool.Set { return r.tools }

// Catalog returns the agent catalog.
func (r *RunMesh) Catalog() core.Catalog { return r.catalog }

// Call invokes the named tool as a top-level caller.
func (r *RunMesh) Call(ctx context.Context, name string, args map[string]any) tool.Result {
	tc := core.NewToolContext(ctx, func(o *core.ToolContextOptions) {
		o.Logger = r.opts.Logger
	})
	return r.tools.Invoke(tc, name, args)
}

// Start launches the periodic sweeper and, if configured, the catalog
// watcher. Both stop when ctx is done.
func (r *RunMesh) Start(ctx context.Context) {
	r.engine.Start(ctx)

	if w := r.opts.Watcher; w != nil {
		go func() {
			if err := w.Run(ctx); err != nil {
				r.opts.Logger.Error("runmesh.watcher.failed", "error", err.Error())
			}
		}()
	}
}

// Close waits for in-flight background runs (bounded by ctx), then closes
// the bus and the archive. Cancel the context given to Start first.
func (r *RunMesh) Close(ctx context.Context) error {
	waitErr := r.engine.Wait(ctx)
	r.bus.Close()
	return errors.Join(waitErr, r.opts.Archive.Close())
}
