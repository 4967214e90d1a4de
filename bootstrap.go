package runmesh

import (
	"context"
	"errors"
	"fmt"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/runmesh/agent"
	"github.com/hupe1980/runmesh/archive"
	"github.com/hupe1980/runmesh/config"
	"github.com/hupe1980/runmesh/engine"
	"github.com/hupe1980/runmesh/logging"
	"github.com/hupe1980/runmesh/model"
	"github.com/hupe1980/runmesh/model/anthropic"
	"github.com/hupe1980/runmesh/model/openai"
	"github.com/hupe1980/runmesh/policy"
)

// NewLogger builds the logger described by cfg.
func NewLogger(cfg config.LogConfig) *logging.RunMeshLogger {
	lc := logging.DefaultLoggerConfig()
	lc.Level = logging.ParseLevel(cfg.Level)
	lc.Format = cfg.Format
	return logging.NewLogger(lc)
}

// NewProviders builds a Mux holding every provider that has credentials.
// A Mux without providers is returned as a nil Model so orchestrate calls
// fail with NO_LLM.
func NewProviders(cfg config.ProvidersConfig, logger logging.Logger) (model.Model, error) {
	mux := model.NewMux(func(o *model.MuxOptions) {
		o.Default = cfg.Default
		o.Logger = logger
	})

	if cfg.Anthropic.Enabled() {
		m, err := anthropic.NewModel(func(o *anthropic.Options) {
			o.APIKey = cfg.Anthropic.APIKey
			if cfg.Anthropic.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Anthropic.Model)
			}
			if cfg.Anthropic.MaxTokens > 0 {
				o.MaxTokens = cfg.Anthropic.MaxTokens
			}
			o.Bedrock = cfg.Anthropic.Bedrock
			o.AWSRegion = cfg.Anthropic.AWSRegion
			o.AWSProfile = cfg.Anthropic.AWSProfile
		})
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		mux.Register("anthropic", m)
	}

	if cfg.OpenAI.Enabled() {
		mux.Register("openai", openai.NewModel(func(o *openai.Options) {
			o.APIKey = cfg.OpenAI.APIKey
			if cfg.OpenAI.Model != "" {
				o.Model = cfg.OpenAI.Model
			}
		}))
	}

	if mux.Len() == 0 {
		logger.Warn("runmesh.providers.none", "hint", "set ANTHROPIC_API_KEY or OPENAI_API_KEY")
		return nil, nil
	}

	return mux, nil
}

// NewArchive opens the archive selected by cfg.
func NewArchive(cfg config.ArchiveConfig) (archive.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		store, err := archive.OpenSQLite(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return archive.NewInMemoryStore(cfg.Capacity), nil
	}
}

// NewPolicy compiles the admission policy, or returns nil when disabled.
func NewPolicy(ctx context.Context, cfg config.PolicyConfig, logger logging.Logger) (*policy.Engine, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	var module string
	if cfg.File != "" {
		data, err := os.ReadFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("read policy: %w", err)
		}
		module = string(data)
	}

	return policy.NewEngine(ctx, func(o *policy.Options) {
		o.Module = module
		o.MaxDepth = cfg.MaxDepth
		o.MaxAgents = cfg.MaxAgents
		o.Logger = logger
	})
}

// NewCatalog loads the agent file. A missing file yields an empty catalog.
func NewCatalog(cfg config.AgentsConfig, logger logging.Logger) (*agent.Catalog, *agent.Watcher, error) {
	catalog, err := agent.LoadCatalog(cfg.File)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, nil, err
		}
		logger.Warn("runmesh.agents.missing", "path", cfg.File)
		if catalog, err = agent.NewCatalog(); err != nil {
			return nil, nil, err
		}
	}

	if !cfg.Watch {
		return catalog, nil, nil
	}

	return catalog, agent.NewWatcher(cfg.File, catalog, func(o *agent.WatcherOptions) {
		o.Logger = logger
	}), nil
}

// FromConfig builds a RunMesh from cfg.
func FromConfig(ctx context.Context, cfg *config.Config, logger logging.Logger) (*RunMesh, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	providers, err := NewProviders(cfg.Providers, logger)
	if err != nil {
		return nil, err
	}

	catalog, watcher, err := NewCatalog(cfg.Agents, logger)
	if err != nil {
		return nil, err
	}

	store, err := NewArchive(cfg.Archive)
	if err != nil {
		return nil, err
	}

	pol, err := NewPolicy(ctx, cfg.Policy, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return New(catalog, providers, func(o *Options) {
		o.EngineConfig = engine.Config{
			MaxConcurrent:  cfg.Engine.MaxConcurrent,
			Retention:      cfg.Engine.Retention,
			SweepInterval:  cfg.Engine.SweepInterval,
			BasePrompt:     cfg.Engine.BasePrompt,
			RouteMaxTokens: cfg.Engine.RouteMaxTokens,
			PropagateKill:  cfg.Engine.PropagateKill,
		}
		o.Archive = store
		if pol != nil {
			o.Policy = pol
		}
		o.Watcher = watcher
		o.Logger = logger
	}), nil
}
