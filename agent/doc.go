// Package agent provides the in-process agent catalog: an ordered, concurrency
// safe registry of core.AgentSpec values loaded from YAML and optionally kept
// in sync with its file via fsnotify.
//
// The orchestrator consumes the catalog through the read-only core.Catalog
// contract; only loaders and watchers call Replace.
package agent
