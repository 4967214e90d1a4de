// Package model defines the completion service contract the orchestrator
// delegates to: a message list goes in, generated text plus a finish reason
// comes out.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Carry per-request pinning (provider, model, tool allowlist, token budget)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (see the anthropic and openai subpackages) implement Model; Mux
// dispatches between them by provider name.
package model
