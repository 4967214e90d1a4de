// Package core provides the foundational domain types and contracts shared by
// every runmesh package. It defines:
//
//   - AgentSpec and Catalog (the read-only agent registry contract)
//   - Content / Part (role-based message payloads for completion calls)
//   - Event and EventBus (publish-only lifecycle notifications)
//   - Error and Code (the orchestration error taxonomy)
//   - ToolContext (scoped execution surface handed to tool implementations)
//
// The package intentionally keeps implementation concerns (run bookkeeping,
// strategies, transports) out of scope, exposing small interfaces to enable
// custom backends and extensions.
package core
