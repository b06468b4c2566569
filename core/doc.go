// Package core provides the domain types and small interfaces shared by the
// report engine, the agent runtime and the storage backends:
//
//   - Events and the closed Part union they carry (text, thoughts, tool
//     calls and responses, generated code, code results, inline data)
//   - Report Blocks and their JSON encoding
//   - Sessions keyed by (application, user, session) and their SessionStore
//   - Artifacts and the ArtifactStore used by code execution
//   - ToolContext, the sandboxed surface handed to tool implementations
//
// Implementation concerns (persistence, orchestration, model vendors) live in
// other packages so backends can be swapped without touching these contracts.
package core
