// Package runner is the agent runtime behind report generation.
//
// A Runner owns the agent tree and drives one turn at a time per backing
// session:
//
//   - the user message is persisted, then the root agent is asked first
//   - each model response becomes a persisted event; function calls are
//     dispatched in order and answered with function response events
//   - a transfer_to_agent action switches the active agent; a sub-agent that
//     answers without calls hands control back to its parent
//   - the turn ends when the root agent answers without calls
//
// Agents flagged for code execution use the provider's native execution when
// the model supports it. Otherwise they get an execute_code tool backed by a
// code.Executor whose output files land in the artifact store, and the
// runner brackets each call with code and code result events.
package runner
