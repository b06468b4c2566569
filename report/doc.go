// Package report turns the event stream of a multi-agent runtime into
// report blocks.
//
// A turn flows through these pieces:
//
//   - Manager opens or reuses the backing session of a report scope.
//   - Classify sorts each runtime payload into narration, reasoning, tool
//     call, tool result, code, code result or inline image.
//   - Tools is the only way agents add blocks; chart declarations go
//     through the Reconciler, which pairs them with images arriving inline
//     or from the artifact store sweep.
//   - Accumulator assigns block ids, and FilterWindow selects the blocks a
//     turn produced.
//
// Engine.Generate wires these together and streams OutputEvents.
package report
