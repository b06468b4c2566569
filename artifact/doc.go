// Package artifact contains concrete implementations of core.ArtifactStore.
//
// The canonical ArtifactStore interface lives in the core package to avoid
// dependency cycles. Implementation packages like this one (in-memory) and
// artifact/s3 provide storage backends that can be swapped without touching
// the report engine or the code executor.
//
// Callers should depend on the core interface rather than concrete types so
// they can substitute alternative persistence layers in tests or production.
package artifact
