package artifact

import (
	"context"
	"sync"

	"github.com/lunara/reportmesh/core"
)

// InMemoryStore is an in-process core.ArtifactStore useful for tests and
// single-process deployments. Artifacts live in a nested map guarded by an
// RWMutex and data is copied on save / load so callers cannot mutate stored
// buffers. ListKeys reports names in first-save order.
//
// Layout: session key -> artifact name -> artifact
type InMemoryStore struct {
	mu        sync.RWMutex
	artifacts map[core.SessionKey]*sessionArtifacts
}

type sessionArtifacts struct {
	order []string
	items map[string]core.Artifact
}

// NewInMemoryStore returns an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{artifacts: make(map[core.SessionKey]*sessionArtifacts)}
}

// Save stores (or overwrites) the artifact for the given session. Overwriting
// keeps the original position in the key order.
func (a *InMemoryStore) Save(_ context.Context, key core.SessionKey, artifact core.Artifact) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	sa, ok := a.artifacts[key]
	if !ok {
		sa = &sessionArtifacts{items: make(map[string]core.Artifact)}
		a.artifacts[key] = sa
	}

	if _, exists := sa.items[artifact.Name]; !exists {
		sa.order = append(sa.order, artifact.Name)
	}

	if artifact.MimeType == "" {
		artifact.MimeType = core.DetectMimeType(artifact.Name)
	}

	artifact.Data = cloneBytes(artifact.Data)
	sa.items[artifact.Name] = artifact

	return nil
}

// Load returns a copy of the stored artifact or ErrNotFound.
func (a *InMemoryStore) Load(_ context.Context, key core.SessionKey, name string) (core.Artifact, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	sa, ok := a.artifacts[key]
	if !ok {
		return core.Artifact{}, ErrNotFound
	}

	artifact, ok := sa.items[name]
	if !ok {
		return core.Artifact{}, ErrNotFound
	}

	artifact.Data = cloneBytes(artifact.Data)

	return artifact, nil
}

// ListKeys returns the artifact names stored for the session. The slice is a
// snapshot and safe for caller mutation.
func (a *InMemoryStore) ListKeys(_ context.Context, key core.SessionKey) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	sa, ok := a.artifacts[key]
	if !ok {
		return []string{}, nil
	}

	names := make([]string, len(sa.order))
	copy(names, sa.order)

	return names, nil
}

// Delete removes the artifact if present or returns ErrNotFound.
func (a *InMemoryStore) Delete(_ context.Context, key core.SessionKey, name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	sa, ok := a.artifacts[key]
	if !ok {
		return ErrNotFound
	}

	if _, ok := sa.items[name]; !ok {
		return ErrNotFound
	}

	delete(sa.items, name)

	for i, n := range sa.order {
		if n == name {
			sa.order = append(sa.order[:i], sa.order[i+1:]...)
			break
		}
	}

	return nil
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}

	cp := make([]byte, len(b))
	copy(cp, b)

	return cp
}
