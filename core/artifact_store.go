package core

import (
	"context"
	"mime"
	"path"
)

// Artifact is a named binary object, typically a rendered chart image.
type Artifact struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// ArtifactStore defines artifact persistence scoped by SessionKey.
// Implementations must be safe for concurrent use. ListKeys returns names in
// a stable order so repeated sweeps observe artifacts consistently.
type ArtifactStore interface {
	Save(ctx context.Context, key SessionKey, artifact Artifact) error
	Load(ctx context.Context, key SessionKey, name string) (Artifact, error)
	ListKeys(ctx context.Context, key SessionKey) ([]string, error)
	Delete(ctx context.Context, key SessionKey, name string) error
}

// DetectMimeType guesses a mime type from the artifact name, falling back to
// application/octet-stream.
func DetectMimeType(name string) string {
	if mt := mime.TypeByExtension(path.Ext(name)); mt != "" {
		return mt
	}

	return "application/octet-stream"
}
