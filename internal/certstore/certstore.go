// Package certstore persists generated certificate artifacts. Two backends
// exist: durable S3 object storage returning public HTTPS locators, and an
// in-process map returning inline data: locators for deployments without
// object storage. Locators are opaque to callers.
package certstore

import (
	"context"
	"errors"
)

// ErrNotFound marks a missing artifact. Any other error from a backend is an
// infrastructure failure and must fail the issuance.
var ErrNotFound = errors.New("certificate artifact not found")

// Artifact is a stored certificate image. Inline is set only by the memory
// backend; durable backends expose the bytes through the Locator URL.
type Artifact struct {
	ID        string
	MediaType string
	Locator   string
	Inline    []byte
}

// Store is the artifact store contract. Put must be called at most once per
// ID; Get before any Put for that ID returns ErrNotFound.
type Store interface {
	Put(ctx context.Context, id string, data []byte, mediaType string) (string, error)
	Get(ctx context.Context, id string) (Artifact, error)
}

func extFor(mediaType string) string {
	if mediaType == "image/svg+xml" {
		return "svg"
	}
	return "png"
}
