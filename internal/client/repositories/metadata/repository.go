// Package metadata is a small key/value store on the client database. The
// orchestrator keeps its pull checkpoints here (keys "checkpoint:document"
// and "checkpoint:folder").
package metadata

import (
	"context"
)

type Repository interface {
	// Get returns the value for key, or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
