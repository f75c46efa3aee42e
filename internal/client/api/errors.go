package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/scribelab/scribe/internal/client/models"
	"github.com/scribelab/scribe/internal/common"
)

// VersionConflictError reports that an upsert lost an optimistic-concurrency
// race. It carries the full current server entity.
type VersionConflictError struct {
	EntityType      models.EntityType
	EntityID        string
	ServerVersion   int64
	ServerUpdatedAt time.Time
	ServerPayload   json.RawMessage
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("%s %s: version conflict, server at v%d", e.EntityType, e.EntityID, e.ServerVersion)
}

func (e *VersionConflictError) Unwrap() error {
	return common.ErrVersionConflict
}

// NetworkError wraps a transport-level failure. These are transient and
// retried with backoff.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsNetworkError reports whether err is (or wraps) a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}
