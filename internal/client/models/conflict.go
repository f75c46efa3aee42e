package models

import (
	"encoding/json"
	"time"
)

// ResolutionState tracks the lifecycle of a detected conflict.
type ResolutionState string

const (
	ResolutionPending ResolutionState = "pending"
	ResolvedLocal     ResolutionState = "resolved_local"
	ResolvedServer    ResolutionState = "resolved_server"
	ResolvedBoth      ResolutionState = "resolved_both"
)

// Conflict captures a genuine lost-update risk between a pending local edit
// and a server entity that has moved ahead. The server snapshot comes from
// the version-conflict response or from the server mirror when the gap is
// caught before the push, so resolution needs no second round trip.
type Conflict struct {
	EntityID   string
	EntityType EntityType

	// LocalPayload is the pending local snapshot that failed to push.
	LocalPayload   json.RawMessage
	LocalUpdatedAt time.Time

	// ServerPayload is the current canonical entity returned by the server.
	ServerPayload   json.RawMessage
	ServerVersion   int64
	ServerUpdatedAt time.Time

	DetectedAt time.Time
	Resolution ResolutionState
}
