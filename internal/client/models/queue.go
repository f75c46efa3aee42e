package models

import (
	"encoding/json"
	"time"
)

// Operation is the kind of pending mutation.
type Operation string

const (
	OperationUpsert Operation = "upsert"
	OperationDelete Operation = "delete"
)

// QueueEntry is a pending local mutation awaiting push. At most one entry
// exists per (EntityType, EntityID); a newer local edit replaces the pending
// payload rather than appending a second entry.
type QueueEntry struct {
	EntityID   string
	EntityType EntityType
	Operation  Operation

	// Payload is the JSON-encoded Document or Folder snapshot to push.
	// Empty for deletes.
	Payload json.RawMessage

	// EnqueuedAt marks the payload generation; the orchestrator uses it to
	// detect an edit that superseded the entry while a push was in flight.
	EnqueuedAt time.Time

	Attempts int
}

// CachedEntity is a row of the server-mirror cache: the last canonical
// state of an entity as confirmed by the server. A non-nil DeletedAt is a
// transient tombstone that suppresses resurrection from a racing pull.
type CachedEntity struct {
	EntityID    string
	EntityType  EntityType
	SyncVersion int64
	UpdatedAt   time.Time
	DeletedAt   *time.Time
	Payload     json.RawMessage
}

// Stamp returns the cached entity's sync metadata.
func (c *CachedEntity) Stamp() Stamp {
	return Stamp{SyncVersion: c.SyncVersion, UpdatedAt: c.UpdatedAt}
}
