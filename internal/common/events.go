package common

import (
	"encoding/json"
	"time"
)

// EventType names an event delivered over the live push channel.
// Every event payload carries the originating device id so receivers can
// suppress self-echo regardless of server fan-out behavior.
type EventType string

const (
	EventConnected       EventType = "connected"
	EventDocumentUpdated EventType = "document:updated"
	EventDocumentDeleted EventType = "document:deleted"
	EventFolderUpdated   EventType = "folder:updated"
	EventFolderDeleted   EventType = "folder:deleted"
	EventSettingsUpdated EventType = "settings:updated"
	EventSessionUpdated  EventType = "session:updated"
	EventHeartbeat       EventType = "heartbeat"
)

// Event is the envelope carried over the live push channel. DeviceID names
// the originating device; the server skips that device on fan-out and
// receivers drop any event carrying their own device id.
type Event struct {
	Type        EventType       `json:"type"`
	DeviceID    string          `json:"device_id,omitempty"`
	EntityID    string          `json:"entity_id,omitempty"`
	SyncVersion int64           `json:"sync_version,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at,omitzero"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}
