// Package relay is the same-device cross-window notification channel. It is
// a best-effort, fire-and-forget broadcast so every open window of one
// session converges without issuing duplicate pushes; the authoritative
// consistency path is always the orchestrator's pull phase.
package relay

import (
	"encoding/json"
	"sync"
	"time"
)

// MessageType discriminates relay messages.
type MessageType string

const (
	MessageTypeContent      MessageType = "content"
	MessageTypeRequest      MessageType = "request"
	MessageTypeDisconnect   MessageType = "disconnect"
	MessageTypeSyncComplete MessageType = "server-sync-complete"
)

// Message is the relay wire contract.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// SyncCompletePayload announces a server-confirmed sync of one entity.
// Listeners update their own cache but never re-push.
type SyncCompletePayload struct {
	EntityID    string    `json:"entity_id"`
	SyncVersion int64     `json:"sync_version"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Relay fans messages out to subscribers on the same device. Sends never
// block: a subscriber whose buffer is full misses the message.
type Relay struct {
	mu   sync.RWMutex
	subs map[int]chan Message
	next int
}

func New() *Relay {
	return &Relay{subs: make(map[int]chan Message)}
}

// Subscribe registers a listener and returns its channel and an unsubscribe
// function. The channel is closed on unsubscribe.
func (r *Relay) Subscribe() (<-chan Message, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.next
	r.next++
	ch := make(chan Message, 16)
	r.subs[id] = ch

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if sub, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(sub)
		}
	}
}

// Publish delivers msg to every subscriber. Fire-and-forget.
func (r *Relay) Publish(msg Message) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ch := range r.subs {
		select {
		case ch <- msg:
		default:
			// Slow subscriber, drop. Its next pull catches it up.
		}
	}
}

// PostSyncComplete broadcasts a server-sync-complete message for an entity.
func (r *Relay) PostSyncComplete(entityID string, syncVersion int64, updatedAt time.Time) {
	payload, err := json.Marshal(SyncCompletePayload{
		EntityID:    entityID,
		SyncVersion: syncVersion,
		UpdatedAt:   updatedAt,
	})
	if err != nil {
		return
	}
	r.Publish(Message{Type: MessageTypeSyncComplete, Payload: payload})
}
