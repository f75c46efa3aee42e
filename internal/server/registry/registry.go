// Package registry tracks live push-channel connections per user and fans
// out events to them. A periodic sweep heartbeats every connection and drops
// the ones that went quiet.
package registry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scribelab/scribe/internal/common"
	"github.com/scribelab/scribe/internal/logging"
)

// Sender writes one message to a live connection. Implemented by the
// websocket handler; faked in tests.
type Sender interface {
	Send(ctx context.Context, data []byte) error
	Close() error
}

// Client is one registered live connection.
type Client struct {
	// ID is the connection id assigned at registration.
	ID       string
	UserID   string
	DeviceID string

	sender   Sender
	lastSeen time.Time
}

// Config holds registry tunables.
type Config struct {
	// HeartbeatInterval is the sweep period; every sweep sends a heartbeat
	// to each connection.
	HeartbeatInterval time.Duration
	// StaleAfter drops a connection not seen for this long.
	StaleAfter time.Duration
}

// DefaultConfig returns the production tunables.
func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 60 * time.Second,
		StaleAfter:        90 * time.Second,
	}
}

// Registry is safe for concurrent use. Connections are indexed by connection
// id and grouped by user id so fan-out touches only the user's connections.
type Registry struct {
	cfg    Config
	logger logging.Logger
	now    func() time.Time

	mu      sync.Mutex
	clients map[string]*Client            // connection id -> client
	byUser  map[string]map[string]*Client // user id -> connection id -> client
}

// New constructs a registry. Pass nil now to use the wall clock.
func New(cfg Config, logger logging.Logger, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		cfg:     cfg,
		logger:  logger.With("module", "registry"),
		now:     now,
		clients: make(map[string]*Client),
		byUser:  make(map[string]map[string]*Client),
	}
}

// Register adds a connection and assigns it a connection id. A previous
// connection of the same user and device is closed and replaced.
func (r *Registry) Register(userID, deviceID string, s Sender) *Client {
	c := &Client{
		ID:       uuid.NewString(),
		UserID:   userID,
		DeviceID: deviceID,
		sender:   s,
		lastSeen: r.now(),
	}

	var replaced *Client
	r.mu.Lock()
	for _, existing := range r.byUser[userID] {
		if existing.DeviceID == deviceID {
			replaced = existing
			r.removeLocked(existing)
			break
		}
	}
	r.clients[c.ID] = c
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[string]*Client)
	}
	r.byUser[userID][c.ID] = c
	total := len(r.clients)
	r.mu.Unlock()

	if replaced != nil {
		_ = replaced.sender.Close()
	}
	r.logger.Info(context.Background(), "device connected",
		"user_id", userID, "device_id", deviceID, "conn_id", c.ID, "total", total)
	return c
}

// Unregister removes and closes a connection. Safe to call twice.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	_, exists := r.clients[c.ID]
	if exists {
		r.removeLocked(c)
	}
	total := len(r.clients)
	r.mu.Unlock()

	if !exists {
		return
	}
	_ = c.sender.Close()
	r.logger.Info(context.Background(), "device disconnected",
		"user_id", c.UserID, "device_id", c.DeviceID, "conn_id", c.ID, "total", total)
}

// removeLocked drops the connection from both indexes. Caller holds mu.
func (r *Registry) removeLocked(c *Client) {
	delete(r.clients, c.ID)
	conns := r.byUser[c.UserID]
	delete(conns, c.ID)
	if len(conns) == 0 {
		delete(r.byUser, c.UserID)
	}
}

// Touch marks the connection alive.
func (r *Registry) Touch(c *Client) {
	r.mu.Lock()
	c.lastSeen = r.now()
	r.mu.Unlock()
}

// Count reports the user's live connections.
func (r *Registry) Count(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser[userID])
}

// Broadcast fans the event out to all of the user's connections except the
// one named by ev.DeviceID. A connection that fails the send is dropped.
func (r *Registry) Broadcast(ctx context.Context, userID string, ev common.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		r.logger.Error(ctx, "failed to encode event", "type", ev.Type, "error", err)
		return
	}

	for _, c := range r.snapshot(userID) {
		if ev.DeviceID != "" && c.DeviceID == ev.DeviceID {
			continue
		}
		r.send(ctx, c, data)
	}
}

// Run sweeps until ctx is done: stale connections are dropped, the rest get
// a heartbeat.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Registry) sweep(ctx context.Context) {
	cutoff := r.now().Add(-r.cfg.StaleAfter)

	r.mu.Lock()
	var stale, alive []*Client
	for _, c := range r.clients {
		if c.lastSeen.Before(cutoff) {
			stale = append(stale, c)
			r.removeLocked(c)
		} else {
			alive = append(alive, c)
		}
	}
	r.mu.Unlock()

	for _, c := range stale {
		_ = c.sender.Close()
		r.logger.Warn(ctx, "dropping stale connection",
			"user_id", c.UserID, "device_id", c.DeviceID, "conn_id", c.ID)
	}

	heartbeat, err := json.Marshal(common.Event{Type: common.EventHeartbeat})
	if err != nil {
		return
	}
	for _, c := range alive {
		r.send(ctx, c, heartbeat)
	}
}

func (r *Registry) snapshot(userID string) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := r.byUser[userID]
	result := make([]*Client, 0, len(conns))
	for _, c := range conns {
		result = append(result, c)
	}
	return result
}

func (r *Registry) send(ctx context.Context, c *Client, data []byte) {
	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err := c.sender.Send(sendCtx, data)
	cancel()

	if err != nil {
		r.logger.Warn(ctx, "send failed, dropping connection",
			"user_id", c.UserID, "device_id", c.DeviceID, "error", err)
		r.Unregister(c)
	}
}
