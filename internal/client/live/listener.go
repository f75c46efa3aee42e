// Package live maintains the websocket push channel to the server. Events
// received on it wake the sync engine and are republished on the local relay
// so every window of this device sees them.
package live

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/scribelab/scribe/internal/client/relay"
	"github.com/scribelab/scribe/internal/common"
	"github.com/scribelab/scribe/internal/logging"
	"github.com/sethvargo/go-retry"
)

// Syncer requests sync cycles. Implemented by the sync orchestrator.
type Syncer interface {
	ForceSync()
}

// Listener dials the push channel and keeps it alive, reconnecting with
// capped backoff until its context is done.
type Listener struct {
	url      string
	token    string
	deviceID string
	syncer   Syncer
	relay    *relay.Relay
	logger   logging.Logger

	// dialTimeout bounds a single connection attempt.
	dialTimeout time.Duration
}

// NewListener creates a listener for the given websocket URL.
func NewListener(url, token, deviceID string, syncer Syncer, r *relay.Relay, logger logging.Logger) *Listener {
	return &Listener{
		url:         url,
		token:       token,
		deviceID:    deviceID,
		syncer:      syncer,
		relay:       r,
		logger:      logger.With("module", "live"),
		dialTimeout: 10 * time.Second,
	}
}

// Run dials and reads until ctx is done. Each dropped session schedules a
// reconnect on a capped backoff; a session that held for a while resets the
// schedule.
func (l *Listener) Run(ctx context.Context) {
	backoff := l.newBackoff()

	for {
		started := time.Now()
		err := l.session(ctx)
		if ctx.Err() != nil {
			return
		}
		l.logger.Warn(ctx, "push channel dropped", "error", err)

		if time.Since(started) > time.Minute {
			backoff = l.newBackoff()
		}
		delay, _ := backoff.Next()
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (l *Listener) newBackoff() retry.Backoff {
	return retry.WithCappedDuration(30*time.Second, retry.NewFibonacci(time.Second))
}

// session dials once and reads events until the connection fails.
func (l *Listener) session(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, l.dialTimeout)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+l.token)
	header.Set("X-Device-Id", l.deviceID)

	conn, _, err := websocket.Dial(dialCtx, l.url, &websocket.DialOptions{HTTPHeader: header})
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	l.logger.Info(ctx, "push channel connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var ev common.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			l.logger.Warn(ctx, "malformed push event", "error", err)
			continue
		}

		// Answer heartbeats on the same connection; the server counts the
		// reply as proof of liveness and keeps the registration.
		if ev.Type == common.EventHeartbeat {
			if err := l.answerHeartbeat(ctx, conn); err != nil {
				return err
			}
			continue
		}

		l.handle(ctx, &ev)
	}
}

func (l *Listener) answerHeartbeat(ctx context.Context, conn *websocket.Conn) error {
	data, err := json.Marshal(common.Event{Type: common.EventHeartbeat, DeviceID: l.deviceID})
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func (l *Listener) handle(ctx context.Context, ev *common.Event) {
	if ev.Type == common.EventConnected {
		l.logger.Debug(ctx, "push channel acknowledged", "device_id", l.deviceID)
		return
	}

	// Events from this device already round-tripped through the push path.
	if ev.DeviceID != "" && ev.DeviceID == l.deviceID {
		return
	}

	switch ev.Type {
	case common.EventDocumentUpdated, common.EventDocumentDeleted,
		common.EventFolderUpdated, common.EventFolderDeleted:
		// The pull cycle is the single merge path; the event only wakes it.
		l.syncer.ForceSync()
		l.republish(ev)
	case common.EventSettingsUpdated, common.EventSessionUpdated:
		l.republish(ev)
	default:
		l.logger.Debug(ctx, "ignoring unknown push event", "type", ev.Type)
	}
}

func (l *Listener) republish(ev *common.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	l.relay.Publish(relay.Message{Type: relay.MessageTypeContent, Payload: payload})
}
