package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/scribelab/scribe/internal/client/relay"
	"github.com/scribelab/scribe/internal/common"
	"github.com/scribelab/scribe/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	kicks atomic.Int32
}

func (f *fakeSyncer) ForceSync() { f.kicks.Add(1) }

// pushServer accepts one websocket client and feeds it the given events.
func pushServer(t *testing.T, events []common.Event, gotHeader chan<- http.Header) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotHeader != nil {
			gotHeader <- r.Header.Clone()
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := r.Context()
		for _, ev := range events {
			data, err := json.Marshal(ev)
			require.NoError(t, err)
			if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
				return
			}
		}
		// Hold the connection open until the client goes away.
		_, _, _ = conn.Read(ctx)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

func TestListener_SendsAuthHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	srv := pushServer(t, nil, headers)

	l := NewListener(wsURL(srv), "token-1", "device-1", &fakeSyncer{}, relay.New(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	select {
	case h := <-headers:
		assert.Equal(t, "Bearer token-1", h.Get("Authorization"))
		assert.Equal(t, "device-1", h.Get("X-Device-Id"))
	case <-time.After(2 * time.Second):
		t.Fatal("listener never dialed")
	}
}

func TestListener_RemoteEventWakesSyncAndRelays(t *testing.T) {
	srv := pushServer(t, []common.Event{
		{Type: common.EventConnected, DeviceID: "device-1"},
		{Type: common.EventDocumentUpdated, DeviceID: "device-other", EntityID: "d1", SyncVersion: 4},
	}, nil)

	syncer := &fakeSyncer{}
	r := relay.New()
	ch, cancelSub := r.Subscribe()
	defer cancelSub()

	l := NewListener(wsURL(srv), "token-1", "device-1", syncer, r, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	select {
	case msg := <-ch:
		assert.Equal(t, relay.MessageTypeContent, msg.Type)
		var ev common.Event
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		assert.Equal(t, common.EventDocumentUpdated, ev.Type)
		assert.Equal(t, "d1", ev.EntityID)
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the relay")
	}

	require.Eventually(t, func() bool {
		return syncer.kicks.Load() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestListener_SuppressesSelfEcho(t *testing.T) {
	srv := pushServer(t, []common.Event{
		{Type: common.EventDocumentUpdated, DeviceID: "device-1", EntityID: "d1"},
		{Type: common.EventFolderUpdated, DeviceID: "device-other", EntityID: "f1"},
	}, nil)

	syncer := &fakeSyncer{}
	r := relay.New()
	ch, cancelSub := r.Subscribe()
	defer cancelSub()

	l := NewListener(wsURL(srv), "token-1", "device-1", syncer, r, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	// Only the foreign event comes through; the self-echo is dropped.
	select {
	case msg := <-ch:
		var ev common.Event
		require.NoError(t, json.Unmarshal(msg.Payload, &ev))
		assert.Equal(t, "f1", ev.EntityID)
	case <-time.After(2 * time.Second):
		t.Fatal("foreign event never reached the relay")
	}
	assert.Equal(t, int32(1), syncer.kicks.Load())
}

func TestListener_AnswersHeartbeat(t *testing.T) {
	answers := make(chan common.Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := r.Context()

		hb, err := json.Marshal(common.Event{Type: common.EventHeartbeat})
		require.NoError(t, err)
		if err := conn.Write(ctx, websocket.MessageText, hb); err != nil {
			return
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var ev common.Event
		if json.Unmarshal(data, &ev) == nil {
			answers <- ev
		}
		_, _, _ = conn.Read(ctx)
	}))
	t.Cleanup(srv.Close)

	l := NewListener(wsURL(srv), "token-1", "device-1", &fakeSyncer{}, relay.New(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	select {
	case ev := <-answers:
		assert.Equal(t, common.EventHeartbeat, ev.Type)
		assert.Equal(t, "device-1", ev.DeviceID)
	case <-time.After(2 * time.Second):
		t.Fatal("listener never answered the heartbeat")
	}
}

func TestListener_ReconnectsAfterDrop(t *testing.T) {
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		// Drop the session immediately; the listener must dial again.
		conn.Close(websocket.StatusGoingAway, "bye")
	}))
	t.Cleanup(srv.Close)

	l := NewListener(wsURL(srv), "token-1", "device-1", &fakeSyncer{}, relay.New(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	require.Eventually(t, func() bool {
		return dials.Load() >= 2
	}, 5*time.Second, 10*time.Millisecond)
}
