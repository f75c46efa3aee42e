// Package netx observes server reachability for the sync engine. The
// watcher probes the server on a fixed interval and reports edge-triggered
// online/offline transitions.
package netx

import (
	"context"
	"sync"
	"time"

	"github.com/scribelab/scribe/internal/logging"
)

// Pinger probes server reachability. Implemented by the api client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Watcher polls a Pinger and publishes connectivity transitions.
type Watcher struct {
	pinger   Pinger
	interval time.Duration
	logger   logging.Logger

	mu      sync.RWMutex
	online  bool
	changes chan bool
}

// NewWatcher creates a watcher that probes every interval. The watcher
// starts in the offline state until the first successful probe.
func NewWatcher(pinger Pinger, interval time.Duration, logger logging.Logger) *Watcher {
	return &Watcher{
		pinger:   pinger,
		interval: interval,
		logger:   logger.With("module", "netx"),
		changes:  make(chan bool, 1),
	}
}

// Online reports the last observed connectivity state.
func (w *Watcher) Online() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.online
}

// Changes delivers edge-triggered transitions: true on reconnect, false on
// disconnect. The channel has a buffer of one; consecutive unconsumed
// transitions collapse to the most recent state.
func (w *Watcher) Changes() <-chan bool {
	return w.changes
}

// Run probes until ctx is done. An initial probe fires immediately.
func (w *Watcher) Run(ctx context.Context) {
	w.probe(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.probe(ctx)
		}
	}
}

func (w *Watcher) probe(ctx context.Context) {
	err := w.pinger.Ping(ctx)
	online := err == nil

	w.mu.Lock()
	changed := online != w.online
	w.online = online
	w.mu.Unlock()

	if !changed {
		return
	}

	if online {
		w.logger.Info(ctx, "server reachable")
	} else {
		w.logger.Warn(ctx, "server unreachable", "error", err)
	}

	// Collapse an unconsumed stale transition into the latest one.
	select {
	case <-w.changes:
	default:
	}
	w.changes <- online
}
