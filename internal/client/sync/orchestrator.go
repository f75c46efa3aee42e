// Package sync contains the client-side sync engine: the orchestrator that
// drives pull/push cycles against the remote API, the optimistic-concurrency
// conflict detector, and the resolution strategies.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/scribelab/scribe/internal/client/api"
	"github.com/scribelab/scribe/internal/client/models"
	"github.com/scribelab/scribe/internal/client/relay"
	"github.com/scribelab/scribe/internal/client/repositories/metadata"
	"github.com/scribelab/scribe/internal/client/repositories/mirror"
	"github.com/scribelab/scribe/internal/client/repositories/queue"
	"github.com/scribelab/scribe/internal/logging"
)

// State is the orchestrator's externally visible phase.
type State string

const (
	StateIdle    State = "idle"
	StateSyncing State = "syncing"
	StateSynced  State = "synced"
	StateError   State = "error"
	StateOffline State = "offline"
)

// NetworkState is the external connectivity observer. Implemented by
// netx.Watcher; faked in tests.
type NetworkState interface {
	Online() bool
	// Changes delivers edge-triggered transitions: true on reconnect,
	// false on disconnect.
	Changes() <-chan bool
}

// Config holds orchestrator tunables.
type Config struct {
	// DebounceWindow delays a push after a burst of local edits.
	DebounceWindow time.Duration
	// SyncInterval is the periodic full-cycle timer while online.
	SyncInterval time.Duration
	// RetryCeiling is the per-entry attempt budget.
	RetryCeiling int
	// BackoffBase and BackoffCap bound the exponential retry schedule.
	BackoffBase time.Duration
	BackoffCap  time.Duration
}

// DefaultConfig returns the production tunables.
func DefaultConfig() Config {
	return Config{
		DebounceWindow: 2 * time.Second,
		SyncInterval:   30 * time.Second,
		RetryCeiling:   3,
		BackoffBase:    time.Second,
		BackoffCap:     15 * time.Second,
	}
}

// Status is a point-in-time snapshot of the orchestrator.
type Status struct {
	State      State
	LastSyncAt time.Time
	LastError  error
	Pending    int
}

// Orchestrator runs the sync loop for one user session. It is the single
// consumer of the mutation queue; local edits may enqueue concurrently, which
// is why pushes stamp versions from the mirror at send time and re-check the
// queue entry before removal.
type Orchestrator struct {
	cfg     Config
	api     api.Client
	queue   queue.Repository
	mirror  mirror.Repository
	meta    metadata.Repository
	relay   *relay.Relay
	network NetworkState
	logger  logging.Logger
	now     func() time.Time

	resolver *Resolver

	// kick carries coalesced sync triggers; buffer of one means triggers
	// arriving mid-cycle fold into a single follow-up cycle.
	kick chan struct{}

	mu            sync.Mutex
	state         State
	lastErr       error
	lastSyncAt    time.Time
	debounceTimer *time.Timer
	retryTimer    *time.Timer
	stopped       bool

	conflicts chan *models.Conflict
}

// New constructs an orchestrator. All dependencies are injected; pass nil
// now to use the wall clock.
func New(cfg Config, apiClient api.Client, q queue.Repository, m mirror.Repository, meta metadata.Repository, r *relay.Relay, network NetworkState, logger logging.Logger, now func() time.Time) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		cfg:       cfg,
		api:       apiClient,
		queue:     q,
		mirror:    m,
		meta:      meta,
		relay:     r,
		network:   network,
		logger:    logger.With("module", "sync"),
		now:       now,
		resolver:  NewResolver(q, m, now),
		kick:      make(chan struct{}, 1),
		state:     StateIdle,
		conflicts: make(chan *models.Conflict, 16),
	}
}

// Run drives the sync loop until ctx is done. Only one cycle ever runs at a
// time; all triggers funnel through the coalescing kick channel.
func (o *Orchestrator) Run(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.SyncInterval)
	defer ticker.Stop()
	defer o.stopTimers()

	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-o.network.Changes():
			if !ok {
				return
			}
			if online {
				o.setState(StateIdle, nil)
				o.logger.Info(ctx, "connectivity regained, draining queue")
				o.requestSync()
			} else {
				o.setState(StateOffline, nil)
			}
		case <-ticker.C:
			if o.network.Online() {
				o.requestSync()
			}
		case <-o.kick:
			o.runCycle(ctx)
		}
	}
}

// QueueDocument records a local document edit and schedules a debounced push.
func (o *Orchestrator) QueueDocument(ctx context.Context, doc *models.Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}
	return o.enqueue(ctx, models.EntityTypeDocument, doc.ID, models.OperationUpsert, payload, false)
}

// QueueFolder records a local folder edit and schedules a debounced push.
func (o *Orchestrator) QueueFolder(ctx context.Context, folder *models.Folder) error {
	payload, err := json.Marshal(folder)
	if err != nil {
		return fmt.Errorf("failed to encode folder: %w", err)
	}
	return o.enqueue(ctx, models.EntityTypeFolder, folder.ID, models.OperationUpsert, payload, false)
}

// QueueDelete records a local delete. Deletes skip the debounce window.
func (o *Orchestrator) QueueDelete(ctx context.Context, entityType models.EntityType, entityID string) error {
	return o.enqueue(ctx, entityType, entityID, models.OperationDelete, nil, true)
}

func (o *Orchestrator) enqueue(ctx context.Context, entityType models.EntityType, entityID string, op models.Operation, payload json.RawMessage, immediate bool) error {
	err := o.queue.Enqueue(ctx, &models.QueueEntry{
		EntityID:   entityID,
		EntityType: entityType,
		Operation:  op,
		Payload:    payload,
		EnqueuedAt: o.now().UTC(),
	})
	if err != nil {
		return err
	}

	if immediate {
		o.requestSync()
	} else {
		o.scheduleDebounced()
	}
	return nil
}

// ForceSync bypasses the debounce window and triggers a cycle now.
func (o *Orchestrator) ForceSync() {
	o.requestSync()
}

// Conflicts delivers detected conflicts awaiting a user decision. Apply a
// decision with Resolve.
func (o *Orchestrator) Conflicts() <-chan *models.Conflict {
	return o.conflicts
}

// Resolve applies a resolution strategy to a conflict and schedules a cycle
// if the strategy requeued content. For ResolvedBoth the returned id names
// the clone created from the local content.
func (o *Orchestrator) Resolve(ctx context.Context, c *models.Conflict, strategy models.ResolutionState) (string, error) {
	var (
		cloneID string
		err     error
	)
	switch strategy {
	case models.ResolvedLocal:
		err = o.resolver.ResolveLocal(ctx, c)
	case models.ResolvedServer:
		err = o.resolver.ResolveServer(ctx, c)
	case models.ResolvedBoth:
		cloneID, err = o.resolver.ResolveBoth(ctx, c)
	default:
		return "", fmt.Errorf("unknown resolution strategy %q", strategy)
	}
	if err != nil {
		return "", err
	}

	if strategy != models.ResolvedServer {
		o.requestSync()
	}
	return cloneID, nil
}

// Status reports the current state snapshot.
func (o *Orchestrator) Status(ctx context.Context) Status {
	pending, err := o.queue.Count(ctx)
	if err != nil {
		pending = -1
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		State:      o.state,
		LastSyncAt: o.lastSyncAt,
		LastError:  o.lastErr,
		Pending:    pending,
	}
}

// requestSync asks for a cycle. Non-blocking: a pending request absorbs
// further ones.
func (o *Orchestrator) requestSync() {
	select {
	case o.kick <- struct{}{}:
	default:
	}
}

func (o *Orchestrator) scheduleDebounced() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return
	}
	if o.debounceTimer != nil {
		o.debounceTimer.Stop()
	}
	o.debounceTimer = time.AfterFunc(o.cfg.DebounceWindow, o.requestSync)
}

func (o *Orchestrator) scheduleRetry(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return
	}
	if o.retryTimer != nil {
		o.retryTimer.Stop()
	}
	o.retryTimer = time.AfterFunc(d, o.requestSync)
}

func (o *Orchestrator) stopTimers() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = true
	if o.debounceTimer != nil {
		o.debounceTimer.Stop()
	}
	if o.retryTimer != nil {
		o.retryTimer.Stop()
	}
}

func (o *Orchestrator) setState(s State, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = s
	o.lastErr = err
	if s == StateSynced {
		o.lastSyncAt = o.now().UTC()
	}
}

// runCycle performs one pull+push cycle. It runs to completion of its
// snapshot; there is no mid-cycle cancellation beyond ctx.
func (o *Orchestrator) runCycle(ctx context.Context) {
	if !o.network.Online() {
		o.setState(StateOffline, nil)
		return
	}

	o.setState(StateSyncing, nil)

	if err := o.pull(ctx); err != nil {
		o.logger.Warn(ctx, "pull phase failed", "error", err)
		o.setState(StateError, err)
		return
	}

	again, err := o.push(ctx)
	if err != nil {
		o.setState(StateError, err)
		return
	}

	o.setState(StateSynced, nil)
	o.setState(StateIdle, nil)

	if again {
		o.requestSync()
	}
}

func (o *Orchestrator) reportConflict(c *models.Conflict) {
	select {
	case o.conflicts <- c:
	default:
		// The queue entry is already removed, so a dropped conflict cannot
		// be re-detected. Log loudly rather than block the cycle.
		o.logger.Error(context.Background(), "conflict channel full, dropping conflict", "entity_id", c.EntityID)
	}
}
