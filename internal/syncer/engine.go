// Package syncer drains the durable mutation queue against the remote API.
// It enforces per-entity FIFO ordering, resolves temporary identities when
// creates succeed, retries transient failures with exponential backoff and
// routes version conflicts to the resolver instead of retrying them.
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/aircater/internal/common"
	"github.com/dmitrijs2005/aircater/internal/dbx"
	"github.com/dmitrijs2005/aircater/internal/logging"
	"github.com/dmitrijs2005/aircater/internal/models"
	"github.com/dmitrijs2005/aircater/internal/remote"
	"github.com/dmitrijs2005/aircater/internal/repositories"
	"github.com/dmitrijs2005/aircater/internal/repositories/entities"
	"github.com/dmitrijs2005/aircater/internal/repositories/queue"
	"github.com/dmitrijs2005/aircater/internal/tempid"
)

// maxAttempts is the automatic retry budget per queue item. After the last
// failed attempt the item goes terminal and waits for the user.
const maxAttempts = 3

type entityKey struct {
	kind models.Kind
	id   string
}

// Engine owns the drain state machine. A single engine exists per database;
// Drain is safe to call from anywhere and collapses concurrent calls into one.
type Engine struct {
	db     *sql.DB
	repos  *repositories.Repositories
	remote remote.Client
	alloc  *tempid.Allocator
	bus    *Bus
	log    logging.Logger

	baseDelay time.Duration
	now       func() time.Time

	// Online, when set, gates draining on connectivity. Wired to the
	// watcher by the caller; nil means always try.
	Online func() bool

	mu       sync.Mutex
	draining bool
	paused   map[entityKey]struct{}
}

func NewEngine(db *sql.DB, repos *repositories.Repositories, rc remote.Client,
	alloc *tempid.Allocator, bus *Bus, log logging.Logger, baseDelay time.Duration) *Engine {

	return &Engine{
		db:        db,
		repos:     repos,
		remote:    rc,
		alloc:     alloc,
		bus:       bus,
		log:       log,
		baseDelay: baseDelay,
		now:       time.Now,
		paused:    make(map[entityKey]struct{}),
	}
}

func (e *Engine) pause(kind models.Kind, id string) {
	e.mu.Lock()
	e.paused[entityKey{kind, id}] = struct{}{}
	e.mu.Unlock()
}

func (e *Engine) unpause(kind models.Kind, id string) {
	e.mu.Lock()
	delete(e.paused, entityKey{kind, id})
	e.mu.Unlock()
}

func (e *Engine) isPaused(kind models.Kind, id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.paused[entityKey{kind, id}]
	return ok
}

// RunLoop drains on a timer and whenever wake signals (connectivity regained,
// new work enqueued). Blocks until ctx is cancelled.
func (e *Engine) RunLoop(ctx context.Context, interval time.Duration, wake <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-wake:
		case <-ctx.Done():
			return
		}
		if err := e.Drain(ctx); err != nil {
			e.log.Error(ctx, "drain failed", "error", err)
		}
	}
}

// Drain processes the pending queue once, oldest first. Only one drain runs
// at a time; a call during an active drain returns immediately. Items whose
// entity is conflict-paused, still inside its backoff window, or blocked on an
// unresolved temp-id reference are skipped, along with every later item for
// the same entity so per-entity ordering holds.
func (e *Engine) Drain(ctx context.Context) error {
	e.mu.Lock()
	if e.draining {
		e.mu.Unlock()
		return nil
	}
	e.draining = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.draining = false
		e.mu.Unlock()
	}()

	if e.Online != nil && !e.Online() {
		e.log.Debug(ctx, "drain skipped, offline")
		return nil
	}

	items, err := e.repos.Queue.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending queue: %w", err)
	}
	if len(items) == 0 {
		return nil
	}

	e.bus.Publish(Event{Type: EventSyncStarted, Pending: len(items)})
	e.log.Info(ctx, "drain started", "pending", len(items))

	done := 0
	skip := make(map[entityKey]struct{})

	for i := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		key := entityKey{items[i].Kind, items[i].EntityID}
		if _, skipped := skip[key]; skipped {
			continue
		}
		if e.isPaused(items[i].Kind, items[i].EntityID) {
			skip[key] = struct{}{}
			continue
		}
		// the pause set is per-process; the durable conflict marker lives
		// on the entity row, so a restarted engine honours it too
		if ent, err := e.repos.Entities.Get(ctx, items[i].Kind, items[i].EntityID); err == nil &&
			ent.SyncStatus == models.StatusConflict {
			e.pause(items[i].Kind, items[i].EntityID)
			skip[key] = struct{}{}
			continue
		}

		// re-read: an earlier create in this drain may have rewritten the
		// item's payload or entity id
		item, err := e.repos.Queue.GetByID(ctx, items[i].ID)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to reload queue item %s: %w", items[i].ID, err)
		}
		if item.Failed {
			skip[key] = struct{}{}
			continue
		}

		ok, err := e.processItem(ctx, item)
		if err != nil {
			return err
		}
		if !ok {
			skip[key] = struct{}{}
			continue
		}
		done++
		e.bus.Publish(Event{Type: EventSyncProgress, Kind: item.Kind, EntityID: item.EntityID,
			ItemID: item.ID, Pending: len(items), Done: done})
	}

	e.bus.Publish(Event{Type: EventSyncCompleted, Pending: len(items) - done, Done: done})
	e.log.Info(ctx, "drain finished", "processed", done, "skipped", len(items)-done)
	return nil
}

// processItem attempts one queue item. The bool result reports whether the
// item was transmitted successfully; false means the entity should be skipped
// for the rest of this drain. The error result is reserved for local faults
// that abort the whole drain.
func (e *Engine) processItem(ctx context.Context, item *models.QueueItem) (bool, error) {
	now := e.now()

	if item.Attempts > 0 {
		delay := e.baseDelay * (1 << item.Attempts)
		if now.Before(item.LastAttemptAt.Add(delay)) {
			return false, nil
		}
	}

	payload := item.Payload
	if payload != nil {
		rewritten, unresolved := e.alloc.RewritePayload(payload)
		if item.Operation == models.OpCreate {
			// a create's payload carries its own temp id; the server assigns
			// the real one, so it only blocks on foreign references
			kept := unresolved[:0]
			for _, ref := range unresolved {
				if ref != item.EntityID {
					kept = append(kept, ref)
				}
			}
			unresolved = kept
		}
		if len(unresolved) > 0 {
			// a referenced entity has not been created server-side yet;
			// its own queue item runs first (or has failed and blocks us)
			e.log.Debug(ctx, "item deferred on unresolved references",
				"item", item.ID, "refs", unresolved)
			return false, nil
		}
		if err := e.repos.Queue.UpdatePayload(ctx, item.ID, rewritten); err != nil {
			return false, fmt.Errorf("failed to persist rewritten payload: %w", err)
		}
		payload = rewritten
	}

	wireID := item.EntityID
	if item.Operation != models.OpCreate && tempid.IsTemp(wireID) {
		realID, ok := e.alloc.Resolve(wireID)
		if !ok {
			return false, nil
		}
		if err := e.repos.Queue.UpdateEntityID(ctx, item.ID, realID); err != nil {
			return false, fmt.Errorf("failed to persist resolved entity id: %w", err)
		}
		wireID = realID
	}

	res, err := e.remote.Perform(ctx, item.Operation, item.Kind, wireID, payload, item.ID)
	if err != nil {
		return false, e.recordAttemptFailure(ctx, item, err, now)
	}

	if res.Conflict != nil {
		return false, e.markConflict(ctx, item, wireID, res.Conflict.ServerVersion, now)
	}

	return true, e.applySuccess(ctx, item, wireID, res.ServerEntity, now)
}

// recordAttemptFailure books a failed attempt. Server rejections go terminal
// immediately; transient failures consume retry budget and go terminal once
// it runs out. The terminal event fires exactly once, on the transition.
func (e *Engine) recordAttemptFailure(ctx context.Context, item *models.QueueItem, cause error, now time.Time) error {
	attempts := item.Attempts + 1

	terminal := errors.Is(cause, common.ErrRejected)
	if !terminal && attempts >= maxAttempts {
		cause = fmt.Errorf("%w after %d attempts: %w", common.ErrTerminalSync, attempts, cause)
		terminal = true
	}

	if terminal {
		if err := e.repos.Queue.MarkTerminal(ctx, item.ID, cause.Error(), now); err != nil {
			return fmt.Errorf("failed to mark item terminal: %w", err)
		}
		e.log.Error(ctx, "queue item failed terminally",
			"item", item.ID, "kind", item.Kind, "entity", item.EntityID, "error", cause)
		e.bus.Publish(Event{Type: EventSyncFailed, Kind: item.Kind, EntityID: item.EntityID,
			ItemID: item.ID, Err: cause.Error()})
		return nil
	}

	if err := e.repos.Queue.RecordFailure(ctx, item.ID, cause.Error(), now); err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	e.log.Warn(ctx, "queue item attempt failed, will retry",
		"item", item.ID, "attempts", attempts, "error", cause)
	return nil
}

// markConflict flags the entity as conflicted, retains the server snapshot
// for side-by-side resolution and pauses the entity's queue. The item itself
// stays queued untouched; resolution decides its fate.
func (e *Engine) markConflict(ctx context.Context, item *models.QueueItem, id string, snapshot map[string]any, now time.Time) error {
	ent, err := e.repos.Entities.Get(ctx, item.Kind, id)
	if err != nil {
		return fmt.Errorf("failed to load conflicted %s %s: %w", item.Kind, id, err)
	}

	ent.SyncStatus = models.StatusConflict
	ent.ServerVersion = snapshot
	if ent.PendingChanges == nil {
		ent.PendingChanges = models.CloneMap(item.Payload)
	}
	ent.UpdatedAt = now

	if err := e.repos.Entities.Put(ctx, ent); err != nil {
		return fmt.Errorf("failed to store conflict state: %w", err)
	}

	e.pause(item.Kind, id)
	fields := ConflictingFields(ent.PendingChanges, snapshot)
	e.log.Warn(ctx, "version conflict", "kind", item.Kind, "id", id, "fields", fields)
	e.bus.Publish(Event{Type: EventSyncConflict, Kind: item.Kind, EntityID: id, ItemID: item.ID, Fields: fields})
	return nil
}

// applySuccess finalizes a transmitted item: temp-id resolution and rekeying
// for creates, local-state refresh, and removal from the queue, all in one
// transaction with the store update.
func (e *Engine) applySuccess(ctx context.Context, item *models.QueueItem, wireID string, serverEntity map[string]any, now time.Time) error {
	localID := wireID

	if item.Operation == models.OpCreate && tempid.IsTemp(item.EntityID) {
		realID := models.PayloadID(serverEntity)
		if realID == "" {
			return fmt.Errorf("server create response for %s carries no id", item.Kind)
		}
		if err := e.alloc.RecordMapping(ctx, item.Kind, item.EntityID, realID); err != nil {
			return err
		}
		localID = realID
	}

	err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		entRepo := entities.NewSQLiteRepository(tx)
		qRepo := queue.NewSQLiteRepository(tx)

		if err := qRepo.MarkSucceeded(ctx, item.ID); err != nil {
			return err
		}

		if item.Operation == models.OpDelete {
			return entRepo.Delete(ctx, item.Kind, localID)
		}

		// a create's row still sits under its temp id; updates were already
		// rekeyed when the create succeeded
		storeID := item.EntityID
		if item.Operation != models.OpCreate {
			storeID = localID
		}

		ent, err := entRepo.Get(ctx, item.Kind, storeID)
		if err != nil {
			return err
		}

		remaining, err := qRepo.ListForEntity(ctx, item.Kind, storeID)
		if err != nil {
			return err
		}

		if len(remaining) == 0 {
			ent.Payload = models.CloneMap(serverEntity)
			ent.SyncStatus = models.StatusSynced
			ent.PendingChanges = nil
		} else {
			// later edits are still queued; keep them visible locally but
			// pick up the server's revision so they apply cleanly
			newRev := models.ServerRevision(serverEntity)
			ent.Payload = models.CloneMap(ent.Payload)
			ent.Payload["id"] = localID
			ent.Payload["version"] = newRev
			ent.SyncStatus = statusForRemaining(remaining)

			// the queued items were stamped with the revision known at
			// enqueue time; rebase them so the server accepts each in turn
			for i := range remaining {
				if remaining[i].Payload == nil {
					continue
				}
				p := models.CloneMap(remaining[i].Payload)
				p["version"] = newRev
				if err := qRepo.UpdatePayload(ctx, remaining[i].ID, p); err != nil {
					return err
				}
			}
		}
		ent.ServerVersion = nil
		ent.LastSyncedAt = now
		ent.UpdatedAt = now

		if localID != item.EntityID {
			ent.LocalID = localID
			if err := entRepo.Rekey(ctx, item.Kind, item.EntityID, ent); err != nil {
				return err
			}
			return e.rewriteReferences(ctx, qRepo, item.EntityID)
		}
		return entRepo.Put(ctx, ent)
	})
	if err != nil {
		return fmt.Errorf("failed to finalize %s %s %s: %w", item.Operation, item.Kind, item.EntityID, err)
	}

	e.publishSuccess(item, localID)
	return nil
}

// statusForRemaining picks the entity status matching the work still queued
// for it: a queued delete outranks queued updates.
func statusForRemaining(remaining []models.QueueItem) models.SyncStatus {
	for i := range remaining {
		if remaining[i].Operation == models.OpDelete {
			return models.StatusPendingDelete
		}
	}
	return models.StatusPendingUpdate
}

// rewriteReferences updates every still-pending queue item that references the
// freshly resolved temp id, in payload or as its entity id.
func (e *Engine) rewriteReferences(ctx context.Context, qRepo queue.Repository, tempID string) error {
	pending, err := qRepo.ListPending(ctx)
	if err != nil {
		return err
	}

	for i := range pending {
		p := &pending[i]

		if p.EntityID == tempID {
			realID, _ := e.alloc.Resolve(tempID)
			if err := qRepo.UpdateEntityID(ctx, p.ID, realID); err != nil {
				return err
			}
		}

		if p.Payload == nil {
			continue
		}
		refs := tempid.References(p.Payload)
		for _, ref := range refs {
			if ref != tempID {
				continue
			}
			rewritten, _ := e.alloc.RewritePayload(p.Payload)
			if err := qRepo.UpdatePayload(ctx, p.ID, rewritten); err != nil {
				return err
			}
			break
		}
	}
	return nil
}

func (e *Engine) publishSuccess(item *models.QueueItem, localID string) {
	var typ EventType
	switch item.Operation {
	case models.OpCreate:
		typ = EventEntityCreated
	case models.OpUpdate:
		typ = EventEntityUpdated
	case models.OpDelete:
		typ = EventEntityDeleted
	}
	e.bus.Publish(Event{Type: typ, Kind: item.Kind, EntityID: localID, ItemID: item.ID})

	if item.Kind == models.KindOrder && item.Operation != models.OpDelete {
		e.bus.Publish(Event{Type: EventOrderSynced, Kind: item.Kind, EntityID: localID, ItemID: item.ID})
	}
}

// RetryFailed puts a terminally failed item back into rotation with a fresh
// retry budget.
func (e *Engine) RetryFailed(ctx context.Context, itemID string) error {
	if err := e.repos.Queue.ResetForRetry(ctx, itemID); err != nil {
		return err
	}
	e.log.Info(ctx, "failed item queued for retry", "item", itemID)
	return nil
}

// DiscardFailed drops a terminally failed item, abandoning the local change
// it carried. A discarded create removes the local entity outright; for
// other operations the entity is left as-is when more work is queued for it,
// otherwise it is marked synced and its pending edits are forgotten.
func (e *Engine) DiscardFailed(ctx context.Context, itemID string) error {
	item, err := e.repos.Queue.GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if !item.Failed {
		return fmt.Errorf("item %s is not in the failed state", itemID)
	}

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		entRepo := entities.NewSQLiteRepository(tx)
		qRepo := queue.NewSQLiteRepository(tx)

		if err := qRepo.CancelItem(ctx, item.ID); err != nil {
			return err
		}

		if item.Operation == models.OpCreate {
			return entRepo.Delete(ctx, item.Kind, item.EntityID)
		}

		remaining, err := qRepo.ListForEntity(ctx, item.Kind, item.EntityID)
		if err != nil {
			return err
		}
		if len(remaining) > 0 {
			return nil
		}

		ent, err := entRepo.Get(ctx, item.Kind, item.EntityID)
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		ent.SyncStatus = models.StatusSynced
		ent.PendingChanges = nil
		ent.ServerVersion = nil
		ent.UpdatedAt = e.now()
		return entRepo.Put(ctx, ent)
	})
	if err != nil {
		return fmt.Errorf("failed to discard item %s: %w", itemID, err)
	}

	e.log.Info(ctx, "failed item discarded", "item", itemID, "kind", item.Kind, "entity", item.EntityID)
	return nil
}
