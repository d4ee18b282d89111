// Package services implements the application-facing operations: order
// management with optimistic local writes and the read-through catalog.
// Every mutation stores the local state and its sync-queue entry in one
// transaction, so the queue can never disagree with the store.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/aircater/internal/dbx"
	"github.com/dmitrijs2005/aircater/internal/logging"
	"github.com/dmitrijs2005/aircater/internal/models"
	"github.com/dmitrijs2005/aircater/internal/repositories/entities"
	"github.com/dmitrijs2005/aircater/internal/repositories/queue"
	"github.com/dmitrijs2005/aircater/internal/tempid"
	"github.com/google/uuid"
)

// ErrConflictPending is returned for mutations on an entity whose version
// conflict has not been resolved yet.
var ErrConflictPending = errors.New("entity has an unresolved conflict")

// ErrDeletePending is returned for mutations on an entity already queued for
// deletion.
var ErrDeletePending = errors.New("entity is queued for deletion")

// writer holds the shared optimistic-write path. Mutations apply locally
// first and enqueue the corresponding sync item in the same transaction;
// transmission happens later, when the engine drains.
type writer struct {
	db  *sql.DB
	log logging.Logger
	now func() time.Time

	// kick, when set, nudges the sync engine after a successful enqueue.
	kick func()
}

func (w *writer) kicked() {
	if w.kick != nil {
		w.kick()
	}
}

func (w *writer) createEntity(ctx context.Context, kind models.Kind, payload map[string]any) (*models.Entity, error) {
	now := w.now()
	id := tempid.Generate()

	payload = models.CloneMap(payload)
	payload["id"] = id

	ent := &models.Entity{
		Kind:           kind,
		LocalID:        id,
		Payload:        payload,
		SyncStatus:     models.StatusPendingCreate,
		Version:        1,
		PendingChanges: models.CloneMap(payload),
		UpdatedAt:      now,
	}
	item := &models.QueueItem{
		ID:        uuid.NewString(),
		Operation: models.OpCreate,
		Kind:      kind,
		EntityID:  id,
		Payload:   models.CloneMap(payload),
		CreatedAt: now,
	}

	err := dbx.WithTx(ctx, w.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := entities.NewSQLiteRepository(tx).Put(ctx, ent); err != nil {
			return err
		}
		return queue.NewSQLiteRepository(tx).Enqueue(ctx, item)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s locally: %w", kind, err)
	}

	w.log.Info(ctx, "entity created locally", "kind", kind, "id", id)
	w.kicked()
	return ent, nil
}

func (w *writer) updateEntity(ctx context.Context, kind models.Kind, id string, changes map[string]any) (*models.Entity, error) {
	ent, err := w.loadMutable(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	now := w.now()

	payload := models.CloneMap(ent.Payload)
	pending := models.CloneMap(ent.PendingChanges)
	if pending == nil {
		pending = make(map[string]any, len(changes))
	}
	for k, v := range changes {
		payload[k] = v
		pending[k] = v
	}

	ent.Payload = payload
	ent.PendingChanges = pending
	ent.Version++
	ent.UpdatedAt = now
	if ent.SyncStatus != models.StatusPendingCreate {
		ent.SyncStatus = models.StatusPendingUpdate
	}

	// the diff rides with the base revision so the server can detect a
	// concurrent change
	wire := models.CloneMap(changes)
	wire["version"] = models.ServerRevision(ent.Payload)

	item := &models.QueueItem{
		ID:        uuid.NewString(),
		Operation: models.OpUpdate,
		Kind:      kind,
		EntityID:  id,
		Payload:   wire,
		CreatedAt: now,
	}

	err = dbx.WithTx(ctx, w.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := entities.NewSQLiteRepository(tx).Put(ctx, ent); err != nil {
			return err
		}
		return queue.NewSQLiteRepository(tx).Enqueue(ctx, item)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update %s %s locally: %w", kind, id, err)
	}

	w.log.Info(ctx, "entity updated locally", "kind", kind, "id", id, "fields", len(changes))
	w.kicked()
	return ent, nil
}

func (w *writer) deleteEntity(ctx context.Context, kind models.Kind, id string) error {
	ent, err := w.loadMutable(ctx, kind, id)
	if err != nil {
		return err
	}

	now := w.now()

	// never transmitted: cancel the queued work and drop the row, nothing to
	// tell the server
	if ent.SyncStatus == models.StatusPendingCreate {
		err := dbx.WithTx(ctx, w.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if err := queue.NewSQLiteRepository(tx).CancelEntity(ctx, kind, id); err != nil {
				return err
			}
			return entities.NewSQLiteRepository(tx).Delete(ctx, kind, id)
		})
		if err != nil {
			return fmt.Errorf("failed to discard unsynced %s %s: %w", kind, id, err)
		}
		w.log.Info(ctx, "unsynced entity discarded", "kind", kind, "id", id)
		return nil
	}

	ent.SyncStatus = models.StatusPendingDelete
	ent.UpdatedAt = now
	ent.Version++

	item := &models.QueueItem{
		ID:        uuid.NewString(),
		Operation: models.OpDelete,
		Kind:      kind,
		EntityID:  id,
		CreatedAt: now,
	}

	err = dbx.WithTx(ctx, w.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := entities.NewSQLiteRepository(tx).Put(ctx, ent); err != nil {
			return err
		}
		return queue.NewSQLiteRepository(tx).Enqueue(ctx, item)
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s %s locally: %w", kind, id, err)
	}

	w.log.Info(ctx, "entity delete queued", "kind", kind, "id", id)
	w.kicked()
	return nil
}

// cancelQueued withdraws a not-yet-transmitted queue item, abandoning the
// local change it carried. A cancelled create drops the local row; otherwise
// the entity returns to synced once no other work remains queued for it.
func (w *writer) cancelQueued(ctx context.Context, itemID string) error {
	item, err := queue.NewSQLiteRepository(w.db).GetByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Failed {
		return fmt.Errorf("item %s already failed; use retry or discard", itemID)
	}

	err = dbx.WithTx(ctx, w.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		entRepo := entities.NewSQLiteRepository(tx)
		qRepo := queue.NewSQLiteRepository(tx)

		if err := qRepo.CancelItem(ctx, item.ID); err != nil {
			return err
		}

		if item.Operation == models.OpCreate {
			if err := qRepo.CancelEntity(ctx, item.Kind, item.EntityID); err != nil {
				return err
			}
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
		if err != nil {
			return err
		}
		ent.SyncStatus = models.StatusSynced
		ent.PendingChanges = nil
		ent.UpdatedAt = w.now()
		return entRepo.Put(ctx, ent)
	})
	if err != nil {
		return fmt.Errorf("failed to cancel item %s: %w", itemID, err)
	}

	w.log.Info(ctx, "queued item cancelled", "item", itemID, "kind", item.Kind, "entity", item.EntityID)
	return nil
}

// loadMutable fetches the entity and rejects states that must not accept new
// edits.
func (w *writer) loadMutable(ctx context.Context, kind models.Kind, id string) (*models.Entity, error) {
	ent, err := entities.NewSQLiteRepository(w.db).Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	switch ent.SyncStatus {
	case models.StatusConflict:
		return nil, fmt.Errorf("%s %s: %w", kind, id, ErrConflictPending)
	case models.StatusPendingDelete:
		return nil, fmt.Errorf("%s %s: %w", kind, id, ErrDeletePending)
	}
	return ent, nil
}
