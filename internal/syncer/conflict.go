package syncer

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/dmitrijs2005/aircater/internal/common"
	"github.com/dmitrijs2005/aircater/internal/dbx"
	"github.com/dmitrijs2005/aircater/internal/models"
	"github.com/dmitrijs2005/aircater/internal/repositories/entities"
	"github.com/dmitrijs2005/aircater/internal/repositories/queue"
	"github.com/google/uuid"
)

// Resolution is the user's verdict on a version conflict.
type Resolution string

const (
	// ResolutionLocal keeps the local edits, rebased onto the server revision.
	ResolutionLocal Resolution = "local"
	// ResolutionServer discards local edits and adopts the server snapshot.
	ResolutionServer Resolution = "server"
	// ResolutionMerge applies a caller-built field set on top of the server
	// snapshot.
	ResolutionMerge Resolution = "merge"
)

// bookkeeping fields that never count as a user-visible conflict
var diffIgnored = map[string]struct{}{
	"version":    {},
	"updated_at": {},
}

// ConflictingFields returns the fields whose values differ between the local
// pending changes and the server snapshot, sorted. Fields touched on only one
// side still count: an edit the server never saw is a difference, and so is a
// server change to a field edited locally.
func ConflictingFields(pending, server map[string]any) []string {
	fields := make(map[string]struct{})

	for k, lv := range pending {
		if _, skip := diffIgnored[k]; skip {
			continue
		}
		if sv, ok := server[k]; !ok || !reflect.DeepEqual(lv, sv) {
			fields[k] = struct{}{}
		}
	}

	out := make([]string, 0, len(fields))
	for k := range fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ResolveConflict settles a conflicted entity. For local and merge the pending
// work is folded into a single fresh update based on the server revision; for
// server the snapshot simply replaces the local state. All outcomes clear the
// conflict, drop the retained snapshot and resume draining for the entity.
//
// merged is required for ResolutionMerge and ignored otherwise.
func (e *Engine) ResolveConflict(ctx context.Context, kind models.Kind, id string, res Resolution, merged map[string]any) error {
	ent, err := e.repos.Entities.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	if ent.SyncStatus != models.StatusConflict {
		return fmt.Errorf("%s %s is not in conflict (status %s): %w", kind, id, ent.SyncStatus, common.ErrVersionConflict)
	}
	if ent.ServerVersion == nil {
		return fmt.Errorf("%s %s has no server snapshot to resolve against", kind, id)
	}
	if res == ResolutionMerge && merged == nil {
		return fmt.Errorf("merge resolution for %s %s requires a merged field set", kind, id)
	}

	now := e.now()
	serverRev := models.ServerRevision(ent.ServerVersion)

	err = dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		entRepo := entities.NewSQLiteRepository(tx)
		qRepo := queue.NewSQLiteRepository(tx)

		// the old pending items were written against a stale base version
		if err := qRepo.CancelEntity(ctx, kind, id); err != nil {
			return err
		}

		switch res {
		case ResolutionServer:
			ent.Payload = models.CloneMap(ent.ServerVersion)
			ent.SyncStatus = models.StatusSynced
			ent.PendingChanges = nil
			ent.LastSyncedAt = now

		case ResolutionLocal, ResolutionMerge:
			changes := ent.PendingChanges
			if res == ResolutionMerge {
				changes = models.CloneMap(merged)
			}

			payload := models.CloneMap(ent.ServerVersion)
			for k, v := range changes {
				payload[k] = v
			}
			payload["version"] = serverRev

			wire := models.CloneMap(changes)
			wire["version"] = serverRev

			if err := qRepo.Enqueue(ctx, &models.QueueItem{
				ID:        uuid.NewString(),
				Operation: models.OpUpdate,
				Kind:      kind,
				EntityID:  id,
				Payload:   wire,
				CreatedAt: now,
			}); err != nil {
				return err
			}

			ent.Payload = payload
			ent.SyncStatus = models.StatusPendingUpdate
			ent.PendingChanges = changes

		default:
			return fmt.Errorf("unknown resolution %q", res)
		}

		ent.ServerVersion = nil
		ent.Version++
		ent.UpdatedAt = now
		return entRepo.Put(ctx, ent)
	})
	if err != nil {
		return fmt.Errorf("failed to resolve conflict on %s %s: %w", kind, id, err)
	}

	e.unpause(kind, id)
	e.log.Info(ctx, "conflict resolved", "kind", kind, "id", id, "resolution", res)
	return nil
}
