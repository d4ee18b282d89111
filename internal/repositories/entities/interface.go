package entities

import (
	"context"

	"github.com/dmitrijs2005/aircater/internal/models"
)

// Repository is the local store for cached entities. All operations are
// atomic per key. Storage failures are surfaced wrapped in common.ErrStorage
// so the sync engine can leave the queued mutation in place for retry.
type Repository interface {
	// Get returns the entity or common.ErrorNotFound.
	Get(ctx context.Context, kind models.Kind, id string) (*models.Entity, error)

	// GetAll lists every entity of a kind, unordered.
	GetAll(ctx context.Context, kind models.Kind) ([]models.Entity, error)

	// ListOrdered lists entities ordered by a whitelisted payload field
	// (name, status, delivery_at, client_id, caterer_id, airport_id).
	ListOrdered(ctx context.Context, kind models.Kind, orderBy string) ([]models.Entity, error)

	// ListByStatus lists entities of a kind in the given sync status.
	ListByStatus(ctx context.Context, kind models.Kind, status models.SyncStatus) ([]models.Entity, error)

	// Put upserts the entity by local id.
	Put(ctx context.Context, e *models.Entity) error

	// Rekey moves an entity from oldID to e.LocalID, replacing the old row.
	// Used when a temporary id resolves to the server-assigned one.
	Rekey(ctx context.Context, kind models.Kind, oldID string, e *models.Entity) error

	// Delete removes the entity. Deleting a missing row is not an error.
	Delete(ctx context.Context, kind models.Kind, id string) error

	// PruneSynced removes synced rows of a kind whose local id is not in
	// keep. Rows with unsynced work are never touched, and orders are never
	// pruned at all.
	PruneSynced(ctx context.Context, kind models.Kind, keep []string) error
}
