// Package queue persists the durable log of pending mutations.
package queue

import (
	"context"
	"time"

	"github.com/dmitrijs2005/aircater/internal/models"
)

// Repository is the durable sync queue. Enqueue always succeeds locally;
// nothing is ever dropped without an explicit MarkSucceeded or cancel.
type Repository interface {
	// Enqueue appends a pending mutation.
	Enqueue(ctx context.Context, item *models.QueueItem) error

	// GetByID returns the item or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.QueueItem, error)

	// ListPending returns non-terminal items oldest first (the FIFO order).
	ListPending(ctx context.Context) ([]models.QueueItem, error)

	// ListFailed returns items in the terminal failed state, oldest first.
	ListFailed(ctx context.Context) ([]models.QueueItem, error)

	// ListForEntity returns non-terminal items for one entity, oldest first.
	ListForEntity(ctx context.Context, kind models.Kind, entityID string) ([]models.QueueItem, error)

	// MarkSucceeded removes a transmitted item.
	MarkSucceeded(ctx context.Context, id string) error

	// RecordFailure increments attempts and stores the retry bookkeeping.
	RecordFailure(ctx context.Context, id string, errMsg string, at time.Time) error

	// MarkTerminal records a failure and moves the item to the terminal
	// failed state. The row stays for manual retry or discard.
	MarkTerminal(ctx context.Context, id string, errMsg string, at time.Time) error

	// ResetForRetry clears the terminal state and retry bookkeeping so the
	// next drain picks the item up again.
	ResetForRetry(ctx context.Context, id string) error

	// UpdatePayload replaces an item's payload (temp-id rewriting).
	UpdatePayload(ctx context.Context, id string, payload map[string]any) error

	// UpdateEntityID replaces an item's entity id (temp-id resolution).
	UpdateEntityID(ctx context.Context, id string, entityID string) error

	// CancelItem removes a not-yet-transmitted item.
	CancelItem(ctx context.Context, id string) error

	// CancelEntity removes every non-terminal item for an entity.
	CancelEntity(ctx context.Context, kind models.Kind, entityID string) error
}
