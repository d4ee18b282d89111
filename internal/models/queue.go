package models

import "time"

// QueueItem is a pending mutation awaiting transmission. The intent fields
// are immutable once created; only retry bookkeeping and temp-id rewrites
// mutate an item afterwards.
type QueueItem struct {
	// ID is queue-unique and independent of entity identity. It doubles as
	// the idempotency key for the remote call.
	ID string

	Operation Operation
	Kind      Kind

	// EntityID is the entity's localId at enqueue time; possibly temporary.
	EntityID string

	// Payload is the full entity for create, the field diff for update,
	// and nil for delete.
	Payload map[string]any

	// CreatedAt is the FIFO ordering key. Items for the same entity must be
	// applied in CreatedAt order.
	CreatedAt time.Time

	Attempts      int
	LastAttemptAt time.Time
	LastError     string

	// Failed marks the terminal state after the retry budget is exhausted or
	// the server rejected the request outright. Failed items stay queued
	// until the user retries or discards them.
	Failed bool
}
