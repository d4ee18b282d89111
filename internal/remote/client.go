// Package remote is the in-process face of the excluded API-client layer.
// The sync engine performs every mutation through Client and never learns
// about HTTP verbs, endpoints or auth headers.
package remote

import (
	"context"

	"github.com/dmitrijs2005/aircater/internal/models"
)

// Result is the outcome of a remote operation.
type Result struct {
	// ServerEntity is the server's post-operation entity, present on a
	// successful create or update.
	ServerEntity map[string]any

	// Conflict is non-nil when the server holds a newer revision than the
	// one the operation was based on. Not an error: the caller routes it to
	// the conflict resolver.
	Conflict *Conflict
}

// Conflict carries the server's current snapshot for side-by-side resolution.
type Conflict struct {
	ServerVersion map[string]any
}

// Client is the remote call collaborator. Implementations must guarantee
// that identical idempotency keys never cause duplicate server-side effects.
type Client interface {
	Close() error

	// Ping probes server reachability.
	Ping(ctx context.Context) error

	// FetchAll retrieves every record of a kind.
	FetchAll(ctx context.Context, kind models.Kind) ([]map[string]any, error)

	// Fetch retrieves one record, or common.ErrorNotFound.
	Fetch(ctx context.Context, kind models.Kind, id string) (map[string]any, error)

	// Perform executes a mutation. Failures are classified with the common
	// sentinels: ErrTransientNetwork (retryable), ErrRejected (terminal),
	// ErrorUnauthorized.
	Perform(ctx context.Context, op models.Operation, kind models.Kind, id string,
		payload map[string]any, idempotencyKey string) (*Result, error)
}
