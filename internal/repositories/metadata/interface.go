// Package metadata persists small key/value records: cache freshness
// bookkeeping and the temp-id mapping table.
package metadata

import (
	"context"
)

type Repository interface {
	// Get returns the value for key, or nil when the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// ListPrefix returns every key/value pair whose key starts with prefix.
	ListPrefix(ctx context.Context, prefix string) (map[string][]byte, error)
}
