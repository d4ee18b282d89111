// Package models defines the client-side data model: the six cached entity
// kinds, their synchronization metadata, and the sync-queue item shape.
package models

// Kind identifies one of the cached entity kinds.
type Kind string

const (
	KindOrder    Kind = "order"
	KindClient   Kind = "client"
	KindCaterer  Kind = "caterer"
	KindAirport  Kind = "airport"
	KindFBO      Kind = "fbo"
	KindMenuItem Kind = "menu_item"
)

// Kinds lists every entity kind, orders first.
var Kinds = []Kind{KindOrder, KindClient, KindCaterer, KindAirport, KindFBO, KindMenuItem}

// CatalogKinds are the read-through cached kinds. Unlike orders they may be
// evicted once synced; they never hold unsynced user work of their own accord.
var CatalogKinds = []Kind{KindClient, KindCaterer, KindAirport, KindFBO, KindMenuItem}

// Valid reports whether k is a known entity kind.
func (k Kind) Valid() bool {
	switch k {
	case KindOrder, KindClient, KindCaterer, KindAirport, KindFBO, KindMenuItem:
		return true
	}
	return false
}

// SyncStatus is the synchronization state of a cached entity.
type SyncStatus string

const (
	StatusSynced        SyncStatus = "synced"
	StatusPendingCreate SyncStatus = "pending_create"
	StatusPendingUpdate SyncStatus = "pending_update"
	StatusPendingDelete SyncStatus = "pending_delete"
	StatusConflict      SyncStatus = "conflict"
)

// Pending reports whether the status requires a non-nil pendingChanges set.
func (s SyncStatus) Pending() bool {
	return s == StatusPendingCreate || s == StatusPendingUpdate || s == StatusConflict
}

// Operation is a queued mutation type.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)
