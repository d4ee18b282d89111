package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/aircater/internal/logging"
	"github.com/dmitrijs2005/aircater/internal/models"
	"github.com/dmitrijs2005/aircater/internal/remote"
	"github.com/dmitrijs2005/aircater/internal/repositories"
	"github.com/dmitrijs2005/aircater/internal/tempid"
	"github.com/go-playground/validator/v10"
)

// OrderService manages catering orders. Writes are optimistic: they land in
// the local store immediately and sync in the background. Reads prefer the
// server when reachable and fall back to the cache otherwise.
type OrderService struct {
	writer
	repos    *repositories.Repositories
	remote   remote.Client
	validate *validator.Validate

	// online gates the live-read preference; nil means never.
	online func() bool
}

func NewOrderService(db *sql.DB, repos *repositories.Repositories, rc remote.Client,
	log logging.Logger, online func() bool, kick func()) *OrderService {

	return &OrderService{
		writer:   writer{db: db, log: log.With("service", "orders"), now: time.Now, kick: kick},
		repos:    repos,
		remote:   rc,
		validate: validator.New(),
		online:   online,
	}
}

// Create validates the order and stores it locally under a temporary id.
// Totals are computed from the items when not supplied.
func (s *OrderService) Create(ctx context.Context, order *models.Order) (*models.Entity, error) {
	if order.Total == 0 {
		order.Total = orderTotal(order.Items)
	}
	if order.Status == "" {
		order.Status = "draft"
	}
	if err := s.validate.Struct(order); err != nil {
		return nil, fmt.Errorf("invalid order: %w", err)
	}

	payload, err := models.ToMap(order)
	if err != nil {
		return nil, err
	}
	return s.createEntity(ctx, models.KindOrder, payload)
}

// Update applies a partial field change to an order. The merged result is
// re-validated so a change that would be rejected server-side never enqueues.
func (s *OrderService) Update(ctx context.Context, id string, changes map[string]any) (*models.Entity, error) {
	ent, err := s.loadMutable(ctx, models.KindOrder, id)
	if err != nil {
		return nil, err
	}

	merged := models.CloneMap(ent.Payload)
	for k, v := range changes {
		merged[k] = v
	}
	if err := validateAsOrder(s.validate, merged); err != nil {
		return nil, err
	}

	return s.updateEntity(ctx, models.KindOrder, id, changes)
}

// Delete removes an order. An order that never reached the server is dropped
// outright; otherwise the deletion is queued.
func (s *OrderService) Delete(ctx context.Context, id string) error {
	return s.deleteEntity(ctx, models.KindOrder, id)
}

// Get returns one order. When online and the id is server-issued the server
// copy is fetched and cached; rows carrying unsynced local work are always
// served from the cache, since the local edits are the newest truth we have.
func (s *OrderService) Get(ctx context.Context, id string) (*models.Entity, error) {
	local, localErr := s.repos.Entities.Get(ctx, models.KindOrder, id)
	if localErr == nil && local.SyncStatus != models.StatusSynced {
		return local, nil
	}

	if s.online != nil && s.online() && !tempid.IsTemp(id) {
		record, err := s.remote.Fetch(ctx, models.KindOrder, id)
		if err == nil {
			now := s.now()
			ent := &models.Entity{
				Kind:         models.KindOrder,
				LocalID:      id,
				Payload:      record,
				SyncStatus:   models.StatusSynced,
				LastSyncedAt: now,
				UpdatedAt:    now,
			}
			if localErr == nil {
				ent.Version = local.Version
			}
			if err := s.repos.Entities.Put(ctx, ent); err != nil {
				return nil, err
			}
			return ent, nil
		}
		s.log.Debug(ctx, "live order fetch failed, serving cached copy", "id", id, "error", err)
	}

	return local, localErr
}

// List returns cached orders, optionally ordered by a payload field
// (status, delivery_at, client_id, ...).
func (s *OrderService) List(ctx context.Context, orderBy string) ([]models.Entity, error) {
	if orderBy == "" {
		return s.repos.Entities.GetAll(ctx, models.KindOrder)
	}
	return s.repos.Entities.ListOrdered(ctx, models.KindOrder, orderBy)
}

// ListConflicted returns orders awaiting conflict resolution.
func (s *OrderService) ListConflicted(ctx context.Context) ([]models.Entity, error) {
	return s.repos.Entities.ListByStatus(ctx, models.KindOrder, models.StatusConflict)
}

// CancelQueued withdraws a queued mutation before it is transmitted.
func (s *OrderService) CancelQueued(ctx context.Context, itemID string) error {
	return s.cancelQueued(ctx, itemID)
}

// PendingCount reports how many queue items are waiting to sync.
func (s *OrderService) PendingCount(ctx context.Context) (int, error) {
	items, err := s.repos.Queue.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

func orderTotal(items []models.OrderItem) float64 {
	var total float64
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	return total
}

// validateAsOrder round-trips a payload map through the typed struct and runs
// the validation tags on the result.
func validateAsOrder(v *validator.Validate, payload map[string]any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("invalid order payload: %w", err)
	}
	var order models.Order
	if err := json.Unmarshal(b, &order); err != nil {
		return fmt.Errorf("invalid order payload: %w", err)
	}
	if err := v.Struct(&order); err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) {
			return fmt.Errorf("invalid order: %w", verr)
		}
		return fmt.Errorf("invalid order: %w", err)
	}
	return nil
}
