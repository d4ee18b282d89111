package entities

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/aircater/internal/common"
	"github.com/dmitrijs2005/aircater/internal/dbx"
	"github.com/dmitrijs2005/aircater/internal/models"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

var tables = map[models.Kind]string{
	models.KindOrder:    "orders",
	models.KindClient:   "clients",
	models.KindCaterer:  "caterers",
	models.KindAirport:  "airports",
	models.KindFBO:      "fbos",
	models.KindMenuItem: "menu_items",
}

// orderableFields whitelists ListOrdered sort keys; values are json_extract
// paths into the payload column.
var orderableFields = map[string]string{
	"name":        "$.name",
	"status":      "$.status",
	"delivery_at": "$.delivery_at",
	"client_id":   "$.client_id",
	"caterer_id":  "$.caterer_id",
	"airport_id":  "$.airport_id",
}

var ErrUnknownKind = errors.New("unknown entity kind")

func tableFor(kind models.Kind) (string, error) {
	t, ok := tables[kind]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return t, nil
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorage, err)
}

const entityColumns = `local_id, payload, sync_status, version, pending_changes, server_version, last_synced_at, updated_at`

func marshalNullable(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanEntity(kind models.Kind, scan func(dest ...any) error) (*models.Entity, error) {
	var (
		payload              string
		pending, server      sql.NullString
		lastSynced           sql.NullInt64
		updatedAt            int64
		localID, status      string
		version              int64
	)

	if err := scan(&localID, &payload, &status, &version, &pending, &server, &lastSynced, &updatedAt); err != nil {
		return nil, err
	}

	e := &models.Entity{
		Kind:       kind,
		LocalID:    localID,
		SyncStatus: models.SyncStatus(status),
		Version:    version,
		UpdatedAt:  time.Unix(0, updatedAt),
	}
	if err := json.Unmarshal([]byte(payload), &e.Payload); err != nil {
		return nil, fmt.Errorf("corrupt payload for %s %s: %w", kind, localID, err)
	}
	if pending.Valid {
		if err := json.Unmarshal([]byte(pending.String), &e.PendingChanges); err != nil {
			return nil, fmt.Errorf("corrupt pending changes for %s %s: %w", kind, localID, err)
		}
	}
	if server.Valid {
		if err := json.Unmarshal([]byte(server.String), &e.ServerVersion); err != nil {
			return nil, fmt.Errorf("corrupt server snapshot for %s %s: %w", kind, localID, err)
		}
	}
	if lastSynced.Valid {
		e.LastSyncedAt = time.Unix(0, lastSynced.Int64)
	}
	return e, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, kind models.Kind, id string) (*models.Entity, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE local_id = ?`, entityColumns, table), id)

	e, err := scanEntity(kind, row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", kind, id, common.ErrorNotFound)
	}
	if err != nil {
		return nil, storageErr("failed to get entity", err)
	}
	return e, nil
}

func (r *SQLiteRepository) list(ctx context.Context, kind models.Kind, query string, args ...any) ([]models.Entity, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("failed to select entities", err)
	}
	defer rows.Close()

	var result []models.Entity
	for rows.Next() {
		e, err := scanEntity(kind, rows.Scan)
		if err != nil {
			return nil, storageErr("failed to scan entity", err)
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("failed to iterate entities", err)
	}
	return result, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context, kind models.Kind) ([]models.Entity, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	return r.list(ctx, kind, fmt.Sprintf(`SELECT %s FROM %s`, entityColumns, table))
}

func (r *SQLiteRepository) ListOrdered(ctx context.Context, kind models.Kind, orderBy string) ([]models.Entity, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	path, ok := orderableFields[orderBy]
	if !ok {
		return nil, fmt.Errorf("field %q is not orderable", orderBy)
	}
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY json_extract(payload, '%s')`, entityColumns, table, path)
	return r.list(ctx, kind, query)
}

func (r *SQLiteRepository) ListByStatus(ctx context.Context, kind models.Kind, status models.SyncStatus) ([]models.Entity, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE sync_status = ?`, entityColumns, table)
	return r.list(ctx, kind, query, string(status))
}

func (r *SQLiteRepository) Put(ctx context.Context, e *models.Entity) error {
	table, err := tableFor(e.Kind)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	pending, err := marshalNullable(e.PendingChanges)
	if err != nil {
		return fmt.Errorf("failed to marshal pending changes: %w", err)
	}
	server, err := marshalNullable(e.ServerVersion)
	if err != nil {
		return fmt.Errorf("failed to marshal server snapshot: %w", err)
	}

	var lastSynced any
	if !e.LastSyncedAt.IsZero() {
		lastSynced = e.LastSyncedAt.UnixNano()
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(local_id) DO UPDATE SET
			payload = excluded.payload,
			sync_status = excluded.sync_status,
			version = excluded.version,
			pending_changes = excluded.pending_changes,
			server_version = excluded.server_version,
			last_synced_at = excluded.last_synced_at,
			updated_at = excluded.updated_at
	`, table, entityColumns)

	_, err = r.db.ExecContext(ctx, query,
		e.LocalID, string(payload), string(e.SyncStatus), e.Version,
		pending, server, lastSynced, e.UpdatedAt.UnixNano())
	if err != nil {
		return storageErr("failed to upsert entity", err)
	}
	return nil
}

func (r *SQLiteRepository) Rekey(ctx context.Context, kind models.Kind, oldID string, e *models.Entity) error {
	if err := r.Delete(ctx, kind, oldID); err != nil {
		return err
	}
	return r.Put(ctx, e)
}

func (r *SQLiteRepository) Delete(ctx context.Context, kind models.Kind, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE local_id = ?`, table), id)
	if err != nil {
		return storageErr("failed to delete entity", err)
	}
	return nil
}

func (r *SQLiteRepository) PruneSynced(ctx context.Context, kind models.Kind, keep []string) error {
	if kind == models.KindOrder {
		return errors.New("orders are never pruned")
	}
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	args := make([]any, 0, len(keep)+1)
	args = append(args, string(models.StatusSynced))
	placeholders := make([]string, 0, len(keep))
	for _, id := range keep {
		placeholders = append(placeholders, "?")
		args = append(args, id)
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE sync_status = ?`, table)
	if len(keep) > 0 {
		query += fmt.Sprintf(` AND local_id NOT IN (%s)`, strings.Join(placeholders, ","))
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return storageErr("failed to prune entities", err)
	}
	return nil
}
