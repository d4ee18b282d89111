package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
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

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrStorage, err)
}

const itemColumns = `id, operation, entity_kind, entity_id, payload, created_at, attempts, last_attempt_at, last_error, failed`

func scanItem(scan func(dest ...any) error) (*models.QueueItem, error) {
	var (
		payload       sql.NullString
		lastAttemptAt sql.NullInt64
		lastError     sql.NullString
		createdAt     int64
		failed        int
		it            models.QueueItem
		op, kind      string
	)

	err := scan(&it.ID, &op, &kind, &it.EntityID, &payload, &createdAt,
		&it.Attempts, &lastAttemptAt, &lastError, &failed)
	if err != nil {
		return nil, err
	}

	it.Operation = models.Operation(op)
	it.Kind = models.Kind(kind)
	it.CreatedAt = time.Unix(0, createdAt)
	it.Failed = failed != 0
	if payload.Valid {
		if err := json.Unmarshal([]byte(payload.String), &it.Payload); err != nil {
			return nil, fmt.Errorf("corrupt queue payload for %s: %w", it.ID, err)
		}
	}
	if lastAttemptAt.Valid {
		it.LastAttemptAt = time.Unix(0, lastAttemptAt.Int64)
	}
	if lastError.Valid {
		it.LastError = lastError.String
	}
	return &it, nil
}

func (r *SQLiteRepository) Enqueue(ctx context.Context, item *models.QueueItem) error {
	var payload any
	if item.Payload != nil {
		b, err := json.Marshal(item.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal queue payload: %w", err)
		}
		payload = string(b)
	}

	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO sync_queue (%s) VALUES (?, ?, ?, ?, ?, ?, 0, NULL, NULL, 0)`, itemColumns),
		item.ID, string(item.Operation), string(item.Kind), item.EntityID, payload, item.CreatedAt.UnixNano())
	if err != nil {
		return storageErr("failed to enqueue item", err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.QueueItem, error) {
	row := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM sync_queue WHERE id = ?`, itemColumns), id)

	it, err := scanItem(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("queue item %s: %w", id, common.ErrorNotFound)
	}
	if err != nil {
		return nil, storageErr("failed to get queue item", err)
	}
	return it, nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]models.QueueItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("failed to select queue items", err)
	}
	defer rows.Close()

	var result []models.QueueItem
	for rows.Next() {
		it, err := scanItem(rows.Scan)
		if err != nil {
			return nil, storageErr("failed to scan queue item", err)
		}
		result = append(result, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("failed to iterate queue items", err)
	}
	return result, nil
}

func (r *SQLiteRepository) ListPending(ctx context.Context) ([]models.QueueItem, error) {
	return r.list(ctx, fmt.Sprintf(`SELECT %s FROM sync_queue WHERE failed = 0 ORDER BY created_at`, itemColumns))
}

func (r *SQLiteRepository) ListFailed(ctx context.Context) ([]models.QueueItem, error) {
	return r.list(ctx, fmt.Sprintf(`SELECT %s FROM sync_queue WHERE failed = 1 ORDER BY created_at`, itemColumns))
}

func (r *SQLiteRepository) ListForEntity(ctx context.Context, kind models.Kind, entityID string) ([]models.QueueItem, error) {
	return r.list(ctx,
		fmt.Sprintf(`SELECT %s FROM sync_queue WHERE failed = 0 AND entity_kind = ? AND entity_id = ? ORDER BY created_at`, itemColumns),
		string(kind), entityID)
}

func (r *SQLiteRepository) MarkSucceeded(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return storageErr("failed to remove queue item", err)
	}
	return nil
}

func (r *SQLiteRepository) RecordFailure(ctx context.Context, id string, errMsg string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET attempts = attempts + 1, last_attempt_at = ?, last_error = ? WHERE id = ?`,
		at.UnixNano(), errMsg, id)
	if err != nil {
		return storageErr("failed to record queue failure", err)
	}
	return requireOneRow(res, id)
}

func (r *SQLiteRepository) MarkTerminal(ctx context.Context, id string, errMsg string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET attempts = attempts + 1, last_attempt_at = ?, last_error = ?, failed = 1 WHERE id = ?`,
		at.UnixNano(), errMsg, id)
	if err != nil {
		return storageErr("failed to mark queue item failed", err)
	}
	return requireOneRow(res, id)
}

func (r *SQLiteRepository) ResetForRetry(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET attempts = 0, last_attempt_at = NULL, last_error = NULL, failed = 0 WHERE id = ?`,
		id)
	if err != nil {
		return storageErr("failed to reset queue item", err)
	}
	return requireOneRow(res, id)
}

func (r *SQLiteRepository) UpdatePayload(ctx context.Context, id string, payload map[string]any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal queue payload: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `UPDATE sync_queue SET payload = ? WHERE id = ?`, string(b), id)
	if err != nil {
		return storageErr("failed to update queue payload", err)
	}
	return requireOneRow(res, id)
}

func (r *SQLiteRepository) UpdateEntityID(ctx context.Context, id string, entityID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE sync_queue SET entity_id = ? WHERE id = ?`, entityID, id)
	if err != nil {
		return storageErr("failed to update queue entity id", err)
	}
	return requireOneRow(res, id)
}

func (r *SQLiteRepository) CancelItem(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return storageErr("failed to cancel queue item", err)
	}
	return nil
}

func (r *SQLiteRepository) CancelEntity(ctx context.Context, kind models.Kind, entityID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sync_queue WHERE failed = 0 AND entity_kind = ? AND entity_id = ?`,
		string(kind), entityID)
	if err != nil {
		return storageErr("failed to cancel queue items", err)
	}
	return nil
}

func requireOneRow(res sql.Result, id string) error {
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("queue item %s: %w", id, common.ErrorNotFound)
	}
	return nil
}
