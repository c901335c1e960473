package analyticsdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const getSnapshot = `
SELECT id, user_id, period, start_date, end_date, payload, last_updated, created_at
FROM analytics_snapshots
WHERE user_id = $1 AND period = $2`

// GetSnapshot loads the snapshot of one (user, period). It returns ErrNotFound when absent.
func (q *Queries) GetSnapshot(ctx context.Context, arg GetSnapshotParams) (SnapshotRow, error) {
	var row SnapshotRow
	err := q.db.QueryRow(ctx, getSnapshot, arg.UserID, arg.Period).Scan(
		&row.ID, &row.UserID, &row.Period, &row.StartDate, &row.EndDate,
		&row.Payload, &row.LastUpdated, &row.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return SnapshotRow{}, ErrNotFound
	}
	if err != nil {
		return SnapshotRow{}, fmt.Errorf("analyticsdb: get snapshot: %w", err)
	}
	return row, nil
}

// The conflict branch keeps id and created_at of the existing row.
const upsertSnapshot = `
INSERT INTO analytics_snapshots (id, user_id, period, start_date, end_date, payload, last_updated, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
ON CONFLICT (user_id, period) DO UPDATE SET
    start_date = EXCLUDED.start_date,
    end_date = EXCLUDED.end_date,
    payload = EXCLUDED.payload,
    last_updated = EXCLUDED.last_updated
RETURNING id, user_id, period, start_date, end_date, payload, last_updated, created_at`

// UpsertSnapshot writes the snapshot of one (user, period) in a single statement.
func (q *Queries) UpsertSnapshot(ctx context.Context, arg UpsertSnapshotParams) (SnapshotRow, error) {
	var row SnapshotRow
	err := q.db.QueryRow(ctx, upsertSnapshot,
		arg.ID, arg.UserID, arg.Period, arg.StartDate, arg.EndDate, arg.Payload, arg.LastUpdated,
	).Scan(
		&row.ID, &row.UserID, &row.Period, &row.StartDate, &row.EndDate,
		&row.Payload, &row.LastUpdated, &row.CreatedAt,
	)
	if err != nil {
		return SnapshotRow{}, fmt.Errorf("analyticsdb: upsert snapshot: %w", err)
	}
	return row, nil
}

const deleteSnapshotsByUser = `DELETE FROM analytics_snapshots WHERE user_id = $1`

// DeleteSnapshotsByUser removes every snapshot of the user and reports how many rows went.
func (q *Queries) DeleteSnapshotsByUser(ctx context.Context, userID string) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteSnapshotsByUser, userID)
	if err != nil {
		return 0, fmt.Errorf("analyticsdb: delete snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

const listSnapshotUsers = `SELECT DISTINCT user_id FROM analytics_snapshots ORDER BY user_id`

// ListSnapshotUsers returns every tenant that owns at least one snapshot.
func (q *Queries) ListSnapshotUsers(ctx context.Context) ([]string, error) {
	rows, err := q.db.Query(ctx, listSnapshotUsers)
	if err != nil {
		return nil, fmt.Errorf("analyticsdb: list snapshot users: %w", err)
	}
	users, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("analyticsdb: list snapshot users: %w", err)
	}
	return users, nil
}
