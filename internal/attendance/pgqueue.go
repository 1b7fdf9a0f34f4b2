package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// PgxPool is the pgx surface the queue needs; *pgxpool.Pool and
// pgxmock.PgxPoolIface both satisfy it.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgQueue stores attendance records in the device-local Postgres.
type PgQueue struct {
	pool PgxPool
}

func NewPgQueue(pool PgxPool) *PgQueue {
	return &PgQueue{pool: pool}
}

var _ Queue = (*PgQueue)(nil)

func (q *PgQueue) Insert(ctx context.Context, record *domain.AttendanceRecord) error {
	if err := record.Validate(); err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	query := `
		INSERT INTO attendance_records (record_id, identity_id, event_type, ts_ms, mode, device_id, synced)
		VALUES ($1, $2, $3, $4, $5, $6, false)
	`

	_, err := q.pool.Exec(ctx, query,
		record.RecordID,
		record.IdentityID,
		string(record.EventType),
		record.Timestamp,
		string(record.Mode),
		record.DeviceID,
	)
	if err != nil {
		return fmt.Errorf("insert attendance record %s: %w", record.RecordID, err)
	}
	return nil
}

func (q *PgQueue) ListUnsynced(ctx context.Context) ([]domain.AttendanceRecord, error) {
	query := `
		SELECT record_id, identity_id, event_type, ts_ms, mode, device_id, synced, synced_at
		FROM attendance_records
		WHERE synced = false
		ORDER BY ts_ms ASC
	`

	rows, err := q.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list unsynced records: %w", err)
	}
	defer rows.Close()

	var out []domain.AttendanceRecord
	for rows.Next() {
		var rec domain.AttendanceRecord
		var eventType, mode string

		err := rows.Scan(
			&rec.RecordID, &rec.IdentityID, &eventType, &rec.Timestamp,
			&mode, &rec.DeviceID, &rec.Synced, &rec.SyncedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}

		rec.EventType = domain.EventType(eventType)
		rec.Mode = domain.CaptureMode(mode)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (q *PgQueue) MarkSynced(ctx context.Context, recordID uuid.UUID, at time.Time) error {
	query := `
		UPDATE attendance_records
		SET synced = true, synced_at = $1
		WHERE record_id = $2 AND synced = false
	`

	result, err := q.pool.Exec(ctx, query, at, recordID)
	if err != nil {
		return fmt.Errorf("mark record %s synced: %w", recordID, err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (q *PgQueue) CountUnsynced(ctx context.Context) (int, error) {
	var count int
	err := q.pool.QueryRow(ctx, `SELECT COUNT(*) FROM attendance_records WHERE synced = false`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unsynced records: %w", err)
	}
	return count, nil
}
