package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

func record(identityID string, ts int64) *domain.AttendanceRecord {
	return &domain.AttendanceRecord{
		RecordID:   uuid.New(),
		IdentityID: identityID,
		EventType:  domain.EventEntry,
		Timestamp:  ts,
		Mode:       domain.ModeOffline,
		DeviceID:   "kiosk-01",
	}
}

func TestMemQueue_InsertAndList(t *testing.T) {
	ctx := context.Background()
	q := NewMemQueue()

	// Insert out of timestamp order on purpose.
	third := record("emp-1", 3000)
	first := record("emp-1", 1000)
	second := record("emp-2", 2000)

	require.NoError(t, q.Insert(ctx, third))
	require.NoError(t, q.Insert(ctx, first))
	require.NoError(t, q.Insert(ctx, second))

	unsynced, err := q.ListUnsynced(ctx)
	require.NoError(t, err)
	require.Len(t, unsynced, 3)

	assert.Equal(t, first.RecordID, unsynced[0].RecordID)
	assert.Equal(t, second.RecordID, unsynced[1].RecordID)
	assert.Equal(t, third.RecordID, unsynced[2].RecordID)
}

func TestMemQueue_InsertValidates(t *testing.T) {
	q := NewMemQueue()

	bad := record("", 1000)
	err := q.Insert(context.Background(), bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidationFailed)
}

func TestMemQueue_DuplicateInsertRejected(t *testing.T) {
	ctx := context.Background()
	q := NewMemQueue()

	rec := record("emp-1", 1000)
	require.NoError(t, q.Insert(ctx, rec))
	assert.Error(t, q.Insert(ctx, rec))
}

func TestMemQueue_MarkSynced(t *testing.T) {
	ctx := context.Background()
	q := NewMemQueue()

	rec := record("emp-1", 1000)
	require.NoError(t, q.Insert(ctx, rec))

	at := time.Now()
	require.NoError(t, q.MarkSynced(ctx, rec.RecordID, at))

	unsynced, err := q.ListUnsynced(ctx)
	require.NoError(t, err)
	assert.Empty(t, unsynced)

	count, err := q.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemQueue_MarkSyncedMissing(t *testing.T) {
	q := NewMemQueue()

	err := q.MarkSynced(context.Background(), uuid.New(), time.Now())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemQueue_InsertDoesNotAliasCaller(t *testing.T) {
	ctx := context.Background()
	q := NewMemQueue()

	rec := record("emp-1", 1000)
	require.NoError(t, q.Insert(ctx, rec))

	// Mutating the caller's copy must not affect the queued record.
	rec.Synced = true

	count, err := q.CountUnsynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func newPgMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return mock
}

func TestPgQueue_Insert(t *testing.T) {
	mock := newPgMock(t)
	rec := record("emp-1", 1000)

	mock.ExpectExec(`INSERT INTO attendance_records`).
		WithArgs(rec.RecordID, "emp-1", "ENTRY", int64(1000), "OFFLINE", "kiosk-01").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	q := NewPgQueue(mock)
	require.NoError(t, q.Insert(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgQueue_ListUnsynced(t *testing.T) {
	mock := newPgMock(t)
	id1, id2 := uuid.New(), uuid.New()

	rows := pgxmock.NewRows([]string{
		"record_id", "identity_id", "event_type", "ts_ms", "mode", "device_id", "synced", "synced_at",
	}).
		AddRow(id1, "emp-1", "ENTRY", int64(1000), "OFFLINE", "kiosk-01", false, (*time.Time)(nil)).
		AddRow(id2, "emp-1", "EXIT", int64(2000), "ONLINE", "kiosk-01", false, (*time.Time)(nil))
	mock.ExpectQuery(`WHERE synced = false`).WillReturnRows(rows)

	q := NewPgQueue(mock)
	unsynced, err := q.ListUnsynced(context.Background())

	require.NoError(t, err)
	require.Len(t, unsynced, 2)
	assert.Equal(t, domain.EventEntry, unsynced[0].EventType)
	assert.Equal(t, domain.EventExit, unsynced[1].EventType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgQueue_MarkSynced(t *testing.T) {
	t.Run("updates pending record", func(t *testing.T) {
		mock := newPgMock(t)
		id := uuid.New()
		at := time.Now()

		mock.ExpectExec(`UPDATE attendance_records`).
			WithArgs(at, id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		q := NewPgQueue(mock)
		require.NoError(t, q.MarkSynced(context.Background(), id, at))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing or already synced record", func(t *testing.T) {
		mock := newPgMock(t)
		id := uuid.New()
		at := time.Now()

		mock.ExpectExec(`UPDATE attendance_records`).
			WithArgs(at, id).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		q := NewPgQueue(mock)
		err := q.MarkSynced(context.Background(), id, at)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgQueue_CountUnsynced(t *testing.T) {
	mock := newPgMock(t)
	mock.ExpectQuery(`SELECT COUNT`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	q := NewPgQueue(mock)
	count, err := q.CountUnsynced(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
