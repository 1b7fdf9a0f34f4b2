package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// MemQueue is the in-memory Queue used in tests and on storeless devices.
type MemQueue struct {
	mu      sync.Mutex
	records map[uuid.UUID]*domain.AttendanceRecord
}

func NewMemQueue() *MemQueue {
	return &MemQueue{records: make(map[uuid.UUID]*domain.AttendanceRecord)}
}

var _ Queue = (*MemQueue)(nil)

func (q *MemQueue) Insert(_ context.Context, record *domain.AttendanceRecord) error {
	if err := record.Validate(); err != nil {
		return domain.ErrValidationFailed.WithError(err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.records[record.RecordID]; exists {
		return domain.ErrValidationFailed.WithError(
			&duplicateRecordError{recordID: record.RecordID})
	}

	clone := *record
	q.records[record.RecordID] = &clone
	return nil
}

func (q *MemQueue) ListUnsynced(_ context.Context) ([]domain.AttendanceRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.AttendanceRecord, 0, len(q.records))
	for _, rec := range q.records {
		if !rec.Synced {
			out = append(out, *rec)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (q *MemQueue) MarkSynced(_ context.Context, recordID uuid.UUID, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, ok := q.records[recordID]
	if !ok {
		return domain.ErrNotFound
	}

	rec.Synced = true
	syncedAt := at
	rec.SyncedAt = &syncedAt
	return nil
}

func (q *MemQueue) CountUnsynced(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	for _, rec := range q.records {
		if !rec.Synced {
			count++
		}
	}
	return count, nil
}

type duplicateRecordError struct {
	recordID uuid.UUID
}

func (e *duplicateRecordError) Error() string {
	return "record " + e.recordID.String() + " already queued"
}
