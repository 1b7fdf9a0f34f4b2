// Package attendance stores captured clock events on the device until the
// sync engine reconciles them with the remote backend.
package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// Queue is the local store of attendance records. Writes are atomic per
// record; a reader never observes a partially written record.
type Queue interface {
	// Insert persists a freshly captured record.
	Insert(ctx context.Context, record *domain.AttendanceRecord) error

	// ListUnsynced returns all records with synced=false ordered by
	// timestamp ascending. Oldest first preserves the causal order of
	// entry/exit pairs within a sync pass.
	ListUnsynced(ctx context.Context) ([]domain.AttendanceRecord, error)

	// MarkSynced flips the synced flag and stamps synced_at. It is the
	// only mutation a record ever receives.
	MarkSynced(ctx context.Context, recordID uuid.UUID, at time.Time) error

	// CountUnsynced reports the pending backlog size.
	CountUnsynced(ctx context.Context) (int, error)
}
