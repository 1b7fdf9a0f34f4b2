// Package sync reconciles the local attendance queue with the remote
// backend whenever the device is online.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/attendance"
	"github.com/saturnino-fabrica-de-software/ponto/internal/audit"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/identity"
	"github.com/saturnino-fabrica-de-software/ponto/internal/remote"
)

// Options tunes the engine's timing.
type Options struct {
	// Interval between periodic passes while online.
	Interval time.Duration

	// SettleDelay after an offline-to-online transition before the
	// first pass, so a flapping link does not thrash the backend.
	SettleDelay time.Duration

	DeviceID string
}

// Engine runs sync passes. One pass at a time: a trigger arriving while
// a pass is in flight is rejected, never queued.
type Engine struct {
	queue    attendance.Queue
	store    identity.Store
	api      remote.AttendanceAPI
	tracker  *StateTracker
	auditLog audit.Logger
	logger   *slog.Logger
	opts     Options

	online  atomic.Bool
	syncing atomic.Bool
	wakeCh  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewEngine(
	queue attendance.Queue,
	store identity.Store,
	api remote.AttendanceAPI,
	tracker *StateTracker,
	opts Options,
	logger *slog.Logger,
) *Engine {
	if opts.Interval == 0 {
		opts.Interval = 30 * time.Second
	}
	return &Engine{
		queue:    queue,
		store:    store,
		api:      api,
		tracker:  tracker,
		auditLog: &audit.NoOpLogger{},
		logger:   logger,
		opts:     opts,
		wakeCh:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// WithAudit sets the audit logger.
func (e *Engine) WithAudit(l audit.Logger) *Engine {
	e.auditLog = l
	return e
}

// State returns the tracker for observers.
func (e *Engine) State() *StateTracker {
	return e.tracker
}

// Snapshot returns a copy of the current sync state.
func (e *Engine) Snapshot() domain.SyncState {
	return e.tracker.Snapshot()
}

// SetOnline is the connectivity callback target. It only records state
// and signals the loop; it never runs a pass synchronously, so a
// connectivity goroutine can never re-enter the sync path.
func (e *Engine) SetOnline(online bool) {
	was := e.online.Swap(online)
	if online && !was {
		select {
		case e.wakeCh <- struct{}{}:
		default:
		}
	}
}

// IsOnline reports the last connectivity state the engine saw.
func (e *Engine) IsOnline() bool {
	return e.online.Load()
}

// SyncNow runs one pass. Returns domain.ErrSyncInProgress when a pass
// is already in flight.
func (e *Engine) SyncNow(ctx context.Context) error {
	if !e.syncing.CompareAndSwap(false, true) {
		return domain.ErrSyncInProgress
	}
	defer e.syncing.Store(false)

	return e.pass(ctx)
}

// Run drives periodic syncing until the context is cancelled or Stop is
// called. Each iteration checks connectivity before starting a pass, so
// the loop stops syncing immediately after a loss even though the
// ticker keeps firing.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-e.wakeCh:
			// offline-to-online transition: let the link settle first
			if !e.sleep(ctx, e.opts.SettleDelay) {
				return
			}
			e.tryPass(ctx)
		case <-ticker.C:
			e.tryPass(ctx)
		}
	}
}

// Stop halts the periodic loop and waits for it to exit.
func (e *Engine) Stop() {
	close(e.stopCh)
	<-e.doneCh
}

func (e *Engine) tryPass(ctx context.Context) {
	if !e.online.Load() {
		return
	}
	if err := e.SyncNow(ctx); err != nil && !errors.Is(err, domain.ErrSyncInProgress) {
		e.logger.ErrorContext(ctx, "sync pass failed", slog.String("error", err.Error()))
	}
}

// sleep waits d, honoring cancellation. Returns false when the engine
// should shut down.
func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-e.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

// pass executes one full reconciliation.
func (e *Engine) pass(ctx context.Context) error {
	e.tracker.publish(func(s *domain.SyncState) {
		s.IsSyncing = true
		s.Progress = 0
		s.SyncedCount = 0
		s.FailedCount = 0
		s.Message = "sync started"
	})
	defer e.tracker.publish(func(s *domain.SyncState) {
		s.IsSyncing = false
	})

	// Profile mirror failures never block attendance sync; a record may
	// still land when its identity already exists remotely.
	e.mirrorProfiles(ctx)

	records, err := e.queue.ListUnsynced(ctx)
	if err != nil {
		return fmt.Errorf("list unsynced records: %w", err)
	}

	total := len(records)
	synced, failed := 0, 0
	profileRetried := make(map[string]bool)

	for i := range records {
		if !e.online.Load() {
			e.logger.InfoContext(ctx, "connectivity lost mid-pass, deferring remaining records",
				slog.Int("remaining", total-i))
			break
		}

		rec := &records[i]
		if e.pushOne(ctx, rec, profileRetried) {
			synced++
		} else {
			failed++
		}

		done := i + 1
		e.tracker.publish(func(s *domain.SyncState) {
			s.SyncedCount = synced
			s.FailedCount = failed
			s.Progress = float64(done) / float64(total)
		})
	}

	pending, err := e.queue.CountUnsynced(ctx)
	if err != nil {
		return fmt.Errorf("count unsynced records: %w", err)
	}

	now := time.Now().UTC()
	e.tracker.publish(func(s *domain.SyncState) {
		s.PendingCount = pending
		s.SyncedCount = synced
		s.FailedCount = failed
		if total > 0 {
			s.Progress = 1
		}
		s.Message = fmt.Sprintf("synced %d, failed %d, pending %d", synced, failed, pending)
		if synced > 0 {
			s.LastSyncTime = &now
		}
	})

	e.logAudit(ctx, synced, failed, pending)
	return nil
}

// pushOne submits a single record and reports whether it ended up
// synced. An "identity not found" answer gets one profile push and one
// retry; anything still failing stays queued for the next pass.
func (e *Engine) pushOne(ctx context.Context, rec *domain.AttendanceRecord, profileRetried map[string]bool) bool {
	outcome, err := e.api.PushRecord(ctx, rec)
	if err != nil {
		e.logger.WarnContext(ctx, "record push failed",
			slog.String("record_id", rec.RecordID.String()),
			slog.String("error", err.Error()))
		return false
	}

	switch outcome {
	case remote.PushAccepted, remote.PushDuplicate:
		return e.markSynced(ctx, rec)

	case remote.PushIdentityNotFound:
		if profileRetried[rec.IdentityID] {
			return false
		}
		profileRetried[rec.IdentityID] = true

		if !e.pushProfileFor(ctx, rec.IdentityID) {
			return false
		}

		retryOutcome, retryErr := e.api.PushRecord(ctx, rec)
		if retryErr != nil {
			return false
		}
		if retryOutcome == remote.PushAccepted || retryOutcome == remote.PushDuplicate {
			return e.markSynced(ctx, rec)
		}
		return false

	default:
		return false
	}
}

func (e *Engine) markSynced(ctx context.Context, rec *domain.AttendanceRecord) bool {
	if err := e.queue.MarkSynced(ctx, rec.RecordID, time.Now().UTC()); err != nil {
		e.logger.ErrorContext(ctx, "failed to mark record synced",
			slog.String("record_id", rec.RecordID.String()),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

// mirrorProfiles pushes every enrolled identity to the backend. Errors
// are logged and swallowed.
func (e *Engine) mirrorProfiles(ctx context.Context) {
	all, err := e.store.All(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to list identities for profile mirror",
			slog.String("error", err.Error()))
		return
	}

	for _, ident := range all {
		if err := e.api.PushProfile(ctx, ident, e.opts.DeviceID); err != nil {
			e.logger.WarnContext(ctx, "profile mirror failed",
				slog.String("identity_id", ident.ID),
				slog.String("error", err.Error()))
		}
	}
}

func (e *Engine) pushProfileFor(ctx context.Context, identityID string) bool {
	ident, err := e.store.Get(ctx, identityID)
	if err != nil {
		if !errors.Is(err, domain.ErrIdentityNotFound) {
			e.logger.WarnContext(ctx, "failed to load identity for profile push",
				slog.String("identity_id", identityID),
				slog.String("error", err.Error()))
		}
		return false
	}
	if err := e.api.PushProfile(ctx, ident, e.opts.DeviceID); err != nil {
		e.logger.WarnContext(ctx, "profile push failed",
			slog.String("identity_id", identityID),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

func (e *Engine) logAudit(ctx context.Context, synced, failed, pending int) {
	_ = e.auditLog.Log(ctx, audit.Event{
		EventType: audit.EventSyncCompleted,
		DeviceID:  e.opts.DeviceID,
		Success:   failed == 0,
		Metadata: map[string]string{
			"synced":  strconv.Itoa(synced),
			"failed":  strconv.Itoa(failed),
			"pending": strconv.Itoa(pending),
		},
	})
}
