package domain

import "time"

// SyncState is a snapshot of the sync engine's progress. A single logical
// instance exists per process; the engine is its only writer and observers
// read copies.
type SyncState struct {
	IsSyncing    bool       `json:"is_syncing"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
	PendingCount int        `json:"pending_count"`
	SyncedCount  int        `json:"synced_count"`
	FailedCount  int        `json:"failed_count"`
	Progress     float64    `json:"progress"`
	Message      string     `json:"message"`
}
