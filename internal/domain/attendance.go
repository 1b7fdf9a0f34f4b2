package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType marca se o registro é de entrada ou saída.
type EventType string

const (
	EventEntry EventType = "ENTRY"
	EventExit  EventType = "EXIT"
)

// CaptureMode records whether the device was online when the event was
// captured.
type CaptureMode string

const (
	ModeOnline  CaptureMode = "ONLINE"
	ModeOffline CaptureMode = "OFFLINE"
)

// AttendanceRecord is one clock-in/clock-out event captured on the device.
// A record is written for every capture attempt, whether or not the face
// was verified; it is immutable except for the Synced/SyncedAt pair,
// which the sync engine flips exactly once.
type AttendanceRecord struct {
	RecordID   uuid.UUID   `json:"record_id"`
	IdentityID string      `json:"identity_id"`
	EventType  EventType   `json:"event_type"`
	Timestamp  int64       `json:"timestamp"` // wall clock, milliseconds
	Mode       CaptureMode `json:"mode"`
	DeviceID   string      `json:"device_id"`
	Synced     bool        `json:"synced"`
	SyncedAt   *time.Time  `json:"synced_at,omitempty"`
}

// NewAttendanceRecord creates an unsynced record stamped with the current
// wall clock.
func NewAttendanceRecord(identityID string, eventType EventType, mode CaptureMode, deviceID string) *AttendanceRecord {
	return &AttendanceRecord{
		RecordID:   uuid.New(),
		IdentityID: identityID,
		EventType:  eventType,
		Timestamp:  time.Now().UnixMilli(),
		Mode:       mode,
		DeviceID:   deviceID,
	}
}

// Validate verifica os campos obrigatórios de um registro de ponto.
func (r *AttendanceRecord) Validate() error {
	if r.RecordID == uuid.Nil {
		return fmt.Errorf("record_id cannot be nil")
	}
	if r.IdentityID == "" {
		return fmt.Errorf("identity_id cannot be empty")
	}
	if r.EventType != EventEntry && r.EventType != EventExit {
		return fmt.Errorf("invalid event_type %q", r.EventType)
	}
	if r.Mode != ModeOnline && r.Mode != ModeOffline {
		return fmt.Errorf("invalid capture mode %q", r.Mode)
	}
	if r.Timestamp <= 0 {
		return fmt.Errorf("timestamp must be positive")
	}
	return nil
}
