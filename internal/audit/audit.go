package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of auditable event
type EventType string

const (
	EventIdentityEnrolled EventType = "IDENTITY_ENROLLED"
	EventIdentityDeleted  EventType = "IDENTITY_DELETED"
	EventFaceVerified     EventType = "FACE_VERIFIED"
	EventAttendanceLogged EventType = "ATTENDANCE_LOGGED"
	EventSyncCompleted    EventType = "SYNC_COMPLETED"
)

// Event represents an audit event for LGPD compliance
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	DeviceID   string            `json:"device_id"`
	EventType  EventType         `json:"event_type"`
	IdentityID string            `json:"identity_id,omitempty"`
	Outcome    string            `json:"outcome,omitempty"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Logger defines the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event Event) error
}

// SlogLogger implements Logger using slog
type SlogLogger struct {
	logger   *slog.Logger
	deviceID string
}

// NewSlogLogger creates a new audit logger using slog
func NewSlogLogger(logger *slog.Logger, deviceID string) *SlogLogger {
	return &SlogLogger{
		logger:   logger.With("component", "audit"),
		deviceID: deviceID,
	}
}

// Log records an audit event
func (l *SlogLogger) Log(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.DeviceID == "" {
		event.DeviceID = l.deviceID
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to marshal audit event",
			slog.String("error", err.Error()),
			slog.String("event_type", string(event.EventType)),
		)
		return err
	}

	l.logger.InfoContext(ctx, "audit_event",
		slog.String("event_id", event.ID.String()),
		slog.String("event_type", string(event.EventType)),
		slog.String("device_id", event.DeviceID),
		slog.Bool("success", event.Success),
		slog.String("event_data", string(eventJSON)),
	)

	return nil
}

// NoOpLogger is a logger that does nothing (for testing or when audit is disabled)
type NoOpLogger struct{}

// Log does nothing and returns nil
func (l *NoOpLogger) Log(_ context.Context, _ Event) error {
	return nil
}
