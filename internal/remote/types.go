// Package remote talks to the backend attendance and identity services.
// Responses are parsed into a typed schema and classified into a closed
// outcome set so the sync engine never sniffs error strings.
package remote

import (
	"strings"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// PushOutcome is the total classification of a record push. Every
// response maps to exactly one value.
type PushOutcome int

const (
	// PushAccepted means the backend stored the record.
	PushAccepted PushOutcome = iota
	// PushDuplicate means the backend already holds an equivalent record,
	// e.g. from a race between two sync passes. Callers absorb it as
	// success.
	PushDuplicate
	// PushIdentityNotFound means the backend does not know the identity
	// yet; the profile must be pushed before the record can land.
	PushIdentityNotFound
	// PushFailed covers everything else: transport errors, 5xx, unknown
	// codes. The record stays queued for a later pass.
	PushFailed
)

func (o PushOutcome) String() string {
	switch o {
	case PushAccepted:
		return "accepted"
	case PushDuplicate:
		return "duplicate"
	case PushIdentityNotFound:
		return "identity_not_found"
	default:
		return "failed"
	}
}

// Backend error codes agreed with the attendance service.
const (
	codeDuplicateRecord  = "DUPLICATE_RECORD"
	codeIdentityNotFound = "IDENTITY_NOT_FOUND"
)

// errorResponse is the backend's structured error envelope.
type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// recordPayload is the wire form of an attendance record.
type recordPayload struct {
	RecordID   string `json:"record_id"`
	IdentityID string `json:"identity_id"`
	EventType  string `json:"event_type"`
	Timestamp  int64  `json:"timestamp"`
	Mode       string `json:"mode"`
	DeviceID   string `json:"device_id"`
}

func newRecordPayload(rec *domain.AttendanceRecord) recordPayload {
	return recordPayload{
		RecordID:   rec.RecordID.String(),
		IdentityID: rec.IdentityID,
		EventType:  string(rec.EventType),
		Timestamp:  rec.Timestamp,
		Mode:       string(rec.Mode),
		DeviceID:   rec.DeviceID,
	}
}

// profilePayload is the wire form of an identity profile mirror.
type profilePayload struct {
	IdentityID  string  `json:"identity_id"`
	DisplayName string  `json:"display_name"`
	Department  string  `json:"department,omitempty"`
	ExternalID  *string `json:"external_id,omitempty"`
	DeviceID    string  `json:"device_id"`
}

// classify maps an HTTP status and parsed error envelope to a
// PushOutcome. Structured codes are authoritative; the body substring
// fallback only covers backends that predate the envelope and will be
// removed once none remain in the field.
func classify(status int, parsed errorResponse, rawBody string) PushOutcome {
	if status >= 200 && status < 300 {
		return PushAccepted
	}

	switch parsed.Error.Code {
	case codeDuplicateRecord:
		return PushDuplicate
	case codeIdentityNotFound:
		return PushIdentityNotFound
	}

	body := strings.ToLower(rawBody)
	switch {
	case status == 409, strings.Contains(body, "duplicate"):
		return PushDuplicate
	case status == 404 && strings.Contains(body, "identity"),
		strings.Contains(body, "identity not found"):
		return PushIdentityNotFound
	default:
		return PushFailed
	}
}
