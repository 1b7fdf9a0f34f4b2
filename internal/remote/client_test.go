package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

func TestClassify(t *testing.T) {
	envelope := func(code string) errorResponse {
		var e errorResponse
		e.Error.Code = code
		return e
	}

	tests := []struct {
		name   string
		status int
		parsed errorResponse
		body   string
		want   PushOutcome
	}{
		{"200 accepted", http.StatusOK, errorResponse{}, `{"status":"ok"}`, PushAccepted},
		{"201 accepted", http.StatusCreated, errorResponse{}, "", PushAccepted},
		{"structured duplicate code", http.StatusConflict, envelope("DUPLICATE_RECORD"), "", PushDuplicate},
		{"structured identity code", http.StatusNotFound, envelope("IDENTITY_NOT_FOUND"), "", PushIdentityNotFound},
		{"structured code wins over status", http.StatusInternalServerError, envelope("DUPLICATE_RECORD"), "", PushDuplicate},
		{"structured unknown code falls through", http.StatusBadRequest, envelope("RATE_LIMITED"), "slow down", PushFailed},
		{"legacy 409 without envelope", http.StatusConflict, errorResponse{}, "conflict", PushDuplicate},
		{"legacy duplicate substring", http.StatusBadRequest, errorResponse{}, "Duplicate record detected", PushDuplicate},
		{"legacy 404 with identity body", http.StatusNotFound, errorResponse{}, "identity does not exist", PushIdentityNotFound},
		{"legacy identity not found substring", http.StatusBadRequest, errorResponse{}, "error: Identity Not Found", PushIdentityNotFound},
		{"bare 404 is a failure", http.StatusNotFound, errorResponse{}, "no such route", PushFailed},
		{"500 is a failure", http.StatusInternalServerError, errorResponse{}, "boom", PushFailed},
		{"non-json garbage is a failure", http.StatusBadGateway, errorResponse{}, "<html>bad gateway</html>", PushFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.status, tt.parsed, tt.body))
		})
	}
}

func testRecord() *domain.AttendanceRecord {
	return domain.NewAttendanceRecord("emp-001", domain.EventEntry, domain.ModeOffline, "kiosk-01")
}

func TestClientPushRecord(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    PushOutcome
		wantErr bool
	}{
		{
			name:   "accepted",
			status: http.StatusCreated,
			body:   `{"record_id":"abc"}`,
			want:   PushAccepted,
		},
		{
			name:   "structured duplicate",
			status: http.StatusConflict,
			body:   `{"error":{"code":"DUPLICATE_RECORD","message":"record already stored"}}`,
			want:   PushDuplicate,
		},
		{
			name:   "structured identity not found",
			status: http.StatusNotFound,
			body:   `{"error":{"code":"IDENTITY_NOT_FOUND","message":"unknown identity"}}`,
			want:   PushIdentityNotFound,
		},
		{
			name:   "legacy plain-text duplicate",
			status: http.StatusBadRequest,
			body:   "duplicate entry",
			want:   PushDuplicate,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   "internal error",
			want:   PushFailed,
		},
		{
			name:   "non-json error body",
			status: http.StatusServiceUnavailable,
			body:   "<html>maintenance</html>",
			want:   PushFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotAuth, gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				gotPath = r.URL.Path
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(Config{BaseURL: srv.URL, APIKey: "secret", Timeout: 2 * time.Second})
			outcome, err := client.PushRecord(context.Background(), testRecord())

			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, outcome)
			assert.Equal(t, "Bearer secret", gotAuth)
			assert.Equal(t, "/v1/attendance/records", gotPath)
		})
	}
}

func TestClientPushRecordTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	client := NewClient(Config{BaseURL: srv.URL, Timeout: time.Second})
	outcome, err := client.PushRecord(context.Background(), testRecord())

	assert.Equal(t, PushFailed, outcome)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClientPushProfile(t *testing.T) {
	identity := &domain.Identity{ID: "emp-001", DisplayName: "Ana Souza"}

	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"created", http.StatusCreated, false},
		{"already exists", http.StatusConflict, false},
		{"rejected", http.StatusUnprocessableEntity, true},
		{"server error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/identities", r.URL.Path)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := NewClient(Config{BaseURL: srv.URL, Timeout: 2 * time.Second})
			err := client.PushProfile(context.Background(), identity, "kiosk-01")

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHTTPIdentityServiceDetect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/faces/detect", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"faces":[{"id":"f-1","confidence":0.98}]}`))
	}))
	defer srv.Close()

	svc := NewHTTPIdentityService(srv.URL, "secret", 2*time.Second)
	faces, err := svc.Detect(context.Background(), []byte("fake-jpeg"))

	require.NoError(t, err)
	require.Len(t, faces, 1)
	assert.Equal(t, "f-1", faces[0].ID)
	assert.InDelta(t, 0.98, faces[0].Confidence, 1e-9)
}

func TestHTTPIdentityServiceNoFace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	svc := NewHTTPIdentityService(srv.URL, "", 2*time.Second)
	_, err := svc.Detect(context.Background(), []byte("fake-jpeg"))

	assert.ErrorIs(t, err, ErrNoFaceRemote)
}

func TestHTTPIdentityServiceDelete(t *testing.T) {
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/faces/delete", r.URL.Path)
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	svc := NewHTTPIdentityService(srv.URL, "secret", 2*time.Second)
	err := svc.Delete(context.Background(), "face-remote-1")

	require.NoError(t, err)
	assert.JSONEq(t, `{"external_id":"face-remote-1"}`, string(gotBody))
}

func TestDisabledIdentityService(t *testing.T) {
	var svc DisabledIdentityService

	_, err := svc.Detect(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = svc.Identify(context.Background(), FaceHandle{ID: "x"})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = svc.Enroll(context.Background(), &domain.Identity{ID: "emp-001"}, nil)
	assert.ErrorIs(t, err, ErrUnavailable)

	err = svc.Delete(context.Background(), "face-remote-1")
	assert.ErrorIs(t, err, ErrUnavailable)
}
