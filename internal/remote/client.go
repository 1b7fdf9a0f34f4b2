package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// Config holds the configuration for the attendance API client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080",
		Timeout: 10 * time.Second,
	}
}

// AttendanceAPI is the surface the sync engine depends on.
type AttendanceAPI interface {
	// PushRecord submits one record and classifies the response. The
	// error is non-nil only for transport-level failures; in that case
	// the outcome is PushFailed.
	PushRecord(ctx context.Context, rec *domain.AttendanceRecord) (PushOutcome, error)

	// PushProfile mirrors an identity profile to the backend
	// (create-or-update).
	PushProfile(ctx context.Context, identity *domain.Identity, deviceID string) error
}

// Client is the HTTP client for the attendance backend.
type Client struct {
	httpClient *http.Client
	config     Config
}

func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
	}
}

var _ AttendanceAPI = (*Client)(nil)

// PushRecord submits a record without internal retries; the sync engine
// owns the retry policy across passes.
func (c *Client) PushRecord(ctx context.Context, rec *domain.AttendanceRecord) (PushOutcome, error) {
	status, body, err := c.post(ctx, "/v1/attendance/records", newRecordPayload(rec))
	if err != nil {
		return PushFailed, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var parsed errorResponse
	_ = json.Unmarshal(body, &parsed) // non-JSON bodies fall through to the raw classifier

	return classify(status, parsed, string(body)), nil
}

func (c *Client) PushProfile(ctx context.Context, identity *domain.Identity, deviceID string) error {
	payload := profilePayload{
		IdentityID:  identity.ID,
		DisplayName: identity.DisplayName,
		Department:  identity.Department,
		ExternalID:  identity.ExternalID,
		DeviceID:    deviceID,
	}

	status, body, err := c.post(ctx, "/v1/identities", payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	// 409 means the profile already exists, which is the desired state.
	if status >= 200 && status < 300 || status == 409 {
		return nil
	}
	return fmt.Errorf("push profile %s: status %d: %s", identity.ID, status, truncate(string(body), 200))
}

func (c *Client) post(ctx context.Context, path string, payload any) (int, []byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Ponto-Kiosk/1.0")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
