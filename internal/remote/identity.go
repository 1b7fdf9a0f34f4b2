package remote

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// FaceHandle references a face detected by the remote identity service.
type FaceHandle struct {
	ID         string  `json:"id"`
	Confidence float64 `json:"confidence"`
}

// Candidate is a remote identification result.
type Candidate struct {
	IdentityID string  `json:"identity_id"`
	ExternalID string  `json:"external_id"`
	Similarity float64 `json:"similarity"`
}

// IdentityService is the remote face service consulted in online mode.
// Its answers are advisory: the verification orchestrator always makes
// the final accept/reject decision locally, and any failure here falls
// back to the local flow.
type IdentityService interface {
	Detect(ctx context.Context, image []byte) ([]FaceHandle, error)
	Identify(ctx context.Context, handle FaceHandle) (*Candidate, error)
	Enroll(ctx context.Context, identity *domain.Identity, image []byte) (externalID string, err error)
	Delete(ctx context.Context, externalID string) error
}

// HTTPIdentityService talks to the backend's face endpoints.
type HTTPIdentityService struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

func NewHTTPIdentityService(baseURL, apiKey string, timeout time.Duration) *HTTPIdentityService {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPIdentityService{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

var _ IdentityService = (*HTTPIdentityService)(nil)

type detectRequest struct {
	Image string `json:"image"` // base64
}

type detectResponse struct {
	Faces []FaceHandle `json:"faces"`
}

func (s *HTTPIdentityService) Detect(ctx context.Context, image []byte) ([]FaceHandle, error) {
	var resp detectResponse
	err := s.post(ctx, "/v1/faces/detect", detectRequest{Image: base64.StdEncoding.EncodeToString(image)}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Faces, nil
}

type identifyRequest struct {
	FaceID string `json:"face_id"`
}

type identifyResponse struct {
	Candidate *Candidate `json:"candidate"`
}

func (s *HTTPIdentityService) Identify(ctx context.Context, handle FaceHandle) (*Candidate, error) {
	var resp identifyResponse
	err := s.post(ctx, "/v1/faces/identify", identifyRequest{FaceID: handle.ID}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Candidate, nil
}

type enrollRequest struct {
	IdentityID  string `json:"identity_id"`
	DisplayName string `json:"display_name"`
	Image       string `json:"image"` // base64
}

type enrollResponse struct {
	ExternalID string `json:"external_id"`
}

func (s *HTTPIdentityService) Enroll(ctx context.Context, identity *domain.Identity, image []byte) (string, error) {
	req := enrollRequest{
		IdentityID:  identity.ID,
		DisplayName: identity.DisplayName,
		Image:       base64.StdEncoding.EncodeToString(image),
	}

	var resp enrollResponse
	if err := s.post(ctx, "/v1/faces/enroll", req, &resp); err != nil {
		return "", err
	}
	return resp.ExternalID, nil
}

type deleteRequest struct {
	ExternalID string `json:"external_id"`
}

func (s *HTTPIdentityService) Delete(ctx context.Context, externalID string) error {
	var resp struct{}
	return s.post(ctx, "/v1/faces/delete", deleteRequest{ExternalID: externalID}, &resp)
}

// DisabledIdentityService is used when no remote face service is
// configured. Every call reports unavailability, which the caller
// treats as a normal offline fallback.
type DisabledIdentityService struct{}

var _ IdentityService = (*DisabledIdentityService)(nil)

func (DisabledIdentityService) Detect(context.Context, []byte) ([]FaceHandle, error) {
	return nil, fmt.Errorf("%w: identity service disabled", ErrUnavailable)
}

func (DisabledIdentityService) Identify(context.Context, FaceHandle) (*Candidate, error) {
	return nil, fmt.Errorf("%w: identity service disabled", ErrUnavailable)
}

func (DisabledIdentityService) Enroll(context.Context, *domain.Identity, []byte) (string, error) {
	return "", fmt.Errorf("%w: identity service disabled", ErrUnavailable)
}

func (DisabledIdentityService) Delete(context.Context, string) error {
	return fmt.Errorf("%w: identity service disabled", ErrUnavailable)
}

func (s *HTTPIdentityService) post(ctx context.Context, path string, payload, result any) error {
	client := &Client{httpClient: s.httpClient, config: Config{BaseURL: s.baseURL, APIKey: s.apiKey}}

	status, body, err := client.post(ctx, path, payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if status == http.StatusUnprocessableEntity {
		return ErrNoFaceRemote
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, status)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
