package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

const (
	maxImageSize = 10 * 1024 * 1024 // 10MB
	maxFrames    = 10
)

var validImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// VerificationService is the orchestrator surface the handler needs.
type VerificationService interface {
	Enroll(ctx context.Context, ident *domain.Identity, img image.Image, rawImage []byte) error
	Verify(ctx context.Context, claimedID string, frames []image.Image) (domain.VerificationOutcome, error)
	Identify(ctx context.Context, frames []image.Image) (domain.VerificationOutcome, error)
	Clock(ctx context.Context, claimedID string, frames []image.Image, event domain.EventType) (domain.VerificationOutcome, *domain.AttendanceRecord, error)
	Delete(ctx context.Context, identityID string) (bool, error)
}

// IdentityAdmin exposes the enrollment roster.
type IdentityAdmin interface {
	All(ctx context.Context) (map[string]*domain.Identity, error)
}

// Syncer is the sync-engine surface for the status and trigger routes.
type Syncer interface {
	SyncNow(ctx context.Context) error
	Snapshot() domain.SyncState
	IsOnline() bool
}

// KioskHandler serves the device console endpoints.
type KioskHandler struct {
	verifier VerificationService
	roster   IdentityAdmin
	syncer   Syncer
	logger   *slog.Logger
}

func NewKioskHandler(verifier VerificationService, roster IdentityAdmin, syncer Syncer, logger *slog.Logger) *KioskHandler {
	return &KioskHandler{
		verifier: verifier,
		roster:   roster,
		syncer:   syncer,
		logger:   logger,
	}
}

// EnrollResponse response for the enroll endpoint
type EnrollResponse struct {
	IdentityID string `json:"identity_id"`
	EnrolledAt string `json:"enrolled_at"`
}

// VerifyResponse wraps the verification outcome
type VerifyResponse struct {
	domain.VerificationOutcome
}

// ClockResponse reports the queued attendance record
type ClockResponse struct {
	Outcome  domain.VerificationOutcome `json:"outcome"`
	RecordID string                     `json:"record_id,omitempty"`
	Queued   bool                       `json:"queued"`
}

// Enroll POST /v1/identities - enroll a face under an identity
func (h *KioskHandler) Enroll(c *fiber.Ctx) error {
	identityID := strings.TrimSpace(c.FormValue("identity_id"))
	if identityID == "" {
		return domain.ErrValidationFailed.WithError(errors.New("identity_id is required"))
	}
	displayName := strings.TrimSpace(c.FormValue("display_name"))
	if displayName == "" {
		return domain.ErrValidationFailed.WithError(errors.New("display_name is required"))
	}

	raw, img, err := extractSingleImage(c)
	if err != nil {
		return fmt.Errorf("enroll: %w", err)
	}

	ident := &domain.Identity{
		ID:          identityID,
		DisplayName: displayName,
		Department:  strings.TrimSpace(c.FormValue("department")),
	}

	if err := h.verifier.Enroll(c.Context(), ident, img, raw); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(EnrollResponse{
		IdentityID: ident.ID,
		EnrolledAt: ident.EnrolledAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// Verify POST /v1/verify - verify frames against a claimed identity
func (h *KioskHandler) Verify(c *fiber.Ctx) error {
	claimedID := strings.TrimSpace(c.FormValue("identity_id"))
	if claimedID == "" {
		return domain.ErrValidationFailed.WithError(errors.New("identity_id is required"))
	}

	frames, err := extractFrames(c)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	outcome, err := h.verifier.Verify(c.Context(), claimedID, frames)
	if err != nil {
		return err
	}

	return c.JSON(VerifyResponse{VerificationOutcome: outcome})
}

// Identify POST /v1/identify - login flow, no claimed identity
func (h *KioskHandler) Identify(c *fiber.Ctx) error {
	frames, err := extractFrames(c)
	if err != nil {
		return fmt.Errorf("identify: %w", err)
	}

	outcome, err := h.verifier.Identify(c.Context(), frames)
	if err != nil {
		return err
	}

	return c.JSON(VerifyResponse{VerificationOutcome: outcome})
}

// Clock POST /v1/attendance - verify and queue an attendance record
func (h *KioskHandler) Clock(c *fiber.Ctx) error {
	claimedID := strings.TrimSpace(c.FormValue("identity_id"))
	if claimedID == "" {
		return domain.ErrValidationFailed.WithError(errors.New("identity_id is required"))
	}

	event := domain.EventType(strings.ToUpper(strings.TrimSpace(c.FormValue("event_type"))))
	if event != domain.EventEntry && event != domain.EventExit {
		return domain.ErrValidationFailed.WithError(errors.New("event_type must be ENTRY or EXIT"))
	}

	frames, err := extractFrames(c)
	if err != nil {
		return fmt.Errorf("clock: %w", err)
	}

	outcome, record, err := h.verifier.Clock(c.Context(), claimedID, frames, event)
	if err != nil {
		return err
	}

	resp := ClockResponse{Outcome: outcome}
	if record != nil {
		resp.RecordID = record.RecordID.String()
		resp.Queued = true
	}
	status := fiber.StatusOK
	if resp.Queued {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(resp)
}

// IdentitySummary is the roster listing item. Embeddings never leave
// the device.
type IdentitySummary struct {
	IdentityID  string  `json:"identity_id"`
	DisplayName string  `json:"display_name"`
	Department  string  `json:"department,omitempty"`
	ExternalID  *string `json:"external_id,omitempty"`
	EnrolledAt  string  `json:"enrolled_at"`
}

// ListIdentities GET /v1/identities
func (h *KioskHandler) ListIdentities(c *fiber.Ctx) error {
	all, err := h.roster.All(c.Context())
	if err != nil {
		return err
	}

	identities := make([]IdentitySummary, 0, len(all))
	for _, ident := range all {
		identities = append(identities, IdentitySummary{
			IdentityID:  ident.ID,
			DisplayName: ident.DisplayName,
			Department:  ident.Department,
			ExternalID:  ident.ExternalID,
			EnrolledAt:  ident.EnrolledAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	return c.JSON(fiber.Map{"identities": identities, "count": len(identities)})
}

// DeleteIdentity DELETE /v1/identities/:id
//
// Deletion goes through the verification service rather than the roster
// directly so the remote mirror is cleaned up alongside the local entry.
func (h *KioskHandler) DeleteIdentity(c *fiber.Ctx) error {
	identityID := c.Params("id")

	existed, err := h.verifier.Delete(c.Context(), identityID)
	if err != nil {
		return err
	}
	if !existed {
		return domain.ErrIdentityNotFound
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// SyncStatusResponse mirrors the engine state plus connectivity.
type SyncStatusResponse struct {
	domain.SyncState
	Online bool `json:"online"`
}

// SyncStatus GET /v1/sync/status
func (h *KioskHandler) SyncStatus(c *fiber.Ctx) error {
	return c.JSON(SyncStatusResponse{
		SyncState: h.syncer.Snapshot(),
		Online:    h.syncer.IsOnline(),
	})
}

// SyncNow POST /v1/sync - manual trigger
func (h *KioskHandler) SyncNow(c *fiber.Ctx) error {
	if !h.syncer.IsOnline() {
		return domain.ErrDeviceOffline
	}
	if err := h.syncer.SyncNow(c.Context()); err != nil {
		return err
	}
	return c.JSON(SyncStatusResponse{
		SyncState: h.syncer.Snapshot(),
		Online:    true,
	})
}

// extractSingleImage reads the "image" form file and decodes it.
func extractSingleImage(c *fiber.Ctx) ([]byte, image.Image, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, nil, domain.ErrValidationFailed.WithError(err)
	}

	raw, err := readImageFile(file)
	if err != nil {
		return nil, nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, domain.ErrInvalidImage.WithError(err)
	}
	return raw, img, nil
}

// extractFrames reads the "frames" form files (one file is the
// single-frame flow, several enable the burst liveness check).
func extractFrames(c *fiber.Ctx) ([]image.Image, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, domain.ErrValidationFailed.WithError(err)
	}

	files := form.File["frames"]
	if len(files) == 0 {
		return nil, domain.ErrValidationFailed.WithError(errors.New("at least one frame is required"))
	}
	if len(files) > maxFrames {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("at most %d frames accepted", maxFrames))
	}

	frames := make([]image.Image, 0, len(files))
	for _, file := range files {
		raw, err := readImageFile(file)
		if err != nil {
			return nil, err
		}
		img, _, err := image.Decode(bytes.NewReader(raw))
		if err != nil {
			return nil, domain.ErrInvalidImage.WithError(err)
		}
		frames = append(frames, img)
	}
	return frames, nil
}

func readImageFile(file *multipart.FileHeader) ([]byte, error) {
	if file.Size == 0 || file.Size > maxImageSize {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("image size %d out of bounds", file.Size))
	}

	if ct := file.Header.Get("Content-Type"); ct != "" && !validImageTypes[ct] {
		return nil, domain.ErrInvalidImage.WithError(fmt.Errorf("unsupported content type %s", ct))
	}

	f, err := file.Open()
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	defer func() {
		_ = f.Close()
	}()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	return raw, nil
}
