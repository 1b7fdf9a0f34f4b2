package rekognition

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/google/uuid"
	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
	"github.com/saturnino-fabrica-de-software/ponto/internal/remote"
)

const (
	// maxImageSize is the maximum image size supported by AWS Rekognition (5MB)
	maxImageSize = 5 * 1024 * 1024
	// minImageSize is the minimum image size for valid processing
	minImageSize = 100

	// frameCacheLimit bounds the Detect frame cache. Identify always follows
	// Detect within the same capture, so old frames can be evicted freely.
	frameCacheLimit = 16
)

// Service implements remote.IdentityService against a site-scoped
// Rekognition collection. Identity IDs are carried in the collection as
// ExternalImageId so Identify can map matches back to local identities.
type Service struct {
	client *Client
	siteID string

	mu     sync.Mutex
	frames map[string][]byte // handle ID -> image bytes from Detect
	order  []string
}

var _ remote.IdentityService = (*Service)(nil)

// NewService creates a Rekognition-backed identity service and ensures
// the site collection exists.
func NewService(ctx context.Context, cfg Config, siteID string) (*Service, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create rekognition client: %w", err)
	}

	if err := client.EnsureCollection(ctx, siteID); err != nil {
		return nil, fmt.Errorf("ensure collection for site %s: %w", siteID, err)
	}

	return &Service{
		client: client,
		siteID: siteID,
		frames: make(map[string][]byte),
	}, nil
}

func validateImage(image []byte) error {
	if len(image) == 0 {
		return ErrInvalidImage
	}
	if len(image) < minImageSize {
		return fmt.Errorf("%w: image too small (%d bytes, minimum %d)", ErrInvalidImage, len(image), minImageSize)
	}
	if len(image) > maxImageSize {
		return fmt.Errorf("%w: image too large (%d bytes, maximum %d)", ErrInvalidImage, len(image), maxImageSize)
	}
	return nil
}

// Detect finds faces in the frame via the DetectFaces API. Each returned
// handle keeps a reference to the frame so a follow-up Identify can run
// SearchFacesByImage without the caller resending the bytes.
func (s *Service) Detect(ctx context.Context, image []byte) ([]remote.FaceHandle, error) {
	if err := validateImage(image); err != nil {
		return nil, err
	}

	input := &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: image},
		Attributes: []types.Attribute{types.AttributeDefault},
	}

	output, err := s.client.rekognition.DetectFaces(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("detect faces: %w", err)
	}

	handles := make([]remote.FaceHandle, 0, len(output.FaceDetails))
	for _, detail := range output.FaceDetails {
		h := remote.FaceHandle{ID: uuid.NewString()}
		if detail.Confidence != nil {
			h.Confidence = float64(*detail.Confidence) / 100.0
		}
		s.rememberFrame(h.ID, image)
		handles = append(handles, h)
	}

	return handles, nil
}

// Identify searches the site collection for the face behind the handle.
// Returns (nil, nil) when nothing in the collection clears the threshold.
func (s *Service) Identify(ctx context.Context, handle remote.FaceHandle) (*remote.Candidate, error) {
	image, ok := s.takeFrame(handle.ID)
	if !ok {
		return nil, fmt.Errorf("unknown face handle %s", handle.ID)
	}

	threshold := s.client.config.SimilarityThreshold
	input := &rekognition.SearchFacesByImageInput{
		CollectionId:       aws.String(s.client.config.CollectionName(s.siteID)),
		Image:              &types.Image{Bytes: image},
		MaxFaces:           aws.Int32(1),
		FaceMatchThreshold: aws.Float32(float32(threshold * 100)),
	}

	output, err := s.client.rekognition.SearchFacesByImage(ctx, input)
	if err != nil {
		if parsed := ParseNoFaceError(err); errors.Is(parsed, ErrNoFaceDetected) {
			return nil, parsed
		}
		return nil, fmt.Errorf("search faces by image: %w", err)
	}

	if len(output.FaceMatches) == 0 {
		return nil, nil
	}

	match := output.FaceMatches[0]
	cand := &remote.Candidate{
		Similarity: float64(aws.ToFloat32(match.Similarity)) / 100.0,
	}
	if match.Face != nil {
		cand.ExternalID = aws.ToString(match.Face.FaceId)
		cand.IdentityID = aws.ToString(match.Face.ExternalImageId)
	}
	return cand, nil
}

// Enroll indexes the identity's face in the site collection and returns
// the Rekognition face ID. The local identity ID travels as
// ExternalImageId so later searches can resolve it.
func (s *Service) Enroll(ctx context.Context, identity *domain.Identity, image []byte) (string, error) {
	if err := validateImage(image); err != nil {
		return "", err
	}

	input := &rekognition.IndexFacesInput{
		CollectionId:        aws.String(s.client.config.CollectionName(s.siteID)),
		Image:               &types.Image{Bytes: image},
		ExternalImageId:     aws.String(identity.ID),
		MaxFaces:            aws.Int32(1),
		QualityFilter:       types.QualityFilterAuto,
		DetectionAttributes: []types.Attribute{types.AttributeDefault},
	}

	output, err := s.client.rekognition.IndexFaces(ctx, input)
	if err != nil {
		return "", fmt.Errorf("index face: %w", err)
	}

	if len(output.FaceRecords) == 0 {
		if len(output.UnindexedFaces) > 0 {
			return "", ParseIndexFacesError(output.UnindexedFaces)
		}
		return "", ErrNoFaceDetected
	}

	return aws.ToString(output.FaceRecords[0].Face.FaceId), nil
}

// Delete removes an enrolled face from the site collection. The face ID
// is the external ID stored on the identity at enroll time.
func (s *Service) Delete(ctx context.Context, faceID string) error {
	input := &rekognition.DeleteFacesInput{
		CollectionId: aws.String(s.client.config.CollectionName(s.siteID)),
		FaceIds:      []string{faceID},
	}

	output, err := s.client.rekognition.DeleteFaces(ctx, input)
	if err != nil {
		return fmt.Errorf("delete face: %w", err)
	}
	if len(output.DeletedFaces) == 0 {
		return fmt.Errorf("face %s: %w", faceID, ErrFaceNotFound)
	}
	return nil
}

func (s *Service) rememberFrame(id string, image []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames[id] = image
	s.order = append(s.order, id)
	for len(s.order) > frameCacheLimit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.frames, oldest)
	}
}

func (s *Service) takeFrame(id string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	image, ok := s.frames[id]
	if ok {
		delete(s.frames, id)
		for i, v := range s.order {
			if v == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	return image, ok
}
