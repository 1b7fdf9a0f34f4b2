package rekognition

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"
)

const (
	errCodeAccessDenied     = "AccessDeniedException"
	errCodeResourceNotFound = "ResourceNotFoundException"
	errCodeResourceExists   = "ResourceAlreadyExistsException"
	errCodeInvalidParameter = "InvalidParameterException"
)

// Client wraps the AWS Rekognition client and manages the site collection
type Client struct {
	rekognition *rekognition.Client
	config      Config
}

// NewClient creates a new Rekognition client using the AWS default credential chain
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &Client{
		rekognition: rekognition.NewFromConfig(awsCfg),
		config:      cfg,
	}, nil
}

// CreateCollection creates the Rekognition collection for the given site.
// Returns ErrCollectionAlreadyExists if it already exists.
func (c *Client) CreateCollection(ctx context.Context, siteID string) error {
	input := &rekognition.CreateCollectionInput{
		CollectionId: aws.String(c.config.CollectionName(siteID)),
	}

	if _, err := c.rekognition.CreateCollection(ctx, input); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case errCodeResourceExists:
				return fmt.Errorf("site %s: %w", siteID, ErrCollectionAlreadyExists)
			case errCodeInvalidParameter:
				return fmt.Errorf("site %s: invalid collection parameters: %w", siteID, err)
			case errCodeAccessDenied:
				return fmt.Errorf("site %s: %w", siteID, ErrInvalidCredentials)
			}
		}
		return fmt.Errorf("failed to create collection for site %s: %w", siteID, err)
	}

	return nil
}

// CollectionExists checks if a collection exists for the given site
func (c *Client) CollectionExists(ctx context.Context, siteID string) (bool, error) {
	input := &rekognition.DescribeCollectionInput{
		CollectionId: aws.String(c.config.CollectionName(siteID)),
	}

	if _, err := c.rekognition.DescribeCollection(ctx, input); err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case errCodeResourceNotFound:
				return false, nil
			case errCodeAccessDenied:
				return false, fmt.Errorf("site %s: %w", siteID, ErrInvalidCredentials)
			}
		}
		return false, fmt.Errorf("failed to check collection for site %s: %w", siteID, err)
	}

	return true, nil
}

// EnsureCollection creates the site collection if it does not exist yet
func (c *Client) EnsureCollection(ctx context.Context, siteID string) error {
	exists, err := c.CollectionExists(ctx, siteID)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.CreateCollection(ctx, siteID); err != nil {
		// Ignore if collection was created concurrently
		if errors.Is(err, ErrCollectionAlreadyExists) {
			return nil
		}
		return err
	}

	return nil
}

// ParseNoFaceError checks if an AWS error indicates no face was detected
func ParseNoFaceError(err error) error {
	if err == nil {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == errCodeInvalidParameter {
		if msg := apiErr.ErrorMessage(); msg != "" {
			return fmt.Errorf("%w: %s", ErrNoFaceDetected, msg)
		}
		return ErrNoFaceDetected
	}

	return err
}

// ParseIndexFacesError interprets the unindexed-face reasons from an IndexFaces call
func ParseIndexFacesError(unindexedFaces []types.UnindexedFace) error {
	if len(unindexedFaces) == 0 {
		return nil
	}

	face := unindexedFaces[0]
	if len(face.Reasons) > 0 {
		switch face.Reasons[0] {
		case types.ReasonExceedsMaxFaces:
			return ErrMultipleFaces
		case types.ReasonExtremePose, types.ReasonLowBrightness,
			types.ReasonLowSharpness, types.ReasonLowConfidence,
			types.ReasonSmallBoundingBox, types.ReasonLowFaceQuality:
			return fmt.Errorf("%w: %s", ErrNoFaceDetected, face.Reasons[0])
		}
	}

	return ErrNoFaceDetected
}
