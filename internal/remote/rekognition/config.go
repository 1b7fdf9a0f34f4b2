package rekognition

import "fmt"

// Config holds configuration for the AWS Rekognition identity service
type Config struct {
	// Region is the AWS region where Rekognition will be used (e.g., "us-east-1")
	Region string

	// CollectionPrefix is the prefix used to generate the collection name
	CollectionPrefix string

	// SimilarityThreshold is the minimum match confidence for SearchFacesByImage (0-1)
	SimilarityThreshold float64
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		Region:              "us-east-1",
		CollectionPrefix:    "ponto-",
		SimilarityThreshold: 0.70,
	}
}

// CollectionName generates the collection name for a given site.
// Example: "ponto-hq-lobby"
func (c Config) CollectionName(siteID string) string {
	return fmt.Sprintf("%s%s", c.CollectionPrefix, siteID)
}
