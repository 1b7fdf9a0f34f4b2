package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// Auth guards the device API with a single shared key. The kiosk's
// management endpoints are meant for the local operator console, not a
// multi-user backend, so one key per device is enough. An empty
// configured key disables the check (development mode).
func Auth(apiKeyHash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if apiKeyHash == "" {
			return c.Next()
		}

		key := extractBearerToken(c)
		if key == "" {
			return domain.ErrUnauthorized
		}

		hash := hashAPIKey(key)
		if subtle.ConstantTimeCompare([]byte(hash), []byte(apiKeyHash)) != 1 {
			return domain.ErrUnauthorized
		}

		return c.Next()
	}
}

// extractBearerToken extracts token from Authorization header
func extractBearerToken(c *fiber.Ctx) string {
	auth := c.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// HashAPIKey generates the SHA-256 hex digest stored in configuration.
func HashAPIKey(apiKey string) string {
	return hashAPIKey(apiKey)
}

func hashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}
