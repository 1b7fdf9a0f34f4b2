package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

func newAuthApp(apiKeyHash string) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if appErr, ok := err.(*domain.AppError); ok {
				return c.Status(appErr.StatusCode).JSON(appErr)
			}
			return c.Status(500).SendString(err.Error())
		},
	})
	app.Use(Auth(apiKeyHash))
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	return app
}

func TestAuth(t *testing.T) {
	const deviceKey = "kiosk-secret-key"
	keyHash := HashAPIKey(deviceKey)

	t.Run("valid key passes", func(t *testing.T) {
		app := newAuthApp(keyHash)

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer "+deviceKey)

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		app := newAuthApp(keyHash)

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "Bearer not-the-key")

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode)
	})

	t.Run("missing header rejected", func(t *testing.T) {
		app := newAuthApp(keyHash)

		resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode)
	})

	t.Run("malformed header rejected", func(t *testing.T) {
		app := newAuthApp(keyHash)

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", deviceKey)

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 401, resp.StatusCode)
	})

	t.Run("bearer scheme is case insensitive", func(t *testing.T) {
		app := newAuthApp(keyHash)

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("Authorization", "bearer "+deviceKey)

		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("empty hash disables the check", func(t *testing.T) {
		app := newAuthApp("")

		resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
		assert.NoError(t, err)
		assert.Equal(t, 200, resp.StatusCode)
	})
}

func TestHashAPIKey(t *testing.T) {
	a := HashAPIKey("key-one")
	b := HashAPIKey("key-two")

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, HashAPIKey("key-one"))
}
