package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

func newLimitedApp(rl *RateLimiter) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if appErr, ok := err.(*domain.AppError); ok {
				return c.Status(appErr.StatusCode).JSON(appErr)
			}
			return c.Status(500).SendString(err.Error())
		},
	})
	app.Use(rl.Handler())
	app.Get("/test", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})
	return app
}

func TestRateLimiter(t *testing.T) {
	t.Run("allows requests within limit", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{Max: 5, Window: time.Minute})
		defer rl.Stop()

		app := newLimitedApp(rl)

		for i := 0; i < 5; i++ {
			resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
			assert.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)

			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, "OK", string(body))
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{Max: 2, Window: time.Minute})
		defer rl.Stop()

		app := newLimitedApp(rl)

		for i := 0; i < 2; i++ {
			resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
			assert.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)
		}

		resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
		assert.NoError(t, err)
		assert.Equal(t, 429, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("Retry-After"))
	})

	t.Run("sets rate limit headers", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{Max: 10, Window: time.Minute})
		defer rl.Stop()

		app := newLimitedApp(rl)

		resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
		assert.NoError(t, err)
		assert.Equal(t, "10", resp.Header.Get("X-RateLimit-Limit"))
		assert.Equal(t, "9", resp.Header.Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Reset"))
	})

	t.Run("window reset restores quota", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{Max: 1, Window: 50 * time.Millisecond})
		defer rl.Stop()

		app := newLimitedApp(rl)

		resp, _ := app.Test(httptest.NewRequest("GET", "/test", nil))
		assert.Equal(t, 200, resp.StatusCode)

		resp, _ = app.Test(httptest.NewRequest("GET", "/test", nil))
		assert.Equal(t, 429, resp.StatusCode)

		time.Sleep(60 * time.Millisecond)

		resp, _ = app.Test(httptest.NewRequest("GET", "/test", nil))
		assert.Equal(t, 200, resp.StatusCode)
	})

	t.Run("clients are limited independently", func(t *testing.T) {
		calls := map[string]int{}
		rl := NewRateLimiter(RateLimiterConfig{
			Max:    1,
			Window: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				key := c.Get("X-Client")
				calls[key]++
				return key
			},
		})
		defer rl.Stop()

		app := newLimitedApp(rl)

		for _, client := range []string{"kiosk-a", "kiosk-b"} {
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("X-Client", client)
			resp, err := app.Test(req)
			assert.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)
		}

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set("X-Client", "kiosk-a")
		resp, err := app.Test(req)
		assert.NoError(t, err)
		assert.Equal(t, 429, resp.StatusCode)
		assert.Equal(t, 2, calls["kiosk-a"])
	})

	t.Run("empty key bypasses limiting", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{
			Max:    1,
			Window: time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return ""
			},
		})
		defer rl.Stop()

		app := newLimitedApp(rl)

		for i := 0; i < 3; i++ {
			resp, err := app.Test(httptest.NewRequest("GET", "/test", nil))
			assert.NoError(t, err)
			assert.Equal(t, 200, resp.StatusCode)
		}
	})

	t.Run("defaults fill zero config", func(t *testing.T) {
		rl := NewRateLimiter(RateLimiterConfig{})
		defer rl.Stop()

		def := DefaultRateLimiterConfig()
		assert.Equal(t, def.Max, rl.config.Max)
		assert.Equal(t, def.Window, rl.config.Window)
		assert.NotNil(t, rl.config.KeyGenerator)
	})
}
