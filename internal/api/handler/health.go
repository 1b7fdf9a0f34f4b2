package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// ReadyCheck reports whether the kiosk can serve verifications.
type ReadyCheck func(ctx context.Context) error

type HealthHandler struct {
	ready ReadyCheck
}

func NewHealthHandler(ready ReadyCheck) *HealthHandler {
	return &HealthHandler{ready: ready}
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
	})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	if h.ready != nil {
		if err := h.ready(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(HealthResponse{
				Status: "not ready",
				Reason: err.Error(),
			})
		}
	}
	return c.JSON(HealthResponse{
		Status: "ready",
	})
}
