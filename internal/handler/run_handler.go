package handler

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/drip-engine/internal/service"
)

type PassRunner interface {
	RunOnce(ctx context.Context) (service.PassSummary, error)
}

// RegisterRunRoutes exposes an on-demand campaign pass for external
// schedulers.
func RegisterRunRoutes(router fiber.Router, runner PassRunner) error {
	if runner == nil {
		return fmt.Errorf("campaign runner is required")
	}

	router.Post("/v1/runs", func(c *fiber.Ctx) error {
		summary, err := runner.RunOnce(c.Context())
		if err != nil {
			return toHTTPError(err)
		}
		return c.Status(fiber.StatusOK).JSON(summary)
	})
	return nil
}
