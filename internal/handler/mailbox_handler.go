package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/drip-engine/internal/service"
)

type MailboxService interface {
	Status(ctx context.Context) (service.MailboxStatus, error)
	Connect(ctx context.Context, tokens service.MailboxTokens) (service.MailboxStatus, error)
	Disconnect(ctx context.Context) error
}

type MailboxHandler struct {
	service MailboxService
}

func RegisterMailboxRoutes(router fiber.Router, service MailboxService) error {
	if service == nil {
		return fmt.Errorf("mailbox service is required")
	}
	h := &MailboxHandler{service: service}

	v1 := router.Group("/v1")
	v1.Get("/mailbox/status", h.GetStatus)
	v1.Put("/mailbox", h.Connect)
	v1.Delete("/mailbox", h.Disconnect)

	return nil
}

type connectMailboxRequest struct {
	Address      string     `json:"address" validate:"required,email"`
	AccessToken  string     `json:"accessToken" validate:"required"`
	RefreshToken string     `json:"refreshToken"`
	Expiry       *time.Time `json:"expiry"`
}

func (h *MailboxHandler) GetStatus(c *fiber.Ctx) error {
	status, err := h.service.Status(c.Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(status)
}

func (h *MailboxHandler) Connect(c *fiber.Ctx) error {
	var req connectMailboxRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	status, err := h.service.Connect(c.Context(), service.MailboxTokens{
		Address:      req.Address,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		Expiry:       req.Expiry,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(status)
}

func (h *MailboxHandler) Disconnect(c *fiber.Ctx) error {
	if err := h.service.Disconnect(c.Context()); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
