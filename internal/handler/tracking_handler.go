package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/drip-engine/internal/domain"
	"github.com/kursadbilgin/drip-engine/internal/tracking"
	"go.uber.org/zap"
)

type TrackingService interface {
	RecordOpen(ctx context.Context, token string) (bool, error)
	Status(ctx context.Context, token string) (*domain.MessageLog, error)
}

type TrackingHandler struct {
	service TrackingService
	logger  *zap.Logger
}

func NewTrackingHandler(service TrackingService, logger *zap.Logger) (*TrackingHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("tracking service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackingHandler{service: service, logger: logger}, nil
}

func RegisterTrackingRoutes(router fiber.Router, service TrackingService, logger *zap.Logger) error {
	h, err := NewTrackingHandler(service, logger)
	if err != nil {
		return err
	}

	router.Get("/track/:token", h.Pixel)
	router.Get("/v1/tracking/:token", h.GetStatus)
	return nil
}

type trackingStatusResponse struct {
	TrackingID     string     `json:"trackingId"`
	RecipientEmail string     `json:"recipientEmail"`
	Subject        string     `json:"subject"`
	Status         string     `json:"status"`
	Opened         bool       `json:"opened"`
	OpenCount      int        `json:"openCount"`
	OpenedAt       *time.Time `json:"openedAt,omitempty"`
	SentAt         time.Time  `json:"sentAt"`
}

// Pixel always answers with the transparent GIF so mail clients never show a
// broken image, whether or not the token is known.
func (h *TrackingHandler) Pixel(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Params("token"))
	if _, err := h.service.RecordOpen(c.Context(), token); err != nil {
		h.logger.Error("failed to record open", zap.String("trackingId", token), zap.Error(err))
	}

	for key, value := range tracking.NoCacheHeaders {
		c.Set(key, value)
	}
	c.Set(fiber.HeaderContentType, tracking.ContentType)
	return c.Status(fiber.StatusOK).Send(tracking.Pixel())
}

func (h *TrackingHandler) GetStatus(c *fiber.Ctx) error {
	log, err := h.service.Status(c.Context(), c.Params("token"))
	if err != nil {
		return toHTTPError(err)
	}

	resp := trackingStatusResponse{
		RecipientEmail: log.RecipientEmail,
		Subject:        log.Subject,
		Status:         log.Status.String(),
		Opened:         log.Opened,
		OpenCount:      log.OpenCount,
		OpenedAt:       log.OpenedAt,
		SentAt:         log.CreatedAt,
	}
	if log.TrackingID != nil {
		resp.TrackingID = *log.TrackingID
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}
