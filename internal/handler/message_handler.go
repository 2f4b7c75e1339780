package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/drip-engine/internal/domain"
	"github.com/kursadbilgin/drip-engine/internal/gateway"
	"github.com/kursadbilgin/drip-engine/internal/repository"
	"github.com/kursadbilgin/drip-engine/internal/service"
)

type MessageService interface {
	SendSingle(ctx context.Context, req service.SingleSend) (domain.MessageLog, error)
	SendBulk(ctx context.Context, req service.BulkSend) (service.BulkSummary, error)
	Stats(ctx context.Context, filter repository.MessageStatsFilter) (domain.MessageStats, error)
}

type MessageHandler struct {
	service MessageService
}

func RegisterMessageRoutes(router fiber.Router, service MessageService) error {
	if service == nil {
		return fmt.Errorf("message service is required")
	}
	h := &MessageHandler{service: service}

	v1 := router.Group("/v1")
	v1.Post("/messages", h.SendMessage)
	v1.Post("/messages/bulk", h.SendBulk)
	v1.Get("/messages/stats", h.GetStats)

	return nil
}

type sendMessageRequest struct {
	To      string `json:"to" validate:"required,email"`
	Subject string `json:"subject" validate:"required"`
	Body    string `json:"body"`
	Track   *bool  `json:"track"`
}

type bulkSendRequest struct {
	SegmentID string `json:"segmentId" validate:"required"`
	Subject   string `json:"subject" validate:"required"`
	Body      string `json:"body" validate:"required"`
}

type messageResponse struct {
	ID             string    `json:"id"`
	TrackingID     *string   `json:"trackingId,omitempty"`
	RecipientEmail string    `json:"recipientEmail"`
	Subject        string    `json:"subject"`
	Status         string    `json:"status"`
	Type           string    `json:"type"`
	Error          *string   `json:"error,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type statsResponse struct {
	Total      int64   `json:"total"`
	Sent       int64   `json:"sent"`
	Failed     int64   `json:"failed"`
	Opened     int64   `json:"opened"`
	TotalOpens int64   `json:"totalOpens"`
	OpenRate   float64 `json:"openRate"`
}

// SendMessage answers 201 with the log entry on success. A gateway rejection
// still returns the FAILED entry, with 502.
func (h *MessageHandler) SendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	track := true
	if req.Track != nil {
		track = *req.Track
	}

	log, err := h.service.SendSingle(c.Context(), service.SingleSend{
		To:      req.To,
		Subject: req.Subject,
		Body:    req.Body,
		Track:   track,
	})
	if err != nil {
		var sendErr *gateway.SendError
		if errors.As(err, &sendErr) && log.ID != "" && !errors.Is(err, domain.ErrMailboxNotConnected) {
			return c.Status(fiber.StatusBadGateway).JSON(toMessageResponse(log))
		}
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toMessageResponse(log))
}

func (h *MessageHandler) SendBulk(c *fiber.Ctx) error {
	var req bulkSendRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	summary, err := h.service.SendBulk(c.Context(), service.BulkSend{
		SegmentID: req.SegmentID,
		Subject:   req.Subject,
		Body:      req.Body,
	})
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(summary)
}

func (h *MessageHandler) GetStats(c *fiber.Ctx) error {
	var filter repository.MessageStatsFilter

	if rawType := strings.TrimSpace(c.Query("type")); rawType != "" {
		messageType, err := domain.ParseMessageTypeFromString(rawType)
		if err != nil {
			return toHTTPError(err)
		}
		filter.Type = &messageType
	}
	if recipient := strings.TrimSpace(c.Query("recipient")); recipient != "" {
		filter.RecipientEmail = &recipient
	}
	if campaignID := strings.TrimSpace(c.Query("campaignId")); campaignID != "" {
		filter.CampaignID = &campaignID
	}

	stats, err := h.service.Stats(c.Context(), filter)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(statsResponse{
		Total:      stats.Total,
		Sent:       stats.Sent,
		Failed:     stats.Failed,
		Opened:     stats.Opened,
		TotalOpens: stats.TotalOpens,
		OpenRate:   stats.OpenRate(),
	})
}

func toMessageResponse(log domain.MessageLog) messageResponse {
	return messageResponse{
		ID:             log.ID,
		TrackingID:     log.TrackingID,
		RecipientEmail: log.RecipientEmail,
		Subject:        log.Subject,
		Status:         log.Status.String(),
		Type:           log.Type.String(),
		Error:          log.Error,
		CreatedAt:      log.CreatedAt,
	}
}
