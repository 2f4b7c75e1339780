package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/drip-engine/internal/domain"
)

type CampaignService interface {
	Create(ctx context.Context, campaign *domain.Campaign) (*domain.Campaign, error)
	Get(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context) ([]domain.Campaign, error)
	Update(ctx context.Context, campaign *domain.Campaign) (*domain.Campaign, error)
	Delete(ctx context.Context, id string) error
}

type CampaignHandler struct {
	service CampaignService
}

func NewCampaignHandler(service CampaignService) (*CampaignHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("campaign service is required")
	}
	return &CampaignHandler{service: service}, nil
}

func RegisterCampaignRoutes(router fiber.Router, service CampaignService) error {
	h, err := NewCampaignHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/campaigns", h.CreateCampaign)
	v1.Get("/campaigns", h.ListCampaigns)
	v1.Get("/campaigns/:id", h.GetCampaign)
	v1.Put("/campaigns/:id", h.UpdateCampaign)
	v1.Delete("/campaigns/:id", h.DeleteCampaign)

	return nil
}

type stepRequest struct {
	ID         string `json:"id"`
	OrderIndex int    `json:"orderIndex" validate:"gte=0"`
	DelayDays  int    `json:"delayDays" validate:"gte=0,lte=365"`
	Subject    string `json:"subject" validate:"required"`
	Body       string `json:"body" validate:"required"`
}

type campaignRequest struct {
	Name      string        `json:"name" validate:"required,max=200"`
	SegmentID *string       `json:"segmentId"`
	Steps     []stepRequest `json:"steps" validate:"max=50,dive"`
}

type stepResponse struct {
	ID         string `json:"id"`
	OrderIndex int    `json:"orderIndex"`
	DelayDays  int    `json:"delayDays"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

type campaignResponse struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	SegmentID *string        `json:"segmentId,omitempty"`
	Active    bool           `json:"active"`
	Steps     []stepResponse `json:"steps"`
	CreatedAt time.Time      `json:"createdAt,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt,omitempty"`
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req campaignRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	created, err := h.service.Create(c.Context(), requestToDomainCampaign("", req))
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toCampaignResponse(created))
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	campaigns, err := h.service.List(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]campaignResponse, 0, len(campaigns))
	for i := range campaigns {
		data = append(data, toCampaignResponse(&campaigns[i]))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": data})
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	campaign, err := h.service.Get(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toCampaignResponse(campaign))
}

func (h *CampaignHandler) UpdateCampaign(c *fiber.Ctx) error {
	var req campaignRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	updated, err := h.service.Update(c.Context(), requestToDomainCampaign(strings.TrimSpace(c.Params("id")), req))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toCampaignResponse(updated))
}

func (h *CampaignHandler) DeleteCampaign(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), strings.TrimSpace(c.Params("id"))); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func requestToDomainCampaign(id string, req campaignRequest) *domain.Campaign {
	campaign := &domain.Campaign{
		ID:        id,
		Name:      req.Name,
		SegmentID: req.SegmentID,
		Steps:     make([]domain.SequenceStep, 0, len(req.Steps)),
	}
	for _, step := range req.Steps {
		campaign.Steps = append(campaign.Steps, domain.SequenceStep{
			ID:         strings.TrimSpace(step.ID),
			CampaignID: id,
			OrderIndex: step.OrderIndex,
			DelayDays:  step.DelayDays,
			Subject:    step.Subject,
			Body:       step.Body,
		})
	}
	return campaign
}

func toCampaignResponse(c *domain.Campaign) campaignResponse {
	if c == nil {
		return campaignResponse{}
	}

	steps := make([]stepResponse, 0, len(c.Steps))
	for _, step := range domain.SortSteps(c.Steps) {
		steps = append(steps, stepResponse{
			ID:         step.ID,
			OrderIndex: step.OrderIndex,
			DelayDays:  step.DelayDays,
			Subject:    step.Subject,
			Body:       step.Body,
		})
	}

	return campaignResponse{
		ID:        c.ID,
		Name:      c.Name,
		SegmentID: c.SegmentID,
		Active:    c.Active(),
		Steps:     steps,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
