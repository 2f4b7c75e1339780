package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/drip-engine/internal/domain"
	"github.com/kursadbilgin/drip-engine/internal/repository"
	"github.com/kursadbilgin/drip-engine/internal/service"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 500
)

type LeadService interface {
	Create(ctx context.Context, lead *domain.Lead) (*domain.Lead, error)
	Get(ctx context.Context, id string) (*domain.Lead, error)
	List(ctx context.Context, params repository.LeadListParams) ([]domain.Lead, int64, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
	Import(ctx context.Context, rows []service.LeadImportRow) (service.ImportSummary, error)
}

type LeadHandler struct {
	service LeadService
}

func NewLeadHandler(service LeadService) (*LeadHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("lead service is required")
	}
	return &LeadHandler{service: service}, nil
}

func RegisterLeadRoutes(router fiber.Router, service LeadService) error {
	h, err := NewLeadHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/leads", h.CreateLead)
	v1.Post("/leads/import", h.ImportLeads)
	v1.Get("/leads", h.ListLeads)
	v1.Get("/leads/count", h.CountLeads)
	v1.Get("/leads/:id", h.GetLead)
	v1.Delete("/leads/:id", h.DeleteLead)

	return nil
}

type leadRequest struct {
	Name       string  `json:"name" validate:"required"`
	Email      *string `json:"email" validate:"omitempty,email"`
	Phone      *string `json:"phone"`
	Website    *string `json:"website" validate:"omitempty,url"`
	MapsLink   *string `json:"mapsLink"`
	SearchTerm *string `json:"searchTerm"`
	SegmentID  *string `json:"segmentId"`
}

type importLeadItem struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Website    string `json:"website"`
	MapsLink   string `json:"mapsLink"`
	SearchTerm string `json:"searchTerm"`
	Segment    string `json:"segment"`
}

type importLeadsRequest struct {
	Leads []importLeadItem `json:"leads" validate:"required,min=1"`
}

type leadResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      *string   `json:"email,omitempty"`
	Phone      *string   `json:"phone,omitempty"`
	Website    *string   `json:"website,omitempty"`
	MapsLink   *string   `json:"mapsLink,omitempty"`
	SearchTerm *string   `json:"searchTerm,omitempty"`
	SegmentID  *string   `json:"segmentId,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

type listLeadsResponse struct {
	Data []leadResponse `json:"data"`
	Meta listMeta       `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *LeadHandler) CreateLead(c *fiber.Ctx) error {
	var req leadRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	created, err := h.service.Create(c.Context(), &domain.Lead{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Website:    req.Website,
		MapsLink:   req.MapsLink,
		SearchTerm: req.SearchTerm,
		SegmentID:  req.SegmentID,
	})
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toLeadResponse(created))
}

func (h *LeadHandler) ImportLeads(c *fiber.Ctx) error {
	var req importLeadsRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	rows := make([]service.LeadImportRow, 0, len(req.Leads))
	for _, item := range req.Leads {
		rows = append(rows, service.LeadImportRow{
			Name:       item.Name,
			Email:      item.Email,
			Phone:      item.Phone,
			Website:    item.Website,
			MapsLink:   item.MapsLink,
			SearchTerm: item.SearchTerm,
			Segment:    item.Segment,
		})
	}

	summary, err := h.service.Import(c.Context(), rows)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(summary)
}

func (h *LeadHandler) ListLeads(c *fiber.Ctx) error {
	params, err := parseLeadListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	leads, total, err := h.service.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]leadResponse, 0, len(leads))
	for i := range leads {
		data = append(data, toLeadResponse(&leads[i]))
	}

	return c.Status(fiber.StatusOK).JSON(listLeadsResponse{
		Data: data,
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func (h *LeadHandler) CountLeads(c *fiber.Ctx) error {
	count, err := h.service.Count(c.Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"count": count})
}

func (h *LeadHandler) GetLead(c *fiber.Ctx) error {
	lead, err := h.service.Get(c.Context(), strings.TrimSpace(c.Params("id")))
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toLeadResponse(lead))
}

func (h *LeadHandler) DeleteLead(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), strings.TrimSpace(c.Params("id"))); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func parseLeadListParams(c *fiber.Ctx) (repository.LeadListParams, error) {
	params := repository.LeadListParams{
		SortBy:   strings.TrimSpace(c.Query("sortBy")),
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.LeadListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.LeadListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	switch strings.ToLower(strings.TrimSpace(c.Query("order"))) {
	case "", "asc":
	case "desc":
		params.Descending = true
	default:
		return repository.LeadListParams{}, fmt.Errorf("%w: order must be asc or desc", domain.ErrValidation)
	}

	if segmentID := strings.TrimSpace(c.Query("segmentId")); segmentID != "" {
		params.SegmentID = &segmentID
	}

	return params, nil
}

func toLeadResponse(l *domain.Lead) leadResponse {
	if l == nil {
		return leadResponse{}
	}
	return leadResponse{
		ID:         l.ID,
		Name:       l.Name,
		Email:      l.Email,
		Phone:      l.Phone,
		Website:    l.Website,
		MapsLink:   l.MapsLink,
		SearchTerm: l.SearchTerm,
		SegmentID:  l.SegmentID,
		CreatedAt:  l.CreatedAt,
	}
}
