package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/drip-engine/internal/domain"
)

type SegmentService interface {
	Create(ctx context.Context, name string) (*domain.Segment, error)
	List(ctx context.Context) ([]domain.Segment, error)
	Rename(ctx context.Context, id string, name string) (*domain.Segment, error)
	Delete(ctx context.Context, id string) error
}

type SegmentHandler struct {
	service SegmentService
}

func RegisterSegmentRoutes(router fiber.Router, service SegmentService) error {
	if service == nil {
		return fmt.Errorf("segment service is required")
	}
	h := &SegmentHandler{service: service}

	v1 := router.Group("/v1")
	v1.Post("/segments", h.CreateSegment)
	v1.Get("/segments", h.ListSegments)
	v1.Patch("/segments/:id", h.RenameSegment)
	v1.Delete("/segments/:id", h.DeleteSegment)

	return nil
}

type segmentRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

func (h *SegmentHandler) CreateSegment(c *fiber.Ctx) error {
	var req segmentRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	segment, err := h.service.Create(c.Context(), req.Name)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(toSegmentResponse(segment))
}

func (h *SegmentHandler) ListSegments(c *fiber.Ctx) error {
	segments, err := h.service.List(c.Context())
	if err != nil {
		return toHTTPError(err)
	}

	data := make([]fiber.Map, 0, len(segments))
	for i := range segments {
		data = append(data, toSegmentResponse(&segments[i]))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"data": data})
}

func (h *SegmentHandler) RenameSegment(c *fiber.Ctx) error {
	var req segmentRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}

	segment, err := h.service.Rename(c.Context(), strings.TrimSpace(c.Params("id")), req.Name)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(fiber.StatusOK).JSON(toSegmentResponse(segment))
}

func (h *SegmentHandler) DeleteSegment(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context(), strings.TrimSpace(c.Params("id"))); err != nil {
		return toHTTPError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func toSegmentResponse(s *domain.Segment) fiber.Map {
	return fiber.Map{
		"id":        s.ID,
		"name":      s.Name,
		"createdAt": s.CreatedAt,
	}
}
