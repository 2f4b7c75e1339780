package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/drip-engine/internal/domain"
	"github.com/kursadbilgin/drip-engine/internal/gateway"
	"github.com/kursadbilgin/drip-engine/internal/ratelimit"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// bindJSON parses the request body into req and runs its validate tags.
func bindJSON(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return toHTTPError(validationError(err))
	}
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(parts, ", "))
}

func toHTTPError(err error) error {
	var sendErr *gateway.SendError
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrMailboxNotConnected), errors.Is(err, gateway.ErrCredentialsRejected):
		return fiber.NewError(fiber.StatusPreconditionFailed, err.Error())
	case errors.Is(err, ratelimit.ErrQuotaExhausted):
		return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
	case errors.As(err, &sendErr):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return err
	}
}
