package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
	"github.com/kursadbilgin/extraction-orchestrator/internal/observability"
)

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrSuperseded):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrSessionExpired):
		return fiber.NewError(fiber.StatusUnauthorized, domain.ErrSessionExpired.Error())
	case errors.Is(err, domain.ErrUploadFailed):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return err
	}
}

// RequestContext copies the request id into the user context so service
// logs carry it.
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if id := requestCorrelationID(c); id != "" {
			c.SetUserContext(observability.WithCorrelationID(c.UserContext(), id))
		}
		return c.Next()
	}
}

func requestCorrelationID(c *fiber.Ctx) string {
	if value := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); value != "" {
		return value
	}
	if value, ok := c.Locals("requestid").(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
