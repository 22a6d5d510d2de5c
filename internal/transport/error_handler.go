package transport

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/extraction-orchestrator/internal/observability"
	"go.uber.org/zap"
)

// ErrorHandler renders every handler error as {"error": message}. Client
// errors are logged at warn level, everything else at error level.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		log := observability.WithContextLogger(logger, c.UserContext()).With(
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", code),
			zap.Error(err),
		)
		if code < fiber.StatusInternalServerError {
			log.Warn("request rejected")
		} else {
			log.Error("request error")
		}

		message := err.Error()
		if fe == nil {
			message = "internal error"
		}
		return c.Status(code).JSON(fiber.Map{
			"error": message,
		})
	}
}
