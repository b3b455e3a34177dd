package api

import (
	"errors"

	"github.com/adamavenir/parley/internal/apperr"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func statusFor(code apperr.Code) int {
	switch code {
	case apperr.CodeValidation, apperr.CodeInvalidKind:
		return fiber.StatusBadRequest
	case apperr.CodeForbidden:
		return fiber.StatusForbidden
	case apperr.CodeNotFound:
		return fiber.StatusNotFound
	case apperr.CodeTranslationUnavailable:
		return fiber.StatusServiceUnavailable
	case apperr.CodeBroadcast:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// errorHandler renders engine and fiber errors as {"error", "code"}.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *apperr.AppError
		if errors.As(err, &appErr) {
			status := statusFor(appErr.Code)
			if status >= fiber.StatusInternalServerError {
				logger.Error("request failed",
					zap.String("path", c.Path()),
					zap.String("code", string(appErr.Code)),
					zap.Error(err))
			}
			return c.Status(status).JSON(fiber.Map{"error": appErr.Message, "code": appErr.Code})
		}

		status := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}
		if status >= fiber.StatusInternalServerError {
			logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
		}
		return c.Status(status).JSON(fiber.Map{"error": err.Error()})
	}
}
