package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/example/foxyhub/internal/services"
)

// ErrorHandler renders every error returned by a handler as
// {"success": false, "error": {...}}. Service errors are mapped by kind,
// *fiber.Error keeps its own status and anything else is a 500.
func ErrorHandler(log *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		body := fiber.Map{"code": "internal_error", "message": "internal server error"}

		var svcErr *services.Error
		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &svcErr):
			status = statusForKind(svcErr.Kind)
			body["code"] = svcErr.Code
			body["message"] = svcErr.Message
			if len(svcErr.Fields) > 0 {
				body["fields"] = svcErr.Fields
			}
		case errors.As(err, &fiberErr):
			status = fiberErr.Code
			body["code"] = codeForStatus(fiberErr.Code)
			body["message"] = fiberErr.Message
		}

		entry := log.WithFields(logrus.Fields{
			"method": c.Method(),
			"path":   c.Path(),
			"status": status,
		})
		if status >= fiber.StatusInternalServerError {
			entry.WithError(err).Error("request failed")
		} else {
			entry.WithError(err).Debug("request rejected")
		}

		return c.Status(status).JSON(fiber.Map{"success": false, "error": body})
	}
}

func statusForKind(kind services.ErrorKind) int {
	switch kind {
	case services.KindValidation:
		return fiber.StatusBadRequest
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindInvalidState:
		return fiber.StatusConflict
	case services.KindUpstream:
		return fiber.StatusBadGateway
	case services.KindAuth:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "bad_request"
	case fiber.StatusUnauthorized:
		return "unauthorized"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusTooManyRequests:
		return "rate_limited"
	default:
		if status >= fiber.StatusInternalServerError {
			return "internal_error"
		}
		return "request_error"
	}
}
