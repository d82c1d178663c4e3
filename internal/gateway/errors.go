package gateway

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"livesync/internal/mapping"
	"livesync/internal/model"
	"livesync/internal/schema"
	"livesync/internal/service"
	"livesync/internal/store"
)

// Error codes returned in the error envelope.
const (
	CodeInvalidPayload = "INVALID_PAYLOAD"
	CodeInvalidConfig  = "INVALID_CONFIG"
	CodeValidation     = "VALIDATION_FAILED"
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeOrphanedLink   = "ORPHANED_LINK"
	CodeDisabled       = "DISABLED"
	CodeInternal       = "INTERNAL_ERROR"
)

func fail(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": fiber.Map{"code": code, "message": message}})
}

func respond(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{"data": data})
}

// classify maps an error returned by the service layer to a status and code.
func classify(err error) (int, string) {
	var verr *schema.ValidationError
	var ferr *fiber.Error

	switch {
	case errors.As(err, &ferr):
		if ferr.Code == fiber.StatusNotFound {
			return ferr.Code, CodeNotFound
		}
		return ferr.Code, CodeInvalidPayload
	case errors.Is(err, model.ErrInvalidConfig),
		errors.Is(err, mapping.ErrUnknownTransform),
		errors.Is(err, mapping.ErrUnknownHook):
		return fiber.StatusUnprocessableEntity, CodeInvalidConfig
	case errors.As(err, &verr):
		return fiber.StatusUnprocessableEntity, CodeValidation
	case errors.Is(err, store.ErrNotFound):
		return fiber.StatusNotFound, CodeNotFound
	case errors.Is(err, store.ErrExists):
		return fiber.StatusConflict, CodeConflict
	case errors.Is(err, service.ErrOrphanedLink):
		return fiber.StatusConflict, CodeOrphanedLink
	case errors.Is(err, service.ErrDisabled):
		return fiber.StatusConflict, CodeDisabled
	}
	return fiber.StatusInternalServerError, CodeInternal
}

// errorHandler renders every error returned by a handler in the envelope.
// Validation failures carry the full report.
func errorHandler(logger logrus.FieldLogger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, code := classify(err)
		if status == fiber.StatusInternalServerError {
			logger.WithError(err).WithField("path", c.Path()).Error("request failed")
		}

		body := fiber.Map{"code": code, "message": err.Error()}
		var verr *schema.ValidationError
		if errors.As(err, &verr) {
			body["issues"] = verr.Report.Issues
		}
		return c.Status(status).JSON(fiber.Map{"error": body})
	}
}
