package handlers

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"wenlock/internal/apperrors"
)

// StrictJSONDecoder rejects unknown fields and trailing data. It is used as
// fiber's JSONDecoder so BodyParser enforces the request whitelist.
func StrictJSONDecoder(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// ErrorHandler renders errors that escape the handlers, including fiber's
// own (unknown route, bad method) as JSON.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"message": fe.Message,
			})
		}
		logger.Error("unhandled error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Internal server error",
		})
	}
}

// respondError maps the error taxonomy onto HTTP responses.
func respondError(c *fiber.Ctx, logger *zap.Logger, action string, err error) error {
	var (
		verr     *apperrors.ValidationError
		conflict *apperrors.ConflictError
	)
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"errors":  verr.Fields,
		})
	case errors.As(err, &conflict):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": conflict.Error(),
			"fields":  conflict.Fields,
		})
	case errors.Is(err, apperrors.ErrUserNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "User not found",
		})
	default:
		logger.Error("request failed", zap.String("action", action), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not " + action,
		})
	}
}
