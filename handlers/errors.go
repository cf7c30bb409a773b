package handlers

import (
	"errors"

	"face-match-system/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var kindStatus = map[services.Kind]int{
	services.KindAuthenticationRequired: fiber.StatusUnauthorized,
	services.KindForbidden:              fiber.StatusForbidden,
	services.KindNotFound:               fiber.StatusNotFound,
	services.KindInvalidState:           fiber.StatusConflict,
	services.KindConflict:               fiber.StatusConflict,
	services.KindValidation:             fiber.StatusBadRequest,
	services.KindContent:                fiber.StatusBadRequest,
	services.KindTransient:              fiber.StatusServiceUnavailable,
	services.KindStorage:                fiber.StatusInternalServerError,
	services.KindUnexpected:             fiber.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind services.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// writeError sends {"error", "code"}. Causes are logged and never returned.
func writeError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	var se *services.Error
	if !errors.As(err, &se) {
		se = &services.Error{Kind: services.KindUnexpected, Message: "An unexpected error occurred", Err: err}
	}

	status := StatusFor(se.Kind)
	if status >= fiber.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.String("code", string(se.Kind)),
			zap.Error(err),
		)
	} else if se.Err != nil {
		logger.Debug("request rejected", zap.String("path", c.Path()), zap.Error(err))
	}

	return c.Status(status).JSON(fiber.Map{
		"error": se.Message,
		"code":  se.Kind,
	})
}

func validationError(msg string) error {
	return &services.Error{Kind: services.KindValidation, Message: msg}
}

// ErrorHandler is the fiber fallback for errors no route handled, e.g. body limit violations.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			kind := services.KindUnexpected
			switch {
			case fe.Code == fiber.StatusNotFound:
				kind = services.KindNotFound
			case fe.Code < fiber.StatusInternalServerError:
				kind = services.KindValidation
			}
			return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message, "code": kind})
		}
		return writeError(c, logger, err)
	}
}
