package handlers

import (
	"errors"

	"github.com/fenilmodi00/market-quotes/services"
	"github.com/fenilmodi00/market-quotes/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// errorStatus maps service errors onto HTTP status codes
func errorStatus(err error) int {
	var unknownInstrument *shared.UnknownInstrumentError
	var unknownTool *services.UnknownToolError
	var fetchErr *shared.FetchError
	var serviceErr *shared.ServiceError

	switch {
	case errors.As(err, &unknownInstrument), errors.Is(err, shared.ErrQuoteNotFound):
		return fiber.StatusNotFound
	case errors.As(err, &unknownTool):
		return fiber.StatusBadRequest
	case errors.As(err, &serviceErr) && serviceErr.Category == shared.ErrorCategoryValidation:
		return fiber.StatusBadRequest
	case errors.As(err, &fetchErr):
		if fetchErr.Timeout {
			return fiber.StatusGatewayTimeout
		}
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	status := errorStatus(err)
	if status >= fiber.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"component": "handlers",
			"path":      c.Path(),
			"status":    status,
		}).WithError(err).Warn("Request failed")
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}

func respondData(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}
