package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"gardencast/dashboard"
	"gardencast/internal/errorutil"
	"gardencast/internal/logger"
)

// statusFor maps an error to the HTTP status returned to clients
func statusFor(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}

	switch {
	case errors.Is(err, dashboard.ErrDebounced):
		return fiber.StatusTooManyRequests
	case errors.Is(err, dashboard.ErrSuperseded):
		return fiber.StatusConflict
	}

	switch errorutil.KindOf(err) {
	case errorutil.KindInvalidQuery:
		return fiber.StatusBadRequest
	case errorutil.KindNotFound:
		return fiber.StatusNotFound
	case errorutil.KindTimeout:
		return fiber.StatusGatewayTimeout
	case errorutil.KindHTTP, errorutil.KindInvalidResponse:
		return fiber.StatusBadGateway
	case errorutil.KindNetwork:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// messageFor returns the client-facing text. Provider details, URLs and
// credentials never leave the server.
func messageFor(err error) string {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Message
	}

	switch {
	case errors.Is(err, dashboard.ErrDebounced), errors.Is(err, dashboard.ErrSuperseded):
		return err.Error()
	}
	return errorutil.UserMessage(err)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		logger.Error("%s %s failed: %v", c.Method(), c.Path(), err)
	}
	return c.Status(code).JSON(fiber.Map{
		"error": messageFor(err),
	})
}
