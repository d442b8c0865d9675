// Package errorhandler converts errors escaping HTTP handlers into JSON
// error responses.
package errorhandler

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"

	"github.com/veil-network/pool-scanner/common/errs"
	"github.com/veil-network/pool-scanner/pkg/logger"
	"github.com/veil-network/pool-scanner/pkg/logger/slogx"
)

// NewHTTPErrorHandler returns the app-level fiber error handler. Errors
// carrying a public message become 400s with that message; fiber errors keep
// their status; everything else is logged and masked as a 500.
func NewHTTPErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if pubErr := new(errs.PublicError); errors.As(err, &pubErr) {
			return errors.WithStack(c.Status(http.StatusBadRequest).JSON(fiber.Map{
				"error": pubErr.Message(),
			}))
		}
		if fiberErr := new(fiber.Error); errors.As(err, &fiberErr) {
			return errors.WithStack(c.Status(fiberErr.Code).JSON(fiber.Map{
				"error": fiberErr.Error(),
			}))
		}

		logger.ErrorContext(c.UserContext(), "Something went wrong, unhandled api error",
			slogx.String("event", "api_unhandled_error"),
			slogx.Error(err),
		)
		return errors.WithStack(c.Status(http.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal Server Error",
		}))
	}
}
