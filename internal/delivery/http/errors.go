package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/FilipeAphrody/lifeline-auth/internal/domain"
)

const internalErrorMessage = "internal server error"

// errorStatus maps a usecase error to the HTTP status and the message sent to the client.
// Anything unrecognised is a 500 whose details stay in the server log.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, domain.ErrUnauthenticated.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, domain.ErrInvalidCredentials.Error()
	case errors.Is(err, domain.ErrInvalidMFACode):
		return http.StatusUnauthorized, domain.ErrInvalidMFACode.Error()
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, domain.ErrForbidden.Error()
	case errors.Is(err, domain.ErrForbiddenRole):
		return http.StatusForbidden, domain.ErrForbiddenRole.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.ErrNotFound.Error()
	case errors.Is(err, domain.ErrEmailTaken):
		return http.StatusConflict, domain.ErrEmailTaken.Error()
	case errors.Is(err, domain.ErrTooManyAttempts):
		return http.StatusTooManyRequests, domain.ErrTooManyAttempts.Error()
	default:
		return http.StatusInternalServerError, internalErrorMessage
	}
}

// respondError writes the {"error": msg} body for err.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
	}
	return c.JSON(status, echo.Map{"error": msg})
}
