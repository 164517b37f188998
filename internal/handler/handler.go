package handler // HTTP handlers for the provider dashboard and the public booking API

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/slotta-engine/internal/middleware"
	"github.com/iliyamo/slotta-engine/internal/repository"
	"github.com/iliyamo/slotta-engine/internal/service"
)

// requestTimeout bounds every database and gateway call made on behalf of a
// request.
const requestTimeout = 5 * time.Second

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidSchedule):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrRescheduleWindowClosed),
		errors.Is(err, service.ErrServiceInactive),
		errors.Is(err, repository.ErrDuplicate),
		errors.Is(err, repository.ErrNoChange):
		return http.StatusConflict
	case errors.Is(err, service.ErrPaymentAuthorizationFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, service.ErrBelowMinimum),
		errors.Is(err, service.ErrInsufficientBalance),
		errors.Is(err, service.ErrPayoutAccountMissing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrPaymentCaptureFailed),
		errors.Is(err, service.ErrPaymentReleaseFailed),
		errors.Is(err, service.ErrPayoutFailed),
		errors.Is(err, service.ErrPayoutPending):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// respondError writes {"error": ...}.  Messages of unexpected failures are
// not sent to the caller; the request log keeps them.
func respondError(c echo.Context, err error) error {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		middleware.SetError(c, err)
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	return c.JSON(status, echo.Map{"error": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func pathUint(c echo.Context, name string) (uint64, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	return n, err == nil && n > 0
}

func queryLimit(c echo.Context, def, max int) int {
	n, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
