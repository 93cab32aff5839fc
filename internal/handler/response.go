package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/rental-backend/internal/reqctx"
	"github.com/shinyyama/rental-backend/internal/service"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

// ErrorInfo maps a service error to an HTTP status, a stable error code and
// a message that is safe to show to clients.
func ErrorInfo(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument", err.Error()
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, "permission_denied", err.Error()
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "conflict", err.Error()
	case errors.Is(err, service.ErrTransient):
		return http.StatusServiceUnavailable, "unavailable", err.Error()
	}
	return http.StatusInternalServerError, "internal_error", "internal error"
}

func respondError(c echo.Context, log *slog.Logger, err error) error {
	status, code, msg := ErrorInfo(err)
	l := reqctx.Logger(c.Request().Context(), log)
	if status >= http.StatusInternalServerError {
		l.Error("request failed", "path", c.Path(), "error", err)
	} else {
		l.Debug("request rejected", "path", c.Path(), "code", code, "error", err)
	}
	return c.JSON(status, NewErrorResponse(code, msg))
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid_argument", msg))
}

func currentUID(c echo.Context) string {
	uid, _ := c.Get("uid").(string)
	return uid
}
