package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// PresenceReader reports whether a user has a live session.
type PresenceReader interface {
	Online(ctx context.Context, uid string) (bool, error)
}

type UserHandler struct {
	presence PresenceReader
	log      *slog.Logger
}

func NewUserHandler(presence PresenceReader, log *slog.Logger) *UserHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UserHandler{presence: presence, log: log}
}

type PresenceResponse struct {
	UID    string `json:"uid"`
	Online bool   `json:"online"`
}

func (h *UserHandler) GetPresence(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("invalid_argument", "invalid uid"))
	}
	online, err := h.presence.Online(c.Request().Context(), uid)
	if err != nil {
		h.log.Warn("presence lookup failed", "uid", uid, "error", err)
		return c.JSON(http.StatusServiceUnavailable, NewErrorResponse("unavailable", "presence unavailable"))
	}
	return c.JSON(http.StatusOK, PresenceResponse{UID: uid, Online: online})
}
