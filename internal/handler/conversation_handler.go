package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/service"
)

type ConversationHandler struct {
	convs service.ConversationService
	msgs  service.MessageService
	log   *slog.Logger
}

func NewConversationHandler(convs service.ConversationService, msgs service.MessageService, log *slog.Logger) *ConversationHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ConversationHandler{convs: convs, msgs: msgs, log: log}
}

// SendMessageRequest carries no content rules: blank or oversized content
// is rejected by the service after the participant check.
type SendMessageRequest struct {
	ConversationID string `param:"id" json:"-" validate:"required,uuid"`
	RecipientID    string `json:"recipientId"`
	Content        string `json:"content"`
}

// Resolve finds or starts the caller's conversation about a listing.
func (h *ConversationHandler) Resolve(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	cv, err := h.convs.Resolve(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, cv.View())
}

func (h *ConversationHandler) List(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	convs, err := h.convs.ListByUser(c.Request().Context(), uid)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, lo.Map(convs, func(cv model.Conversation, _ int) model.ConversationView {
		return cv.View()
	}))
}

func (h *ConversationHandler) Get(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	cv, err := h.convs.Get(c.Request().Context(), c.Param("id"), uid)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, cv.View())
}

// ListMessages returns history in order. ?after=<seq> resumes after a known
// message and ?limit= caps the page.
func (h *ConversationHandler) ListMessages(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	var opts service.ListOptions
	if err := echo.QueryParamsBinder(c).
		Int64("after", &opts.AfterSeq).
		Int("limit", &opts.Limit).
		BindError(); err != nil {
		return badRequest(c, "after and limit must be integers")
	}
	msgs, err := h.msgs.List(c.Request().Context(), c.Param("id"), uid, opts)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, lo.Map(msgs, func(m model.Message, _ int) model.MessageView {
		return m.View()
	}))
}

func (h *ConversationHandler) CreateMessage(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid json")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "invalid conversation id")
	}
	msg, err := h.msgs.Send(c.Request().Context(), service.SendInput{
		ConversationID: req.ConversationID,
		SenderID:       uid,
		RecipientHint:  req.RecipientID,
		Content:        req.Content,
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(http.StatusCreated, msg.View())
}
