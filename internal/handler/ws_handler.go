package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/shinyyama/rental-backend/internal/realtime"
	"github.com/shinyyama/rental-backend/internal/reqctx"
	"github.com/shinyyama/rental-backend/internal/service"
)

// WSHandler upgrades authenticated requests to websocket sessions and
// routes their message frames through the message service.
type WSHandler struct {
	hub      *realtime.Hub
	msgs     service.MessageService
	upgrader websocket.Upgrader
	log      *slog.Logger
}

func NewWSHandler(hub *realtime.Hub, msgs service.MessageService, checkOrigin func(*http.Request) bool, log *slog.Logger) *WSHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WSHandler{
		hub:  hub,
		msgs: msgs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		log: log,
	}
}

func (h *WSHandler) Serve(c echo.Context) error {
	uid := currentUID(c)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader has already written the failure response
		h.log.Debug("websocket upgrade failed", "uid", uid, "error", err)
		return nil
	}

	ctx := c.Request().Context()
	client := realtime.NewClient(conn, uid, h.log.With("rid", reqctx.RID(ctx)))
	if err := h.hub.Connect(ctx, uid, client); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return nil
	}
	defer h.hub.Disconnect(context.WithoutCancel(ctx), uid, client)

	go client.WritePump()
	client.ReadPump(ctx, h)
	return nil
}

// HandleFrame sends one message on behalf of the connection's user and
// acknowledges it with the stored message.
func (h *WSHandler) HandleFrame(ctx context.Context, c *realtime.Client, f realtime.InboundFrame) {
	msg, err := h.msgs.Send(ctx, service.SendInput{
		ConversationID: f.ConversationID,
		SenderID:       c.UserID(),
		RecipientHint:  f.RecipientID,
		Content:        f.Content,
	})
	if err != nil {
		status, code, text := ErrorInfo(err)
		if status >= http.StatusInternalServerError {
			reqctx.Logger(ctx, h.log).Error("websocket send failed", "error", err)
		}
		_ = c.SendFrame(realtime.ErrorFrame(f.RequestID, code, text))
		return
	}
	_ = c.SendFrame(realtime.AckFrame(f.RequestID, *msg))
}
