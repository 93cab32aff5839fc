package realtime

import (
	"encoding/json"

	"github.com/shinyyama/rental-backend/internal/model"
)

const (
	FrameMessage = "message"
	FrameAck     = "ack"
	FramePing    = "ping"
	FramePong    = "pong"
	FrameError   = "error"
)

// InboundFrame is what a client sends over the socket. The sender is always
// the authenticated user of the connection, never a field of the frame.
type InboundFrame struct {
	Type           string `json:"type"`
	RequestID      string `json:"requestId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	RecipientID    string `json:"recipientId,omitempty"`
	Content        string `json:"content,omitempty"`
}

type OutboundFrame struct {
	Type      string             `json:"type"`
	RequestID string             `json:"requestId,omitempty"`
	Message   *model.MessageView `json:"message,omitempty"`
	Error     *FrameErrorBody    `json:"error,omitempty"`
}

type FrameErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func MessageFrame(msg model.Message) OutboundFrame {
	v := msg.View()
	return OutboundFrame{Type: FrameMessage, Message: &v}
}

func AckFrame(requestID string, msg model.Message) OutboundFrame {
	v := msg.View()
	return OutboundFrame{Type: FrameAck, RequestID: requestID, Message: &v}
}

func ErrorFrame(requestID, code, message string) OutboundFrame {
	return OutboundFrame{Type: FrameError, RequestID: requestID, Error: &FrameErrorBody{Code: code, Message: message}}
}

func (f OutboundFrame) Encode() ([]byte, error) {
	return json.Marshal(f)
}
