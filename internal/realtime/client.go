package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8 << 10

	sendBuffer = 256
)

// FrameHandler processes a client frame that needs the application, i.e.
// anything but keepalives.
type FrameHandler interface {
	HandleFrame(ctx context.Context, c *Client, f InboundFrame)
}

// Client is a websocket session of one user. It implements Channel.
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	log    *slog.Logger
}

func NewClient(conn *websocket.Conn, userID string, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	id := uuid.NewString()
	return &Client{
		id:     id,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		log:    log.With("uid", userID, "channel", id),
	}
}

func (c *Client) ID() string     { return c.id }
func (c *Client) UserID() string { return c.userID }

func (c *Client) Send(frame []byte) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// SendFrame encodes and queues f.
func (c *Client) SendFrame(f OutboundFrame) error {
	b, err := f.Encode()
	if err != nil {
		return err
	}
	return c.Send(b)
}

// Close stops the write pump, which closes the connection.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// ReadPump reads frames until the connection fails or the client is closed.
// It answers pings itself and hands everything else to h.
func (c *Client) ReadPump(ctx context.Context, h FrameHandler) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.log.Info("websocket read failed", "error", err)
			}
			return
		}
		// any traffic proves the peer is alive
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var f InboundFrame
		if err := json.Unmarshal(data, &f); err != nil {
			_ = c.SendFrame(ErrorFrame("", "invalid_argument", "malformed frame"))
			continue
		}
		switch f.Type {
		case FramePing:
			_ = c.SendFrame(OutboundFrame{Type: FramePong, RequestID: f.RequestID})
		case FrameMessage:
			h.HandleFrame(ctx, c, f)
		default:
			_ = c.SendFrame(ErrorFrame(f.RequestID, "invalid_argument", "unknown frame type "+f.Type))
		}
	}
}

// WritePump drains the send queue and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
