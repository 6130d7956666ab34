package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"github.com/Yetunde495/mentorr-me/internal/models"
	"github.com/Yetunde495/mentorr-me/pkg/chatwire"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 45 * time.Second
)

// signaler is the slice of the chat service a connection needs for inbound
// frames. Receipts and typing signals are the only client-originated events;
// message sends go through the HTTP pipeline.
type signaler interface {
	NotifyTyping(ctx context.Context, conversationID, senderID string) error
	MarkReceipt(ctx context.Context, actorID, messageID, receiptType string) (*models.Message, error)
}

// Client is one websocket connection bound to one conversation channel.
type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	channel string
	member  chatwire.Member
	send    chan chatwire.Envelope

	mu     sync.Mutex
	closed bool
}

func NewClient(hub *Hub, conn *websocket.Conn, channel string, member chatwire.Member) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		channel: channel,
		member:  member,
		send:    make(chan chatwire.Envelope, 32),
	}
}

// enqueue hands an envelope to the write pump. A client that cannot keep up
// is dropped rather than allowed to stall the channel.
func (c *Client) enqueue(env chatwire.Envelope) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	select {
	case c.send <- env:
		c.mu.Unlock()
	default:
		c.mu.Unlock()
		c.hub.Unregister(context.Background(), c)
	}
}

// close shuts the send buffer exactly once; the write pump exits when the
// channel drains.
func (c *Client) close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
}

// ReadPump consumes inbound frames until the connection drops. Signals are
// fire-and-forget: a failed receipt or typing call is logged and the
// connection stays up. Service calls carry a per-connection context that is
// cancelled on teardown, so in-flight work stops with the socket.
func (c *Client) ReadPump(service signaler) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		c.hub.Unregister(context.Background(), c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.routeFrame(ctx, service, payload)
	}
}

func (c *Client) routeFrame(ctx context.Context, service signaler, payload []byte) {
	var frame struct {
		Event     string `json:"event"`
		MessageID string `json:"messageId"`
		Type      string `json:"type"`
	}
	if err := json.Unmarshal(payload, &frame); err != nil {
		c.writeError("invalid frame")
		return
	}

	switch frame.Event {
	case chatwire.EventTyping:
		conversationID := chatwire.ConversationIDFromChannel(c.channel)
		if err := service.NotifyTyping(ctx, conversationID, c.member.UserID); err != nil {
			c.hub.logger.Warn("ws: typing signal rejected",
				zap.String("user_id", c.member.UserID),
				zap.Error(err),
			)
		}
	case chatwire.EventMessageReceipt:
		if _, err := service.MarkReceipt(ctx, c.member.UserID, frame.MessageID, frame.Type); err != nil {
			c.hub.logger.Warn("ws: receipt rejected",
				zap.String("user_id", c.member.UserID),
				zap.String("message_id", frame.MessageID),
				zap.Error(err),
			)
		}
	default:
		c.writeError("unsupported event")
	}
}

// WritePump serializes outbound envelopes onto the connection and keeps it
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			payload, err := encodeEnvelope(env)
			if err != nil {
				c.hub.logger.Error("ws: encode envelope", zap.Error(err))
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) writeError(message string) {
	env, err := chatwire.NewEnvelope(c.channel, "error", map[string]string{"message": message})
	if err != nil {
		return
	}
	c.enqueue(env)
}
