package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-rooms/internal/chat"
	"chat-rooms/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// room for the JSON envelope around a maximum-size content field
	frameOverhead = 64 * 1024
)

var (
	ErrClientClosed = errors.New("client closed")
	ErrSlowConsumer = errors.New("send buffer full")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type ClientOptions struct {
	SendBuffer      int
	MaxContentBytes int
}

// Client is one websocket connection. It implements chat.Conn.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	coord   *chat.Coordinator
	session *chat.Session
	hub     *Hub
	readMax int64
	log     *slog.Logger
}

func NewClient(conn *websocket.Conn, coord *chat.Coordinator, hub *Hub, identity string, opts ClientOptions, log *slog.Logger) *Client {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	if opts.MaxContentBytes <= 0 {
		opts.MaxContentBytes = chat.DefaultMaxContentBytes
	}
	if log == nil {
		log = slog.Default()
	}

	id := uuid.NewString()
	client := &Client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, opts.SendBuffer),
		done:    make(chan struct{}),
		coord:   coord,
		hub:     hub,
		readMax: int64(opts.MaxContentBytes + frameOverhead),
		log:     log.With("conn", id, "identity", identity),
	}
	client.session = coord.Connect(client, identity)
	return client
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Session() *chat.Session {
	return c.session
}

// Send queues a frame for the write pump. A full buffer closes the
// connection rather than blocking the publisher.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.log.Warn("Send buffer full, closing connection")
		c.Close()
		return ErrSlowConsumer
	}
}

// Close signals the write pump, which sends a close frame and then closes
// the socket. Disconnect handling runs when the read pump exits.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// Start registers the client and runs its pumps.
func (c *Client) Start() {
	if c.hub != nil {
		c.hub.Register(c)
	}
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) ReadPump() {
	defer func() {
		c.coord.Disconnect(c.session)
		if c.hub != nil {
			c.hub.Unregister(c)
		}
		c.Close()
	}()

	// Set read deadline and pong handler for connection health
	c.conn.SetReadLimit(c.readMax)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Error("WebSocket error", "error", err)
			}
			return
		}

		c.handle(context.Background(), message)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
				c.log.Debug("Close frame not sent", "error", err)
			}
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("Write error", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle decodes one inbound frame and dispatches it. Events are handled
// synchronously, so one connection's events are processed in arrival order.
func (c *Client) handle(ctx context.Context, message []byte) {
	var frame models.Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		c.sendError("bad_request", "malformed frame")
		return
	}

	switch frame.Type {
	case models.EventJoin:
		var p models.JoinPayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			c.log.Debug("Dropped join", "error", err)
			return
		}
		if err := c.coord.Join(ctx, c.session, p.User, p.RoomID); err != nil {
			c.log.Info("Join rejected", "user", p.User, "room", p.RoomID, "error", err)
			switch {
			case errors.Is(err, chat.ErrNotFound):
				c.sendError("not_found", fmt.Sprintf("room %d or user %q not found", p.RoomID, p.User))
			case errors.Is(err, chat.ErrForbidden):
				c.sendError("forbidden", "user does not match the authenticated identity")
			}
		}

	case models.EventSendMessage:
		var p models.SendMessagePayload
		if err := decodePayload(frame.Payload, &p); err != nil {
			c.log.Debug("Dropped message", "error", err)
			return
		}
		if _, err := c.coord.Send(ctx, c.session, p.User, p.RoomID, p.Content); err != nil {
			if errors.Is(err, chat.ErrStorage) {
				c.log.Error("Message lost", "user", p.User, "room", p.RoomID, "error", err)
			} else {
				c.log.Debug("Dropped message", "user", p.User, "room", p.RoomID, "error", err)
			}
		}

	case models.EventLeave:
		c.coord.Leave(c.session)

	default:
		c.sendError("bad_request", fmt.Sprintf("unknown event type %q", frame.Type))
	}
}

func (c *Client) sendError(code, message string) {
	data, err := chat.EncodeError(code, message)
	if err != nil {
		c.log.Error("Error encoding error frame", "error", err)
		return
	}
	_ = c.Send(data)
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing payload", chat.ErrValidation)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %w", chat.ErrValidation, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %w", chat.ErrValidation, err)
	}
	return nil
}
