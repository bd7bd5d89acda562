package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"chat-rooms/internal/database"
	"chat-rooms/internal/models"

	"github.com/samber/lo"
)

const DefaultMaxContentBytes = 1 << 20

// Store is what the coordinator needs from persistence: identity and room
// lookups plus the append-only message log.
type Store interface {
	database.UserRepository
	database.RoomRepository
	database.MessageRepository
}

type Options struct {
	MaxContentBytes int
	Logger          *slog.Logger
}

// Delivery is the outcome of one publish.
type Delivery struct {
	Attempted int
	Failed    []string
}

// Coordinator processes join, send, leave and disconnect events.
//
// Membership and presence changes are serialized by mu so presence
// snapshots go out in the order the changes happened. Sends are serialized
// per room: the append and its fan-out happen under that room's lock, so
// subscribers see messages in persistence order.
type Coordinator struct {
	store           Store
	registry        *RoomRegistry
	presence        *PresenceTracker
	maxContentBytes int
	log             *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	roomLocksMu sync.Mutex
	roomLocks   map[int]*sync.Mutex
}

func NewCoordinator(store Store, opts Options) *Coordinator {
	if opts.MaxContentBytes <= 0 {
		opts.MaxContentBytes = DefaultMaxContentBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Coordinator{
		store:           store,
		registry:        NewRoomRegistry(),
		presence:        NewPresenceTracker(opts.Logger),
		maxContentBytes: opts.MaxContentBytes,
		log:             opts.Logger,
		sessions:        make(map[string]*Session),
		roomLocks:       make(map[int]*sync.Mutex),
	}
}

// Connect registers a new live connection. identity is the authenticated
// user name, or empty when the transport did not authenticate.
func (c *Coordinator) Connect(conn Conn, identity string) *Session {
	s := newSession(conn, identity)

	c.mu.Lock()
	c.sessions[conn.ID()] = s
	c.mu.Unlock()

	c.log.Debug("connection opened", "conn", conn.ID(), "identity", identity)
	return s
}

// Join subscribes the session to roomID, leaving any previous room, marks
// the user online and publishes the presence snapshot to every connection.
func (c *Coordinator) Join(ctx context.Context, s *Session, user string, roomID int) error {
	if strings.TrimSpace(user) == "" || roomID <= 0 {
		return fmt.Errorf("%w: join requires user and room_id", ErrValidation)
	}
	if err := checkIdentity(s, user); err != nil {
		return err
	}
	if _, err := c.store.GetRoomByID(ctx, roomID); err != nil {
		return lookupError(err)
	}
	if _, err := c.store.GetUserByName(ctx, user); err != nil {
		return lookupError(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s.Closed() {
		return ErrSessionClosed
	}

	if prev := s.presenceName(); prev != user {
		if prev != "" {
			c.presence.MarkOffline(prev)
		}
		c.presence.MarkOnline(user)
		s.setPresenceName(user)
	}
	previous, moved := c.registry.Join(s.conn, roomID)
	s.SetUser(user)
	s.SetRoom(roomID)

	if moved {
		c.log.Info("user switched room", "user", user, "from", previous, "to", roomID, "conn", s.ID())
	} else {
		c.log.Info("user joined room", "user", user, "room", roomID, "conn", s.ID())
	}

	c.publishPresenceLocked()
	return nil
}

// Leave unsubscribes the session from its room. The user stays online
// while the connection lives.
func (c *Coordinator) Leave(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.Closed() {
		return
	}
	if roomID, ok := c.registry.Leave(s.conn); ok {
		c.log.Info("user left room", "user", s.CurrentUser(), "room", roomID, "conn", s.ID())
	}
	s.ClearRoom()
}

// Send persists content and fans it out to the subscribers of roomID.
// Nothing is published unless the append succeeded.
func (c *Coordinator) Send(ctx context.Context, s *Session, user string, roomID int, content string) (Delivery, error) {
	if strings.TrimSpace(user) == "" || roomID <= 0 || content == "" {
		return Delivery{}, fmt.Errorf("%w: send requires user, room_id and content", ErrValidation)
	}
	if len(content) > c.maxContentBytes {
		return Delivery{}, fmt.Errorf("%w: content is %d bytes, limit %d", ErrValidation, len(content), c.maxContentBytes)
	}
	if s.Closed() {
		return Delivery{}, ErrSessionClosed
	}
	if err := checkIdentity(s, user); err != nil {
		return Delivery{}, err
	}

	author, err := c.store.GetUserByName(ctx, user)
	if err != nil {
		return Delivery{}, lookupError(err)
	}
	// room locks are only created for rooms that exist
	if _, err := c.store.GetRoomByID(ctx, roomID); err != nil {
		return Delivery{}, lookupError(err)
	}

	lock := c.roomLock(roomID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := c.store.AppendMessage(ctx, roomID, author.ID, content)
	if err != nil {
		return Delivery{}, lookupError(err)
	}

	data, err := encodeFrame(models.EventNewMessage, models.NewMessageEvent(msg))
	if err != nil {
		return Delivery{}, err
	}
	delivery := c.publish(c.registry.Subscribers(roomID), data)
	c.log.Debug("message delivered", "room", roomID, "message", msg.ID, "recipients", delivery.Attempted, "failed", len(delivery.Failed))
	return delivery, nil
}

// Disconnect tears the session down. Only the first call has an effect.
func (c *Coordinator) Disconnect(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !s.close() {
		return
	}
	delete(c.sessions, s.ID())

	roomID, wasJoined := c.registry.Leave(s.conn)
	s.ClearRoom()

	name := s.presenceName()
	if name != "" {
		c.presence.MarkOffline(name)
		s.setPresenceName("")
	}
	c.log.Debug("connection closed", "conn", s.ID(), "user", name, "room", roomID)

	if wasJoined || name != "" {
		c.publishPresenceLocked()
	}
}

// OnlineUsers returns the presence snapshot.
func (c *Coordinator) OnlineUsers() []string {
	return c.presence.Snapshot()
}

// RoomCounts returns subscriber counts per non-empty room.
func (c *Coordinator) RoomCounts() map[int]int {
	return c.registry.Rooms()
}

// Subscribers exposes the room fan-out set.
func (c *Coordinator) Subscribers(roomID int) []Conn {
	return c.registry.Subscribers(roomID)
}

func (c *Coordinator) SessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *Coordinator) publishPresenceLocked() Delivery {
	data, err := encodeFrame(models.EventOnlineUsers, c.presence.Snapshot())
	if err != nil {
		c.log.Error("failed to encode presence", "error", err)
		return Delivery{}
	}
	conns := lo.MapToSlice(c.sessions, func(_ string, s *Session) Conn {
		return s.conn
	})
	return c.publish(conns, data)
}

func (c *Coordinator) publish(conns []Conn, data []byte) Delivery {
	delivery := Delivery{Attempted: len(conns)}
	for _, conn := range conns {
		if err := conn.Send(data); err != nil {
			delivery.Failed = append(delivery.Failed, conn.ID())
		}
	}
	if len(delivery.Failed) > 0 {
		c.log.Warn("frame not delivered", "failed", delivery.Failed, "attempted", delivery.Attempted)
	}
	return delivery
}

func (c *Coordinator) roomLock(roomID int) *sync.Mutex {
	c.roomLocksMu.Lock()
	defer c.roomLocksMu.Unlock()

	lock, ok := c.roomLocks[roomID]
	if !ok {
		lock = &sync.Mutex{}
		c.roomLocks[roomID] = lock
	}
	return lock
}

func checkIdentity(s *Session, user string) error {
	if id := s.Identity(); id != "" && id != user {
		return fmt.Errorf("%w: connection is authenticated as %q", ErrForbidden, id)
	}
	return nil
}

func lookupError(err error) error {
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %w", ErrStorage, err)
}

func encodeFrame(eventType models.EventType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return json.Marshal(models.Frame{Type: eventType, Payload: raw})
}

// EncodeError builds the error frame sent back to a single connection.
func EncodeError(code, message string) ([]byte, error) {
	return encodeFrame(models.EventError, models.ErrorPayload{Code: code, Message: message})
}
