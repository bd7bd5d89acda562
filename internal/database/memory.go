package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chat-rooms/internal/models"
)

// MemoryDB keeps everything in process memory. Used by the memory driver
// and by tests that need a real store without a database server.
type MemoryDB struct {
	mu         sync.RWMutex
	users      map[string]*models.User
	usersByID  map[int]*models.User
	rooms      map[int]*models.Room
	roomIDs    map[string]int
	messages   map[int][]*models.Message
	nextUserID int
	nextRoomID int
	nextMsgID  int
	now        func() time.Time
}

func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		users:     make(map[string]*models.User),
		usersByID: make(map[int]*models.User),
		rooms:     make(map[int]*models.Room),
		roomIDs:   make(map[string]int),
		messages:  make(map[int][]*models.Message),
		now:       time.Now,
	}
}

func (m *MemoryDB) Close() error {
	return nil
}

func (m *MemoryDB) GetUserByName(_ context.Context, name string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[name]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", name, ErrNotFound)
	}
	cp := *user
	return &cp, nil
}

func (m *MemoryDB) GetRoomByID(_ context.Context, id int) (*models.Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %d: %w", id, ErrNotFound)
	}
	cp := *room
	return &cp, nil
}

func (m *MemoryDB) AppendMessage(ctx context.Context, roomID, userID int, content string) (*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[roomID]; !ok {
		return nil, fmt.Errorf("room %d: %w", roomID, ErrNotFound)
	}
	user, ok := m.usersByID[userID]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}

	m.nextMsgID++
	msg := &models.Message{
		ID:        m.nextMsgID,
		RoomID:    roomID,
		UserID:    userID,
		Username:  user.Name,
		Content:   content,
		CreatedAt: m.now().UTC(),
	}
	m.messages[roomID] = append(m.messages[roomID], msg)

	cp := *msg
	return &cp, nil
}

func (m *MemoryDB) History(ctx context.Context, roomID int) ([]*models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.messages[roomID]
	history := make([]*models.Message, 0, len(stored))
	for _, msg := range stored {
		cp := *msg
		history = append(history, &cp)
	}
	return history, nil
}

func (m *MemoryDB) EnsureUser(_ context.Context, name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user, ok := m.users[name]; ok {
		return user.ID, nil
	}
	m.nextUserID++
	user := &models.User{ID: m.nextUserID, Name: name}
	m.users[name] = user
	m.usersByID[user.ID] = user
	return user.ID, nil
}

func (m *MemoryDB) EnsureRoom(_ context.Context, name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.roomIDs[name]; ok {
		return id, nil
	}
	m.nextRoomID++
	m.rooms[m.nextRoomID] = &models.Room{ID: m.nextRoomID, Name: name}
	m.roomIDs[name] = m.nextRoomID
	return m.nextRoomID, nil
}
