package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"chat-rooms/internal/database"
	"chat-rooms/internal/models"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id       string
	mu       sync.Mutex
	received [][]byte
	sendErr  error
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.received = append(f.received, data)
	return nil
}

func (f *fakeConn) frames(t *testing.T) []models.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()

	frames := make([]models.Frame, 0, len(f.received))
	for _, data := range f.received {
		var frame models.Frame
		require.NoError(t, json.Unmarshal(data, &frame))
		frames = append(frames, frame)
	}
	return frames
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	f.received = nil
	f.mu.Unlock()
}

// lastPresence returns the payload of the most recent online_users frame.
func (f *fakeConn) lastPresence(t *testing.T) []string {
	var users []string
	found := false
	for _, frame := range f.frames(t) {
		if frame.Type == models.EventOnlineUsers {
			users = nil
			require.NoError(t, json.Unmarshal(frame.Payload, &users))
			found = true
		}
	}
	require.True(t, found, "no online_users frame for %s", f.id)
	return users
}

func (f *fakeConn) messages(t *testing.T) []models.NewMessagePayload {
	var out []models.NewMessagePayload
	for _, frame := range f.frames(t) {
		if frame.Type != models.EventNewMessage {
			continue
		}
		var msg models.NewMessagePayload
		require.NoError(t, json.Unmarshal(frame.Payload, &msg))
		out = append(out, msg)
	}
	return out
}

// fakeStore wraps the in-memory database to count appends and inject failures.
type fakeStore struct {
	*database.MemoryDB
	appends   atomic.Int32
	appendErr error
}

var errDiskFull = errors.New("disk full")

func (s *fakeStore) AppendMessage(ctx context.Context, roomID, userID int, content string) (*models.Message, error) {
	s.appends.Add(1)
	if s.appendErr != nil {
		return nil, s.appendErr
	}
	return s.MemoryDB.AppendMessage(ctx, roomID, userID, content)
}

type fixture struct {
	store *fakeStore
	coord *Coordinator
	room1 int
	room2 int
}

func newFixture(t *testing.T, opts Options) *fixture {
	ctx := context.Background()
	store := &fakeStore{MemoryDB: database.NewMemoryDB()}
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		_, err := store.EnsureUser(ctx, name)
		require.NoError(t, err)
	}
	room1, err := store.EnsureRoom(ctx, "general")
	require.NoError(t, err)
	room2, err := store.EnsureRoom(ctx, "random")
	require.NoError(t, err)

	return &fixture{
		store: store,
		coord: NewCoordinator(store, opts),
		room1: room1,
		room2: room2,
	}
}
