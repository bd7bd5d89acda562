package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_Scenario(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newFixture(t, Options{})

	aliceConn, bobConn, carolConn := newFakeConn("alice-1"), newFakeConn("bob-1"), newFakeConn("carol-1")
	alice := f.coord.Connect(aliceConn, "")
	bob := f.coord.Connect(bobConn, "")
	carol := f.coord.Connect(carolConn, "")

	req.NoError(f.coord.Join(ctx, alice, "Alice", f.room1))
	assert.Equal(t, []string{"Alice"}, aliceConn.lastPresence(t))
	// presence is global, carol has not joined anything yet
	assert.Equal(t, []string{"Alice"}, carolConn.lastPresence(t))

	req.NoError(f.coord.Join(ctx, bob, "Bob", f.room1))
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, aliceConn.lastPresence(t))

	req.NoError(f.coord.Join(ctx, carol, "Carol", f.room2))

	delivery, err := f.coord.Send(ctx, alice, "Alice", f.room1, "hi")
	req.NoError(err)
	assert.Equal(t, 2, delivery.Attempted)
	assert.Empty(t, delivery.Failed)

	for _, conn := range []*fakeConn{aliceConn, bobConn} {
		msgs := conn.messages(t)
		req.Len(msgs, 1, conn.ID())
		assert.Equal(t, "Alice", msgs[0].User)
		assert.Equal(t, f.room1, msgs[0].RoomID)
		assert.Equal(t, "hi", msgs[0].Content)
		assert.NotEmpty(t, msgs[0].CreatedAt)
	}
	assert.Empty(t, carolConn.messages(t))

	history, err := f.store.History(ctx, f.room1)
	req.NoError(err)
	req.NotEmpty(history)
	assert.Equal(t, "hi", history[len(history)-1].Content)

	f.coord.Disconnect(alice)
	assert.Equal(t, []string{"Bob", "Carol"}, bobConn.lastPresence(t))
	assert.Equal(t, []string{"Bob", "Carol"}, f.coord.OnlineUsers())
}

func TestCoordinator_SendValidation(t *testing.T) {
	tests := []struct {
		name    string
		user    string
		room    int
		content string
	}{
		{name: "empty content", user: "Alice", room: 1, content: ""},
		{name: "empty user", user: "", room: 1, content: "hi"},
		{name: "blank user", user: "  ", room: 1, content: "hi"},
		{name: "missing room", user: "Alice", room: 0, content: "hi"},
		{name: "oversized content", user: "Alice", room: 1, content: strings.Repeat("x", 65)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, Options{MaxContentBytes: 64})
			aliceConn, bobConn := newFakeConn("a"), newFakeConn("b")
			alice := f.coord.Connect(aliceConn, "")
			bob := f.coord.Connect(bobConn, "")
			require.NoError(t, f.coord.Join(ctx, alice, "Alice", f.room1))
			require.NoError(t, f.coord.Join(ctx, bob, "Bob", f.room1))
			aliceConn.reset()
			bobConn.reset()

			_, err := f.coord.Send(ctx, alice, tt.user, tt.room, tt.content)

			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, int32(0), f.store.appends.Load())
			assert.Empty(t, aliceConn.frames(t))
			assert.Empty(t, bobConn.frames(t))
		})
	}
}

func TestCoordinator_ContentAtLimitIsAccepted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{MaxContentBytes: 64})
	conn := newFakeConn("a")
	s := f.coord.Connect(conn, "")
	require.NoError(t, f.coord.Join(ctx, s, "Alice", f.room1))

	_, err := f.coord.Send(ctx, s, "Alice", f.room1, strings.Repeat("x", 64))
	require.NoError(t, err)
	assert.Len(t, conn.messages(t), 1)
}

func TestCoordinator_SendUnknownUserIsDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	conn := newFakeConn("a")
	s := f.coord.Connect(conn, "")
	require.NoError(t, f.coord.Join(ctx, s, "Alice", f.room1))
	conn.reset()

	_, err := f.coord.Send(ctx, s, "Mallory", f.room1, "hi")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(0), f.store.appends.Load())
	assert.Empty(t, conn.frames(t))
}

func TestCoordinator_SendUnknownRoomIsDropped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	conn := newFakeConn("a")
	s := f.coord.Connect(conn, "")
	require.NoError(t, f.coord.Join(ctx, s, "Alice", f.room1))
	conn.reset()

	_, err := f.coord.Send(ctx, s, "Alice", 999, "hi")

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(0), f.store.appends.Load())
	assert.Empty(t, conn.frames(t))
}

func TestCoordinator_SendUnknownRoomsCreateNoLocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	s := f.coord.Connect(newFakeConn("a"), "")

	for id := 1000; id < 1100; id++ {
		_, err := f.coord.Send(ctx, s, "Alice", id, "x")
		require.ErrorIs(t, err, ErrNotFound)
	}

	f.coord.roomLocksMu.Lock()
	defer f.coord.roomLocksMu.Unlock()
	assert.Empty(t, f.coord.roomLocks)
}

func TestCoordinator_StorageFailureKeepsConnectionUsable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	conn := newFakeConn("a")
	s := f.coord.Connect(conn, "")
	require.NoError(t, f.coord.Join(ctx, s, "Alice", f.room1))
	conn.reset()

	f.store.appendErr = errDiskFull
	_, err := f.coord.Send(ctx, s, "Alice", f.room1, "lost")
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Empty(t, conn.frames(t))

	f.store.appendErr = nil
	_, err = f.coord.Send(ctx, s, "Alice", f.room1, "kept")
	require.NoError(t, err)

	msgs := conn.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "kept", msgs[0].Content)

	history, err := f.store.History(ctx, f.room1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "kept", history[0].Content)
}

func TestCoordinator_JoinTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	conn := newFakeConn("a")
	s := f.coord.Connect(conn, "")

	require.NoError(t, f.coord.Join(ctx, s, "Alice", f.room1))
	require.NoError(t, f.coord.Join(ctx, s, "Alice", f.room1))

	assert.Equal(t, []string{"a"}, connIDs(f.coord.Subscribers(f.room1)))
	assert.Equal(t, 1, f.coord.presence.Count("Alice"))
	assert.Equal(t, []string{"Alice"}, f.coord.OnlineUsers())

	f.coord.Disconnect(s)
	assert.Empty(t, f.coord.OnlineUsers())
}

func TestCoordinator_SwitchRooms(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	conn := newFakeConn("a")
	s := f.coord.Connect(conn, "")

	require.NoError(t, f.coord.Join(ctx, s, "Alice", f.room1))
	require.NoError(t, f.coord.Join(ctx, s, "Alice", f.room2))

	assert.Empty(t, f.coord.Subscribers(f.room1))
	assert.Equal(t, []string{"a"}, connIDs(f.coord.Subscribers(f.room2)))
	assert.Equal(t, map[int]int{f.room2: 1}, f.coord.RoomCounts())
	room, joined := s.CurrentRoom()
	assert.True(t, joined)
	assert.Equal(t, f.room2, room)
	assert.Equal(t, 1, f.coord.presence.Count("Alice"))
}

func TestCoordinator_JoinUnknownRoomChangesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	conn := newFakeConn("a")
	s := f.coord.Connect(conn, "")
	require.NoError(t, f.coord.Join(ctx, s, "Alice", f.room1))
	conn.reset()

	err := f.coord.Join(ctx, s, "Alice", 999)

	assert.ErrorIs(t, err, ErrNotFound)
	room, joined := s.CurrentRoom()
	assert.True(t, joined)
	assert.Equal(t, f.room1, room)
	assert.Equal(t, []string{"a"}, connIDs(f.coord.Subscribers(f.room1)))
	assert.Empty(t, conn.frames(t))
}

func TestCoordinator_JoinUnknownUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	s := f.coord.Connect(newFakeConn("a"), "")

	err := f.coord.Join(ctx, s, "Mallory", f.room1)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, f.coord.OnlineUsers())
	assert.Empty(t, f.coord.Subscribers(f.room1))
}

func TestCoordinator_JoinValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	s := f.coord.Connect(newFakeConn("a"), "")

	assert.ErrorIs(t, f.coord.Join(ctx, s, "", f.room1), ErrValidation)
	assert.ErrorIs(t, f.coord.Join(ctx, s, "Alice", 0), ErrValidation)
	assert.Empty(t, f.coord.OnlineUsers())
}

func TestCoordinator_IdentityBinding(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	conn := newFakeConn("a")
	s := f.coord.Connect(conn, "Alice")

	assert.ErrorIs(t, f.coord.Join(ctx, s, "Bob", f.room1), ErrForbidden)
	require.NoError(t, f.coord.Join(ctx, s, "Alice", f.room1))

	_, err := f.coord.Send(ctx, s, "Bob", f.room1, "spoofed")
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, int32(0), f.store.appends.Load())
}

func TestCoordinator_MultipleSessionsPerUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	observer := newFakeConn("observer")
	obs := f.coord.Connect(observer, "")
	require.NoError(t, f.coord.Join(ctx, obs, "Bob", f.room2))

	const n = 3
	sessions := make([]*Session, n)
	for i := range sessions {
		sessions[i] = f.coord.Connect(newFakeConn(fmt.Sprintf("alice-%d", i)), "")
		require.NoError(t, f.coord.Join(ctx, sessions[i], "Alice", f.room1))
	}
	assert.Equal(t, []string{"Bob", "Alice"}, f.coord.OnlineUsers())
	assert.Equal(t, n, f.coord.presence.Count("Alice"))

	for i := 0; i < n-1; i++ {
		f.coord.Disconnect(sessions[i])
		assert.Contains(t, f.coord.OnlineUsers(), "Alice")
	}

	f.coord.Disconnect(sessions[n-1])
	assert.Equal(t, []string{"Bob"}, f.coord.OnlineUsers())
	assert.Equal(t, []string{"Bob"}, observer.lastPresence(t))
}

func TestCoordinator_DisconnectIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	aliceConn, bobConn := newFakeConn("a"), newFakeConn("b")
	alice := f.coord.Connect(aliceConn, "")
	bob := f.coord.Connect(bobConn, "")
	require.NoError(t, f.coord.Join(ctx, alice, "Alice", f.room1))
	require.NoError(t, f.coord.Join(ctx, bob, "Alice", f.room1))

	f.coord.Disconnect(alice)
	f.coord.Disconnect(alice)
	f.coord.Disconnect(alice)

	assert.Equal(t, 1, f.coord.presence.Count("Alice"))
	assert.Equal(t, []string{"Alice"}, f.coord.OnlineUsers())
	assert.Equal(t, 1, f.coord.SessionCount())
	assert.True(t, alice.Closed())

	assert.ErrorIs(t, f.coord.Join(ctx, alice, "Alice", f.room1), ErrSessionClosed)
	_, err := f.coord.Send(ctx, alice, "Alice", f.room1, "hi")
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestCoordinator_DisconnectUnjoinedPublishesNothing(t *testing.T) {
	f := newFixture(t, Options{})
	watcher := newFakeConn("w")
	f.coord.Connect(watcher, "")
	s := f.coord.Connect(newFakeConn("a"), "")

	f.coord.Disconnect(s)

	assert.Empty(t, watcher.frames(t))
	assert.Equal(t, 1, f.coord.SessionCount())
}

func TestCoordinator_LeaveKeepsPresence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	conn := newFakeConn("a")
	s := f.coord.Connect(conn, "")
	require.NoError(t, f.coord.Join(ctx, s, "Alice", f.room1))

	f.coord.Leave(s)

	_, joined := s.CurrentRoom()
	assert.False(t, joined)
	assert.Empty(t, f.coord.Subscribers(f.room1))
	assert.Equal(t, []string{"Alice"}, f.coord.OnlineUsers())

	// sending still works, the sender just is not a subscriber any more
	conn.reset()
	_, err := f.coord.Send(ctx, s, "Alice", f.room1, "from outside")
	require.NoError(t, err)
	assert.Empty(t, conn.messages(t))

	f.coord.Disconnect(s)
	assert.Empty(t, f.coord.OnlineUsers())
}

func TestCoordinator_FailedDeliveryIsReported(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})
	good, bad := newFakeConn("good"), newFakeConn("bad")
	gs := f.coord.Connect(good, "")
	bs := f.coord.Connect(bad, "")
	require.NoError(t, f.coord.Join(ctx, gs, "Alice", f.room1))
	require.NoError(t, f.coord.Join(ctx, bs, "Bob", f.room1))

	bad.sendErr = fmt.Errorf("buffer full")
	delivery, err := f.coord.Send(ctx, gs, "Alice", f.room1, "hi")

	require.NoError(t, err)
	assert.Equal(t, 2, delivery.Attempted)
	assert.Equal(t, []string{"bad"}, delivery.Failed)
}

func TestCoordinator_ConcurrentSendsKeepOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	listener := newFakeConn("listener")
	ls := f.coord.Connect(listener, "")
	require.NoError(t, f.coord.Join(ctx, ls, "Carol", f.room1))

	senders := []string{"Alice", "Bob"}
	const perSender = 50

	var wg sync.WaitGroup
	for i, name := range senders {
		s := f.coord.Connect(newFakeConn(fmt.Sprintf("sender-%d", i)), "")
		require.NoError(t, f.coord.Join(ctx, s, name, f.room1))

		wg.Add(1)
		go func(s *Session, name string) {
			defer wg.Done()
			for n := 0; n < perSender; n++ {
				_, err := f.coord.Send(ctx, s, name, f.room1, fmt.Sprintf("%d", n))
				assert.NoError(t, err)
			}
		}(s, name)
	}
	wg.Wait()

	history, err := f.store.History(ctx, f.room1)
	require.NoError(t, err)
	require.Len(t, history, len(senders)*perSender)

	received := listener.messages(t)
	require.Len(t, received, len(history))

	next := map[string]int{}
	for i, msg := range history {
		// broadcast order equals persistence order
		assert.Equal(t, msg.Username, received[i].User)
		assert.Equal(t, msg.Content, received[i].Content)

		// each sender's own order is preserved
		assert.Equal(t, fmt.Sprintf("%d", next[msg.Username]), msg.Content)
		next[msg.Username]++
	}
}

func TestCoordinator_ConcurrentJoinsAndDisconnects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Options{})

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := f.coord.Connect(newFakeConn(fmt.Sprintf("c%d", i)), "")
			room := f.room1
			if i%2 == 0 {
				room = f.room2
			}
			assert.NoError(t, f.coord.Join(ctx, s, "Alice", room))
			f.coord.Disconnect(s)
		}(i)
	}
	wg.Wait()

	assert.Empty(t, f.coord.OnlineUsers())
	assert.Empty(t, f.coord.RoomCounts())
	assert.Equal(t, 0, f.coord.SessionCount())
}

func TestEncodeError(t *testing.T) {
	data, err := EncodeError("not_found", "room 9 not found")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"error","payload":{"code":"not_found","message":"room 9 not found"}}`, string(data))
}
