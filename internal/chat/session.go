package chat

import "sync"

// Conn is the transport side of a live connection.
type Conn interface {
	ID() string
	// Send enqueues an encoded frame. It must not block.
	Send(data []byte) error
}

// Session is the state of one live connection. The coordinator owns the
// presence and lifecycle fields; transport code only reads them.
type Session struct {
	conn     Conn
	identity string

	mu       sync.Mutex
	user     string
	roomID   int
	joined   bool
	onlineAs string
	closed   bool
}

func newSession(conn Conn, identity string) *Session {
	return &Session{conn: conn, identity: identity}
}

func (s *Session) ID() string {
	return s.conn.ID()
}

// Identity is the authenticated user bound at connect time, empty if none.
func (s *Session) Identity() string {
	return s.identity
}

func (s *Session) SetUser(name string) {
	s.mu.Lock()
	s.user = name
	s.mu.Unlock()
}

func (s *Session) CurrentUser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) SetRoom(roomID int) {
	s.mu.Lock()
	s.roomID = roomID
	s.joined = true
	s.mu.Unlock()
}

func (s *Session) ClearRoom() {
	s.mu.Lock()
	s.roomID = 0
	s.joined = false
	s.mu.Unlock()
}

func (s *Session) CurrentRoom() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID, s.joined
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// close reports whether this call moved the session to closed.
func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

func (s *Session) presenceName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onlineAs
}

func (s *Session) setPresenceName(name string) {
	s.mu.Lock()
	s.onlineAs = name
	s.mu.Unlock()
}
