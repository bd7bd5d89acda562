package models

import "encoding/json"

type EventType string

const (
	// inbound
	EventJoin        EventType = "join"
	EventSendMessage EventType = "send_message"
	EventLeave       EventType = "leave"

	// outbound
	EventOnlineUsers EventType = "online_users"
	EventNewMessage  EventType = "new_message"
	EventError       EventType = "error"
)

// TimestampLayout is the wire format of created_at.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Frame is the envelope of every websocket message in both directions.
type Frame struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinPayload struct {
	User   string `json:"user" validate:"required"`
	RoomID int    `json:"room_id" validate:"required,gt=0"`
}

type SendMessagePayload struct {
	User    string `json:"user" validate:"required"`
	RoomID  int    `json:"room_id" validate:"required,gt=0"`
	Content string `json:"content" validate:"required"`
}

type NewMessagePayload struct {
	User      string `json:"user"`
	RoomID    int    `json:"room_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewMessageEvent(msg *Message) NewMessagePayload {
	return NewMessagePayload{
		User:      msg.Username,
		RoomID:    msg.RoomID,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt.UTC().Format(TimestampLayout),
	}
}

func ToHistoryEntry(msg *Message) HistoryEntry {
	return HistoryEntry{
		User:      msg.Username,
		Content:   msg.Content,
		CreatedAt: msg.CreatedAt.UTC().Format(TimestampLayout),
	}
}
