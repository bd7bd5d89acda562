package models

import "time"

type User struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Room struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Message is immutable once the store has assigned ID and CreatedAt.
type Message struct {
	ID        int       `json:"id"`
	RoomID    int       `json:"room_id"`
	UserID    int       `json:"user_id"`
	Username  string    `json:"user"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryEntry is one row of the room history read API.
type HistoryEntry struct {
	User      string `json:"user"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type OnlineUsersResponse struct {
	Users []string    `json:"users"`
	Count int         `json:"count"`
	Rooms map[int]int `json:"rooms"`
}
