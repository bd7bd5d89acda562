package database

import (
	"context"
	"errors"

	"chat-rooms/internal/models"
)

// ErrNotFound is returned when a referenced user or room does not exist.
var ErrNotFound = errors.New("not found")

// UserRepository resolves display names to durable identities.
type UserRepository interface {
	GetUserByName(ctx context.Context, name string) (*models.User, error)
}

type RoomRepository interface {
	GetRoomByID(ctx context.Context, id int) (*models.Room, error)
}

// MessageRepository is the append-only message log.
type MessageRepository interface {
	// AppendMessage inserts one message atomically and returns it with
	// the store-assigned id and timestamp.
	AppendMessage(ctx context.Context, roomID, userID int, content string) (*models.Message, error)
	// History returns every message of a room, oldest first.
	History(ctx context.Context, roomID int) ([]*models.Message, error)
}

type Database interface {
	UserRepository
	RoomRepository
	MessageRepository
	Close() error
}
