package services

import (
	"context"
	"errors"
	"fmt"

	"chat-rooms/internal/database"
	"chat-rooms/internal/models"

	"github.com/samber/lo"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomStore is the read side of persistence used by the history API.
type RoomStore interface {
	database.RoomRepository
	database.MessageRepository
}

type RoomService struct {
	db RoomStore
}

func NewRoomService(db RoomStore) *RoomService {
	return &RoomService{db: db}
}

func (s *RoomService) GetRoom(ctx context.Context, roomID int) (*models.Room, error) {
	room, err := s.db.GetRoomByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrRoomNotFound, roomID)
		}
		return nil, err
	}
	return room, nil
}

// History returns every message of the room, oldest first. An existing room
// with no messages yields an empty, non-nil slice.
func (s *RoomService) History(ctx context.Context, roomID int) ([]models.HistoryEntry, error) {
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}

	messages, err := s.db.History(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load history for room %d: %w", roomID, err)
	}

	return lo.Map(messages, func(msg *models.Message, _ int) models.HistoryEntry {
		return models.ToHistoryEntry(msg)
	}), nil
}
