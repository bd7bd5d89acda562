package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"chat-rooms/internal/chat"
	"chat-rooms/internal/models"
	"chat-rooms/internal/services"
	"chat-rooms/pkg/logger"
)

type RoomHandlers struct {
	roomService *services.RoomService
	coordinator *chat.Coordinator
}

func NewRoomHandlers(roomService *services.RoomService, coordinator *chat.Coordinator) *RoomHandlers {
	return &RoomHandlers{
		roomService: roomService,
		coordinator: coordinator,
	}
}

// GetHistory serves GET /rooms/{id}/messages.
func (h *RoomHandlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	roomID, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || roomID <= 0 {
		http.Error(w, "invalid room ID", http.StatusBadRequest)
		return
	}

	history, err := h.roomService.History(r.Context(), roomID)
	if err != nil {
		if errors.Is(err, services.ErrRoomNotFound) {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}
		logger.Error("Get history error", "room", roomID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// GetOnlineUsers serves GET /online.
func (h *RoomHandlers) GetOnlineUsers(w http.ResponseWriter, r *http.Request) {
	users := h.coordinator.OnlineUsers()
	writeJSON(w, http.StatusOK, models.OnlineUsersResponse{
		Users: users,
		Count: len(users),
		Rooms: h.coordinator.RoomCounts(),
	})
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding response", "error", err)
	}
}
