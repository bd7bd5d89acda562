package handlers

import "net/http"

func NewRouter(roomHandlers *RoomHandlers, wsHandlers *WebSocketHandlers) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /rooms/{id}/messages", roomHandlers.GetHistory)
	mux.HandleFunc("GET /online", roomHandlers.GetOnlineUsers)
	mux.HandleFunc("GET /healthz", Healthz)

	// WebSocket route
	mux.HandleFunc("GET /ws", wsHandlers.HandleWebSocket)

	return mux
}
