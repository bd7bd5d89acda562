package handlers

import (
	"net/http"

	"chat-rooms/internal/auth"
	"chat-rooms/internal/chat"
	ws "chat-rooms/internal/websocket"
	"chat-rooms/pkg/logger"

	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	authService *auth.Service
	coordinator *chat.Coordinator
	hub         *ws.Hub
	options     ws.ClientOptions
	upgrader    websocket.Upgrader
}

func NewWebSocketHandlers(authService *auth.Service, coordinator *chat.Coordinator, hub *ws.Hub, options ws.ClientOptions) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService: authService,
		coordinator: coordinator,
		hub:         hub,
		options:     options,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// HandleWebSocket upgrades GET /ws. A token query parameter, when present,
// binds the connection to the user it names.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	var identity string
	if tokenStr := r.URL.Query().Get("token"); tokenStr != "" {
		username, err := h.authService.Username(tokenStr)
		if err != nil {
			logger.Debug("Rejected websocket token", "error", err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		identity = username
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error", "error", err)
		return
	}

	client := ws.NewClient(conn, h.coordinator, h.hub, identity, h.options, logger.With("component", "websocket"))
	client.Start()
}
