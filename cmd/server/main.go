package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"chat-rooms/internal/auth"
	"chat-rooms/internal/chat"
	"chat-rooms/internal/config"
	"chat-rooms/internal/database"
	"chat-rooms/internal/handlers"
	"chat-rooms/internal/services"
	"chat-rooms/internal/websocket"
	"chat-rooms/pkg/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", "error", err)
	}
	logger.Configure(cfg.Log.Format, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open database", "driver", cfg.Database.Driver, "error", err)
	}
	defer db.Close()

	if err := database.Seed(ctx, db, cfg.Database.SeedUsers, cfg.Database.SeedRooms); err != nil {
		logger.Fatal("Failed to seed database", "error", err)
	}

	// Initialize services
	authService := auth.NewService(cfg.JWT.Secret)
	roomService := services.NewRoomService(db)
	coordinator := chat.NewCoordinator(db, chat.Options{
		MaxContentBytes: cfg.Chat.MaxContentBytes,
		Logger:          logger.With("component", "chat"),
	})
	hub := websocket.NewHub()

	// Initialize handlers
	roomHandlers := handlers.NewRoomHandlers(roomService, coordinator)
	wsHandlers := handlers.NewWebSocketHandlers(authService, coordinator, hub, websocket.ClientOptions{
		SendBuffer:      cfg.Chat.SendBuffer,
		MaxContentBytes: cfg.Chat.MaxContentBytes,
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(handlers.NewRouter(roomHandlers, wsHandlers)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server started", "addr", cfg.Server.Port, "driver", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Server shutting down...")
		return shutdown(server, hub, cfg.Server.ShutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err)
	}
	logger.Info("Server stopped", "sessions", coordinator.SessionCount())
}

// shutdown stops the http server, then closes websocket clients. Each step
// gets its own timeout.
func shutdown(server *http.Server, hub *websocket.Hub, timeout time.Duration) error {
	httpCtx, cancelHTTP := context.WithTimeout(context.Background(), timeout)
	defer cancelHTTP()
	shutdownErr := server.Shutdown(httpCtx)

	// hijacked websocket connections are not tracked by the http server
	wsCtx, cancelWS := context.WithTimeout(context.Background(), timeout)
	defer cancelWS()
	if err := hub.CloseAll(wsCtx); err != nil {
		logger.Warn("Closing connections", "error", err)
		return errors.Join(shutdownErr, err)
	}
	return shutdownErr
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
