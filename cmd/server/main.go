package main

import (
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"campus-chat/internal/auth"
	"campus-chat/internal/config"
	"campus-chat/internal/database"
	"campus-chat/internal/gateway"
	"campus-chat/internal/handlers"
	"campus-chat/internal/services"
	"campus-chat/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database
	db, err := database.NewPostgresStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize services
	authService := auth.NewService(db, cfg)
	groupService := services.NewGroupService(db)

	// Initialize the realtime gateway and its connection registry
	registry := gateway.NewRegistry()
	gw := gateway.New(registry, authService, cfg.Chat.SendBuffer)
	go gw.Run()
	defer gw.Shutdown()

	messageService := services.NewMessageService(db, gw, cfg.Chat.PageSize)

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(authService)
	groupHandlers := handlers.NewGroupHandlers(groupService, authService)
	messageHandlers := handlers.NewMessageHandlers(messageService, authService)
	wsHandlers := handlers.NewWebSocketHandlers(gw)

	// Setup routes
	mux := http.NewServeMux()
	setupRoutes(mux, authHandlers, groupHandlers, messageHandlers, wsHandlers)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      corsMiddleware(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	logger.Info("🚀 Server started on http://localhost%s", cfg.Server.Addr)
	logger.Info("📡 WebSocket endpoint: ws://localhost%s/ws", cfg.Server.Addr)
	printAPIEndpoints()

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Server shutting down...")
}

func setupRoutes(mux *http.ServeMux, authHandlers *handlers.AuthHandlers, groupHandlers *handlers.GroupHandlers, messageHandlers *handlers.MessageHandlers, wsHandlers *handlers.WebSocketHandlers) {
	// Auth routes
	mux.HandleFunc("/login", authHandlers.Login)
	mux.HandleFunc("/register", authHandlers.Register)

	// Group routes
	mux.HandleFunc("/groups", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/groups" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}

		switch r.Method {
		case http.MethodGet:
			groupHandlers.ListGroups(w, r)
		case http.MethodPost:
			groupHandlers.CreateGroup(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Group sub-routes
	mux.HandleFunc("/groups/", func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		if len(parts) < 3 || parts[2] == "" {
			http.Error(w, "invalid path", http.StatusBadRequest)
			return
		}

		// /groups/{id}/messages
		if len(parts) == 4 && parts[3] == "messages" {
			switch r.Method {
			case http.MethodGet:
				messageHandlers.GetHistory(w, r)
			case http.MethodPost:
				messageHandlers.SendMessage(w, r)
			default:
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			}
			return
		}

		// /groups/{id}/members
		if len(parts) == 4 && parts[3] == "members" && r.Method == http.MethodGet {
			groupHandlers.GetGroupMembers(w, r)
			return
		}

		// /groups/{id}/join
		if len(parts) == 4 && parts[3] == "join" && r.Method == http.MethodPost {
			groupHandlers.JoinGroup(w, r)
			return
		}

		// /groups/{id}/leave
		if len(parts) == 4 && parts[3] == "leave" && r.Method == http.MethodDelete {
			groupHandlers.LeaveGroup(w, r)
			return
		}

		http.Error(w, "endpoint not found", http.StatusNotFound)
	})

	// WebSocket route
	mux.HandleFunc("/ws", wsHandlers.HandleWebSocket)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func printAPIEndpoints() {
	logger.Info("🔗 API endpoints:")
	logger.Info("   POST /login")
	logger.Info("   POST /register")
	logger.Info("   GET  /groups")
	logger.Info("   POST /groups")
	logger.Info("   GET  /groups/{id}/members")
	logger.Info("   POST /groups/{id}/join")
	logger.Info("   DELETE /groups/{id}/leave")
	logger.Info("   GET  /groups/{id}/messages")
	logger.Info("   POST /groups/{id}/messages")
}
