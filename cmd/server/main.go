package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"live-canvas/internal/api"
	"live-canvas/internal/config"
	"live-canvas/internal/db"
	"live-canvas/internal/repository"
	"live-canvas/internal/services/collaboration"
	"live-canvas/internal/telemetry"
)

func main() {
	log.Println("🚀 Starting live-canvas collaboration server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Initialize Jaeger tracing first so all operations are traced
	jaegerShutdown, err := telemetry.InitJaeger("live-canvas", cfg.JaegerEndpoint)
	if err != nil {
		log.Printf("⚠️  Failed to initialize Jaeger: %v (continuing without tracing)", err)
		jaegerShutdown = func(ctx context.Context) error { return nil }
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := jaegerShutdown(ctx); err != nil {
			log.Printf("⚠️  Failed to shutdown Jaeger: %v", err)
		}
	}()

	// Initialize GORM database
	database, err := db.NewGorm(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	// Initialize repositories
	roomRepo := repository.NewRoomRepository(database.DB)
	canvasRepo := repository.NewCanvasRepository(database.DB)

	// Initialize the room hub for real-time collaboration
	roomManager := collaboration.NewRoomManager()
	roomManager.SetCanvasRepository(canvasRepo)
	roomManager.SetSessionTimeouts(
		time.Duration(cfg.SessionIdleTimeoutMin)*time.Minute,
		time.Duration(cfg.CleanupIntervalSec)*time.Second,
	)
	roomManager.Start()

	// Initialize WebSocket handler
	wsHandler := collaboration.NewWebSocketHandler(roomManager)

	// Initialize handlers with dependency injection
	handler := api.NewHandler(roomRepo, roomManager, wsHandler)

	// Setup routes
	router := api.SetupRoutes(handler)

	// Configure HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine so shutdown signals are handled
	// concurrently
	go func() {
		log.Printf("🌐 Server listening on http://%s", addr)
		log.Printf("📚 API Endpoints:")
		log.Printf("   POST   /api/rooms               - Create room")
		log.Printf("   GET    /api/rooms               - List rooms")
		log.Printf("   GET    /api/rooms/:id           - Get room")
		log.Printf("   DELETE /api/rooms/:id           - Delete room")
		log.Printf("   GET    /api/rooms/:id/objects   - Room objects (painter's order)")
		log.Printf("   WS     /ws/rooms/:id            - Join room")
		log.Println()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server error: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("\n🛑 Shutting down server...")

	// Give the server 30 seconds to finish existing requests
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	// Close all active WebSocket connections gracefully
	roomManager.Shutdown()

	log.Println("✓ Server shutdown complete")
}
