package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tribehealth/aigateway/internal/config"
	"github.com/tribehealth/aigateway/internal/database"
	"github.com/tribehealth/aigateway/internal/logger"
	"github.com/tribehealth/aigateway/internal/observability"
	"github.com/tribehealth/aigateway/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	// Initialize logger
	logger.Init("aigateway", cfg.Env, logger.ParseLevelFromEnv())

	// Initialize OpenTelemetry
	shutdownOTel, err := observability.InitOTel(context.Background(), "aigateway")
	if err != nil {
		log.Printf("Warning: Failed to initialize OpenTelemetry: %v", err)
	} else {
		defer func() {
			if err := shutdownOTel(context.Background()); err != nil {
				log.Printf("Error shutting down OpenTelemetry: %v", err)
			}
		}()
		log.Println("✓ OpenTelemetry initialized")
	}

	// Set Gin mode
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	log.Println("✓ Connected to PostgreSQL")

	// Setup router with all handlers
	r := router.Setup(db, cfg)

	// Create HTTP server
	server := &http.Server{
		Addr:    cfg.Addr(),
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("🚀 Server starting on %s", cfg.Addr())
		log.Printf("🌍 Environment: %s", cfg.Env)
		log.Printf("🔗 Dialog backend: %s", cfg.DifyAPIURL)
		log.Printf("🔗 Public URL (webhook base): %s", cfg.PublicURL)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("📤 Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("✅ Server exited")
}
