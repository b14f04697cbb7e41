package main

import (
	"context"
	"log"
	"os"

	"github.com/marisel-vam/ai-inbox-zero/internal/api"
	"github.com/marisel-vam/ai-inbox-zero/internal/app"
	"github.com/marisel-vam/ai-inbox-zero/internal/cli"
	"github.com/marisel-vam/ai-inbox-zero/internal/config"
	"github.com/marisel-vam/ai-inbox-zero/internal/database"
	"github.com/marisel-vam/ai-inbox-zero/internal/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	// Initialize database
	db, err := database.Initialize(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Check if running CLI command
	if len(os.Args) > 1 {
		cli.Execute(db, cfg)
		return
	}

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	deps, err := app.Build(context.Background(), db, cfg, zlog)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	// Start API server
	router, apiKeyManager, err := api.SetupRouter(*deps, cfg)
	if err != nil {
		log.Fatalf("Failed to setup router: %v", err)
	}

	log.Printf("Starting Inbox Zero server on port %s", cfg.APIPort)
	log.Printf("Data directory: %s", cfg.DataDir)
	log.Printf("Database path: %s", cfg.DatabasePath)
	log.Printf("Mailbox provider: %s", cfg.MailboxProvider)
	log.Printf("API Key: %s", apiKeyManager.GetCurrentKey())
	if err := router.Run(":" + cfg.APIPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
