package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/marisel-vam/ai-inbox-zero/internal/api/handlers"
	"github.com/marisel-vam/ai-inbox-zero/internal/api/middleware"
	"github.com/marisel-vam/ai-inbox-zero/internal/automation"
	"github.com/marisel-vam/ai-inbox-zero/internal/config"
	"github.com/marisel-vam/ai-inbox-zero/internal/mailbox"
	"github.com/marisel-vam/ai-inbox-zero/internal/progress"
	"github.com/marisel-vam/ai-inbox-zero/internal/scan"
	"github.com/marisel-vam/ai-inbox-zero/internal/services"
	"github.com/marisel-vam/ai-inbox-zero/internal/store"
)

const apiRequestsPerMinute = 120

// Deps holds the constructed collaborators the API serves
type Deps struct {
	Orchestrator *scan.Orchestrator
	Engine       *automation.Engine
	Gateway      *store.Gateway
	Broadcaster  *progress.Broadcaster
	Mailbox      mailbox.Mailbox
	Activity     *services.ActivityService
}

// SetupRouter initializes and returns the Gin router with all routes configured
func SetupRouter(deps Deps, cfg *config.Config) (*gin.Engine, *middleware.APIKeyManager, error) {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.CORSOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	apiKeyManager, err := middleware.NewAPIKeyManager(cfg.DataDir)
	if err != nil {
		return nil, nil, err
	}

	scanHandler := handlers.NewScanHandler(deps.Orchestrator, deps.Broadcaster, cfg.ScanBatchSize)
	messageHandler := handlers.NewMessageHandler(deps.Gateway, deps.Mailbox, deps.Activity)
	automationHandler := handlers.NewAutomationHandler(deps.Engine, deps.Gateway, automation.Config{
		ArchiveNewsletters: cfg.ArchiveNewsletters,
		DeleteSpam:         cfg.DeleteSpam,
		AutoReplyImportant: cfg.AutoReplyImportant,
		CautionMode:        cfg.CautionMode,
	})
	analyticsHandler := handlers.NewAnalyticsHandler(deps.Gateway)
	preferencesHandler := handlers.NewPreferencesHandler(deps.Gateway, deps.Activity)
	activityHandler := handlers.NewActivityHandler(deps.Activity)

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.Use(middleware.RateLimiter(apiRequestsPerMinute, time.Minute))
		api.Use(middleware.APIKeyMiddleware(apiKeyManager))

		scanGroup := api.Group("/scan")
		{
			scanGroup.POST("", scanHandler.StartScan)
			scanGroup.POST("/cancel", scanHandler.CancelScan)
			scanGroup.GET("/status", scanHandler.ScanStatus)
			scanGroup.GET("/stream", scanHandler.StreamProgress)
		}

		messages := api.Group("/messages")
		{
			messages.GET("", messageHandler.ListMessages)
			messages.GET("/:id", messageHandler.GetMessage)
			messages.POST("/:id/send", messageHandler.SendReply)
			messages.POST("/:id/archive", messageHandler.ArchiveMessage)
			messages.DELETE("/:id", messageHandler.DeleteMessage)
			messages.PUT("/:id/read", messageHandler.MarkRead)
		}

		automationGroup := api.Group("/automation")
		{
			automationGroup.POST("/run", automationHandler.RunAutomation)
			automationGroup.GET("/rules", automationHandler.GetRules)
		}

		api.GET("/analytics", analyticsHandler.GetAnalytics)

		preferences := api.Group("/preferences")
		{
			preferences.GET("", preferencesHandler.GetPreferences)
			preferences.PUT("", preferencesHandler.UpdatePreferences)
		}

		api.GET("/activity", activityHandler.ListActivity)
	}

	return router, apiKeyManager, nil
}
