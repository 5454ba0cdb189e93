package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tribehealth/aigateway/internal/cau"
	"github.com/tribehealth/aigateway/internal/chatrelay"
	"github.com/tribehealth/aigateway/internal/config"
	"github.com/tribehealth/aigateway/internal/database"
	"github.com/tribehealth/aigateway/internal/handlers"
	"github.com/tribehealth/aigateway/internal/identity"
	"github.com/tribehealth/aigateway/internal/imageapi"
	"github.com/tribehealth/aigateway/internal/imagecoord"
	"github.com/tribehealth/aigateway/internal/jobstore"
	"github.com/tribehealth/aigateway/internal/middleware"
	"github.com/tribehealth/aigateway/internal/rendezvous"
	"github.com/tribehealth/aigateway/internal/storage"
)

// Setup creates and configures the Gin router and all of its dependent
// components.
func Setup(db *database.DB, cfg *config.Config) *gin.Engine {
	jobs := jobstore.New(db)
	registry := rendezvous.NewRegistry()
	backend := imageapi.New("https://api.replicate.com/v1", cfg.ReplicateAPIKey)

	var archiver cau.Archiver
	if archiveClient, err := storage.NewArchiveClient(); err != nil {
		slog.Info("router: archival mirror not configured, continuing without it", "reason", err)
	} else {
		archiver = archiveClient
	}
	uploader := cau.New(cfg.IPFSURL, archiver)

	coord := imagecoord.New(jobs, registry, backend, uploader, cfg.PublicURL)
	enricher := identity.NewEnricher()
	relay := chatrelay.New(cfg.DifyAPIURL).WithServerKey(cfg.DifyAPIKey, cfg.DifyAllowServerKey)

	imageHandler := handlers.NewImageHandler(coord, enricher)
	webhookHandler := handlers.NewWebhookHandler(coord)
	chatHandler := handlers.NewChatHandler(relay)
	jobsHandler := handlers.NewJobsHandler(jobs)

	r := setupBaseRouter()

	r.GET("/health", healthCheck(db))
	r.GET("/", apiDocumentation())

	v1 := r.Group("/v1")
	{
		v1.POST("/chat/completions", chatHandler.CreateChatCompletion)
		v1.POST("/images/generations", imageHandler.CreateImage)
		v1.POST("/webhook/replicate/:id", webhookHandler.ReplicateWebhook)
		v1.GET("/images/jobs/:id", jobsHandler.GetJob)
		v1.GET("/images/jobs", jobsHandler.ListJobs)
	}

	return r
}

func setupBaseRouter() *gin.Engine {
	router := gin.New()

	router.Use(otelgin.Middleware("aigateway"))
	router.Use(middleware.Observability())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RateLimit())

	// Behind a reverse proxy, trust nothing by default to avoid IP spoofing
	// via X-Forwarded-For; operators tighten this for their deployment.
	router.SetTrustedProxies(nil)

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = config.GetAllowedOrigins()
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Authorization",
		"Accept",
		"User-Agent",
		"Cache-Control",
		"Pragma",
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	corsConfig.AllowCredentials = true
	router.Use(cors.New(corsConfig))

	return router
}

func healthCheck(db *database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"database":  "postgresql",
				"timestamp": time.Now().Unix(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "postgresql",
			"timestamp": time.Now().Unix(),
		})
	}
}

func apiDocumentation() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":        "aigateway",
			"description": "OpenAI-compatible gateway to a dialog backend and a webhook-driven image backend",
			"endpoints": gin.H{
				"health": "GET /health",
				"chat":   "POST /v1/chat/completions",
				"images": gin.H{
					"create":   "POST /v1/images/generations",
					"webhook":  "POST /v1/webhook/replicate/:id",
					"get_job":  "GET /v1/images/jobs/:id",
					"list_jobs": "GET /v1/images/jobs?user=...",
				},
			},
		})
	}
}
