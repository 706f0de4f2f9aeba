package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// NewServer creates the HTTP server with all routes configured.
func NewServer(handler *Handler, apiAccessKey, cronSecret string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("%s - [%s] \"%s %s %s %d %s \"%s\" %s\"\n",
				param.ClientIP,
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.Request.Proto,
				param.StatusCode,
				param.Latency,
				param.Request.UserAgent(),
				param.ErrorMessage,
			)
		},
	}))

	r.Use(gin.Recovery())

	// CORS middleware for API endpoints
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, X-API-Key, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	setupRoutes(r, handler, apiAccessKey, cronSecret)

	return r
}

func setupRoutes(r *gin.Engine, handler *Handler, apiAccessKey, cronSecret string) {
	r.GET("/health", handler.GetHealth)

	// Trigger endpoints for external schedulers. They only enqueue
	// work, so repeated invocations are harmless.
	if cronSecret != "" {
		cron := r.Group("/cron")
		cron.Use(cronMiddleware(cronSecret))
		{
			cron.POST("/harvest", handler.TriggerHarvestBatch)
			cron.POST("/accounts/:id/harvest", handler.TriggerAccountSweep)
		}
	} else {
		slog.Warn("Cron endpoints disabled (CRON_SECRET not set)")
	}

	if apiAccessKey != "" {
		api := r.Group("/api")
		api.Use(authMiddleware(apiAccessKey))
		{
			api.POST("/datasets", handler.CreateDataset)
			api.GET("/datasets/:id/status", handler.GetDatasetStatus)
			api.GET("/datasets/:id/progress", handler.GetDatasetProgress)
			api.POST("/datasets/:id/enrich/headlines", handler.TriggerHeadlineExtraction)
			api.POST("/datasets/:id/enrich/analyze", handler.TriggerContentAnalysis)

			api.POST("/sources", handler.CreateSource)
			api.GET("/sources", handler.ListSources)
			api.DELETE("/sources/:id", handler.DeactivateSource)

			api.GET("/items", handler.ListItems)
		}
		slog.Info("API endpoints enabled with authentication")
	} else {
		slog.Warn("API endpoints disabled (API_ACCESS_KEY not set)")
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service": "Reel Radar Harvester",
			"version": handler.opts.Version,
			"endpoints": map[string]string{
				"health":   "/health",
				"harvest":  "/cron/harvest (POST, requires cron secret)",
				"sources":  "/api/sources (requires X-API-Key header)",
				"datasets": "/api/datasets (requires X-API-Key header)",
				"items":    "/api/items (requires X-API-Key header)",
			},
		})
	})

	r.GET("/favicon.ico", func(c *gin.Context) {
		c.Status(204)
	})
}

// authMiddleware guards the management API with a shared access key.
func authMiddleware(apiAccessKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-API-Key")

		if providedKey == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				providedKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if providedKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "API key required",
				"message": "Provide API key in X-API-Key header or Authorization: Bearer <key>",
			})
			c.Abort()
			return
		}

		if providedKey != apiAccessKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid API key",
				"message": "The provided API key is not valid",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// cronMiddleware guards the trigger endpoints with a shared secret,
// accepted either as a query parameter or a bearer token so that both
// plain webhook schedulers and header-capable ones work.
func cronMiddleware(cronSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.Query("secret")

		if provided == "" {
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				provided = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if provided != cronSecret {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "Invalid cron secret",
				"message": "Provide the secret as ?secret= or Authorization: Bearer <secret>",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
