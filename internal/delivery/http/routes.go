package http

import (
	"github.com/gin-gonic/gin"
	"github.com/pricelens/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RequestIDMiddleware())
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	router.GET("/health", handler.HealthCheck)

	limited := RateLimitMiddleware(NewIPRateLimiter(cfg.RateLimit.PerIP, cfg.RateLimit.Burst))

	// Alias kept for existing clients
	router.POST("/api/search", limited, handler.SearchPrices)

	v1 := router.Group("/api/v1")
	{
		prices := v1.Group("/prices", limited)
		{
			prices.POST("/search", handler.SearchPrices)
		}
		v1.GET("/retailers", handler.ListRetailers)
	}

	return router
}
