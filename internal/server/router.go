package server

import (
	"net/http"
	"slices"
	"time"

	"task-management-api/internal/apierr"
	"task-management-api/internal/config"
	"task-management-api/internal/handlers"
	"task-management-api/internal/middleware"
	"task-management-api/internal/monitoring"
	"task-management-api/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps are the long lived collaborators the router needs. Metrics and
// Health are optional.
type Deps struct {
	TaskService services.TaskService
	Metrics     *monitoring.Metrics
	Health      *monitoring.HealthChecker
}

func NewRouter(cfg *config.Config, deps Deps) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.RecoveryWithLog())
	router.Use(middleware.RequestLogger())
	if deps.Metrics != nil {
		router.Use(deps.Metrics.Middleware())
	}
	router.Use(cors.New(corsConfig(cfg.CORS)))

	router.GET("/health", handlers.Health)
	if deps.Health != nil {
		router.GET("/readyz", deps.Health.ReadinessHandler())
	}
	if deps.Metrics != nil {
		router.GET("/metrics", deps.Metrics.Handler())
	}

	api := router.Group("")
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerMin:  cfg.RateLimit.RequestsPerMin,
			Burst:           cfg.RateLimit.BurstSize,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
		}))
	}
	if cfg.Auth.Enabled {
		api.Use(middleware.Auth(middleware.AuthConfig{
			Secret: cfg.Auth.JWTSecret,
			Issuer: cfg.Auth.Issuer,
		}))
	}
	handlers.NewTaskHandler(deps.TaskService).Register(api)

	router.NoRoute(func(c *gin.Context) {
		apierr.Respond(c, http.StatusNotFound, nil)
	})

	return router
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || slices.Contains(cfg.AllowedOrigins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = cfg.AllowedOrigins
	}
	return c
}
