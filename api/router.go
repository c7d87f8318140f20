package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/mediaresolve/api/handler"
	"github.com/use-agent/mediaresolve/api/middleware"
	"github.com/use-agent/mediaresolve/config"
	"github.com/use-agent/mediaresolve/metrics"
	"github.com/use-agent/mediaresolve/models"
)

const maxBodyBytes = 256 << 10

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestID → Logger → BodyLimit
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics are outside auth so monitoring probes always work.
// POST /ig and GET /health are kept as aliases for existing clients.
func NewRouter(res *handler.Resolver, batches *handler.BatchStore, m *metrics.Metrics, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(gin.Logger())
	r.Use(middleware.BodyLimit(maxBodyBytes))

	health := handler.Health(res, startTime)
	r.GET("/health", health)
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/health", health)

	// Protected routes: auth + rate limit.
	protect := []gin.HandlerFunc{}
	if cfg.Auth.Enabled {
		protect = append(protect, middleware.Auth(cfg.Auth.APIKeys))
	}
	protect = append(protect, middleware.RateLimit(cfg.RateLimit))

	resolve := handler.Resolve(res)
	legacy := r.Group("", protect...)
	legacy.POST("/ig", resolve)

	protected := v1.Group("", protect...)
	protected.POST("/resolve", resolve)
	protected.POST("/batch/resolve", handler.PostBatch(res, batches, cfg.Resolve.MaxBatchSize))
	protected.GET("/batch/:id", handler.GetBatch(batches))

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: &models.ErrorDetail{Code: models.ErrCodeNotFound, Message: "Not found"},
		})
	})

	return r
}
