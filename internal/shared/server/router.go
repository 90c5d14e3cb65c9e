package server

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"grainlab-backend/internal/services/health"
	"grainlab-backend/internal/shared/config"
	"grainlab-backend/internal/shared/metrics"
	"grainlab-backend/internal/shared/server/middleware"
	"grainlab-backend/internal/shared/server/respond"
	"grainlab-backend/internal/shared/storage/object"
)

// RouteRegistrar registers a feature's routes on the API group.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RouterDeps carries everything the router wires up.
type RouterDeps struct {
	Config config.Config

	// Feature handlers registered under /api/v1.
	Handlers []RouteRegistrar

	// Webhook handler registered at the engine root, outside the
	// authenticated API group.
	Webhook interface{ RegisterRoutes(r gin.IRouter) }

	// Store backs the public /files route the analysis service fetches
	// images from.
	Store object.ObjectStore

	Health *health.Service
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Config.Env),
		middleware.RateLimit(submitRateLimit(deps.Config)),
	)

	r.GET("/metrics", metrics.Handler())

	if deps.Webhook != nil {
		deps.Webhook.RegisterRoutes(r)
	}
	if deps.Store != nil {
		r.GET("/files/*key", serveFile(deps.Store))
	}

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		if deps.Health == nil {
			respond.JSON(c, http.StatusOK, gin.H{"ok": true})
			return
		}
		respond.JSON(c, http.StatusOK, deps.Health.Status(c.Request.Context()))
	})
	for _, h := range deps.Handlers {
		if h != nil {
			h.RegisterRoutes(api)
		}
	}

	return r
}

const submitGroup = "SUBMIT"

// submitRateLimit throttles classification submissions per principal.
// Reads and webhook deliveries are never limited.
func submitRateLimit(cfg config.Config) middleware.RateLimitConfig {
	rules := map[string]middleware.RateLimitRule{}
	if cfg.SubmitBurst > 0 && cfg.SubmitRatePerSec > 0 {
		rules[submitGroup] = middleware.RateLimitRule{
			Rate:  cfg.SubmitRatePerSec,
			Burst: cfg.SubmitBurst,
		}
	}
	return middleware.RateLimitConfig{
		Rules:        rules,
		DefaultGroup: "NONE",
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodPost && c.Request.URL.Path == "/api/v1/classifications" {
				return submitGroup
			}
			return ""
		},
	}
}

// serveFile streams a stored object. The analysis service fetches image
// URLs from here, so the route is unauthenticated.
func serveFile(store object.ObjectStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		if len(key) > 0 && key[0] == '/' {
			key = key[1:]
		}
		if key == "" {
			respond.Error(c, http.StatusNotFound, "not_found", "file not found", nil)
			return
		}

		body, err := store.Open(c.Request.Context(), key)
		if err != nil {
			respond.Error(c, http.StatusNotFound, "not_found", "file not found", nil)
			return
		}
		defer body.Close()

		contentType := mime.TypeByExtension(filepath.Ext(key))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Header("Content-Type", contentType)
		c.Status(http.StatusOK)
		io.Copy(c.Writer, body)
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
