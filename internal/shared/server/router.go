package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"research-portal/internal/documents"
	"research-portal/internal/shared/config"
	"research-portal/internal/shared/metrics"
	"research-portal/internal/shared/server/middleware"
	"research-portal/internal/shared/server/respond"
	"research-portal/internal/uploads"
)

const (
	rateGroupDefault = "DEFAULT"
	rateGroupProcess = "PROCESS"
)

// RouterDeps carries the handlers mounted on the router.
type RouterDeps struct {
	Config          config.Config
	DocumentHandler *documents.Handler
	UploadHandler   *uploads.Handler
	Limiter         *middleware.RateLimiter
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
	)

	r.GET("/health", health)
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		DefaultGroup: rateGroupDefault,
		GroupFor:     rateGroupFor,
		Limiter:      deps.Limiter,
		Rules:        rateRules(deps.Config),
	}))
	api.GET("/health", health)
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(api)
	}
	if deps.UploadHandler != nil {
		deps.UploadHandler.RegisterRoutes(api)
	}

	return r
}

func health(c *gin.Context) {
	respond.JSON(c, http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// rateGroupFor puts the processing routes under the configured rule.
func rateGroupFor(c *gin.Context) string {
	switch c.FullPath() {
	case "/api/v1/process", "/api/v1/process/from-storage":
		return rateGroupProcess
	default:
		return rateGroupDefault
	}
}

func rateRules(cfg config.Config) map[string]middleware.RateLimitRule {
	rules := map[string]middleware.RateLimitRule{}
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst > 0 {
		rules[rateGroupProcess] = middleware.RateLimitRule{Rate: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst}
		rules[rateGroupDefault] = middleware.RateLimitRule{Rate: cfg.RateLimitRPS * 10, Burst: cfg.RateLimitBurst * 10}
	}
	return rules
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":3001"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
