package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mikey/email-classifier/internal/core"
)

// RouterOptions configures the HTTP surface
type RouterOptions struct {
	AllowedOrigins []string
	TrustedProxies []string
	// Metrics serves GET /metrics when set
	Metrics http.Handler
	// OnRateLimited is called for every rejected /analyze request
	OnRateLimited func()
}

// NewRouter creates the gin engine with middleware and routes.
// limiter may be nil to disable admission control.
func NewRouter(h *Handler, limiter core.RateLimiter, opts RouterOptions, logger *zap.Logger) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	router.Use(RequestID())
	router.Use(Logger(logger))
	router.Use(Recovery(logger))
	router.Use(CORS(opts.AllowedOrigins))

	router.GET("/health", h.Health)

	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	if h.ledger != nil {
		router.GET("/usage", h.Usage)
	}

	analyze := []gin.HandlerFunc{h.Analyze}
	if limiter != nil {
		analyze = append([]gin.HandlerFunc{RateLimit(limiter, opts.OnRateLimited, logger)}, analyze...)
	}
	router.POST("/analyze", analyze...)

	return router, nil
}
