package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/hopeana/dispatcher/internal/engine"
	"github.com/hopeana/dispatcher/internal/models"
)

const (
	secretHeader    = "X-Trigger-Secret"
	pingTimeout     = 2 * time.Second
	defaultDeadline = 30 * time.Second
)

type runner interface {
	Run(ctx context.Context) models.RunSummary
}

type pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	engine  runner
	db      pinger
	secret  string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewHandler builds the dispatch handlers. An empty secret leaves the run
// endpoint unauthenticated.
func NewHandler(eng runner, db pinger, secret string, timeout time.Duration, logger zerolog.Logger) *Handler {
	if timeout <= 0 {
		timeout = defaultDeadline
	}
	logger = logger.With().Str("component", "DispatchHandler").Logger()
	return &Handler{engine: eng, db: db, secret: secret, timeout: timeout, logger: logger}
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/api/v1/dispatch/run", h.Run)
	r.GET("/healthz", h.Health)
}

// Run performs one dispatch invocation and returns its summary.
func (h *Handler) Run(c *gin.Context) {
	if h.secret != "" {
		got := c.GetHeader(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.logger.Warn().Str("client_ip", c.ClientIP()).Msg("rejected dispatch trigger")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid trigger secret"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(engine.WithTrigger(c.Request.Context(), engine.TriggerManual), h.timeout)
	defer cancel()

	summary := h.engine.Run(ctx)
	c.JSON(http.StatusOK, summary)
}

// Health reports whether the database answers.
func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.logger.Error().Err(err).Msg("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
