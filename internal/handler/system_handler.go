package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/earlyreg-backend/internal/model"
	"github.com/stemsi/earlyreg-backend/internal/response"
)

const healthPingTimeout = 2 * time.Second

// Pinger checks that a backing service answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Catalog is the slice of the entity store the health check reports on.
type Catalog interface {
	AllSubjects() []model.Subject
}

// SystemHandler reports process and dependency health.
type SystemHandler struct {
	redis     Pinger
	catalog   Catalog
	startTime time.Time
	log       zerolog.Logger
}

func NewSystemHandler(redis Pinger, catalog Catalog, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		redis:     redis,
		catalog:   catalog,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

type healthStatus struct {
	Status     string `json:"status"`
	Uptime     string `json:"uptime"`
	Goroutines int    `json:"goroutines"`
	Redis      string `json:"redis"`
	Subjects   int    `json:"subjects"`
}

// Health godoc
// GET /health
// Returns 200 while Redis answers, 503 otherwise. Enrollment itself keeps
// working without Redis; logins and live events do not.
func (h *SystemHandler) Health(c *gin.Context) {
	status := healthStatus{
		Status:     "ok",
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		Redis:      "ok",
		Subjects:   len(h.catalog.AllSubjects()),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			h.log.Warn().Err(err).Msg("Redis health check failed")
			status.Status = "degraded"
			status.Redis = "down"
			response.Success(c, http.StatusServiceUnavailable, status)
			return
		}
	}

	response.Success(c, http.StatusOK, status)
}
