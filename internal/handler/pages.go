package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Monthlyaway/ishort/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Pinger checks a backing service
type Pinger interface {
	Ping(ctx context.Context) error
}

// PageHandler serves the landing page, the terminal views and the health check
type PageHandler struct {
	gate    middleware.BanChecker
	db      Pinger
	google  bool
	timeout time.Duration
}

// NewPageHandler creates a new page handler instance
func NewPageHandler(gate middleware.BanChecker, db Pinger, google bool) *PageHandler {
	return &PageHandler{gate: gate, db: db, google: google, timeout: 2 * time.Second}
}

// HealthCheck handles GET /health
func (h *PageHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	if err := h.db.Ping(ctx); err != nil {
		log.Error().Err(err).Msg("health check: database unreachable")
		fail(c, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: "OK",
	})
}

// Landing handles GET /
func (h *PageHandler) Landing(c *gin.Context) {
	c.HTML(http.StatusOK, "landing.html", gin.H{
		"User":   middleware.CurrentUser(c),
		"Google": h.google,
	})
}

// Banned handles GET /banned. Identities that are not banned are sent back
// to the dashboard.
func (h *PageHandler) Banned(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	status := h.gate.Check(c.Request.Context(), user.UID)
	if !status.Banned {
		c.Redirect(http.StatusFound, "/dashboard/links")
		return
	}
	if middleware.WantsJSON(c) {
		ok(c, http.StatusOK, status)
		return
	}
	c.HTML(http.StatusOK, "banned.html", gin.H{"Status": status})
}

// Forbidden handles GET /forbidden
func (h *PageHandler) Forbidden(c *gin.Context) {
	if middleware.WantsJSON(c) {
		fail(c, http.StatusForbidden, "Admin role required")
		return
	}
	c.HTML(http.StatusForbidden, "forbidden.html", nil)
}
