package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/harentsoaR/dermacare-api/internal/apperr"
	"github.com/harentsoaR/dermacare-api/internal/logger"
	"github.com/harentsoaR/dermacare-api/internal/middleware"
	"github.com/harentsoaR/dermacare-api/internal/models"
	"github.com/harentsoaR/dermacare-api/internal/services"
)

// Handler bundles the services the REST handlers call into.
type Handler struct {
	Sessions  *services.SessionManager
	Profiles  *services.ProfileService
	Doctors   *services.DoctorService
	Reports   *services.ReportService
	Engine    *services.AppointmentEngine
	Dashboard *services.Dashboard

	// Ping checks the backing store for /healthz.
	Ping    func(ctx context.Context) error
	Metrics http.Handler
	Log     *logger.Logger
}

// respondError writes err as {kind, message}. Internal errors are logged
// with their cause and returned with a generic message.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindInternal, apperr.KindExternal:
		h.Log.WithComponent("handlers").WithFields(logrus.Fields{
			"path":  c.FullPath(),
			"error": err.Error(),
		}).Error("request failed")
	}
	middleware.AbortWithError(c, err)
}

// bindJSON decodes the body into dst. Unknown fields are rejected.
func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.respondError(c, apperr.Validation("invalid request body: "+err.Error()))
		return false
	}
	return true
}

// caller returns the authenticated identity; AuthMiddleware guarantees it.
func (h *Handler) caller(c *gin.Context) (models.Identity, bool) {
	id, ok := middleware.Identity(c)
	if !ok {
		h.respondError(c, apperr.Authentication("not authenticated"))
	}
	return id, ok
}

func (h *Handler) Health(c *gin.Context) {
	if h.Ping != nil {
		if err := h.Ping(c.Request.Context()); err != nil {
			h.Log.WithComponent("handlers").WithError(err).Warn("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
