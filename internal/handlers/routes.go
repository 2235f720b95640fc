package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/harentsoaR/dermacare-api/internal/middleware"
	"github.com/harentsoaR/dermacare-api/internal/models"
)

// RegisterRoutes mounts the REST surface on r.
func (h *Handler) RegisterRoutes(r *gin.Engine, limiter *middleware.RateLimiter) {
	binding.EnableDecoderDisallowUnknownFields = true

	r.GET("/healthz", h.Health)
	if h.Metrics != nil {
		r.GET("/metrics", gin.WrapH(h.Metrics))
	}

	authRoutes := r.Group("/auth")
	{
		authRoutes.GET("/config", h.AuthConfig)
		authRoutes.POST("/logout", h.Logout)

		limited := authRoutes.Group("")
		if limiter != nil {
			limited.Use(middleware.RateLimit(limiter))
		}
		limited.POST("/register", h.Register)
		limited.POST("/login", h.Login)
		limited.POST("/refresh", h.Refresh)
	}

	apiRoutes := r.Group("/api")
	apiRoutes.Use(middleware.AuthMiddleware(h.Sessions)) // Protect all /api routes
	{
		patient := apiRoutes.Group("", middleware.RequireRole(models.RolePatient))
		patient.GET("/patient/profile", h.GetProfile)
		patient.POST("/patient/profile", h.UpsertProfile)
		patient.GET("/reports", h.GetReports)
		patient.POST("/reports", h.CreateReport)
		patient.POST("/appointments/request", h.RequestAppointment)

		doctor := apiRoutes.Group("", middleware.RequireRole(models.RoleDoctor))
		doctor.POST("/appointments/:id/confirm", h.ConfirmAppointment)
		doctor.POST("/appointments/:id/complete", h.CompleteAppointment)
		doctor.GET("/doctor/dashboard", h.GetDashboard)

		apiRoutes.GET("/doctors", h.GetDoctors)
		apiRoutes.GET("/doctors/:id", h.GetDoctor)
		apiRoutes.GET("/appointments", h.GetAppointments)
		apiRoutes.GET("/appointments/:id", h.GetAppointment)
		apiRoutes.DELETE("/appointments/:id/cancel", h.CancelAppointment)
		apiRoutes.POST("/appointments/:id/status", h.UpdateAppointmentStatus)
	}
}
