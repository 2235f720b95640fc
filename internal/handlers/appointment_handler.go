package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/dermacare-api/internal/models"
	"github.com/harentsoaR/dermacare-api/internal/services"
)

type AppointmentRequest struct {
	DoctorID      string `json:"doctorId" binding:"required"`
	ReportID      string `json:"reportId" binding:"required"`
	Message       string `json:"message"`
	PreferredDate string `json:"preferredDate"`
	PreferredTime string `json:"preferredTime"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type StatusRequest struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

// appointmentView adds the doctor's display name and the referenced
// report's prediction for list screens.
type appointmentView struct {
	models.Appointment
	DoctorName string   `json:"doctorName,omitempty"`
	Disease    string   `json:"disease,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// --- REQUEST APPOINTMENT ---
func (h *Handler) RequestAppointment(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req AppointmentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	apt, err := h.Engine.RequestAppointment(c.Request.Context(), caller, services.RequestInput{
		DoctorID:      req.DoctorID,
		ReportID:      req.ReportID,
		Message:       req.Message,
		PreferredDate: req.PreferredDate,
		PreferredTime: req.PreferredTime,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, apt)
}

// --- LIST APPOINTMENTS (caller-scoped) ---
func (h *Handler) GetAppointments(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	list, err := h.Engine.ListFor(c.Request.Context(), caller)
	if err != nil {
		h.respondError(c, err)
		return
	}

	names := map[string]string{}
	if docs, err := h.Doctors.List(c.Request.Context()); err == nil {
		for _, d := range docs {
			names[d.ID] = d.Name
		}
	} else {
		h.Log.WithComponent("handlers").WithError(err).Warn("doctor names unavailable for appointment list")
	}

	reportIDs := make([]string, 0, len(list))
	for _, a := range list {
		reportIDs = append(reportIDs, a.ReportID)
	}
	reports, err := h.Reports.ByIDs(c.Request.Context(), reportIDs)
	if err != nil {
		h.Log.WithComponent("handlers").WithError(err).Warn("reports unavailable for appointment list")
	}

	out := make([]appointmentView, 0, len(list))
	for _, a := range list {
		v := appointmentView{Appointment: a, DoctorName: names[a.DoctorID]}
		if r, ok := reports[a.ReportID]; ok {
			v.Disease = r.Disease
			v.Confidence = &r.Confidence
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, gin.H{"appointments": out})
}

func (h *Handler) GetAppointment(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	apt, err := h.Engine.Get(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apt)
}

// --- STATUS CHANGES ---
func (h *Handler) ConfirmAppointment(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	h.respondAppointment(c)(h.Engine.Confirm(c.Request.Context(), c.Param("id"), caller))
}

func (h *Handler) CompleteAppointment(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	h.respondAppointment(c)(h.Engine.Complete(c.Request.Context(), c.Param("id"), caller))
}

// CancelAppointment is DELETE with an optional {reason}. The assigned doctor
// cancelling a pending request declines it.
func (h *Handler) CancelAppointment(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req CancelRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	h.respondAppointment(c)(h.Engine.SetStatus(c.Request.Context(), c.Param("id"), caller, string(models.StatusCancelled), req.Reason))
}

func (h *Handler) UpdateAppointmentStatus(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req StatusRequest
	if !h.bindJSON(c, &req) {
		return
	}
	h.respondAppointment(c)(h.Engine.SetStatus(c.Request.Context(), c.Param("id"), caller, req.Status, req.Reason))
}

func (h *Handler) respondAppointment(c *gin.Context) func(*models.Appointment, error) {
	return func(apt *models.Appointment, err error) {
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, apt)
	}
}
