package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harentsoaR/dermacare-api/internal/services"
)

type ProfileRequest struct {
	Name         string `json:"name"`
	Age          *int   `json:"age"`
	Gender       string `json:"gender"`
	ContactEmail string `json:"contactEmail"`
}

type ReportRequest struct {
	Disease    string  `json:"disease" binding:"required"`
	Confidence float64 `json:"confidence"`
	ImageURL   string  `json:"imageUrl"`
	BodyPart   string  `json:"bodyPart"`
	Symptoms   string  `json:"symptoms"`
	Duration   string  `json:"duration"`
}

// --- PATIENT PROFILE ---
func (h *Handler) GetProfile(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	p, err := h.Profiles.Get(c.Request.Context(), caller)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) UpsertProfile(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req ProfileRequest
	if !h.bindJSON(c, &req) {
		return
	}

	p, err := h.Profiles.Upsert(c.Request.Context(), caller, services.ProfileInput{
		Name:         req.Name,
		Age:          req.Age,
		Gender:       req.Gender,
		ContactEmail: req.ContactEmail,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// --- REPORTS ---
func (h *Handler) GetReports(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	list, err := h.Reports.List(c.Request.Context(), caller)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": list})
}

func (h *Handler) CreateReport(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req ReportRequest
	if !h.bindJSON(c, &req) {
		return
	}

	r, err := h.Reports.Create(c.Request.Context(), caller, services.ReportInput{
		Disease:    req.Disease,
		Confidence: req.Confidence,
		ImageURL:   req.ImageURL,
		BodyPart:   req.BodyPart,
		Symptoms:   req.Symptoms,
		Duration:   req.Duration,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// --- DOCTORS ---
func (h *Handler) GetDoctors(c *gin.Context) {
	docs, err := h.Doctors.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"doctors": docs})
}

func (h *Handler) GetDoctor(c *gin.Context) {
	d, err := h.Doctors.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *Handler) GetDashboard(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	stats, err := h.Dashboard.ForDoctor(c.Request.Context(), caller)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
