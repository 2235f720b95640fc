package services

import (
	"context"

	"github.com/harentsoaR/dermacare-api/internal/apperr"
	"github.com/harentsoaR/dermacare-api/internal/models"
)

// AppointmentLister is the read side of the engine.
type AppointmentLister interface {
	ListFor(ctx context.Context, caller models.Identity) ([]models.Appointment, error)
}

// Dashboard recomputes a doctor's counters on every call.
type Dashboard struct {
	appointments AppointmentLister
}

func NewDashboard(appointments AppointmentLister) *Dashboard {
	return &Dashboard{appointments: appointments}
}

func (d *Dashboard) ForDoctor(ctx context.Context, caller models.Identity) (models.DashboardStats, error) {
	var stats models.DashboardStats
	if !caller.IsDoctor() {
		return stats, apperr.Authorization("only doctors have a dashboard")
	}

	list, err := d.appointments.ListFor(ctx, caller)
	if err != nil {
		return stats, err
	}

	patients := make(map[string]struct{})
	for _, a := range list {
		if a.DoctorID != caller.UserID {
			continue
		}
		patients[a.PatientID] = struct{}{}
		switch a.Status {
		case models.StatusPending:
			stats.PendingAppointments++
		case models.StatusConfirmed:
			stats.ConfirmedAppointments++
		case models.StatusCompleted:
			stats.CompletedAppointments++
		case models.StatusCancelled:
			stats.CancelledAppointments++
		}
	}
	stats.TotalPatients = len(patients)
	return stats, nil
}
