package models

import (
	"fmt"
	"time"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

func ParseAppointmentStatus(s string) (AppointmentStatus, error) {
	switch st := AppointmentStatus(s); st {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

// Terminal reports whether no transition leaves st.
func (st AppointmentStatus) Terminal() bool {
	return st == StatusCompleted || st == StatusCancelled
}

var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// CanTransitionTo reports whether st -> to is a single edge of the lifecycle.
func (st AppointmentStatus) CanTransitionTo(to AppointmentStatus) bool {
	for _, next := range transitions[st] {
		if next == to {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID            string            `bson:"_id" json:"id"`
	PatientID     string            `bson:"patientId" json:"patientId"`
	DoctorID      string            `bson:"doctorId" json:"doctorId"`
	ReportID      string            `bson:"reportId" json:"reportId"`
	Status        AppointmentStatus `bson:"status" json:"status"`
	Date          string            `bson:"date,omitempty" json:"date,omitempty"`
	Time          string            `bson:"time,omitempty" json:"time,omitempty"`
	Message       string            `bson:"message,omitempty" json:"message,omitempty"`
	DeclineReason string            `bson:"declineReason,omitempty" json:"declineReason,omitempty"`
	CancelledBy   string            `bson:"cancelledBy,omitempty" json:"cancelledBy,omitempty"`
	Version       int64             `bson:"version" json:"version"`
	CreatedAt     time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// Transition is the write applied by a compare-and-swap on an appointment.
type Transition struct {
	To            AppointmentStatus
	UpdatedAt     time.Time
	DeclineReason string
	CancelledBy   string
}

// Apply returns a copy of a with t applied and the version bumped.
func (a Appointment) Apply(t Transition) Appointment {
	a.Status = t.To
	a.UpdatedAt = t.UpdatedAt
	a.Version++
	if t.DeclineReason != "" {
		a.DeclineReason = t.DeclineReason
	}
	if t.CancelledBy != "" {
		a.CancelledBy = t.CancelledBy
	}
	return a
}

// DashboardStats is the doctor dashboard projection.
type DashboardStats struct {
	TotalPatients         int `json:"totalPatients"`
	PendingAppointments   int `json:"pendingAppointments"`
	ConfirmedAppointments int `json:"confirmedAppointments"`
	CompletedAppointments int `json:"completedAppointments"`
	CancelledAppointments int `json:"cancelledAppointments"`
}
