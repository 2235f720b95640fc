// Package store declares the persistence contracts used by the services.
// Implementations live in the memory, mongodb and postgres subpackages.
package store

import (
	"context"
	"errors"

	"github.com/harentsoaR/dermacare-api/internal/models"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate key")
	// ErrStale is returned by a compare-and-swap whose expected state no
	// longer matches the stored record.
	ErrStale = errors.New("store: stale write")
)

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)
}

type SessionStore interface {
	// PutSession replaces the user's current session record.
	PutSession(ctx context.Context, s *models.SessionRecord) error
	// RotateSession replaces the user's record only while it still carries
	// prevRefreshHash. Otherwise it returns ErrStale.
	RotateSession(ctx context.Context, prevRefreshHash string, next *models.SessionRecord) error
	SessionByUser(ctx context.Context, userID string) (*models.SessionRecord, error)
	SessionByRefreshHash(ctx context.Context, hash string) (*models.SessionRecord, error)
	// DeleteSession removes the user's session only if it is still sessionID.
	DeleteSession(ctx context.Context, userID, sessionID string) error
}

type ProfileStore interface {
	UpsertProfile(ctx context.Context, p *models.PatientProfile) error
	ProfileByUser(ctx context.Context, userID string) (*models.PatientProfile, error)
}

type DoctorStore interface {
	UpsertDoctor(ctx context.Context, d *models.Doctor) error
	DoctorByID(ctx context.Context, id string) (*models.Doctor, error)
	ListDoctors(ctx context.Context) ([]models.Doctor, error)
}

type ReportStore interface {
	CreateReport(ctx context.Context, r *models.Report) error
	ReportByID(ctx context.Context, id string) (*models.Report, error)
	ReportsByPatient(ctx context.Context, patientID string) ([]models.Report, error)
}

type AppointmentStore interface {
	CreateAppointment(ctx context.Context, a *models.Appointment) error
	AppointmentByID(ctx context.Context, id string) (*models.Appointment, error)
	// AppointmentsForUser returns appointments where userID is the patient
	// or the doctor, newest first.
	AppointmentsForUser(ctx context.Context, userID string) ([]models.Appointment, error)
	// CompareAndSwapStatus applies t only while the record is still in
	// status from at version. Otherwise it returns ErrStale (or ErrNotFound).
	CompareAndSwapStatus(ctx context.Context, id string, from models.AppointmentStatus, version int64, t models.Transition) (*models.Appointment, error)
}

// Store is everything a driver provides.
type Store interface {
	UserStore
	SessionStore
	ProfileStore
	DoctorStore
	ReportStore
	AppointmentStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
