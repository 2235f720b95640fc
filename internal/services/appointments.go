package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/harentsoaR/dermacare-api/internal/apperr"
	"github.com/harentsoaR/dermacare-api/internal/logger"
	"github.com/harentsoaR/dermacare-api/internal/metrics"
	"github.com/harentsoaR/dermacare-api/internal/models"
	"github.com/harentsoaR/dermacare-api/internal/store"
)

const maxMessageLen = 2000

type RequestInput struct {
	DoctorID      string
	ReportID      string
	Message       string
	PreferredDate string
	PreferredTime string
}

func (in *RequestInput) normalize() error {
	in.DoctorID = strings.TrimSpace(in.DoctorID)
	in.ReportID = strings.TrimSpace(in.ReportID)
	in.Message = strings.TrimSpace(in.Message)
	in.PreferredDate = strings.TrimSpace(in.PreferredDate)
	in.PreferredTime = strings.TrimSpace(in.PreferredTime)

	if in.DoctorID == "" {
		return apperr.Validation("doctorId is required")
	}
	if in.ReportID == "" {
		return apperr.Validation("reportId is required")
	}
	if utf8.RuneCountInString(in.Message) > maxMessageLen {
		return apperr.Validation("message must be at most 2000 characters")
	}
	if in.PreferredDate != "" {
		if _, err := time.Parse(time.DateOnly, in.PreferredDate); err != nil {
			return apperr.Validation("preferredDate must be YYYY-MM-DD")
		}
	}
	if in.PreferredTime != "" && !validClockTime(in.PreferredTime) {
		return apperr.Validation("preferredTime must be HH:MM or h:MM AM/PM")
	}
	return nil
}

func validClockTime(s string) bool {
	for _, layout := range []string{"15:04", "3:04 PM", "03:04 PM"} {
		if _, err := time.Parse(layout, strings.ToUpper(s)); err == nil {
			return true
		}
	}
	return false
}

// operation is one edge family of the lifecycle: where it may start, who
// may take it and where it leads.
type operation struct {
	name      string
	from      []models.AppointmentStatus
	to        models.AppointmentStatus
	authorize func(caller models.Identity, a *models.Appointment) error
}

func (op operation) startsFrom(st models.AppointmentStatus) bool {
	for _, f := range op.from {
		if f == st {
			return st.CanTransitionTo(op.to)
		}
	}
	return false
}

func assignedDoctor(verb string) func(models.Identity, *models.Appointment) error {
	return func(caller models.Identity, a *models.Appointment) error {
		if !caller.IsDoctor() || caller.UserID != a.DoctorID {
			return apperr.Authorization("only the assigned doctor can " + verb + " this appointment")
		}
		return nil
	}
}

func eitherParty(caller models.Identity, a *models.Appointment) error {
	if caller.IsPatient() && caller.UserID == a.PatientID {
		return nil
	}
	if caller.IsDoctor() && caller.UserID == a.DoctorID {
		return nil
	}
	return apperr.Authorization("only the patient or the assigned doctor can cancel this appointment")
}

var (
	opConfirm = operation{
		name: "confirm", from: []models.AppointmentStatus{models.StatusPending},
		to: models.StatusConfirmed, authorize: assignedDoctor("confirm"),
	}
	opDecline = operation{
		name: "decline", from: []models.AppointmentStatus{models.StatusPending},
		to: models.StatusCancelled, authorize: assignedDoctor("decline"),
	}
	opComplete = operation{
		name: "complete", from: []models.AppointmentStatus{models.StatusConfirmed},
		to: models.StatusCompleted, authorize: assignedDoctor("complete"),
	}
	opCancel = operation{
		name: "cancel", from: []models.AppointmentStatus{models.StatusPending, models.StatusConfirmed},
		to: models.StatusCancelled, authorize: eitherParty,
	}
)

// AppointmentEngine owns every status change of an appointment. Writes go
// through the store's compare-and-swap so a stale decision is never applied.
type AppointmentEngine struct {
	appointments store.AppointmentStore
	profiles     ProfileChecker
	doctors      DoctorDirectory
	reports      ReportOwnership
	notifier     Notifier
	metrics      *metrics.Metrics
	log          *logger.Logger
	now          func() time.Time
}

func NewAppointmentEngine(
	appointments store.AppointmentStore,
	profiles ProfileChecker,
	doctors DoctorDirectory,
	reports ReportOwnership,
	notifier Notifier,
	log *logger.Logger,
	m *metrics.Metrics,
) *AppointmentEngine {
	return &AppointmentEngine{
		appointments: appointments,
		profiles:     profiles,
		doctors:      doctors,
		reports:      reports,
		notifier:     notifier,
		metrics:      m,
		log:          log,
		now:          time.Now,
	}
}

// RequestAppointment creates a pending appointment once the profile gate,
// the doctor directory and report ownership all pass, in that order.
func (e *AppointmentEngine) RequestAppointment(ctx context.Context, caller models.Identity, in RequestInput) (*models.Appointment, error) {
	if !caller.IsPatient() {
		return nil, apperr.Authorization("only patients can request appointments")
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	if _, err := e.profiles.EnsureComplete(ctx, caller.UserID); err != nil {
		e.log.Audit(caller.UserID, "request", "appointment", false, logrus.Fields{"reason": err.Error()})
		return nil, err
	}

	ok, err := e.doctors.Exists(ctx, in.DoctorID)
	if err != nil {
		return nil, apperr.External("doctor directory unavailable", err)
	}
	if !ok {
		return nil, apperr.NotFound("doctor not found")
	}

	ok, err = e.reports.IsOwnedBy(ctx, in.ReportID, caller.UserID)
	if err != nil {
		return nil, apperr.External("report store unavailable", err)
	}
	if !ok {
		return nil, apperr.NotFound("report not found")
	}

	now := e.clock()
	apt := &models.Appointment{
		ID:        uuid.NewString(),
		PatientID: caller.UserID,
		DoctorID:  in.DoctorID,
		ReportID:  in.ReportID,
		Status:    models.StatusPending,
		Date:      in.PreferredDate,
		Time:      in.PreferredTime,
		Message:   in.Message,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.appointments.CreateAppointment(ctx, apt); err != nil {
		return nil, apperr.External("failed to save appointment", err)
	}

	e.metrics.RecordTransition("none", string(models.StatusPending))
	e.log.Audit(caller.UserID, "request", "appointment", true, logrus.Fields{
		"appointment_id": apt.ID,
		"doctor_id":      apt.DoctorID,
	})
	e.notifier.AppointmentChanged(*apt, apt.DoctorID)
	return apt, nil
}

func (e *AppointmentEngine) Confirm(ctx context.Context, id string, caller models.Identity) (*models.Appointment, error) {
	return e.apply(ctx, id, caller, opConfirm, models.Transition{})
}

// Decline refuses a pending request. reason is kept for the record only.
func (e *AppointmentEngine) Decline(ctx context.Context, id string, caller models.Identity, reason string) (*models.Appointment, error) {
	return e.apply(ctx, id, caller, opDecline, models.Transition{
		DeclineReason: strings.TrimSpace(reason),
		CancelledBy:   caller.UserID,
	})
}

func (e *AppointmentEngine) Cancel(ctx context.Context, id string, caller models.Identity) (*models.Appointment, error) {
	return e.apply(ctx, id, caller, opCancel, models.Transition{CancelledBy: caller.UserID})
}

func (e *AppointmentEngine) Complete(ctx context.Context, id string, caller models.Identity) (*models.Appointment, error) {
	return e.apply(ctx, id, caller, opComplete, models.Transition{})
}

// SetStatus moves the appointment to target along a single edge. Any target
// that is not one edge away is a conflict whoever asks.
func (e *AppointmentEngine) SetStatus(ctx context.Context, id string, caller models.Identity, target, reason string) (*models.Appointment, error) {
	to, err := models.ParseAppointmentStatus(strings.ToLower(strings.TrimSpace(target)))
	if err != nil {
		return nil, apperr.Validation("status must be one of pending, confirmed, completed, cancelled")
	}

	cur, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cur.Status.CanTransitionTo(to) {
		e.metrics.RecordConflict("state")
		return nil, apperr.Conflict(fmt.Sprintf("cannot move appointment from %s to %s", cur.Status, to))
	}

	switch to {
	case models.StatusConfirmed:
		return e.Confirm(ctx, id, caller)
	case models.StatusCompleted:
		return e.Complete(ctx, id, caller)
	default:
		if cur.Status == models.StatusPending && caller.IsDoctor() && caller.UserID == cur.DoctorID {
			return e.Decline(ctx, id, caller, reason)
		}
		return e.Cancel(ctx, id, caller)
	}
}

// Get returns one appointment to one of its parties. Anyone else is told it
// does not exist.
func (e *AppointmentEngine) Get(ctx context.Context, id string, caller models.Identity) (*models.Appointment, error) {
	a, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.UserID != a.PatientID && caller.UserID != a.DoctorID {
		return nil, apperr.NotFound("appointment not found")
	}
	return a, nil
}

// ListFor returns every appointment the caller is a party to, newest first.
func (e *AppointmentEngine) ListFor(ctx context.Context, caller models.Identity) ([]models.Appointment, error) {
	out, err := e.appointments.AppointmentsForUser(ctx, caller.UserID)
	if err != nil {
		return nil, apperr.External("failed to list appointments", err)
	}
	return out, nil
}

func (e *AppointmentEngine) load(ctx context.Context, id string) (*models.Appointment, error) {
	a, err := e.appointments.AppointmentByID(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.NotFound("appointment not found")
	case err != nil:
		return nil, apperr.External("failed to load appointment", err)
	}
	return a, nil
}

func (e *AppointmentEngine) apply(ctx context.Context, id string, caller models.Identity, op operation, t models.Transition) (*models.Appointment, error) {
	cur, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := op.authorize(caller, cur); err != nil {
		e.log.Audit(caller.UserID, op.name, "appointment", false, logrus.Fields{"appointment_id": id})
		return nil, err
	}
	if !op.startsFrom(cur.Status) {
		e.metrics.RecordConflict("state")
		return nil, apperr.Conflict(fmt.Sprintf("cannot %s an appointment that is %s", op.name, cur.Status))
	}

	t.To = op.to
	t.UpdatedAt = e.nextUpdatedAt(cur.UpdatedAt)

	next, err := e.appointments.CompareAndSwapStatus(ctx, id, cur.Status, cur.Version, t)
	switch {
	case errors.Is(err, store.ErrStale):
		e.metrics.RecordConflict("race")
		observed := "changed"
		if latest, lerr := e.appointments.AppointmentByID(ctx, id); lerr == nil {
			observed = string(latest.Status)
		}
		return nil, apperr.Conflict(fmt.Sprintf("cannot %s: appointment was modified concurrently and is now %s", op.name, observed))
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.NotFound("appointment not found")
	case err != nil:
		return nil, apperr.External("failed to update appointment", err)
	}

	e.metrics.RecordTransition(string(cur.Status), string(next.Status))
	e.log.Audit(caller.UserID, op.name, "appointment", true, logrus.Fields{
		"appointment_id": id,
		"from":           cur.Status,
		"to":             next.Status,
		"version":        next.Version,
	})

	recipient := next.DoctorID
	if caller.UserID == next.DoctorID {
		recipient = next.PatientID
	}
	e.notifier.AppointmentChanged(*next, recipient)
	return next, nil
}

// nextUpdatedAt is now at millisecond precision, forced past prev so the
// stamp strictly increases even when the clock does not.
func (e *AppointmentEngine) nextUpdatedAt(prev time.Time) time.Time {
	now := e.clock()
	if !now.After(prev) {
		now = prev.Add(time.Millisecond)
	}
	return now
}

func (e *AppointmentEngine) clock() time.Time {
	return e.now().UTC().Truncate(time.Millisecond)
}
