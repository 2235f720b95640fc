package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/harentsoaR/dermacare-api/internal/models"
	"github.com/harentsoaR/dermacare-api/internal/store"
)

const appointmentCols = `id, patient_id, doctor_id, report_id, status, pref_date, pref_time, message,
	decline_reason, cancelled_by, version, created_at, updated_at`

func scanAppointment(row pgx.Row) (*models.Appointment, error) {
	a := &models.Appointment{}
	err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.ReportID, &a.Status, &a.Date, &a.Time, &a.Message,
		&a.DeclineReason, &a.CancelledBy, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return a, nil
}

func (s *Store) CreateAppointment(ctx context.Context, a *models.Appointment) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO appointments (id, patient_id, doctor_id, report_id, status, pref_date, pref_time, message,
		                           decline_reason, cancelled_by, version, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		a.ID, a.PatientID, a.DoctorID, a.ReportID, a.Status, a.Date, a.Time, a.Message,
		a.DeclineReason, a.CancelledBy, a.Version, a.CreatedAt, a.UpdatedAt,
	)
	return mapErr(err)
}

func (s *Store) AppointmentByID(ctx context.Context, id string) (*models.Appointment, error) {
	return scanAppointment(s.pool.QueryRow(ctx, `SELECT `+appointmentCols+` FROM appointments WHERE id = $1`, id))
}

func (s *Store) AppointmentsForUser(ctx context.Context, userID string) ([]models.Appointment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+appointmentCols+`
		 FROM appointments
		 WHERE patient_id = $1 OR doctor_id = $1
		 ORDER BY created_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// CompareAndSwapStatus guards the UPDATE on the expected status and version;
// zero affected rows means another writer got there first.
func (s *Store) CompareAndSwapStatus(ctx context.Context, id string, from models.AppointmentStatus, version int64, t models.Transition) (*models.Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx,
		`UPDATE appointments
		 SET status = $4::text,
		     updated_at = $5,
		     decline_reason = CASE WHEN $6::text = '' THEN decline_reason ELSE $6::text END,
		     cancelled_by = CASE WHEN $7::text = '' THEN cancelled_by ELSE $7::text END,
		     version = version + 1
		 WHERE id = $1 AND status = $2 AND version = $3
		 RETURNING `+appointmentCols,
		id, from, version, t.To, t.UpdatedAt, t.DeclineReason, t.CancelledBy,
	))
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrNotFound
	}
	return nil, store.ErrStale
}
