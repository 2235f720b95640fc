// Package postgres implements store.Store on PostgreSQL using pgx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harentsoaR/dermacare-api/internal/models"
	"github.com/harentsoaR/dermacare-api/internal/store"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Connect opens a pool and applies the schema.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.ErrDuplicate
	}
	return err
}

// users

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, password_hash, role, name, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Email, u.PasswordHash, u.Role, u.Name, u.CreatedAt,
	)
	return mapErr(err)
}

const userCols = `id, email, password_hash, role, name, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Name, &u.CreatedAt); err != nil {
		return nil, mapErr(err)
	}
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = $1`, email))
}

func (s *Store) UserByID(ctx context.Context, id string) (*models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

// sessions

func (s *Store) PutSession(ctx context.Context, rec *models.SessionRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (user_id, session_id, role, refresh_hash, issued_at, expires_at, refresh_expires_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (user_id) DO UPDATE SET
		   session_id = EXCLUDED.session_id,
		   role = EXCLUDED.role,
		   refresh_hash = EXCLUDED.refresh_hash,
		   issued_at = EXCLUDED.issued_at,
		   expires_at = EXCLUDED.expires_at,
		   refresh_expires_at = EXCLUDED.refresh_expires_at`,
		rec.UserID, rec.SessionID, rec.Role, rec.RefreshHash, rec.IssuedAt, rec.ExpiresAt, rec.RefreshExpiresAt,
	)
	return mapErr(err)
}

func (s *Store) RotateSession(ctx context.Context, prevRefreshHash string, next *models.SessionRecord) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sessions SET
		   session_id = $2, role = $3, refresh_hash = $4,
		   issued_at = $5, expires_at = $6, refresh_expires_at = $7
		 WHERE user_id = $1 AND refresh_hash = $8`,
		next.UserID, next.SessionID, next.Role, next.RefreshHash, next.IssuedAt, next.ExpiresAt, next.RefreshExpiresAt,
		prevRefreshHash,
	)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrStale
	}
	return nil
}

const sessionCols = `user_id, session_id, role, refresh_hash, issued_at, expires_at, refresh_expires_at`

func scanSession(row pgx.Row) (*models.SessionRecord, error) {
	r := &models.SessionRecord{}
	if err := row.Scan(&r.UserID, &r.SessionID, &r.Role, &r.RefreshHash, &r.IssuedAt, &r.ExpiresAt, &r.RefreshExpiresAt); err != nil {
		return nil, mapErr(err)
	}
	return r, nil
}

func (s *Store) SessionByUser(ctx context.Context, userID string) (*models.SessionRecord, error) {
	return scanSession(s.pool.QueryRow(ctx, `SELECT `+sessionCols+` FROM sessions WHERE user_id = $1`, userID))
}

func (s *Store) SessionByRefreshHash(ctx context.Context, hash string) (*models.SessionRecord, error) {
	return scanSession(s.pool.QueryRow(ctx, `SELECT `+sessionCols+` FROM sessions WHERE refresh_hash = $1`, hash))
}

func (s *Store) DeleteSession(ctx context.Context, userID, sessionID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1 AND session_id = $2`, userID, sessionID)
	return err
}

// profiles

func (s *Store) UpsertProfile(ctx context.Context, p *models.PatientProfile) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO patient_profiles (user_id, name, age, gender, contact_email, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 ON CONFLICT (user_id) DO UPDATE SET
		   name = EXCLUDED.name,
		   age = EXCLUDED.age,
		   gender = EXCLUDED.gender,
		   contact_email = EXCLUDED.contact_email,
		   updated_at = EXCLUDED.updated_at`,
		p.UserID, p.Name, p.Age, p.Gender, p.ContactEmail, p.UpdatedAt,
	)
	return mapErr(err)
}

func (s *Store) ProfileByUser(ctx context.Context, userID string) (*models.PatientProfile, error) {
	p := &models.PatientProfile{}
	err := s.pool.QueryRow(ctx,
		`SELECT user_id, name, age, gender, contact_email, updated_at
		 FROM patient_profiles WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.Name, &p.Age, &p.Gender, &p.ContactEmail, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

// doctors

func (s *Store) UpsertDoctor(ctx context.Context, d *models.Doctor) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO doctors (id, name, specialization, education, hospital, location, is_available, rating)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (id) DO UPDATE SET
		   name = EXCLUDED.name,
		   specialization = EXCLUDED.specialization,
		   education = EXCLUDED.education,
		   hospital = EXCLUDED.hospital,
		   location = EXCLUDED.location,
		   is_available = EXCLUDED.is_available,
		   rating = EXCLUDED.rating`,
		d.ID, d.Name, d.Specialization, d.Education, d.Hospital, d.Location, d.IsAvailable, d.Rating,
	)
	return mapErr(err)
}

const doctorCols = `id, name, specialization, education, hospital, location, is_available, rating`

func scanDoctor(row pgx.Row) (*models.Doctor, error) {
	d := &models.Doctor{}
	if err := row.Scan(&d.ID, &d.Name, &d.Specialization, &d.Education, &d.Hospital, &d.Location, &d.IsAvailable, &d.Rating); err != nil {
		return nil, mapErr(err)
	}
	return d, nil
}

func (s *Store) DoctorByID(ctx context.Context, id string) (*models.Doctor, error) {
	return scanDoctor(s.pool.QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
}

func (s *Store) ListDoctors(ctx context.Context) ([]models.Doctor, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+doctorCols+` FROM doctors ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Doctor{}
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// reports

func (s *Store) CreateReport(ctx context.Context, r *models.Report) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO reports (id, patient_id, disease, confidence, image_url, body_part, symptoms, duration, recorded_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		r.ID, r.PatientID, r.Disease, r.Confidence, r.ImageURL, r.BodyPart, r.Symptoms, r.Duration, r.Timestamp,
	)
	return mapErr(err)
}

const reportCols = `id, patient_id, disease, confidence, image_url, body_part, symptoms, duration, recorded_at`

func scanReport(row pgx.Row) (*models.Report, error) {
	r := &models.Report{}
	if err := row.Scan(&r.ID, &r.PatientID, &r.Disease, &r.Confidence, &r.ImageURL, &r.BodyPart, &r.Symptoms, &r.Duration, &r.Timestamp); err != nil {
		return nil, mapErr(err)
	}
	return r, nil
}

func (s *Store) ReportByID(ctx context.Context, id string) (*models.Report, error) {
	return scanReport(s.pool.QueryRow(ctx, `SELECT `+reportCols+` FROM reports WHERE id = $1`, id))
}

func (s *Store) ReportsByPatient(ctx context.Context, patientID string) ([]models.Report, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+reportCols+` FROM reports WHERE patient_id = $1 ORDER BY recorded_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
