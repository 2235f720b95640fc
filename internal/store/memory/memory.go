// Package memory is an in-process store for tests and local runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/harentsoaR/dermacare-api/internal/models"
	"github.com/harentsoaR/dermacare-api/internal/store"
)

type Store struct {
	mu           sync.RWMutex
	users        map[string]models.User
	emails       map[string]string
	sessions     map[string]models.SessionRecord
	profiles     map[string]models.PatientProfile
	doctors      map[string]models.Doctor
	reports      map[string]models.Report
	appointments map[string]models.Appointment
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:        make(map[string]models.User),
		emails:       make(map[string]string),
		sessions:     make(map[string]models.SessionRecord),
		profiles:     make(map[string]models.PatientProfile),
		doctors:      make(map[string]models.Doctor),
		reports:      make(map[string]models.Report),
		appointments: make(map[string]models.Appointment),
	}
}

func (s *Store) Ping(context.Context) error  { return nil }
func (s *Store) Close(context.Context) error { return nil }

// users

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := s.emails[key]; ok {
		return store.ErrDuplicate
	}
	if _, ok := s.users[u.ID]; ok {
		return store.ErrDuplicate
	}
	s.users[u.ID] = *u
	s.emails[key] = u.ID
	return nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return nil, store.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) UserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

// sessions

func (s *Store) PutSession(_ context.Context, rec *models.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[rec.UserID] = *rec
	return nil
}

func (s *Store) RotateSession(_ context.Context, prevRefreshHash string, next *models.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.sessions[next.UserID]
	if !ok || cur.RefreshHash != prevRefreshHash {
		return store.ErrStale
	}
	s.sessions[next.UserID] = *next
	return nil
}

func (s *Store) SessionByUser(_ context.Context, userID string) (*models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (s *Store) SessionByRefreshHash(_ context.Context, hash string) (*models.SessionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.sessions {
		if rec.RefreshHash == hash {
			r := rec
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) DeleteSession(_ context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.sessions[userID]; ok && rec.SessionID == sessionID {
		delete(s.sessions, userID)
	}
	return nil
}

// profiles

func (s *Store) UpsertProfile(_ context.Context, p *models.PatientProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	if p.Age != nil {
		age := *p.Age
		cp.Age = &age
	}
	s.profiles[p.UserID] = cp
	return nil
}

func (s *Store) ProfileByUser(_ context.Context, userID string) (*models.PatientProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

// doctors

func (s *Store) UpsertDoctor(_ context.Context, d *models.Doctor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doctors[d.ID] = *d
	return nil
}

func (s *Store) DoctorByID(_ context.Context, id string) (*models.Doctor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.doctors[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &d, nil
}

func (s *Store) ListDoctors(context.Context) ([]models.Doctor, error) {
	s.mu.RLock()
	out := make([]models.Doctor, 0, len(s.doctors))
	for _, d := range s.doctors {
		out = append(out, d)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// reports

func (s *Store) CreateReport(_ context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[r.ID]; ok {
		return store.ErrDuplicate
	}
	s.reports[r.ID] = *r
	return nil
}

func (s *Store) ReportByID(_ context.Context, id string) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (s *Store) ReportsByPatient(_ context.Context, patientID string) ([]models.Report, error) {
	s.mu.RLock()
	out := []models.Report{}
	for _, r := range s.reports {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// appointments

func (s *Store) CreateAppointment(_ context.Context, a *models.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.appointments[a.ID]; ok {
		return store.ErrDuplicate
	}
	s.appointments[a.ID] = *a
	return nil
}

func (s *Store) AppointmentByID(_ context.Context, id string) (*models.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *Store) AppointmentsForUser(_ context.Context, userID string) ([]models.Appointment, error) {
	s.mu.RLock()
	out := []models.Appointment{}
	for _, a := range s.appointments {
		if a.PatientID == userID || a.DoctorID == userID {
			out = append(out, a)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) CompareAndSwapStatus(_ context.Context, id string, from models.AppointmentStatus, version int64, t models.Transition) (*models.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.appointments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if cur.Status != from || cur.Version != version {
		return nil, store.ErrStale
	}
	next := cur.Apply(t)
	s.appointments[id] = next
	return &next, nil
}
