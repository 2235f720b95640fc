package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harentsoaR/dermacare-api/internal/logger"
	"github.com/harentsoaR/dermacare-api/internal/models"
	"github.com/harentsoaR/dermacare-api/internal/store/memory"
)

var (
	patient1 = models.Identity{UserID: "p1", Role: models.RolePatient}
	patient2 = models.Identity{UserID: "p2", Role: models.RolePatient}
	doctor1  = models.Identity{UserID: "d1", Role: models.RoleDoctor}
	doctor2  = models.Identity{UserID: "d2", Role: models.RoleDoctor}
)

type recordingNotifier struct {
	mu         sync.Mutex
	recipients []string
	statuses   []models.AppointmentStatus
}

func (n *recordingNotifier) AppointmentChanged(apt models.Appointment, recipientID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recipients = append(n.recipients, recipientID)
	n.statuses = append(n.statuses, apt.Status)
}

type stubDirectory struct {
	exists bool
	err    error
}

func (s stubDirectory) Exists(context.Context, string) (bool, error) { return s.exists, s.err }

type stubReports struct {
	owned bool
	err   error
}

func (s stubReports) IsOwnedBy(context.Context, string, string) (bool, error) { return s.owned, s.err }

type fixture struct {
	store  *memory.Store
	engine *AppointmentEngine
	notes  *recordingNotifier
	now    time.Time
}

// newFixture seeds doctors d1 and d2, patient p1 with a complete profile and
// report r1, and patient p2 with report r2 but no profile.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	log := logger.Discard()

	f := &fixture{
		store: st,
		notes: &recordingNotifier{},
		now:   time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	require.NoError(t, st.UpsertDoctor(ctx, &models.Doctor{ID: "d1", Name: "Dr. One", IsAvailable: true}))
	require.NoError(t, st.UpsertDoctor(ctx, &models.Doctor{ID: "d2", Name: "Dr. Two", IsAvailable: true}))
	require.NoError(t, st.UpsertProfile(ctx, &models.PatientProfile{UserID: "p1", Name: "Jane"}))
	require.NoError(t, st.CreateReport(ctx, &models.Report{ID: "r1", PatientID: "p1", Disease: "Eczema"}))
	require.NoError(t, st.CreateReport(ctx, &models.Report{ID: "r2", PatientID: "p2", Disease: "Psoriasis"}))

	f.engine = NewAppointmentEngine(st, NewProfileGate(st), NewDoctorService(st), NewReportService(st, log), f.notes, log, nil)
	f.engine.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) request(t *testing.T) *models.Appointment {
	t.Helper()
	apt, err := f.engine.RequestAppointment(context.Background(), patient1, RequestInput{DoctorID: "d1", ReportID: "r1"})
	require.NoError(t, err)
	return apt
}

// seed puts an appointment directly into the store in the given status.
func (f *fixture) seed(t *testing.T, id string, status models.AppointmentStatus) *models.Appointment {
	t.Helper()
	a := &models.Appointment{
		ID: id, PatientID: "p1", DoctorID: "d1", ReportID: "r1",
		Status: status, Version: 1, CreatedAt: f.now, UpdatedAt: f.now,
	}
	require.NoError(t, f.store.CreateAppointment(context.Background(), a))
	return a
}
