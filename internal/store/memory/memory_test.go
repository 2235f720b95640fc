package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harentsoaR/dermacare-api/internal/models"
	"github.com/harentsoaR/dermacare-api/internal/store"
)

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "u1", Email: "jane@example.com"}))
	err := s.CreateUser(ctx, &models.User{ID: "u2", Email: "JANE@example.com"})
	assert.ErrorIs(t, err, store.ErrDuplicate)

	u, err := s.UserByEmail(ctx, "Jane@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
}

func TestRotateSessionRequiresCurrentHash(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.RotateSession(ctx, "h0", &models.SessionRecord{UserID: "u1", SessionID: "s1", RefreshHash: "h1"})
	assert.ErrorIs(t, err, store.ErrStale)

	require.NoError(t, s.PutSession(ctx, &models.SessionRecord{UserID: "u1", SessionID: "s1", RefreshHash: "h1"}))
	require.NoError(t, s.RotateSession(ctx, "h1", &models.SessionRecord{UserID: "u1", SessionID: "s2", RefreshHash: "h2"}))

	err = s.RotateSession(ctx, "h1", &models.SessionRecord{UserID: "u1", SessionID: "s3", RefreshHash: "h3"})
	assert.ErrorIs(t, err, store.ErrStale)

	rec, err := s.SessionByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "s2", rec.SessionID)
}

func TestDeleteSessionOnlyWhenCurrent(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.PutSession(ctx, &models.SessionRecord{UserID: "u1", SessionID: "new", RefreshHash: "h"}))

	require.NoError(t, s.DeleteSession(ctx, "u1", "old"))
	_, err := s.SessionByUser(ctx, "u1")
	require.NoError(t, err, "stale delete must not remove the current session")

	rec, err := s.SessionByRefreshHash(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, "new", rec.SessionID)

	require.NoError(t, s.DeleteSession(ctx, "u1", "new"))
	_, err = s.SessionByUser(ctx, "u1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCompareAndSwapStatus(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.CreateAppointment(ctx, &models.Appointment{
		ID: "a1", PatientID: "p1", DoctorID: "d1", Status: models.StatusPending, Version: 1, CreatedAt: now, UpdatedAt: now,
	}))

	got, err := s.CompareAndSwapStatus(ctx, "a1", models.StatusPending, 1, models.Transition{To: models.StatusConfirmed, UpdatedAt: now.Add(time.Millisecond)})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	assert.Equal(t, int64(2), got.Version)

	_, err = s.CompareAndSwapStatus(ctx, "a1", models.StatusPending, 1, models.Transition{To: models.StatusCancelled})
	assert.ErrorIs(t, err, store.ErrStale)

	_, err = s.CompareAndSwapStatus(ctx, "missing", models.StatusPending, 1, models.Transition{To: models.StatusCancelled})
	assert.ErrorIs(t, err, store.ErrNotFound)

	cur, err := s.AppointmentByID(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, cur.Status)
}

func TestAppointmentsForUser(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Now()

	for i, a := range []models.Appointment{
		{ID: "a1", PatientID: "p1", DoctorID: "d1"},
		{ID: "a2", PatientID: "p2", DoctorID: "d1"},
		{ID: "a3", PatientID: "p1", DoctorID: "d2"},
	} {
		a.CreatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, s.CreateAppointment(ctx, &a))
	}

	p1, _ := s.AppointmentsForUser(ctx, "p1")
	require.Len(t, p1, 2)
	assert.Equal(t, "a3", p1[0].ID, "newest first")

	d1, _ := s.AppointmentsForUser(ctx, "d1")
	assert.Len(t, d1, 2)

	none, _ := s.AppointmentsForUser(ctx, "nobody")
	assert.NotNil(t, none)
	assert.Empty(t, none)
}
