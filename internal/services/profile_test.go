package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harentsoaR/dermacare-api/internal/apperr"
	"github.com/harentsoaR/dermacare-api/internal/logger"
	"github.com/harentsoaR/dermacare-api/internal/models"
	"github.com/harentsoaR/dermacare-api/internal/store/memory"
)

func intPtr(v int) *int { return &v }

type brokenProfiles struct{ *memory.Store }

func (brokenProfiles) ProfileByUser(context.Context, string) (*models.PatientProfile, error) {
	return nil, errors.New("connection reset")
}

func TestProfileGate(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	gate := NewProfileGate(st)

	_, err := gate.EnsureComplete(ctx, "p1")
	assert.True(t, apperr.Is(err, apperr.KindProfileIncomplete))

	require.NoError(t, st.UpsertProfile(ctx, &models.PatientProfile{UserID: "p1", Name: ""}))
	_, err = gate.EnsureComplete(ctx, "p1")
	assert.True(t, apperr.Is(err, apperr.KindProfileIncomplete))

	require.NoError(t, st.UpsertProfile(ctx, &models.PatientProfile{UserID: "p1", Name: "Jane"}))
	p, err := gate.EnsureComplete(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Jane", p.Name)

	_, err = NewProfileGate(brokenProfiles{st}).EnsureComplete(ctx, "p1")
	assert.True(t, apperr.Is(err, apperr.KindExternal))
}

func TestProfileServiceUpsert(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	require.NoError(t, st.CreateUser(ctx, &models.User{ID: "p1", Email: "jane@example.com", Role: models.RolePatient}))
	svc := NewProfileService(st, st, logger.Discard())

	_, err := svc.Get(ctx, patient1)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	p, err := svc.Upsert(ctx, patient1, ProfileInput{Name: " Jane ", Age: intPtr(30), Gender: "Female"})
	require.NoError(t, err)
	assert.Equal(t, "Jane", p.Name)
	assert.Equal(t, "female", p.Gender)
	assert.Equal(t, "jane@example.com", p.ContactEmail)

	got, err := svc.Get(ctx, patient1)
	require.NoError(t, err)
	assert.Equal(t, 30, *got.Age)

	p, err = svc.Upsert(ctx, patient1, ProfileInput{Name: "Jane D", ContactEmail: "jd@example.org"})
	require.NoError(t, err)
	assert.Equal(t, "jd@example.org", p.ContactEmail)
	assert.Nil(t, p.Age)
}

func TestProfileServiceRejects(t *testing.T) {
	st := memory.New()
	svc := NewProfileService(st, st, logger.Discard())
	ctx := context.Background()

	tests := []struct {
		name   string
		caller models.Identity
		in     ProfileInput
		kind   apperr.Kind
	}{
		{"doctor", doctor1, ProfileInput{Name: "x"}, apperr.KindAuthorization},
		{"blank name", patient1, ProfileInput{Name: "  "}, apperr.KindValidation},
		{"negative age", patient1, ProfileInput{Name: "Jane", Age: intPtr(-1)}, apperr.KindValidation},
		{"age too high", patient1, ProfileInput{Name: "Jane", Age: intPtr(151)}, apperr.KindValidation},
		{"unknown gender", patient1, ProfileInput{Name: "Jane", Gender: "robot"}, apperr.KindValidation},
		{"bad contact email", patient1, ProfileInput{Name: "Jane", ContactEmail: "nope"}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upsert(ctx, tt.caller, tt.in)
			assert.Equal(t, tt.kind, apperr.KindOf(err), "got %v", err)
		})
	}
}

func TestReportService(t *testing.T) {
	st := memory.New()
	ctx := context.Background()
	svc := NewReportService(st, logger.Discard())

	r, err := svc.Create(ctx, patient1, ReportInput{Disease: "Melanoma", Confidence: 87.5})
	require.NoError(t, err)

	owned, err := svc.IsOwnedBy(ctx, r.ID, "p1")
	require.NoError(t, err)
	assert.True(t, owned)
	owned, _ = svc.IsOwnedBy(ctx, r.ID, "p2")
	assert.False(t, owned)
	owned, _ = svc.IsOwnedBy(ctx, "missing", "p1")
	assert.False(t, owned)

	_, err = svc.Create(ctx, patient1, ReportInput{Disease: "Eczema", Confidence: 120})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	_, err = svc.Create(ctx, doctor1, ReportInput{Disease: "Eczema", Confidence: 50})
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	list, err := svc.List(ctx, patient1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	byID, err := svc.ByIDs(ctx, []string{r.ID, "missing", r.ID, ""})
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "Melanoma", byID[r.ID].Disease)
}

func TestNotificationServicePostsEvent(t *testing.T) {
	got := make(chan AppointmentEvent, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev AppointmentEvent
		_ = json.NewDecoder(r.Body).Decode(&ev)
		got <- ev
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewNotificationService(srv.URL, logger.Discard(), nil)
	n.AppointmentChanged(models.Appointment{ID: "a1", Status: models.StatusCancelled, DeclineReason: "fully booked"}, "p1")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n.Wait(ctx)

	select {
	case ev := <-got:
		assert.Equal(t, "a1", ev.AppointmentID)
		assert.Equal(t, "p1", ev.RecipientID)
		assert.Contains(t, ev.Message, "fully booked")
	default:
		t.Fatal("webhook was not called")
	}
}

func TestNotificationServiceWithoutWebhook(t *testing.T) {
	n := NewNotificationService("", logger.Discard(), nil)
	assert.NotPanics(t, func() {
		n.AppointmentChanged(models.Appointment{ID: "a1"}, "p1")
		n.Wait(context.Background())
	})
}
