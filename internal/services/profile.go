package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/harentsoaR/dermacare-api/internal/apperr"
	"github.com/harentsoaR/dermacare-api/internal/logger"
	"github.com/harentsoaR/dermacare-api/internal/models"
	"github.com/harentsoaR/dermacare-api/internal/store"
)

const maxAge = 150

// ProfileChecker is the booking precondition consulted by the engine.
type ProfileChecker interface {
	EnsureComplete(ctx context.Context, patientID string) (*models.PatientProfile, error)
}

// ProfileGate vetoes bookings for patients without a complete profile.
type ProfileGate struct {
	profiles store.ProfileStore
}

func NewProfileGate(profiles store.ProfileStore) *ProfileGate {
	return &ProfileGate{profiles: profiles}
}

func (g *ProfileGate) EnsureComplete(ctx context.Context, patientID string) (*models.PatientProfile, error) {
	p, err := g.profiles.ProfileByUser(ctx, patientID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.ProfileIncomplete("complete your profile before booking an appointment")
	case err != nil:
		return nil, apperr.External("failed to load patient profile", err)
	}
	if !p.Complete() {
		return nil, apperr.ProfileIncomplete("profile name is required before booking an appointment")
	}
	return p, nil
}

type ProfileInput struct {
	Name         string
	Age          *int
	Gender       string
	ContactEmail string
}

// ProfileService reads and writes the caller's own patient profile.
type ProfileService struct {
	profiles store.ProfileStore
	users    store.UserStore
	log      *logger.Logger
	now      func() time.Time
}

func NewProfileService(profiles store.ProfileStore, users store.UserStore, log *logger.Logger) *ProfileService {
	return &ProfileService{profiles: profiles, users: users, log: log, now: time.Now}
}

func (s *ProfileService) Get(ctx context.Context, caller models.Identity) (*models.PatientProfile, error) {
	if !caller.IsPatient() {
		return nil, apperr.Authorization("only patients have a profile")
	}
	p, err := s.profiles.ProfileByUser(ctx, caller.UserID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.NotFound("profile not found")
	case err != nil:
		return nil, apperr.External("failed to load profile", err)
	}
	return p, nil
}

func (s *ProfileService) Upsert(ctx context.Context, caller models.Identity, in ProfileInput) (*models.PatientProfile, error) {
	if !caller.IsPatient() {
		return nil, apperr.Authorization("only patients have a profile")
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if in.Age != nil && (*in.Age < 0 || *in.Age > maxAge) {
		return nil, apperr.Validation("age must be between 0 and 150")
	}
	gender := strings.ToLower(strings.TrimSpace(in.Gender))
	switch gender {
	case "", "male", "female", "other":
	default:
		return nil, apperr.Validation("gender must be male, female or other")
	}

	contact := in.ContactEmail
	if strings.TrimSpace(contact) == "" {
		u, err := s.users.UserByID(ctx, caller.UserID)
		if err != nil {
			return nil, apperr.External("failed to look up account email", err)
		}
		contact = u.Email
	}
	contact, err := normalizeEmail(contact)
	if err != nil {
		return nil, apperr.Validation("contact email is not a valid address")
	}

	p := &models.PatientProfile{
		UserID:       caller.UserID,
		Name:         name,
		Age:          in.Age,
		Gender:       gender,
		ContactEmail: contact,
		UpdatedAt:    s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.profiles.UpsertProfile(ctx, p); err != nil {
		return nil, apperr.External("failed to save profile", err)
	}

	s.log.Audit(caller.UserID, "upsert", "patient_profile", true, nil)
	return p, nil
}
