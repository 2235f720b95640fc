package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harentsoaR/dermacare-api/internal/apperr"
	"github.com/harentsoaR/dermacare-api/internal/logger"
	"github.com/harentsoaR/dermacare-api/internal/models"
	"github.com/harentsoaR/dermacare-api/internal/store"
)

// DoctorDirectory answers whether a doctor can be booked.
type DoctorDirectory interface {
	Exists(ctx context.Context, doctorID string) (bool, error)
}

// ReportOwnership answers whether a report belongs to a patient.
type ReportOwnership interface {
	IsOwnedBy(ctx context.Context, reportID, patientID string) (bool, error)
}

// --- DOCTORS ---

type DoctorService struct {
	doctors store.DoctorStore
}

func NewDoctorService(doctors store.DoctorStore) *DoctorService {
	return &DoctorService{doctors: doctors}
}

func (s *DoctorService) Exists(ctx context.Context, doctorID string) (bool, error) {
	_, err := s.doctors.DoctorByID(ctx, doctorID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

func (s *DoctorService) List(ctx context.Context) ([]models.Doctor, error) {
	docs, err := s.doctors.ListDoctors(ctx)
	if err != nil {
		return nil, apperr.External("failed to list doctors", err)
	}
	return docs, nil
}

func (s *DoctorService) Get(ctx context.Context, id string) (*models.Doctor, error) {
	d, err := s.doctors.DoctorByID(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, apperr.NotFound("doctor not found")
	case err != nil:
		return nil, apperr.External("failed to load doctor", err)
	}
	return d, nil
}

// Upsert writes a directory entry. Used by the operator import.
func (s *DoctorService) Upsert(ctx context.Context, d *models.Doctor) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.ID == "" || d.Name == "" {
		return apperr.Validation("doctor id and name are required")
	}
	if d.Specialization == "" {
		d.Specialization = defaultSpecialization
	}
	if err := s.doctors.UpsertDoctor(ctx, d); err != nil {
		return apperr.External("failed to save doctor", err)
	}
	return nil
}

// --- REPORTS ---

type ReportInput struct {
	Disease    string
	Confidence float64
	ImageURL   string
	BodyPart   string
	Symptoms   string
	Duration   string
}

type ReportService struct {
	reports store.ReportStore
	log     *logger.Logger
	now     func() time.Time
}

func NewReportService(reports store.ReportStore, log *logger.Logger) *ReportService {
	return &ReportService{reports: reports, log: log, now: time.Now}
}

func (s *ReportService) IsOwnedBy(ctx context.Context, reportID, patientID string) (bool, error) {
	r, err := s.reports.ReportByID(ctx, reportID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return r.PatientID == patientID, nil
}

func (s *ReportService) List(ctx context.Context, caller models.Identity) ([]models.Report, error) {
	if !caller.IsPatient() {
		return nil, apperr.Authorization("only patients have reports")
	}
	out, err := s.reports.ReportsByPatient(ctx, caller.UserID)
	if err != nil {
		return nil, apperr.External("failed to list reports", err)
	}
	return out, nil
}

// ByIDs loads the given reports keyed by id. Missing ids are left out.
// Used to annotate appointment lists, which both parties may see.
func (s *ReportService) ByIDs(ctx context.Context, ids []string) (map[string]models.Report, error) {
	out := make(map[string]models.Report, len(ids))
	for _, id := range ids {
		if _, seen := out[id]; seen || id == "" {
			continue
		}
		r, err := s.reports.ReportByID(ctx, id)
		switch {
		case errors.Is(err, store.ErrNotFound):
			continue
		case err != nil:
			return nil, apperr.External("failed to load reports", err)
		}
		out[id] = *r
	}
	return out, nil
}

// Create records a prediction result for the calling patient.
func (s *ReportService) Create(ctx context.Context, caller models.Identity, in ReportInput) (*models.Report, error) {
	if !caller.IsPatient() {
		return nil, apperr.Authorization("only patients can record reports")
	}
	disease := strings.TrimSpace(in.Disease)
	if disease == "" {
		return nil, apperr.Validation("disease is required")
	}
	if math.IsNaN(in.Confidence) || in.Confidence < 0 || in.Confidence > 100 {
		return nil, apperr.Validation("confidence must be between 0 and 100")
	}

	r := &models.Report{
		ID:         uuid.NewString(),
		PatientID:  caller.UserID,
		Disease:    disease,
		Confidence: in.Confidence,
		ImageURL:   strings.TrimSpace(in.ImageURL),
		BodyPart:   strings.TrimSpace(in.BodyPart),
		Symptoms:   strings.TrimSpace(in.Symptoms),
		Duration:   strings.TrimSpace(in.Duration),
		Timestamp:  s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.reports.CreateReport(ctx, r); err != nil {
		return nil, apperr.External("failed to save report", err)
	}
	s.log.Audit(caller.UserID, "create", "report", true, nil)
	return r, nil
}
