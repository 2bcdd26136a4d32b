package ticket

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinic/clinic/internal/domain/registry"
	"github.com/clinic/clinic/internal/domain/visit"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/metrics"
	"github.com/clinic/clinic/internal/platform/validation"
)

var tracer = otel.Tracer("clinic/ticket")

type VisitLookup interface {
	GetVisit(ctx context.Context, id string) (*visit.Visit, error)
}

type PatientLookup interface {
	GetPatient(ctx context.Context, id string) (*registry.Patient, error)
}

type DoctorLookup interface {
	GetDoctor(ctx context.Context, id string) (*registry.Doctor, error)
}

const maxBarcodeAttempts = 3

type Service struct {
	repo     Repository
	visits   VisitLookup
	patients PatientLookup
	doctors  DoctorLookup
	barcodes BarcodeAllocator
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo Repository, visits VisitLookup, patients PatientLookup, doctors DoctorLookup, barcodes BarcodeAllocator) *Service {
	if barcodes == nil {
		barcodes = RandomBarcodes{}
	}
	return &Service{
		repo:     repo,
		visits:   visits,
		patients: patients,
		doctors:  doctors,
		barcodes: barcodes,
		logger:   zerolog.Nop(),
		loc:      time.UTC,
		now:      time.Now,
	}
}

func (s *Service) SetMetrics(m *metrics.Metrics)  { s.metrics = m }
func (s *Service) SetLogger(l zerolog.Logger)     { s.logger = l }
func (s *Service) SetLocation(loc *time.Location) { s.loc = loc }
func (s *Service) SetClock(now func() time.Time)  { s.now = now }

// CreateTicket returns the visit's medical ticket, issuing it on the first
// call. Repeated and concurrent calls for one visit all observe the same
// ticket. The boolean reports whether this call created it.
func (s *Service) CreateTicket(ctx context.Context, visitID string) (*MedicalTicket, bool, error) {
	ctx, span := tracer.Start(ctx, "ticket.CreateTicket", trace.WithAttributes(
		attribute.String("visit.id", visitID),
	))
	defer span.End()

	v, err := s.visits.GetVisit(ctx, visitID)
	if err != nil {
		return nil, false, err
	}
	if validation.Blank(v.PatientID) {
		return nil, false, apperr.Validation("visit has no patient").WithDetail("field", "patient_id")
	}
	if validation.Blank(v.DoctorID) {
		return nil, false, apperr.Validation("visit has no doctor").WithDetail("field", "doctor_id")
	}
	if _, err := s.patients.GetPatient(ctx, v.PatientID); err != nil {
		return nil, false, err
	}
	doc, err := s.doctors.GetDoctor(ctx, v.DoctorID)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.repo.GetByVisitID(ctx, v.ID)
	if err == nil {
		s.metrics.ObserveTicket(false)
		return existing, false, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, false, err
	}

	now := s.now()
	if v.VisitStatus != visit.StatusCheckedIn {
		return nil, false, apperr.Validation("visit must be CHECKED_IN to issue a medical ticket, current status is %s", v.VisitStatus)
	}
	if !visit.SameClinicDay(v.VisitDate, now, s.loc) {
		return nil, false, apperr.Validation("visit is not dated on the current clinic day")
	}

	day := visit.ClinicDay(now, s.loc)
	for attempt := 0; attempt < maxBarcodeAttempts; attempt++ {
		barcode, err := s.barcodes.Next(ctx, day)
		if err != nil {
			return nil, false, apperr.Internal("could not allocate barcode", err)
		}
		t := &MedicalTicket{
			ID:          uuid.NewString(),
			VisitID:     v.ID,
			Barcode:     barcode,
			ClinicalFee: doc.ConsultationFee,
			CreatedAt:   now.UTC(),
		}
		created, err := s.repo.InsertIfAbsent(ctx, t)
		if errors.Is(err, ErrBarcodeTaken) {
			s.logger.Warn().Str("barcode", barcode).Msg("barcode collision, reallocating")
			continue
		}
		if err != nil {
			return nil, false, err
		}
		if !created {
			// Lost the race to a concurrent call; return the winner's ticket.
			winner, err := s.repo.GetByVisitID(ctx, v.ID)
			if err != nil {
				return nil, false, err
			}
			s.metrics.ObserveTicket(false)
			return winner, false, nil
		}
		s.metrics.ObserveTicket(true)
		s.logger.Info().Str("ticket_id", t.ID).Str("visit_id", v.ID).Str("barcode", t.Barcode).Msg("medical ticket issued")
		return t, true, nil
	}
	return nil, false, apperr.Internal("could not allocate a unique barcode", ErrBarcodeTaken)
}

func (s *Service) GetTicket(ctx context.Context, id string) (*MedicalTicket, error) {
	if validation.Blank(id) {
		return nil, apperr.Required("medical_ticket_id")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByVisit(ctx context.Context, visitID string) (*MedicalTicket, error) {
	if validation.Blank(visitID) {
		return nil, apperr.Required("visit_id")
	}
	return s.repo.GetByVisitID(ctx, visitID)
}
