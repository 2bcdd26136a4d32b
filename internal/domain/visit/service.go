package visit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinic/clinic/internal/domain/registry"
	"github.com/clinic/clinic/internal/domain/scheduling"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/metrics"
	"github.com/clinic/clinic/internal/platform/validation"
)

var tracer = otel.Tracer("clinic/visit")

type PatientLookup interface {
	GetPatient(ctx context.Context, id string) (*registry.Patient, error)
}

type DoctorLookup interface {
	GetDoctor(ctx context.Context, id string) (*registry.Doctor, error)
}

// Appointments is the part of the scheduler a visit drives.
type Appointments interface {
	GetAppointment(ctx context.Context, id string) (*scheduling.Appointment, error)
	CheckIn(ctx context.Context, id string) (*scheduling.Appointment, error)
	Complete(ctx context.Context, id string) (*scheduling.Appointment, error)
	GetSlot(ctx context.Context, id string) (*scheduling.Slot, error)
}

type Service struct {
	repo         Repository
	tx           db.Transactor
	patients     PatientLookup
	doctors      DoctorLookup
	appointments Appointments
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	loc          *time.Location
	now          func() time.Time
}

func NewService(repo Repository, tx db.Transactor, patients PatientLookup, doctors DoctorLookup, appointments Appointments) *Service {
	return &Service{
		repo:         repo,
		tx:           tx,
		patients:     patients,
		doctors:      doctors,
		appointments: appointments,
		logger:       zerolog.Nop(),
		loc:          time.UTC,
		now:          time.Now,
	}
}

func (s *Service) SetMetrics(m *metrics.Metrics)  { s.metrics = m }
func (s *Service) SetLogger(l zerolog.Logger)     { s.logger = l }
func (s *Service) SetLocation(loc *time.Location) { s.loc = loc }
func (s *Service) SetClock(now func() time.Time)  { s.now = now }

type CreateVisitRequest struct {
	PatientID            string `json:"patient_id" validate:"required"`
	DoctorID             string `json:"doctor_id" validate:"required"`
	VisitType            string `json:"visit_type" validate:"required,oneof=BOOKED WALK_IN"`
	VisitStatus          string `json:"visit_status" validate:"omitempty,oneof=CHECKED_IN DOING COMPLETED"`
	AppointmentID        string `json:"appointment_id" validate:"required_if=VisitType BOOKED"`
	WorkScheduleDetailID string `json:"work_schedule_detail_id" validate:"required_if=VisitType WALK_IN"`
}

// CreateVisit opens a new visit. Every call inserts a new row. A BOOKED
// visit checks its appointment in within the same transaction.
func (s *Service) CreateVisit(ctx context.Context, req CreateVisitRequest) (*Visit, error) {
	ctx, span := tracer.Start(ctx, "visit.CreateVisit", trace.WithAttributes(
		attribute.String("visit.type", req.VisitType),
	))
	defer span.End()

	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.VisitStatus == "" {
		req.VisitStatus = StatusCheckedIn
	}

	var v *Visit
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetPatient(ctx, req.PatientID); err != nil {
			return err
		}
		if _, err := s.doctors.GetDoctor(ctx, req.DoctorID); err != nil {
			return err
		}

		now := s.now()
		v = &Visit{
			PatientID:   req.PatientID,
			DoctorID:    req.DoctorID,
			VisitType:   req.VisitType,
			VisitStatus: req.VisitStatus,
			VisitDate:   now.UTC(),
			CreatedAt:   now.UTC(),
		}

		switch req.VisitType {
		case TypeBooked:
			appt, err := s.appointments.GetAppointment(ctx, req.AppointmentID)
			if err != nil {
				return err
			}
			if appt.IsTerminal() {
				return apperr.Validation("appointment is %s", appt.Status).WithDetail("field", "appointment_id")
			}
			if appt.PatientID != req.PatientID {
				return apperr.Validation("appointment belongs to another patient").WithDetail("field", "appointment_id")
			}
			v.AppointmentID = &appt.ID
			v.WorkScheduleDetailID = &appt.WorkScheduleDetailID
		case TypeWalkIn:
			slot, err := s.appointments.GetSlot(ctx, req.WorkScheduleDetailID)
			if err != nil {
				return err
			}
			v.WorkScheduleDetailID = &slot.ID
		}

		if err := s.repo.Create(ctx, v); err != nil {
			return err
		}
		if v.AppointmentID != nil {
			if _, err := s.appointments.CheckIn(ctx, *v.AppointmentID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveVisit(v.VisitType)
	s.logger.Info().Str("visit_id", v.ID).Str("visit_type", v.VisitType).Msg("visit created")
	return v, nil
}

func (s *Service) GetVisit(ctx context.Context, id string) (*Visit, error) {
	if validation.Blank(id) {
		return nil, apperr.Required("visit_id")
	}
	return s.repo.GetByID(ctx, id)
}

// UpdateStatus advances a visit. Statuses only move forward; completing a
// BOOKED visit completes its appointment.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) (*Visit, error) {
	ctx, span := tracer.Start(ctx, "visit.UpdateStatus")
	defer span.End()

	next, ok := statusRank[status]
	if !ok {
		return nil, apperr.Validation("visit_status must be one of [CHECKED_IN DOING COMPLETED]").
			WithDetail("field", "visit_status")
	}

	var v *Visit
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		v, err = s.GetVisit(ctx, id)
		if err != nil {
			return err
		}
		if next <= statusRank[v.VisitStatus] {
			return apperr.Validation("cannot move visit from %s to %s", v.VisitStatus, status).
				WithDetail("field", "visit_status")
		}
		ok, err := s.repo.TransitionStatus(ctx, v.ID, v.VisitStatus, status)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.Validation("visit status changed concurrently, retry")
		}
		v.VisitStatus = status
		v.UpdatedAt = s.now().UTC()

		if status == StatusCompleted && v.AppointmentID != nil {
			if _, err := s.appointments.Complete(ctx, *v.AppointmentID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListToday returns the visits dated on the current clinic day.
func (s *Service) ListToday(ctx context.Context, doctorID string) ([]*Visit, error) {
	start := ClinicDay(s.now(), s.loc)
	return s.repo.ListBetween(ctx, start, start.AddDate(0, 0, 1), doctorID)
}
