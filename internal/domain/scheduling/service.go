package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinic/clinic/internal/domain/registry"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/metrics"
	"github.com/clinic/clinic/internal/platform/validation"
)

var tracer = otel.Tracer("clinic/scheduling")

type PatientDirectory interface {
	GetPatient(ctx context.Context, id string) (*registry.Patient, error)
	RegisterGuest(ctx context.Context, req registry.GuestRequest) (*registry.Patient, error)
}

type DoctorDirectory interface {
	GetDoctor(ctx context.Context, id string) (*registry.Doctor, error)
}

type Service struct {
	repo     Repository
	tx       db.Transactor
	patients PatientDirectory
	doctors  DoctorDirectory
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewService(repo Repository, tx db.Transactor, patients PatientDirectory, doctors DoctorDirectory) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		patients: patients,
		doctors:  doctors,
		logger:   zerolog.Nop(),
		loc:      time.UTC,
		now:      time.Now,
	}
}

func (s *Service) SetMetrics(m *metrics.Metrics)  { s.metrics = m }
func (s *Service) SetLogger(l zerolog.Logger)     { s.logger = l }
func (s *Service) SetLocation(loc *time.Location) { s.loc = loc }
func (s *Service) SetClock(now func() time.Time)  { s.now = now }

// -- Work schedules --

type GenerateScheduleRequest struct {
	DoctorID    string `json:"doctor_id" validate:"required"`
	WorkDate    string `json:"work_date" validate:"required"`
	StartTime   string `json:"start_time" validate:"required"`
	EndTime     string `json:"end_time" validate:"required"`
	SlotMinutes int    `json:"slot_minutes" validate:"omitempty,min=5,max=240"`
}

const defaultSlotMinutes = 30

// GenerateSchedule creates a doctor's schedule for one day, cut into
// consecutive slots of SlotMinutes between StartTime and EndTime in clinic
// local time. A trailing remainder shorter than one slot is dropped.
func (s *Service) GenerateSchedule(ctx context.Context, req GenerateScheduleRequest) (*WorkSchedule, error) {
	ctx, span := tracer.Start(ctx, "scheduling.GenerateSchedule")
	defer span.End()

	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	day, err := time.ParseInLocation(time.DateOnly, req.WorkDate, s.loc)
	if err != nil {
		return nil, apperr.Validation("work_date must be YYYY-MM-DD").WithDetail("field", "work_date")
	}
	start, err := clockOn(day, req.StartTime, "start_time")
	if err != nil {
		return nil, err
	}
	end, err := clockOn(day, req.EndTime, "end_time")
	if err != nil {
		return nil, err
	}
	if !end.After(start) {
		return nil, apperr.Validation("end_time must be after start_time").WithDetail("field", "end_time")
	}
	step := time.Duration(req.SlotMinutes) * time.Minute
	if step == 0 {
		step = defaultSlotMinutes * time.Minute
	}

	if _, err := s.doctors.GetDoctor(ctx, req.DoctorID); err != nil {
		return nil, err
	}

	ws := &WorkSchedule{DoctorID: req.DoctorID, WorkDate: day}
	for t := start; !t.Add(step).After(end); t = t.Add(step) {
		ws.Slots = append(ws.Slots, &Slot{
			DoctorID:  req.DoctorID,
			WorkDate:  day,
			SlotStart: t,
			SlotEnd:   t.Add(step),
		})
	}
	if len(ws.Slots) == 0 {
		return nil, apperr.Validation("working hours are shorter than one slot").WithDetail("field", "slot_minutes")
	}

	if err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.CreateSchedule(ctx, ws)
	}); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("slot.count", len(ws.Slots)))
	s.logger.Info().Str("work_schedule_id", ws.ID).Str("doctor_id", ws.DoctorID).
		Int("slots", len(ws.Slots)).Msg("work schedule generated")
	return ws, nil
}

func clockOn(day time.Time, hhmm, field string) (time.Time, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return time.Time{}, apperr.Validation("%s must be HH:MM", field).WithDetail("field", field)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
}

// ListAvailableSlots returns the slots of a schedule that are neither
// booked nor over.
func (s *Service) ListAvailableSlots(ctx context.Context, scheduleID string) ([]*Slot, error) {
	if _, err := s.repo.GetSchedule(ctx, scheduleID); err != nil {
		return nil, err
	}
	slots, err := s.repo.ListSlots(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]*Slot, 0, len(slots))
	for _, sl := range slots {
		if !sl.IsBooked && sl.SlotEnd.After(now) {
			out = append(out, sl)
		}
	}
	return out, nil
}

func (s *Service) GetSlot(ctx context.Context, id string) (*Slot, error) {
	if validation.Blank(id) {
		return nil, apperr.Required("work_schedule_detail_id")
	}
	return s.repo.GetSlot(ctx, id)
}

// -- Booking --

type BookRequest struct {
	DoctorID             string  `json:"doctor_id" validate:"required"`
	WorkScheduleDetailID string  `json:"work_schedule_detail_id" validate:"required"`
	PatientID            string  `json:"patient_id" validate:"required"`
	Reason               *string `json:"reason"`
}

type GuestBookRequest struct {
	DoctorID             string  `json:"doctor_id" validate:"required"`
	WorkScheduleDetailID string  `json:"work_schedule_detail_id" validate:"required"`
	FullName             string  `json:"full_name" validate:"required"`
	Phone                string  `json:"phone" validate:"required"`
	Email                string  `json:"email" validate:"omitempty,email"`
	Reason               *string `json:"reason"`
}

// Book claims the slot and creates a PENDING appointment in one
// transaction. Of two concurrent bookings for the same slot exactly one
// succeeds; the other gets a validation error.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.Book", trace.WithAttributes(
		attribute.String("slot.id", req.WorkScheduleDetailID),
	))
	defer span.End()

	if err := validation.Struct(req); err != nil {
		s.observeBooking(err)
		return nil, err
	}
	var appt *Appointment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetPatient(ctx, req.PatientID); err != nil {
			return err
		}
		var err error
		appt, err = s.claim(ctx, req.PatientID, req.DoctorID, req.WorkScheduleDetailID, req.Reason)
		return err
	})
	s.observeBooking(err)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return appt, nil
}

// GuestBook registers (or reuses, by phone) a guest patient and books the
// slot for them.
func (s *Service) GuestBook(ctx context.Context, req GuestBookRequest) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.GuestBook", trace.WithAttributes(
		attribute.String("slot.id", req.WorkScheduleDetailID),
	))
	defer span.End()

	if err := validation.Struct(req); err != nil {
		s.observeBooking(err)
		return nil, err
	}
	var appt *Appointment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.patients.RegisterGuest(ctx, registry.GuestRequest{
			FullName: req.FullName, Phone: req.Phone, Email: req.Email,
		})
		if err != nil {
			return err
		}
		appt, err = s.claim(ctx, p.ID, req.DoctorID, req.WorkScheduleDetailID, req.Reason)
		return err
	})
	s.observeBooking(err)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return appt, nil
}

func (s *Service) claim(ctx context.Context, patientID, doctorID, slotID string, reason *string) (*Appointment, error) {
	if _, err := s.doctors.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	slot, err := s.repo.GetSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.DoctorID != doctorID {
		return nil, apperr.Validation("slot does not belong to the requested doctor").
			WithDetail("field", "work_schedule_detail_id")
	}
	now := s.now()
	if slot.IsBooked {
		return nil, apperr.Validation("slot is already booked").WithDetail("field", "work_schedule_detail_id")
	}
	if !slot.SlotEnd.After(now) {
		return nil, apperr.Validation("slot is in the past").WithDetail("field", "work_schedule_detail_id")
	}

	ok, err := s.repo.ClaimSlot(ctx, slot.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Validation("slot is already booked").WithDetail("field", "work_schedule_detail_id")
	}

	appt := &Appointment{
		PatientID:            patientID,
		DoctorID:             doctorID,
		WorkScheduleDetailID: slot.ID,
		ScheduledDate:        slot.SlotStart,
		Reason:               reason,
		Status:               StatusPending,
		CreatedAt:            now.UTC(),
	}
	if err := s.repo.CreateAppointment(ctx, appt); err != nil {
		return nil, err
	}
	s.logger.Info().Str("appointment_id", appt.ID).Str("slot_id", slot.ID).Msg("appointment booked")
	return appt, nil
}

func (s *Service) observeBooking(err error) {
	if err == nil {
		s.metrics.ObserveBooking("booked")
		return
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		s.metrics.ObserveBooking("rejected")
	case apperr.KindNotFound:
		s.metrics.ObserveBooking("not_found")
	default:
		s.metrics.ObserveBooking("error")
	}
}

// -- Appointment lifecycle --

func (s *Service) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	if validation.Blank(id) {
		return nil, apperr.Required("appointment_id")
	}
	return s.repo.GetAppointment(ctx, id)
}

// Cancel cancels a PENDING appointment on behalf of callerPatientID, which
// must own it. An empty callerPatientID skips the ownership check and is
// only passed for staff callers. The slot stays booked.
func (s *Service) Cancel(ctx context.Context, id, callerPatientID string) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "scheduling.Cancel")
	defer span.End()

	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if callerPatientID != "" && appt.PatientID != callerPatientID {
		return nil, apperr.Forbidden("appointment belongs to another patient")
	}
	if appt.Status != StatusPending {
		return nil, apperr.Validation("only PENDING appointments can be cancelled, current status is %s", appt.Status)
	}
	now := s.now()
	if !now.Before(appt.ScheduledDate.Add(-CancelCutoff)) {
		return nil, apperr.Validation("appointments can only be cancelled more than one day in advance")
	}

	ok, err := s.repo.TransitionAppointment(ctx, appt.ID, []string{StatusPending}, StatusCancelled)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Validation("appointment is no longer PENDING")
	}
	appt.Status = StatusCancelled
	appt.UpdatedAt = now.UTC()
	s.logger.Info().Str("appointment_id", appt.ID).Msg("appointment cancelled")
	return appt, nil
}

// Confirm marks a PENDING appointment as CONFIRMED by the front desk.
func (s *Service) Confirm(ctx context.Context, id string) (*Appointment, error) {
	return s.transition(ctx, id, []string{StatusPending}, StatusConfirmed)
}

// CheckIn moves a live appointment to CHECKED_IN when its visit is opened.
// Checking in an already checked-in appointment is a no-op.
func (s *Service) CheckIn(ctx context.Context, id string) (*Appointment, error) {
	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if appt.IsTerminal() {
		return nil, apperr.Validation("appointment is %s and cannot be checked in", appt.Status).
			WithDetail("field", "appointment_id")
	}
	if appt.Status == StatusCheckedIn {
		return appt, nil
	}
	return s.transition(ctx, id, []string{StatusPending, StatusConfirmed}, StatusCheckedIn)
}

// Complete closes a checked-in appointment once its visit completes.
func (s *Service) Complete(ctx context.Context, id string) (*Appointment, error) {
	return s.transition(ctx, id, []string{StatusCheckedIn}, StatusCompleted)
}

func (s *Service) transition(ctx context.Context, id string, from []string, to string) (*Appointment, error) {
	appt, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.repo.TransitionAppointment(ctx, id, from, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Validation("cannot move appointment from %s to %s", appt.Status, to)
	}
	appt.Status = to
	appt.UpdatedAt = s.now().UTC()
	return appt, nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID string) ([]*Appointment, error) {
	if validation.Blank(patientID) {
		return nil, apperr.Required("patient_id")
	}
	out, err := s.repo.ListAppointmentsByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments for patient: %w", err)
	}
	return out, nil
}
