package scheduling

import (
	"context"
	"time"
)

type Repository interface {
	// CreateSchedule inserts the schedule and all of its slots.
	CreateSchedule(ctx context.Context, ws *WorkSchedule) error
	GetSchedule(ctx context.Context, id string) (*WorkSchedule, error)
	ListSlots(ctx context.Context, scheduleID string) ([]*Slot, error)
	GetSlot(ctx context.Context, id string) (*Slot, error)
	// ClaimSlot flips is_booked for a slot that is still free and not yet
	// over at now. It reports false when another booking got there first.
	ClaimSlot(ctx context.Context, id string, now time.Time) (bool, error)

	CreateAppointment(ctx context.Context, a *Appointment) error
	GetAppointment(ctx context.Context, id string) (*Appointment, error)
	// TransitionAppointment moves the appointment to status `to` only if it
	// is currently in one of `from`.
	TransitionAppointment(ctx context.Context, id string, from []string, to string) (bool, error)
	ListAppointmentsByPatient(ctx context.Context, patientID string) ([]*Appointment, error)
}
