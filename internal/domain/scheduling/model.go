package scheduling

import "time"

const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusCheckedIn = "CHECKED_IN"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// CancelCutoff is how long before the scheduled time a patient may still
// cancel a pending appointment.
const CancelCutoff = 24 * time.Hour

type WorkSchedule struct {
	ID        string    `json:"id"`
	DoctorID  string    `json:"doctor_id"`
	WorkDate  time.Time `json:"work_date"`
	CreatedAt time.Time `json:"created_at"`
	Slots     []*Slot   `json:"slots,omitempty"`
}

// Slot is one bookable work_schedule_detail row. IsBooked only ever goes
// from false to true; cancelled appointments do not release their slot.
type Slot struct {
	ID             string    `json:"id"`
	WorkScheduleID string    `json:"work_schedule_id"`
	DoctorID       string    `json:"doctor_id"`
	WorkDate       time.Time `json:"work_date"`
	SlotStart      time.Time `json:"slot_start"`
	SlotEnd        time.Time `json:"slot_end"`
	IsBooked       bool      `json:"is_booked"`
}

type Appointment struct {
	ID                   string    `json:"id"`
	PatientID            string    `json:"patient_id"`
	DoctorID             string    `json:"doctor_id"`
	WorkScheduleDetailID string    `json:"work_schedule_detail_id"`
	ScheduledDate        time.Time `json:"scheduled_date"`
	Reason               *string   `json:"reason,omitempty"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// IsTerminal reports whether the appointment can no longer change state.
func (a *Appointment) IsTerminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusCancelled
}
