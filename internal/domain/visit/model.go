package visit

import "time"

const (
	TypeBooked = "BOOKED"
	TypeWalkIn = "WALK_IN"

	StatusCheckedIn = "CHECKED_IN"
	StatusDoing     = "DOING"
	StatusCompleted = "COMPLETED"
)

// statusRank orders visit statuses; a visit only ever moves forward.
var statusRank = map[string]int{
	StatusCheckedIn: 1,
	StatusDoing:     2,
	StatusCompleted: 3,
}

type Visit struct {
	ID                   string    `json:"id"`
	PatientID            string    `json:"patient_id"`
	DoctorID             string    `json:"doctor_id"`
	AppointmentID        *string   `json:"appointment_id,omitempty"`
	WorkScheduleDetailID *string   `json:"work_schedule_detail_id,omitempty"`
	VisitType            string    `json:"visit_type"`
	VisitStatus          string    `json:"visit_status"`
	VisitDate            time.Time `json:"visit_date"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// ClinicDay returns midnight of the clinic-local day containing t.
func ClinicDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// SameClinicDay reports whether a and b fall on the same clinic-local day.
func SameClinicDay(a, b time.Time, loc *time.Location) bool {
	return ClinicDay(a, loc).Equal(ClinicDay(b, loc))
}
