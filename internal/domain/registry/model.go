package registry

import "time"

const (
	ServiceTypeImaging = "IMAGING"
	ServiceTypeTest    = "TEST"
)

// Patient is owned by patient management; the workflow only reads it,
// except for guests registered at booking time.
type Patient struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"user_id,omitempty"`
	FullName  string    `json:"full_name"`
	Phone     *string   `json:"phone,omitempty"`
	Email     *string   `json:"email,omitempty"`
	IsGuest   bool      `json:"is_guest"`
	CreatedAt time.Time `json:"created_at"`
}

type Doctor struct {
	ID              string    `json:"id"`
	UserID          *string   `json:"user_id,omitempty"`
	FullName        string    `json:"full_name"`
	Specialty       *string   `json:"specialty,omitempty"`
	ConsultationFee float64   `json:"consultation_fee"`
	CreatedAt       time.Time `json:"created_at"`
}

// MedicalService is a catalog entry that can be ordered on an indication ticket.
type MedicalService struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ServiceType string  `json:"service_type"`
	Price       float64 `json:"price"`
	RoomID      *string `json:"room_id,omitempty"`
	RoomName    *string `json:"room_name,omitempty"`
}

type Prescription struct {
	ID        string    `json:"id"`
	PatientID string    `json:"patient_id"`
	DoctorID  *string   `json:"doctor_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
