package billing

import "time"

const (
	TypeClinical = "CLINICAL"
	TypeService  = "SERVICE"
	TypeMedicine = "MEDICINE"
)

// Totals are stored as NUMERIC(14,2).
const (
	TotalScale = 2
	MaxTotal   = 1e12
)

// Bill charges a patient for one medical ticket, indication ticket or
// prescription. Only the reference matching BillType is set.
type Bill struct {
	ID                 string    `json:"id"`
	BillType           string    `json:"bill_type"`
	PatientID          string    `json:"patient_id"`
	Total              float64   `json:"total"`
	MedicalTicketID    *string   `json:"medical_ticket_id,omitempty"`
	IndicationTicketID *string   `json:"indication_ticket_id,omitempty"`
	PrescriptionID     *string   `json:"prescription_id,omitempty"`
	CreatedBy          *string   `json:"created_by,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}
