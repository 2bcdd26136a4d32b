package ticket

import "time"

// MedicalTicket is the single clinical-encounter record of a visit.
type MedicalTicket struct {
	ID          string    `json:"ticket_id"`
	VisitID     string    `json:"visit_id"`
	Barcode     string    `json:"barcode"`
	ClinicalFee float64   `json:"clinical_fee"`
	CreatedAt   time.Time `json:"created_at"`
}
