package indication

import "time"

const (
	TypeImaging = "IMAGING"
	TypeTest    = "TEST"
)

// IndicationTicket is a doctor's order for ancillary services under one
// medical ticket.
type IndicationTicket struct {
	ID              string         `json:"indication_ticket_id"`
	MedicalTicketID string         `json:"medical_ticket_id"`
	PatientID       string         `json:"patient_id"`
	DoctorID        *string        `json:"doctor_id,omitempty"`
	IndicationType  string         `json:"indication_type"`
	Diagnosis       *string        `json:"diagnosis,omitempty"`
	ServiceItems    []*ServiceItem `json:"service_items"`
	TotalFee        float64        `json:"total_fee"`
	CreatedAt       time.Time      `json:"created_at"`
}

// ServiceItem is one ordered service, priced and roomed from the catalog
// at order time.
type ServiceItem struct {
	ID                 string  `json:"service_indication_id"`
	IndicationTicketID string  `json:"-"`
	MedicalServiceID   string  `json:"medical_service_id"`
	ServiceName        string  `json:"service_name"`
	Price              float64 `json:"price"`
	RoomID             *string `json:"room_id,omitempty"`
	RoomName           *string `json:"room_name,omitempty"`
	Position           int     `json:"position"`
}

// Item returns the service item with the given id, if the ticket has it.
func (t *IndicationTicket) Item(serviceIndicationID string) (*ServiceItem, bool) {
	for _, it := range t.ServiceItems {
		if it.ID == serviceIndicationID {
			return it, true
		}
	}
	return nil, false
}
