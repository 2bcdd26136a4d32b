package indication

import "context"

type Repository interface {
	// Create inserts the ticket with its service items.
	Create(ctx context.Context, t *IndicationTicket) error
	GetByID(ctx context.Context, id string) (*IndicationTicket, error)
	ListByMedicalTicket(ctx context.Context, medicalTicketID string) ([]*IndicationTicket, error)
}
