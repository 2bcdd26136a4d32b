package billing

import "context"

type Repository interface {
	Create(ctx context.Context, b *Bill) error
	GetByID(ctx context.Context, id string) (*Bill, error)
	ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Bill, int, error)
}
