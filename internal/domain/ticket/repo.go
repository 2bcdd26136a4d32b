package ticket

import (
	"context"
	"errors"
)

// ErrBarcodeTaken is returned by InsertIfAbsent when the barcode collides
// with an existing ticket; the caller allocates a new one.
var ErrBarcodeTaken = errors.New("barcode already in use")

type Repository interface {
	// InsertIfAbsent stores t unless the visit already has a ticket. It
	// reports whether t was inserted.
	InsertIfAbsent(ctx context.Context, t *MedicalTicket) (bool, error)
	GetByID(ctx context.Context, id string) (*MedicalTicket, error)
	GetByVisitID(ctx context.Context, visitID string) (*MedicalTicket, error)
}
