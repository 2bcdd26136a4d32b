package visit

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id string) (*Visit, error)
	// TransitionStatus sets the status to `to` only while it is still `from`.
	TransitionStatus(ctx context.Context, id, from, to string) (bool, error)
	// ListBetween returns visits dated in [from, to), optionally for one doctor.
	ListBetween(ctx context.Context, from, to time.Time, doctorID string) ([]*Visit, error)
}
