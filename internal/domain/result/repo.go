package result

import (
	"context"
	"errors"
)

// ErrAlreadyRecorded is returned when the indication already has a result.
var ErrAlreadyRecorded = errors.New("indication already has a result")

type Repository interface {
	CreateLab(ctx context.Context, r *LabTestResult) error
	CreateImaging(ctx context.Context, r *ImagingResult) error
	GetLabByIndication(ctx context.Context, indicationID string) (*LabTestResult, error)
	GetImagingByIndication(ctx context.Context, indicationID string) (*ImagingResult, error)
}
