package registry

import "context"

type PatientRepository interface {
	GetByID(ctx context.Context, id string) (*Patient, error)
	GetByUserID(ctx context.Context, userID string) (*Patient, error)
	GetByPhone(ctx context.Context, phone string) (*Patient, error)
	Create(ctx context.Context, p *Patient) error
}

type DoctorRepository interface {
	GetByID(ctx context.Context, id string) (*Doctor, error)
	GetByUserID(ctx context.Context, userID string) (*Doctor, error)
}

type ServiceRepository interface {
	GetByID(ctx context.Context, id string) (*MedicalService, error)
	List(ctx context.Context, serviceType string) ([]*MedicalService, error)
}

type PrescriptionRepository interface {
	GetByID(ctx context.Context, id string) (*Prescription, error)
}
