package registry

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinic/clinic/internal/platform/apperr"
)

var tracer = otel.Tracer("clinic/registry")

type Service struct {
	patients      PatientRepository
	doctors       DoctorRepository
	catalog       ServiceRepository
	prescriptions PrescriptionRepository
}

func NewService(patients PatientRepository, doctors DoctorRepository, catalog ServiceRepository, prescriptions PrescriptionRepository) *Service {
	return &Service{patients: patients, doctors: doctors, catalog: catalog, prescriptions: prescriptions}
}

func (s *Service) GetPatient(ctx context.Context, id string) (*Patient, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Required("patient_id")
	}
	return s.patients.GetByID(ctx, id)
}

// PatientByUser resolves the patient record linked to a login.
func (s *Service) PatientByUser(ctx context.Context, userID string) (*Patient, error) {
	if userID == "" {
		return nil, apperr.Unauthorized("missing user identity")
	}
	return s.patients.GetByUserID(ctx, userID)
}

type GuestRequest struct {
	FullName string
	Phone    string
	Email    string
}

// RegisterGuest returns the patient already registered under the phone
// number, or creates a guest patient for it.
func (s *Service) RegisterGuest(ctx context.Context, req GuestRequest) (*Patient, error) {
	name := strings.TrimSpace(req.FullName)
	phone := strings.TrimSpace(req.Phone)
	if name == "" {
		return nil, apperr.Required("full_name")
	}
	if phone == "" {
		return nil, apperr.Required("phone")
	}

	existing, err := s.patients.GetByPhone(ctx, phone)
	if err == nil {
		return existing, nil
	}
	if !apperr.IsNotFound(err) {
		return nil, err
	}

	p := &Patient{FullName: name, Phone: &phone, IsGuest: true}
	if email := strings.TrimSpace(req.Email); email != "" {
		p.Email = &email
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Required("doctor_id")
	}
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) DoctorByUser(ctx context.Context, userID string) (*Doctor, error) {
	if userID == "" {
		return nil, apperr.Unauthorized("missing user identity")
	}
	return s.doctors.GetByUserID(ctx, userID)
}

// GetServices resolves every id in order. The first id that does not
// resolve yields a not-found error naming it.
func (s *Service) GetServices(ctx context.Context, ids []string) ([]*MedicalService, error) {
	ctx, span := tracer.Start(ctx, "registry.GetServices", trace.WithAttributes(
		attribute.Int("service.count", len(ids)),
	))
	defer span.End()

	out := make([]*MedicalService, 0, len(ids))
	for _, id := range ids {
		svc, err := s.catalog.GetByID(ctx, id)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		out = append(out, svc)
	}
	return out, nil
}

func (s *Service) ListServices(ctx context.Context, serviceType string) ([]*MedicalService, error) {
	serviceType = strings.ToUpper(strings.TrimSpace(serviceType))
	switch serviceType {
	case "", ServiceTypeImaging, ServiceTypeTest:
	default:
		return nil, apperr.Validation("service_type must be one of IMAGING, TEST").WithDetail("field", "service_type")
	}
	return s.catalog.List(ctx, serviceType)
}

func (s *Service) GetPrescription(ctx context.Context, id string) (*Prescription, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Required("prescription_id")
	}
	return s.prescriptions.GetByID(ctx, id)
}
