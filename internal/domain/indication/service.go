package indication

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinic/clinic/internal/domain/registry"
	"github.com/clinic/clinic/internal/domain/ticket"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/metrics"
	"github.com/clinic/clinic/internal/platform/validation"
)

var tracer = otel.Tracer("clinic/indication")

type TicketLookup interface {
	GetTicket(ctx context.Context, id string) (*ticket.MedicalTicket, error)
}

type PatientLookup interface {
	GetPatient(ctx context.Context, id string) (*registry.Patient, error)
}

type Catalog interface {
	GetServices(ctx context.Context, ids []string) ([]*registry.MedicalService, error)
}

type DoctorLookup interface {
	DoctorByUser(ctx context.Context, userID string) (*registry.Doctor, error)
}

type Service struct {
	repo     Repository
	tx       db.Transactor
	tickets  TicketLookup
	patients PatientLookup
	catalog  Catalog
	doctors  DoctorLookup
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, tx db.Transactor, tickets TicketLookup, patients PatientLookup, catalog Catalog, doctors DoctorLookup) *Service {
	return &Service{
		repo:     repo,
		tx:       tx,
		tickets:  tickets,
		patients: patients,
		catalog:  catalog,
		doctors:  doctors,
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
}

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }
func (s *Service) SetLogger(l zerolog.Logger)    { s.logger = l }
func (s *Service) SetClock(now func() time.Time) { s.now = now }

type CreateRequest struct {
	MedicalTicketID   string   `json:"medical_ticket_id" validate:"required"`
	PatientID         string   `json:"patient_id" validate:"required"`
	MedicalServiceIDs []string `json:"medical_service_ids" validate:"required,min=1,unique,dive,required"`
	Diagnosis         string   `json:"diagnosis"`
	IndicationType    string   `json:"indication_type" validate:"omitempty,oneof=IMAGING TEST"`
}

// Create orders the requested services under a medical ticket. The fee is
// the sum of catalog prices at order time. Items keep request order.
func (s *Service) Create(ctx context.Context, callerUserID string, req CreateRequest) (*IndicationTicket, error) {
	ctx, span := tracer.Start(ctx, "indication.Create", trace.WithAttributes(
		attribute.Int("service.count", len(req.MedicalServiceIDs)),
	))
	defer span.End()

	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if validation.Blank(req.MedicalTicketID) {
		return nil, apperr.Required("medical_ticket_id")
	}
	if validation.Blank(req.PatientID) {
		return nil, apperr.Required("patient_id")
	}
	for i, id := range req.MedicalServiceIDs {
		if validation.Blank(id) {
			return nil, apperr.Required(fmt.Sprintf("medical_service_ids[%d]", i))
		}
	}

	mt, err := s.tickets.GetTicket(ctx, req.MedicalTicketID)
	if err != nil {
		return nil, err
	}
	if _, err := s.patients.GetPatient(ctx, req.PatientID); err != nil {
		return nil, err
	}
	services, err := s.catalog.GetServices(ctx, req.MedicalServiceIDs)
	if err != nil {
		return nil, err
	}

	t := &IndicationTicket{
		ID:              uuid.NewString(),
		MedicalTicketID: mt.ID,
		PatientID:       req.PatientID,
		IndicationType:  resolveType(req.IndicationType, services),
		CreatedAt:       s.now().UTC(),
	}
	if d := strings.TrimSpace(req.Diagnosis); d != "" {
		t.Diagnosis = &d
	}
	if callerUserID != "" && s.doctors != nil {
		if doc, err := s.doctors.DoctorByUser(ctx, callerUserID); err == nil {
			t.DoctorID = &doc.ID
		} else if !apperr.IsNotFound(err) {
			return nil, err
		}
	}
	for i, svc := range services {
		t.ServiceItems = append(t.ServiceItems, &ServiceItem{
			ID:                 uuid.NewString(),
			IndicationTicketID: t.ID,
			MedicalServiceID:   svc.ID,
			ServiceName:        svc.Name,
			Price:              svc.Price,
			RoomID:             svc.RoomID,
			RoomName:           svc.RoomName,
			Position:           i + 1,
		})
		t.TotalFee += svc.Price
	}

	if err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, t)
	}); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveIndication(t.IndicationType)
	s.logger.Info().Str("indication_ticket_id", t.ID).Str("medical_ticket_id", t.MedicalTicketID).
		Str("indication_type", t.IndicationType).Float64("total_fee", t.TotalFee).Msg("indication ticket created")
	return t, nil
}

// resolveType returns the requested type, or else the type of the first
// ordered service. Mixed orders without an explicit type take the first
// service's modality.
func resolveType(requested string, services []*registry.MedicalService) string {
	if requested != "" {
		return requested
	}
	if len(services) > 0 && services[0].ServiceType == registry.ServiceTypeImaging {
		return TypeImaging
	}
	return TypeTest
}

func (s *Service) GetIndication(ctx context.Context, id string) (*IndicationTicket, error) {
	if validation.Blank(id) {
		return nil, apperr.Required("indication_id")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByMedicalTicket(ctx context.Context, medicalTicketID string) ([]*IndicationTicket, error) {
	if _, err := s.tickets.GetTicket(ctx, medicalTicketID); err != nil {
		return nil, err
	}
	return s.repo.ListByMedicalTicket(ctx, medicalTicketID)
}
