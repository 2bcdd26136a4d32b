package billing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinic/clinic/internal/domain/indication"
	"github.com/clinic/clinic/internal/domain/registry"
	"github.com/clinic/clinic/internal/domain/ticket"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/metrics"
	"github.com/clinic/clinic/internal/platform/validation"
)

var tracer = otel.Tracer("clinic/billing")

type PatientLookup interface {
	GetPatient(ctx context.Context, id string) (*registry.Patient, error)
}

type TicketLookup interface {
	GetTicket(ctx context.Context, id string) (*ticket.MedicalTicket, error)
}

type IndicationLookup interface {
	GetIndication(ctx context.Context, id string) (*indication.IndicationTicket, error)
}

type PrescriptionLookup interface {
	GetPrescription(ctx context.Context, id string) (*registry.Prescription, error)
}

type Service struct {
	repo          Repository
	patients      PatientLookup
	tickets       TicketLookup
	indications   IndicationLookup
	prescriptions PrescriptionLookup
	metrics       *metrics.Metrics
	logger        zerolog.Logger
	now           func() time.Time
}

func NewService(repo Repository, patients PatientLookup, tickets TicketLookup, indications IndicationLookup, prescriptions PrescriptionLookup) *Service {
	return &Service{
		repo:          repo,
		patients:      patients,
		tickets:       tickets,
		indications:   indications,
		prescriptions: prescriptions,
		logger:        zerolog.Nop(),
		now:           time.Now,
	}
}

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }
func (s *Service) SetLogger(l zerolog.Logger)    { s.logger = l }
func (s *Service) SetClock(now func() time.Time) { s.now = now }

type CreateRequest struct {
	BillType           string            `json:"bill_type"`
	PatientID          string            `json:"patient_id"`
	Total              validation.Number `json:"total"`
	MedicalTicketID    string            `json:"medical_ticket_id"`
	IndicationTicketID string            `json:"indication_ticket_id"`
	PrescriptionID     string            `json:"prescription_id"`
}

// reference describes the entity a bill type charges for.
type reference struct {
	field   string
	id      func(req *CreateRequest) string
	resolve func(ctx context.Context, s *Service, id string) error
	assign  func(b *Bill, id string)
}

var references = map[string]reference{
	TypeClinical: {
		field: "medical_ticket_id",
		id:    func(req *CreateRequest) string { return req.MedicalTicketID },
		resolve: func(ctx context.Context, s *Service, id string) error {
			_, err := s.tickets.GetTicket(ctx, id)
			return err
		},
		assign: func(b *Bill, id string) { b.MedicalTicketID = &id },
	},
	TypeService: {
		field: "indication_ticket_id",
		id:    func(req *CreateRequest) string { return req.IndicationTicketID },
		resolve: func(ctx context.Context, s *Service, id string) error {
			_, err := s.indications.GetIndication(ctx, id)
			return err
		},
		assign: func(b *Bill, id string) { b.IndicationTicketID = &id },
	},
	TypeMedicine: {
		field: "prescription_id",
		id:    func(req *CreateRequest) string { return req.PrescriptionID },
		resolve: func(ctx context.Context, s *Service, id string) error {
			_, err := s.prescriptions.GetPrescription(ctx, id)
			return err
		},
		assign: func(b *Bill, id string) { b.PrescriptionID = &id },
	},
}

// Create records a bill. The bill type selects which reference is required;
// references for other types are ignored.
func (s *Service) Create(ctx context.Context, callerUserID string, req CreateRequest) (*Bill, error) {
	ctx, span := tracer.Start(ctx, "billing.Create", trace.WithAttributes(
		attribute.String("bill.type", req.BillType),
	))
	defer span.End()

	if validation.Blank(req.BillType) {
		return nil, apperr.Required("bill_type")
	}
	ref, ok := references[req.BillType]
	if !ok {
		return nil, apperr.Validation("bill_type must be one of [%s %s %s], got %q",
			TypeClinical, TypeService, TypeMedicine, req.BillType).WithDetail("field", "bill_type")
	}
	if validation.Blank(req.PatientID) {
		return nil, apperr.Required("patient_id")
	}
	if err := req.Total.Check("total"); err != nil {
		return nil, err
	}
	if req.Total.Value <= 0 {
		return nil, apperr.Validation("total must be greater than 0").WithDetail("field", "total")
	}
	if req.Total.Value >= MaxTotal {
		return nil, apperr.Validation("total must be less than %.0f", MaxTotal).WithDetail("field", "total")
	}
	if req.Total.Decimals() > TotalScale {
		return nil, apperr.Validation("total must have at most %d decimal places, got %v", TotalScale, req.Total.Value).
			WithDetail("field", "total")
	}
	refID := strings.TrimSpace(ref.id(&req))
	if refID == "" {
		return nil, apperr.Required(ref.field)
	}

	if _, err := s.patients.GetPatient(ctx, req.PatientID); err != nil {
		return nil, err
	}
	if err := ref.resolve(ctx, s, refID); err != nil {
		return nil, err
	}

	b := &Bill{
		ID:        uuid.NewString(),
		BillType:  req.BillType,
		PatientID: req.PatientID,
		Total:     req.Total.Value,
		CreatedAt: s.now().UTC(),
	}
	ref.assign(b, refID)
	if callerUserID != "" {
		b.CreatedBy = &callerUserID
	}
	if err := s.repo.Create(ctx, b); err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveBill(b.BillType)
	s.logger.Info().Str("bill_id", b.ID).Str("bill_type", b.BillType).Str("patient_id", b.PatientID).
		Float64("total", b.Total).Msg("bill created")
	return b, nil
}

func (s *Service) GetBill(ctx context.Context, id string) (*Bill, error) {
	if validation.Blank(id) {
		return nil, apperr.Required("id")
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Bill, int, error) {
	if validation.Blank(patientID) {
		return nil, 0, apperr.Required("patient_id")
	}
	if _, err := s.patients.GetPatient(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}
