package billing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/clinic/clinic/internal/domain/indication"
	"github.com/clinic/clinic/internal/domain/registry"
	"github.com/clinic/clinic/internal/domain/ticket"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/validation"
)

// -- Mock Repository --

type mockRepo struct {
	mu    sync.Mutex
	bills map[string]*Bill
}

func newMockRepo() *mockRepo {
	return &mockRepo{bills: make(map[string]*Bill)}
}

func (m *mockRepo) Create(_ context.Context, b *Bill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bills[b.ID] = b
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bills[id]
	if !ok {
		return nil, apperr.NotFound("bill", id)
	}
	return b, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID string, limit, offset int) ([]*Bill, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*Bill
	for _, b := range m.bills {
		if b.PatientID == patientID {
			all = append(all, b)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// -- Fakes --

type fakeRefs struct{}

func (fakeRefs) GetPatient(_ context.Context, id string) (*registry.Patient, error) {
	if id != "p1" {
		return nil, apperr.NotFound("patient", id)
	}
	return &registry.Patient{ID: id}, nil
}

func (fakeRefs) GetTicket(_ context.Context, id string) (*ticket.MedicalTicket, error) {
	if id != "mt1" {
		return nil, apperr.NotFound("medical ticket", id)
	}
	return &ticket.MedicalTicket{ID: id}, nil
}

func (fakeRefs) GetIndication(_ context.Context, id string) (*indication.IndicationTicket, error) {
	if id != "it1" {
		return nil, apperr.NotFound("indication ticket", id)
	}
	return &indication.IndicationTicket{ID: id}, nil
}

func (fakeRefs) GetPrescription(_ context.Context, id string) (*registry.Prescription, error) {
	if id != "rx1" {
		return nil, apperr.NotFound("prescription", id)
	}
	return &registry.Prescription{ID: id}, nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	f := fakeRefs{}
	svc := NewService(repo, f, f, f, f)
	svc.SetClock(func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) })
	return svc, repo
}

func TestService_Create_PerType(t *testing.T) {
	tests := []struct {
		name  string
		req   CreateRequest
		check func(t *testing.T, b *Bill)
	}{
		{
			"clinical",
			CreateRequest{BillType: "CLINICAL", PatientID: "p1", Total: validation.NewNumber(150000), MedicalTicketID: "mt1"},
			func(t *testing.T, b *Bill) {
				if b.MedicalTicketID == nil || *b.MedicalTicketID != "mt1" {
					t.Errorf("expected medical ticket mt1, got %v", b.MedicalTicketID)
				}
			},
		},
		{
			"service",
			CreateRequest{BillType: "SERVICE", PatientID: "p1", Total: validation.NewNumber(280000), IndicationTicketID: "it1", MedicalTicketID: "mt1"},
			func(t *testing.T, b *Bill) {
				if b.BillType != TypeService {
					t.Errorf("expected SERVICE, got %s", b.BillType)
				}
				if b.IndicationTicketID == nil || *b.IndicationTicketID != "it1" {
					t.Errorf("expected indication ticket it1, got %v", b.IndicationTicketID)
				}
				if b.MedicalTicketID != nil {
					t.Error("expected unrelated reference to be dropped")
				}
			},
		},
		{
			"two decimal total",
			CreateRequest{BillType: "CLINICAL", PatientID: "p1", Total: validation.NewNumber(150000.55), MedicalTicketID: "mt1"},
			func(t *testing.T, b *Bill) {
				if b.Total != 150000.55 {
					t.Errorf("expected total 150000.55, got %v", b.Total)
				}
			},
		},
		{
			"medicine",
			CreateRequest{BillType: "MEDICINE", PatientID: "p1", Total: validation.NewNumber(45000.5), PrescriptionID: "rx1"},
			func(t *testing.T, b *Bill) {
				if b.PrescriptionID == nil || *b.PrescriptionID != "rx1" {
					t.Errorf("expected prescription rx1, got %v", b.PrescriptionID)
				}
				if b.Total != 45000.5 {
					t.Errorf("expected total 45000.5, got %v", b.Total)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()
			b, err := svc.Create(context.Background(), "user-r1", tt.req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b.ID == "" {
				t.Error("expected bill id")
			}
			if b.CreatedBy == nil || *b.CreatedBy != "user-r1" {
				t.Errorf("expected created_by user-r1, got %v", b.CreatedBy)
			}
			if _, ok := repo.bills[b.ID]; !ok {
				t.Error("expected bill to be persisted")
			}
			tt.check(t, b)
		})
	}
}

func TestService_Create_Validation(t *testing.T) {
	bad := validation.Number{}
	if err := bad.UnmarshalJSON([]byte(`"abc"`)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		req  CreateRequest
		kind apperr.Kind
	}{
		{"missing bill type", CreateRequest{PatientID: "p1", Total: validation.NewNumber(1), MedicalTicketID: "mt1"}, apperr.KindValidation},
		{"unknown bill type", CreateRequest{BillType: "DENTAL", PatientID: "p1", Total: validation.NewNumber(1), MedicalTicketID: "mt1"}, apperr.KindValidation},
		{"lowercase bill type", CreateRequest{BillType: "clinical", PatientID: "p1", Total: validation.NewNumber(1), MedicalTicketID: "mt1"}, apperr.KindValidation},
		{"padded bill type", CreateRequest{BillType: " CLINICAL", PatientID: "p1", Total: validation.NewNumber(1), MedicalTicketID: "mt1"}, apperr.KindValidation},
		{"missing patient", CreateRequest{BillType: "CLINICAL", Total: validation.NewNumber(1), MedicalTicketID: "mt1"}, apperr.KindValidation},
		{"missing total", CreateRequest{BillType: "CLINICAL", PatientID: "p1", MedicalTicketID: "mt1"}, apperr.KindValidation},
		{"zero total", CreateRequest{BillType: "CLINICAL", PatientID: "p1", Total: validation.NewNumber(0), MedicalTicketID: "mt1"}, apperr.KindValidation},
		{"negative total", CreateRequest{BillType: "CLINICAL", PatientID: "p1", Total: validation.NewNumber(-5), MedicalTicketID: "mt1"}, apperr.KindValidation},
		{"total below a cent", CreateRequest{BillType: "CLINICAL", PatientID: "p1", Total: validation.NewNumber(0.004), MedicalTicketID: "mt1"}, apperr.KindValidation},
		{"total with three decimals", CreateRequest{BillType: "CLINICAL", PatientID: "p1", Total: validation.NewNumber(150000.555), MedicalTicketID: "mt1"}, apperr.KindValidation},
		{"total too large", CreateRequest{BillType: "CLINICAL", PatientID: "p1", Total: validation.NewNumber(1e15), MedicalTicketID: "mt1"}, apperr.KindValidation},
		{"non numeric total", CreateRequest{BillType: "CLINICAL", PatientID: "p1", Total: bad, MedicalTicketID: "mt1"}, apperr.KindValidation},
		{"clinical without ticket", CreateRequest{BillType: "CLINICAL", PatientID: "p1", Total: validation.NewNumber(1), IndicationTicketID: "it1"}, apperr.KindValidation},
		{"service without indication", CreateRequest{BillType: "SERVICE", PatientID: "p1", Total: validation.NewNumber(1)}, apperr.KindValidation},
		{"medicine without prescription", CreateRequest{BillType: "MEDICINE", PatientID: "p1", Total: validation.NewNumber(1)}, apperr.KindValidation},
		{"unknown patient", CreateRequest{BillType: "CLINICAL", PatientID: "p9", Total: validation.NewNumber(1), MedicalTicketID: "mt1"}, apperr.KindNotFound},
		{"unknown ticket", CreateRequest{BillType: "CLINICAL", PatientID: "p1", Total: validation.NewNumber(1), MedicalTicketID: "mt9"}, apperr.KindNotFound},
		{"unknown indication", CreateRequest{BillType: "SERVICE", PatientID: "p1", Total: validation.NewNumber(1), IndicationTicketID: "it9"}, apperr.KindNotFound},
		{"unknown prescription", CreateRequest{BillType: "MEDICINE", PatientID: "p1", Total: validation.NewNumber(1), PrescriptionID: "rx9"}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()
			_, err := svc.Create(context.Background(), "user-r1", tt.req)
			if got := apperr.KindOf(err); got != tt.kind {
				t.Fatalf("expected %s, got %s (%v)", tt.kind, got, err)
			}
			if len(repo.bills) != 0 {
				t.Error("expected nothing persisted")
			}
		})
	}
}

func TestService_Create_FieldDetail(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Create(context.Background(), "", CreateRequest{BillType: "SERVICE", PatientID: "p1", Total: validation.NewNumber(1)})
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		t.Fatalf("expected apperr, got %v", err)
	}
	if ae.Details["field"] != "indication_ticket_id" {
		t.Errorf("expected field indication_ticket_id, got %v", ae.Details)
	}
}

func TestService_ListByPatient(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Create(ctx, "", CreateRequest{BillType: "CLINICAL", PatientID: "p1", Total: validation.NewNumber(100), MedicalTicketID: "mt1"}); err != nil {
			t.Fatal(err)
		}
	}
	items, total, err := svc.ListByPatient(ctx, "p1", 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Errorf("expected 2 of 3, got %d of %d", len(items), total)
	}

	if _, _, err := svc.ListByPatient(ctx, "", 20, 0); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, _, err := svc.ListByPatient(ctx, "p9", 20, 0); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestService_GetBill(t *testing.T) {
	svc, _ := newTestService()

	if _, err := svc.GetBill(context.Background(), "b9"); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
	if _, err := svc.GetBill(context.Background(), " "); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
