package billing

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
)

type repoPG struct {
	q db.Querier
}

func NewRepo(q db.Querier) Repository {
	return &repoPG{q: q}
}

const billCols = `id, bill_type, patient_id, total, medical_ticket_id, indication_ticket_id,
	prescription_id, created_by, created_at`

func scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.BillType, &b.PatientID, &b.Total, &b.MedicalTicketID, &b.IndicationTicketID,
		&b.PrescriptionID, &b.CreatedBy, &b.CreatedAt)
	return &b, err
}

func (r *repoPG) Create(ctx context.Context, b *Bill) error {
	_, err := db.Conn(ctx, r.q).Exec(ctx, `
		INSERT INTO bill (`+billCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.ID, b.BillType, b.PatientID, b.Total, b.MedicalTicketID, b.IndicationTicketID,
		b.PrescriptionID, b.CreatedBy, b.CreatedAt)
	if db.IsRejectedValue(err) {
		return apperr.Validation("total %v is not a storable amount", b.Total).WithDetail("field", "total")
	}
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*Bill, error) {
	b, err := scanBill(db.Conn(ctx, r.q).QueryRow(ctx, `SELECT `+billCols+` FROM bill WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("bill", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get bill: %w", err)
	}
	return b, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID string, limit, offset int) ([]*Bill, int, error) {
	conn := db.Conn(ctx, r.q)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM bill WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bills: %w", err)
	}
	rows, err := conn.Query(ctx, `SELECT `+billCols+` FROM bill WHERE patient_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()
	var items []*Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan bill: %w", err)
		}
		items = append(items, b)
	}
	return items, total, rows.Err()
}
