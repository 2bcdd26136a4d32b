package ticket

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

const ticketCols = `id, visit_id, barcode, clinical_fee, created_at`

func scanTicket(row pgx.Row) (*MedicalTicket, error) {
	var t MedicalTicket
	err := row.Scan(&t.ID, &t.VisitID, &t.Barcode, &t.ClinicalFee, &t.CreatedAt)
	return &t, err
}

// InsertIfAbsent relies on medical_ticket_visit_id_key; concurrent callers
// for one visit serialize on it and all but one insert nothing.
func (r *repoPG) InsertIfAbsent(ctx context.Context, t *MedicalTicket) (bool, error) {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `
		INSERT INTO medical_ticket (`+ticketCols+`)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (visit_id) DO NOTHING`,
		t.ID, t.VisitID, t.Barcode, t.ClinicalFee, t.CreatedAt)
	if db.IsUniqueViolation(err, "medical_ticket_barcode_key") {
		return false, ErrBarcodeTaken
	}
	if err != nil {
		return false, fmt.Errorf("insert medical ticket: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*MedicalTicket, error) {
	t, err := scanTicket(db.Conn(ctx, r.q).QueryRow(ctx,
		`SELECT `+ticketCols+` FROM medical_ticket WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("medical ticket", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get medical ticket: %w", err)
	}
	return t, nil
}

func (r *repoPG) GetByVisitID(ctx context.Context, visitID string) (*MedicalTicket, error) {
	t, err := scanTicket(db.Conn(ctx, r.q).QueryRow(ctx,
		`SELECT `+ticketCols+` FROM medical_ticket WHERE visit_id = $1`, visitID))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("medical ticket", visitID)
	}
	if err != nil {
		return nil, fmt.Errorf("get medical ticket by visit: %w", err)
	}
	return t, nil
}
