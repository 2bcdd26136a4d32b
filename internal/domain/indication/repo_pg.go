package indication

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

const ticketCols = `id, medical_ticket_id, patient_id, doctor_id, indication_type, diagnosis, total_fee, created_at`

func scanTicket(row pgx.Row) (*IndicationTicket, error) {
	var t IndicationTicket
	err := row.Scan(&t.ID, &t.MedicalTicketID, &t.PatientID, &t.DoctorID, &t.IndicationType,
		&t.Diagnosis, &t.TotalFee, &t.CreatedAt)
	return &t, err
}

func (r *repoPG) Create(ctx context.Context, t *IndicationTicket) error {
	conn := db.Conn(ctx, r.q)
	_, err := conn.Exec(ctx, `
		INSERT INTO indication_ticket (`+ticketCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.MedicalTicketID, t.PatientID, t.DoctorID, t.IndicationType, t.Diagnosis, t.TotalFee, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert indication ticket: %w", err)
	}
	for _, it := range t.ServiceItems {
		_, err := conn.Exec(ctx, `
			INSERT INTO service_indication (id, indication_ticket_id, medical_service_id, service_name, price, room_id, room_name, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			it.ID, t.ID, it.MedicalServiceID, it.ServiceName, it.Price, it.RoomID, it.RoomName, it.Position)
		if err != nil {
			return fmt.Errorf("insert service indication: %w", err)
		}
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*IndicationTicket, error) {
	t, err := scanTicket(db.Conn(ctx, r.q).QueryRow(ctx,
		`SELECT `+ticketCols+` FROM indication_ticket WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("indication ticket", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get indication ticket: %w", err)
	}
	if t.ServiceItems, err = r.items(ctx, t.ID); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *repoPG) items(ctx context.Context, ticketID string) ([]*ServiceItem, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, `
		SELECT id, indication_ticket_id, medical_service_id, service_name, price, room_id, room_name, position
		FROM service_indication WHERE indication_ticket_id = $1 ORDER BY position`, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list service indications: %w", err)
	}
	defer rows.Close()

	var out []*ServiceItem
	for rows.Next() {
		var it ServiceItem
		if err := rows.Scan(&it.ID, &it.IndicationTicketID, &it.MedicalServiceID, &it.ServiceName,
			&it.Price, &it.RoomID, &it.RoomName, &it.Position); err != nil {
			return nil, fmt.Errorf("scan service indication: %w", err)
		}
		out = append(out, &it)
	}
	return out, rows.Err()
}

func (r *repoPG) ListByMedicalTicket(ctx context.Context, medicalTicketID string) ([]*IndicationTicket, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx,
		`SELECT `+ticketCols+` FROM indication_ticket WHERE medical_ticket_id = $1 ORDER BY created_at`, medicalTicketID)
	if err != nil {
		return nil, fmt.Errorf("list indication tickets: %w", err)
	}
	var out []*IndicationTicket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan indication ticket: %w", err)
		}
		out = append(out, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, t := range out {
		if t.ServiceItems, err = r.items(ctx, t.ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}
