package visit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
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

const visitCols = `id, patient_id, doctor_id, appointment_id, work_schedule_detail_id,
	visit_type, visit_status, visit_date, created_at, updated_at`

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	err := row.Scan(&v.ID, &v.PatientID, &v.DoctorID, &v.AppointmentID, &v.WorkScheduleDetailID,
		&v.VisitType, &v.VisitStatus, &v.VisitDate, &v.CreatedAt, &v.UpdatedAt)
	return &v, err
}

func (r *repoPG) Create(ctx context.Context, v *Visit) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = v.CreatedAt
	_, err := db.Conn(ctx, r.q).Exec(ctx, `
		INSERT INTO visit (`+visitCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		v.ID, v.PatientID, v.DoctorID, v.AppointmentID, v.WorkScheduleDetailID,
		v.VisitType, v.VisitStatus, v.VisitDate, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert visit: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id string) (*Visit, error) {
	v, err := scanVisit(db.Conn(ctx, r.q).QueryRow(ctx,
		`SELECT `+visitCols+` FROM visit WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("visit", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get visit: %w", err)
	}
	return v, nil
}

func (r *repoPG) TransitionStatus(ctx context.Context, id, from, to string) (bool, error) {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `
		UPDATE visit SET visit_status = $3, updated_at = now()
		WHERE id = $1 AND visit_status = $2`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("update visit status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) ListBetween(ctx context.Context, from, to time.Time, doctorID string) ([]*Visit, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, `
		SELECT `+visitCols+` FROM visit
		WHERE visit_date >= $1 AND visit_date < $2 AND ($3 = '' OR doctor_id = $3)
		ORDER BY visit_date`, from, to, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	defer rows.Close()

	var out []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
