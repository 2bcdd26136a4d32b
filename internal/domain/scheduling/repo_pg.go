package scheduling

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

const scheduleConstraint = "work_schedule_doctor_date_key"

func (r *repoPG) CreateSchedule(ctx context.Context, ws *WorkSchedule) error {
	conn := db.Conn(ctx, r.q)
	if ws.ID == "" {
		ws.ID = uuid.NewString()
	}
	if ws.CreatedAt.IsZero() {
		ws.CreatedAt = time.Now().UTC()
	}
	_, err := conn.Exec(ctx, `
		INSERT INTO work_schedule (id, doctor_id, work_date, created_at)
		VALUES ($1, $2, $3, $4)`,
		ws.ID, ws.DoctorID, ws.WorkDate, ws.CreatedAt)
	if db.IsUniqueViolation(err, scheduleConstraint) {
		return apperr.Validation("doctor already has a work schedule on %s", ws.WorkDate.Format(time.DateOnly)).
			WithDetail("field", "work_date")
	}
	if err != nil {
		return fmt.Errorf("insert work schedule: %w", err)
	}

	for _, s := range ws.Slots {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.WorkScheduleID = ws.ID
		_, err := conn.Exec(ctx, `
			INSERT INTO work_schedule_detail (id, work_schedule_id, doctor_id, work_date, slot_start, slot_end, is_booked)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			s.ID, s.WorkScheduleID, s.DoctorID, s.WorkDate, s.SlotStart, s.SlotEnd, s.IsBooked)
		if err != nil {
			return fmt.Errorf("insert slot: %w", err)
		}
	}
	return nil
}

func (r *repoPG) GetSchedule(ctx context.Context, id string) (*WorkSchedule, error) {
	var ws WorkSchedule
	err := db.Conn(ctx, r.q).QueryRow(ctx,
		`SELECT id, doctor_id, work_date, created_at FROM work_schedule WHERE id = $1`, id).
		Scan(&ws.ID, &ws.DoctorID, &ws.WorkDate, &ws.CreatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("work schedule", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get work schedule: %w", err)
	}
	return &ws, nil
}

const slotCols = `id, work_schedule_id, doctor_id, work_date, slot_start, slot_end, is_booked`

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(&s.ID, &s.WorkScheduleID, &s.DoctorID, &s.WorkDate, &s.SlotStart, &s.SlotEnd, &s.IsBooked)
	return &s, err
}

func (r *repoPG) ListSlots(ctx context.Context, scheduleID string) ([]*Slot, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx,
		`SELECT `+slotCols+` FROM work_schedule_detail WHERE work_schedule_id = $1 ORDER BY slot_start`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var out []*Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *repoPG) GetSlot(ctx context.Context, id string) (*Slot, error) {
	s, err := scanSlot(db.Conn(ctx, r.q).QueryRow(ctx,
		`SELECT `+slotCols+` FROM work_schedule_detail WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("work schedule detail", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get slot: %w", err)
	}
	return s, nil
}

func (r *repoPG) ClaimSlot(ctx context.Context, id string, now time.Time) (bool, error) {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `
		UPDATE work_schedule_detail SET is_booked = TRUE
		WHERE id = $1 AND is_booked = FALSE AND slot_end > $2`, id, now)
	if err != nil {
		return false, fmt.Errorf("claim slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

const appointmentCols = `id, patient_id, doctor_id, work_schedule_detail_id, scheduled_date, reason, status, created_at, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.WorkScheduleDetailID, &a.ScheduledDate,
		&a.Reason, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *repoPG) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = a.CreatedAt
	_, err := db.Conn(ctx, r.q).Exec(ctx, `
		INSERT INTO appointment (`+appointmentCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.PatientID, a.DoctorID, a.WorkScheduleDetailID, a.ScheduledDate,
		a.Reason, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *repoPG) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	a, err := scanAppointment(db.Conn(ctx, r.q).QueryRow(ctx,
		`SELECT `+appointmentCols+` FROM appointment WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("appointment", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (r *repoPG) TransitionAppointment(ctx context.Context, id string, from []string, to string) (bool, error) {
	tag, err := db.Conn(ctx, r.q).Exec(ctx, `
		UPDATE appointment SET status = $3, updated_at = now()
		WHERE id = $1 AND status = ANY($2)`, id, from, to)
	if err != nil {
		return false, fmt.Errorf("update appointment status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) ListAppointmentsByPatient(ctx context.Context, patientID string) ([]*Appointment, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx,
		`SELECT `+appointmentCols+` FROM appointment WHERE patient_id = $1 ORDER BY scheduled_date DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
