package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
)

func notFoundOr(err error, resource, id string) error {
	if db.IsNoRows(err) {
		return apperr.NotFound(resource, id)
	}
	return fmt.Errorf("get %s %s: %w", resource, id, err)
}

// -- Patient --

type patientRepoPG struct {
	q db.Querier
}

func NewPatientRepo(q db.Querier) PatientRepository {
	return &patientRepoPG{q: q}
}

const patientCols = `id, user_id, full_name, phone, email, is_guest, created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	if err := row.Scan(&p.ID, &p.UserID, &p.FullName, &p.Phone, &p.Email, &p.IsGuest, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id string) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.q).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "patient", id)
	}
	return p, nil
}

func (r *patientRepoPG) GetByUserID(ctx context.Context, userID string) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.q).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE user_id = $1`, userID))
	if err != nil {
		return nil, notFoundOr(err, "patient", userID)
	}
	return p, nil
}

func (r *patientRepoPG) GetByPhone(ctx context.Context, phone string) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.q).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE phone = $1`, phone))
	if err != nil {
		return nil, notFoundOr(err, "patient", phone)
	}
	return p, nil
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := db.Conn(ctx, r.q).Exec(ctx, `
		INSERT INTO patient (id, user_id, full_name, phone, email, is_guest, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.UserID, p.FullName, p.Phone, p.Email, p.IsGuest, p.CreatedAt)
	if db.IsUniqueViolation(err, "") {
		return apperr.Validation("a patient with this phone number already exists")
	}
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

// -- Doctor --

type doctorRepoPG struct {
	q db.Querier
}

func NewDoctorRepo(q db.Querier) DoctorRepository {
	return &doctorRepoPG{q: q}
}

const doctorCols = `id, user_id, full_name, specialty, consultation_fee, created_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	if err := row.Scan(&d.ID, &d.UserID, &d.FullName, &d.Specialty, &d.ConsultationFee, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id string) (*Doctor, error) {
	d, err := scanDoctor(db.Conn(ctx, r.q).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "doctor", id)
	}
	return d, nil
}

func (r *doctorRepoPG) GetByUserID(ctx context.Context, userID string) (*Doctor, error) {
	d, err := scanDoctor(db.Conn(ctx, r.q).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctor WHERE user_id = $1`, userID))
	if err != nil {
		return nil, notFoundOr(err, "doctor", userID)
	}
	return d, nil
}

// -- Medical service catalog --

type serviceRepoPG struct {
	q db.Querier
}

func NewServiceRepo(q db.Querier) ServiceRepository {
	return &serviceRepoPG{q: q}
}

const serviceCols = `id, name, service_type, price, room_id, room_name`

func scanService(row pgx.Row) (*MedicalService, error) {
	var s MedicalService
	if err := row.Scan(&s.ID, &s.Name, &s.ServiceType, &s.Price, &s.RoomID, &s.RoomName); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *serviceRepoPG) GetByID(ctx context.Context, id string) (*MedicalService, error) {
	s, err := scanService(db.Conn(ctx, r.q).QueryRow(ctx,
		`SELECT `+serviceCols+` FROM medical_service WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundOr(err, "medical service", id)
	}
	return s, nil
}

func (r *serviceRepoPG) List(ctx context.Context, serviceType string) ([]*MedicalService, error) {
	rows, err := db.Conn(ctx, r.q).Query(ctx, `
		SELECT `+serviceCols+` FROM medical_service
		WHERE ($1 = '' OR service_type = $1)
		ORDER BY name`, serviceType)
	if err != nil {
		return nil, fmt.Errorf("list medical services: %w", err)
	}
	defer rows.Close()

	var out []*MedicalService
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan medical service: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// -- Prescription --

type prescriptionRepoPG struct {
	q db.Querier
}

func NewPrescriptionRepo(q db.Querier) PrescriptionRepository {
	return &prescriptionRepoPG{q: q}
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id string) (*Prescription, error) {
	var p Prescription
	err := db.Conn(ctx, r.q).QueryRow(ctx,
		`SELECT id, patient_id, doctor_id, created_at FROM prescription WHERE id = $1`, id).
		Scan(&p.ID, &p.PatientID, &p.DoctorID, &p.CreatedAt)
	if err != nil {
		return nil, notFoundOr(err, "prescription", id)
	}
	return &p, nil
}
