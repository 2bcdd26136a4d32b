package result

import (
	"context"
	"fmt"

	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/db"
)

type repoPG struct {
	q db.Querier
}

func NewRepo(q db.Querier) Repository {
	return &repoPG{q: q}
}

func (r *repoPG) CreateLab(ctx context.Context, res *LabTestResult) error {
	conn := db.Conn(ctx, r.q)
	_, err := conn.Exec(ctx, `
		INSERT INTO lab_test_result (id, indication_id, patient_id, doctor_id, conclusion, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		res.ID, res.IndicationID, res.PatientID, res.DoctorID, res.Conclusion, res.CreatedAt)
	if db.IsUniqueViolation(err, "lab_test_result_indication_id_key") {
		return ErrAlreadyRecorded
	}
	if err != nil {
		return fmt.Errorf("insert lab test result: %w", err)
	}
	for i, it := range res.ServiceResults {
		_, err := conn.Exec(ctx, `
			INSERT INTO lab_test_result_item (id, lab_test_result_id, service_indication_id, test_result, unit, reference_range, note, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			it.ID, res.ID, it.ServiceIndicationID, it.TestResult, it.Unit, it.ReferenceRange, it.Note, i)
		if err != nil {
			return fmt.Errorf("insert lab test result item: %w", err)
		}
	}
	return nil
}

func (r *repoPG) CreateImaging(ctx context.Context, res *ImagingResult) error {
	files := res.Files
	if files == nil {
		files = []string{}
	}
	_, err := db.Conn(ctx, r.q).Exec(ctx, `
		INSERT INTO imaging_result (id, indication_id, patient_id, doctor_id, conclusion, result, description, files, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		res.ID, res.IndicationID, res.PatientID, res.DoctorID, res.Conclusion, res.Result, res.Description, files, res.CreatedAt)
	if db.IsUniqueViolation(err, "imaging_result_indication_id_key") {
		return ErrAlreadyRecorded
	}
	if err != nil {
		return fmt.Errorf("insert imaging result: %w", err)
	}
	return nil
}

func (r *repoPG) GetLabByIndication(ctx context.Context, indicationID string) (*LabTestResult, error) {
	conn := db.Conn(ctx, r.q)
	var res LabTestResult
	err := conn.QueryRow(ctx, `
		SELECT id, indication_id, patient_id, doctor_id, conclusion, created_at
		FROM lab_test_result WHERE indication_id = $1`, indicationID).
		Scan(&res.ID, &res.IndicationID, &res.PatientID, &res.DoctorID, &res.Conclusion, &res.CreatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("lab test result", indicationID)
	}
	if err != nil {
		return nil, fmt.Errorf("get lab test result: %w", err)
	}

	rows, err := conn.Query(ctx, `
		SELECT id, service_indication_id, test_result, unit, reference_range, note
		FROM lab_test_result_item WHERE lab_test_result_id = $1 ORDER BY position`, res.ID)
	if err != nil {
		return nil, fmt.Errorf("list lab test result items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it ServiceResult
		if err := rows.Scan(&it.ID, &it.ServiceIndicationID, &it.TestResult, &it.Unit, &it.ReferenceRange, &it.Note); err != nil {
			return nil, fmt.Errorf("scan lab test result item: %w", err)
		}
		res.ServiceResults = append(res.ServiceResults, &it)
	}
	return &res, rows.Err()
}

func (r *repoPG) GetImagingByIndication(ctx context.Context, indicationID string) (*ImagingResult, error) {
	var res ImagingResult
	err := db.Conn(ctx, r.q).QueryRow(ctx, `
		SELECT id, indication_id, patient_id, doctor_id, conclusion, result, description, files, created_at
		FROM imaging_result WHERE indication_id = $1`, indicationID).
		Scan(&res.ID, &res.IndicationID, &res.PatientID, &res.DoctorID, &res.Conclusion,
			&res.Result, &res.Description, &res.Files, &res.CreatedAt)
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("imaging result", indicationID)
	}
	if err != nil {
		return nil, fmt.Errorf("get imaging result: %w", err)
	}
	return &res, nil
}
