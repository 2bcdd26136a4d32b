package result

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinic/clinic/internal/domain/indication"
	"github.com/clinic/clinic/internal/domain/registry"
	"github.com/clinic/clinic/internal/platform/apperr"
	"github.com/clinic/clinic/internal/platform/blobstore"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/metrics"
	"github.com/clinic/clinic/internal/platform/validation"
)

var tracer = otel.Tracer("clinic/result")

type IndicationLookup interface {
	GetIndication(ctx context.Context, id string) (*indication.IndicationTicket, error)
}

type PatientLookup interface {
	GetPatient(ctx context.Context, id string) (*registry.Patient, error)
}

type DoctorLookup interface {
	DoctorByUser(ctx context.Context, userID string) (*registry.Doctor, error)
}

type Service struct {
	repo        Repository
	tx          db.Transactor
	indications IndicationLookup
	patients    PatientLookup
	doctors     DoctorLookup
	blobs       blobstore.Store
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	now         func() time.Time
}

func NewService(repo Repository, tx db.Transactor, indications IndicationLookup, patients PatientLookup, doctors DoctorLookup, blobs blobstore.Store) *Service {
	return &Service{
		repo:        repo,
		tx:          tx,
		indications: indications,
		patients:    patients,
		doctors:     doctors,
		blobs:       blobs,
		logger:      zerolog.Nop(),
		now:         time.Now,
	}
}

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }
func (s *Service) SetLogger(l zerolog.Logger)    { s.logger = l }
func (s *Service) SetClock(now func() time.Time) { s.now = now }

type ServiceResultInput struct {
	ServiceIndicationID string            `json:"service_indication_id"`
	TestResult          validation.Number `json:"test_result"`
	Unit                string            `json:"unit"`
	ReferenceRange      string            `json:"reference_range"`
	Note                string            `json:"note"`
}

type LabResultRequest struct {
	IndicationID   string               `json:"indication_id" validate:"required"`
	PatientID      string               `json:"patient_id" validate:"required"`
	ServiceResults []ServiceResultInput `json:"service_results" validate:"required,min=1"`
	Conclusion     string               `json:"conclusion"`
}

// RecordLab stores the measured values for a TEST indication. Each entry
// must name a service item of that indication, at most once.
func (s *Service) RecordLab(ctx context.Context, callerUserID string, req LabResultRequest) (*LabTestResult, error) {
	ctx, span := tracer.Start(ctx, "result.RecordLab", trace.WithAttributes(
		attribute.String("indication.id", req.IndicationID),
	))
	defer span.End()

	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	ids := make([]string, len(req.ServiceResults))
	for i, in := range req.ServiceResults {
		field := fmt.Sprintf("service_results[%d]", i)
		if validation.Blank(in.ServiceIndicationID) {
			return nil, apperr.Required(field + ".service_indication_id")
		}
		if err := in.TestResult.Check(field + ".test_result"); err != nil {
			return nil, err
		}
		ids[i] = strings.TrimSpace(in.ServiceIndicationID)
	}
	if dup, ok := validation.Duplicate(ids); ok {
		return nil, apperr.Validation("service_indication_id %s appears more than once", dup).
			WithDetail("field", "service_results")
	}

	ind, err := s.indications.GetIndication(ctx, req.IndicationID)
	if err != nil {
		return nil, err
	}
	if ind.IndicationType != indication.TypeTest {
		return nil, apperr.Validation("indication %s is %s, lab results need a TEST indication", ind.ID, ind.IndicationType)
	}
	if _, err := s.patients.GetPatient(ctx, req.PatientID); err != nil {
		return nil, err
	}
	if ind.PatientID != req.PatientID {
		return nil, apperr.Validation("patient %s does not match indication %s", req.PatientID, ind.ID).
			WithDetail("field", "patient_id")
	}
	for _, id := range ids {
		if _, ok := ind.Item(id); !ok {
			return nil, apperr.NotFound("service indication", id)
		}
	}
	if _, err := s.repo.GetLabByIndication(ctx, ind.ID); err == nil {
		return nil, alreadyRecorded(ind.ID)
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}

	res := &LabTestResult{
		ID:           uuid.NewString(),
		IndicationID: ind.ID,
		PatientID:    ind.PatientID,
		Conclusion:   optional(req.Conclusion),
		CreatedAt:    s.now().UTC(),
	}
	if res.DoctorID, err = s.callerDoctor(ctx, callerUserID); err != nil {
		return nil, err
	}
	for i, in := range req.ServiceResults {
		res.ServiceResults = append(res.ServiceResults, &ServiceResult{
			ID:                  uuid.NewString(),
			ServiceIndicationID: ids[i],
			TestResult:          in.TestResult.Value,
			Unit:                optional(in.Unit),
			ReferenceRange:      optional(in.ReferenceRange),
			Note:                optional(in.Note),
		})
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.CreateLab(ctx, res)
	})
	if errors.Is(err, ErrAlreadyRecorded) {
		return nil, alreadyRecorded(ind.ID)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveResult(KindLab)
	s.logger.Info().Str("result_id", res.ID).Str("indication_id", res.IndicationID).
		Int("service_results", len(res.ServiceResults)).Msg("lab test result recorded")
	return res, nil
}

// Upload is a file part submitted with an imaging result.
type Upload struct {
	FileName    string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

type ImagingResultRequest struct {
	IndicationID string   `json:"indication_id" form:"indication_id" validate:"required"`
	Conclusion   string   `json:"conclusion" form:"conclusion"`
	Result       string   `json:"result" form:"result"`
	Description  string   `json:"description" form:"description"`
	Files        []string `json:"files" form:"-"`
}

// RecordImaging stores an imaging result. Uploads are written to the blob
// store and their keys appended to Files.
func (s *Service) RecordImaging(ctx context.Context, callerUserID string, req ImagingResultRequest, uploads []Upload) (*ImagingResult, error) {
	ctx, span := tracer.Start(ctx, "result.RecordImaging", trace.WithAttributes(
		attribute.String("indication.id", req.IndicationID),
		attribute.Int("upload.count", len(uploads)),
	))
	defer span.End()

	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	files := make([]string, 0, len(req.Files)+len(uploads))
	for _, f := range req.Files {
		if !validation.Blank(f) {
			files = append(files, strings.TrimSpace(f))
		}
	}
	conclusion := strings.TrimSpace(req.Conclusion)
	if len(files) == 0 && len(uploads) == 0 && conclusion == "" {
		return nil, apperr.Validation("imaging result needs files or a conclusion").WithDetail("field", "files")
	}
	if n := len([]rune(conclusion)); n > MaxConclusionLength {
		return nil, apperr.Validation("conclusion must be at most %d characters, got %d", MaxConclusionLength, n).
			WithDetail("field", "conclusion")
	}

	ind, err := s.indications.GetIndication(ctx, req.IndicationID)
	if err != nil {
		return nil, err
	}
	if ind.IndicationType != indication.TypeImaging {
		return nil, apperr.Validation("indication %s is %s, imaging results need an IMAGING indication", ind.ID, ind.IndicationType)
	}
	if _, err := s.repo.GetImagingByIndication(ctx, ind.ID); err == nil {
		return nil, alreadyRecorded(ind.ID)
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}

	res := &ImagingResult{
		ID:           uuid.NewString(),
		IndicationID: ind.ID,
		PatientID:    ind.PatientID,
		Conclusion:   optional(conclusion),
		Result:       optional(req.Result),
		Description:  optional(req.Description),
		CreatedAt:    s.now().UTC(),
	}
	if res.DoctorID, err = s.callerDoctor(ctx, callerUserID); err != nil {
		return nil, err
	}

	var stored []string
	for _, up := range uploads {
		key, err := s.store(ctx, ind.ID, callerUserID, up)
		if err != nil {
			span.RecordError(err)
			s.discard(ctx, stored)
			return nil, err
		}
		stored = append(stored, key)
	}
	res.Files = append(files, stored...)

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.repo.CreateImaging(ctx, res)
	})
	if err != nil {
		s.discard(ctx, stored)
	}
	if errors.Is(err, ErrAlreadyRecorded) {
		return nil, alreadyRecorded(ind.ID)
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveResult(KindImaging)
	s.logger.Info().Str("result_id", res.ID).Str("indication_id", res.IndicationID).
		Int("files", len(res.Files)).Msg("imaging result recorded")
	return res, nil
}

func (s *Service) store(ctx context.Context, indicationID, createdBy string, up Upload) (string, error) {
	if s.blobs == nil {
		return "", apperr.Validation("file uploads are not enabled")
	}
	rc, err := up.Open()
	if err != nil {
		return "", apperr.Validation("reading upload %q: %v", up.FileName, err).WithDetail("field", "files")
	}
	defer rc.Close()

	meta, err := s.blobs.Put(ctx, blobstore.Object{
		Prefix:      "imaging/" + indicationID,
		FileName:    up.FileName,
		ContentType: up.ContentType,
		CreatedBy:   createdBy,
	}, rc)
	switch {
	case errors.Is(err, blobstore.ErrMissingFileName),
		errors.Is(err, blobstore.ErrInvalidContentType),
		errors.Is(err, blobstore.ErrFileTooLarge):
		return "", apperr.Validation("upload %q: %v", up.FileName, err).WithDetail("field", "files")
	case err != nil:
		return "", apperr.Internal("storing imaging file", err)
	}
	return meta.Key, nil
}

// discard removes files uploaded for a result that was not saved.
func (s *Service) discard(ctx context.Context, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.blobs.Delete(ctx, key); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("remove orphaned imaging file")
		}
	}
}

// OpenFile streams a stored imaging file.
func (s *Service) OpenFile(ctx context.Context, key string) (io.ReadCloser, *blobstore.Metadata, error) {
	if validation.Blank(key) {
		return nil, nil, apperr.Required("key")
	}
	if s.blobs == nil {
		return nil, nil, apperr.NotFound("file", key)
	}
	rc, meta, err := s.blobs.Get(ctx, key)
	if errors.Is(err, blobstore.ErrBlobNotFound) {
		return nil, nil, apperr.NotFound("file", key)
	}
	if err != nil {
		return nil, nil, apperr.Internal("reading imaging file", err)
	}
	return rc, meta, nil
}

// ForIndication returns the result recorded against an indication, looked
// up by the indication's type.
func (s *Service) ForIndication(ctx context.Context, indicationID string) (*Outcome, error) {
	ind, err := s.indications.GetIndication(ctx, indicationID)
	if err != nil {
		return nil, err
	}
	if ind.IndicationType == indication.TypeImaging {
		res, err := s.repo.GetImagingByIndication(ctx, ind.ID)
		if err != nil {
			return nil, err
		}
		return &Outcome{Kind: KindImaging, Imaging: res}, nil
	}
	res, err := s.repo.GetLabByIndication(ctx, ind.ID)
	if err != nil {
		return nil, err
	}
	return &Outcome{Kind: KindLab, Lab: res}, nil
}

func (s *Service) callerDoctor(ctx context.Context, userID string) (*string, error) {
	if userID == "" || s.doctors == nil {
		return nil, nil
	}
	doc, err := s.doctors.DoctorByUser(ctx, userID)
	if apperr.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc.ID, nil
}

func alreadyRecorded(indicationID string) error {
	return apperr.Validation("indication %s already has a result", indicationID).
		WithDetail("field", "indication_id")
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
